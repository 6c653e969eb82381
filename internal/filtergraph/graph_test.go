package filtergraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeChain(t *testing.T) {
	g := &Graph{}
	g.Chain("0:v", "out",
		F("scale", P("w", "1920"), P("h", "1080")),
		F("setsar", P("sar", "1")),
	)

	require.NoError(t, g.Validate())
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, "[0:v]scale=w=1920:h=1080,setsar=sar=1[out]", g.String())
}

func TestSerializeMultiNode(t *testing.T) {
	g := &Graph{}
	g.Chain("0:v", "a", F("fade", P("t", "in"), P("st", "0"), P("d", "0.400")))
	g.Chain("1:v", "b", F("fade", P("t", "in"), P("st", "0"), P("d", "0.400")))
	g.Add(Node{
		Inputs:  []string{"a", "b"},
		Filters: []Filter{F("concat", P("n", "2"), P("v", "1"), P("a", "0"))},
		Outputs: []string{"out"},
	})

	require.NoError(t, g.Validate())
	assert.Equal(t, 3, g.Len())
	assert.Equal(t,
		"[0:v]fade=t=in:st=0:d=0.400[a];[1:v]fade=t=in:st=0:d=0.400[b];[a][b]concat=n=2:v=1:a=0[out]",
		g.String())
}

func TestValidateRejectsUndefinedLabel(t *testing.T) {
	g := &Graph{}
	g.Chain("nowhere", "out", F("fps", P("fps", "30")))

	err := g.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined label")
}

func TestValidateRejectsDuplicateOutput(t *testing.T) {
	g := &Graph{}
	g.Chain("0:v", "x", F("setsar", P("sar", "1")))
	g.Chain("1:v", "x", F("setsar", P("sar", "1")))

	err := g.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "produced twice")
}

func TestValidateRejectsEmptyGraphAndEmptyNode(t *testing.T) {
	g := &Graph{}
	assert.Error(t, g.Validate())

	g.Add(Node{Inputs: []string{"0:v"}, Outputs: []string{"out"}})
	assert.Error(t, g.Validate())
}

func TestStreamSpecifiersNeedNoProducer(t *testing.T) {
	g := &Graph{}
	g.Chain("12:a", "aout", F("aresample", P("sample_rate", "44100")))
	assert.NoError(t, g.Validate())
}

func TestEscapeValueProtectsDelimiters(t *testing.T) {
	assert.Equal(t, "plain", EscapeValue("plain"))
	assert.Equal(t, `a\,b`, EscapeValue("a,b"))
	assert.Equal(t, `x\:y`, EscapeValue("x:y"))
	assert.Equal(t, `\[tag\]`, EscapeValue("[tag]"))
}

func TestEscapeTextSurvivesDrawtextSyntax(t *testing.T) {
	// Caption text containing the backend's own delimiters must not be able
	// to break out of the drawtext option.
	hostile := `It's 10:30 — 50% done; [end], drop=table`
	escaped := EscapeText(hostile)
	assert.Contains(t, escaped, `\'`)
	assert.Contains(t, escaped, `\:`)
	assert.Contains(t, escaped, `\%`)

	g := &Graph{}
	g.Chain("0:v", "out", F("drawtext", P("text", escaped), P("fontsize", "64")))
	require.NoError(t, g.Validate())

	// The serializer then escapes the brackets so they cannot read as
	// stream labels.
	s := g.String()
	assert.Contains(t, s, `\[end\]`)
	assert.NotContains(t, s, `[end]`)
}
