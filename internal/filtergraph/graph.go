// Package filtergraph builds ffmpeg filter graphs as typed nodes and
// serializes them to the -filter_complex syntax at the boundary. Building
// graphs this way (instead of hand-concatenating strings) keeps caption
// text containing ffmpeg's own delimiters from breaking the graph.
package filtergraph

import (
	"fmt"
	"strings"
)

// Param is one key=value option of a filter. Values are escaped during
// serialization, never by the caller.
type Param struct {
	Key   string
	Value string
}

// Filter is a single named filter with its options.
type Filter struct {
	Name   string
	Params []Param
}

// F is shorthand for constructing a Filter.
func F(name string, params ...Param) Filter {
	return Filter{Name: name, Params: params}
}

// P is shorthand for constructing a Param.
func P(key, value string) Param {
	return Param{Key: key, Value: value}
}

// Node is one chain of the graph: input labels, a filter chain, output
// labels. Labels are written without brackets ("0:v", "hold3").
type Node struct {
	Inputs  []string
	Filters []Filter
	Outputs []string
}

// Graph is an ordered sequence of nodes. Order matters: a label must be
// produced before it is consumed.
type Graph struct {
	nodes []Node
}

// Add appends a node and returns the graph for chaining.
func (g *Graph) Add(n Node) *Graph {
	g.nodes = append(g.nodes, n)
	return g
}

// Chain appends a single-input single-output node.
func (g *Graph) Chain(in, out string, filters ...Filter) *Graph {
	return g.Add(Node{Inputs: []string{in}, Outputs: []string{out}, Filters: filters})
}

// Len reports the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Validate checks structural soundness: every node has at least one filter,
// output labels are unique, and every non-stream input label was produced
// by an earlier node. Stream specifiers like "0:v" or "2:a" refer to
// command inputs and need no producer.
func (g *Graph) Validate() error {
	if len(g.nodes) == 0 {
		return fmt.Errorf("filtergraph: empty graph")
	}

	produced := make(map[string]bool)
	for i, n := range g.nodes {
		if len(n.Filters) == 0 {
			return fmt.Errorf("filtergraph: node %d has no filters", i)
		}
		for _, in := range n.Inputs {
			if in == "" {
				return fmt.Errorf("filtergraph: node %d has an empty input label", i)
			}
			if isStreamSpecifier(in) {
				continue
			}
			if !produced[in] {
				return fmt.Errorf("filtergraph: node %d consumes undefined label %q", i, in)
			}
		}
		for _, out := range n.Outputs {
			if out == "" {
				return fmt.Errorf("filtergraph: node %d has an empty output label", i)
			}
			if produced[out] {
				return fmt.Errorf("filtergraph: label %q produced twice", out)
			}
			produced[out] = true
		}
	}
	return nil
}

// String serializes the graph to ffmpeg -filter_complex syntax. Call
// Validate first; String does not re-check.
func (g *Graph) String() string {
	var sb strings.Builder
	for i, n := range g.nodes {
		if i > 0 {
			sb.WriteByte(';')
		}
		for _, in := range n.Inputs {
			sb.WriteString("[" + in + "]")
		}
		for j, f := range n.Filters {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(f.String())
		}
		for _, out := range n.Outputs {
			sb.WriteString("[" + out + "]")
		}
	}
	return sb.String()
}

func (f Filter) String() string {
	if len(f.Params) == 0 {
		return f.Name
	}
	parts := make([]string, 0, len(f.Params))
	for _, p := range f.Params {
		parts = append(parts, p.Key+"="+EscapeValue(p.Value))
	}
	return f.Name + "=" + strings.Join(parts, ":")
}

func isStreamSpecifier(label string) bool {
	i := strings.IndexByte(label, ':')
	if i <= 0 {
		return false
	}
	for _, r := range label[:i] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// EscapeValue escapes a filter option value so that option and filter
// delimiters inside it survive filter-graph parsing. Values that are pure
// filter expressions or numbers pass through unchanged.
func EscapeValue(s string) string {
	if !strings.ContainsAny(s, `\':,;[]=`) {
		return s
	}
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '\'', ':', ',', ';', '[', ']', '=':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// EscapeText escapes user-supplied text for use inside a drawtext filter.
// drawtext parses its text option a second time, so the characters it
// treats specially need their own layer of escaping before the value-level
// escaping applied by the serializer.
func EscapeText(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '\'', ':', '%':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
