package types

// SegmentKind tags one beat of the narration sequence.
type SegmentKind string

const (
	KindTitle     SegmentKind = "title"
	KindHook      SegmentKind = "hook"
	KindBody      SegmentKind = "body"
	KindNumbering SegmentKind = "numbering"
	KindSubtitle  SegmentKind = "subtitle"
	KindSource    SegmentKind = "source"
	KindCTA       SegmentKind = "cta"
	KindClosing   SegmentKind = "closing"
)

// Segment is one narrated/displayed beat of the video.
// Order is 0-based and contiguous within a single job; the sum of all
// DurationSec values is the total duration reported for the job.
type Segment struct {
	Kind        SegmentKind `json:"kind"`
	Text        string      `json:"text"`
	Order       int         `json:"order"`
	DurationSec float64     `json:"duration_sec"`
}

// Slide is a rendered still frame corresponding to one segment.
// ImagePath is owned by the frame renderer and consumed read-only by the
// timeline composer.
type Slide struct {
	SourceSegmentOrder int    `json:"source_segment_order"`
	ImagePath          string `json:"image_path"`
	StyleVariant       int    `json:"style_variant"`
}

// Article review statuses as stored by the content store.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusRendered = "rendered"
)

// Article is one ingested piece of content awaiting review.
type Article struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Source      string `json:"source"`
	SourceURL   string `json:"source_url"`
	Status      string `json:"status"`
	PublishedAt string `json:"published_at"`
	CreatedAt   string `json:"created_at"`
}
