// Package artifact defines the typed side-channel results a conversation turn
// can produce alongside its textual answer: charts, presentations, and
// presentation edits. Tool outputs and fenced blocks in model text both decode
// into these types; the reconciler in this package merges the two sources.
package artifact

import (
	"encoding/json"
	"fmt"
	"time"
)

// Discriminant values carried in the "type" field of artifact JSON payloads.
// These are part of the wire contract with the frontend and must not change.
const (
	TypeChart              = "chart"
	TypePresentation       = "presentation"
	TypePresentationUpdate = "presentation_update"
)

// ChartType identifies the visual rendering of a chart.
type ChartType string

const (
	ChartLine    ChartType = "line"
	ChartBar     ChartType = "bar"
	ChartPie     ChartType = "pie"
	ChartArea    ChartType = "area"
	ChartScatter ChartType = "scatter"
)

// DefaultPalette is the series color cycle used when a chart carries no
// explicit colors. Matches the frontend's Recharts theme.
var DefaultPalette = []string{"#8884d8", "#82ca9d", "#ffc658", "#ff7300", "#0088fe"}

// RenderConfig carries rendering hints for the frontend chart component.
type RenderConfig struct {
	Responsive          bool `json:"responsive"`
	MaintainAspectRatio bool `json:"maintainAspectRatio"`
	Legend              bool `json:"legend"`
	Tooltip             bool `json:"tooltip"`
	Grid                bool `json:"grid"`
}

// DefaultRenderConfig returns the rendering hints applied when a chart
// payload omits them. All hints default to enabled.
func DefaultRenderConfig() *RenderConfig {
	return &RenderConfig{
		Responsive:          true,
		MaintainAspectRatio: true,
		Legend:              true,
		Tooltip:             true,
		Grid:                true,
	}
}

// Chart is a renderable chart configuration.
type Chart struct {
	Type      string           `json:"type"`
	ChartType ChartType        `json:"chartType"`
	Title     string           `json:"title"`
	Data      []map[string]any `json:"data"`
	XAxisKey  string           `json:"xAxisKey"`
	YAxisKeys []string         `json:"yAxisKeys"`
	Colors    []string         `json:"colors"`
	Config    *RenderConfig    `json:"config,omitempty"`
}

// Normalize fills defaulted fields in place: the type discriminant, the color
// cycle (one color per y-axis key, taken from DefaultPalette), and the render
// hints when absent.
func (c *Chart) Normalize() {
	c.Type = TypeChart
	if len(c.Colors) == 0 {
		n := len(c.YAxisKeys)
		if n > len(DefaultPalette) {
			n = len(DefaultPalette)
		}
		c.Colors = append([]string(nil), DefaultPalette[:n]...)
	}
	if c.Config == nil {
		c.Config = DefaultRenderConfig()
	}
}

// SlideContentType identifies the body layout of a slide.
type SlideContentType string

const (
	SlideText    SlideContentType = "text"
	SlideBullets SlideContentType = "bullets"
	SlideChart   SlideContentType = "chart"
	SlideMixed   SlideContentType = "mixed"
)

// Slide is a single slide in a presentation outline. Content shape depends on
// ContentType: a string for text, a list of strings for bullets, a chart
// reference for chart slides.
type Slide struct {
	ID          string           `json:"id"`
	Order       int              `json:"order"`
	Title       string           `json:"title"`
	ContentType SlideContentType `json:"contentType"`
	Content     any              `json:"content"`
	Notes       string           `json:"notes,omitempty"`
	ChartConfig *Chart           `json:"chartConfig,omitempty"`
}

// PresentationMeta carries bookkeeping fields alongside the slide list.
// SlideCount always equals len(Slides) after Normalize.
type PresentationMeta struct {
	CreatedAt  string `json:"createdAt"`
	SlideCount int    `json:"slideCount"`
}

// Presentation is a presentation outline previewed and edited by the
// frontend before PPTX export.
type Presentation struct {
	Type           string           `json:"type"`
	PresentationID string           `json:"presentationId"`
	Title          string           `json:"title"`
	Slides         []Slide          `json:"slides"`
	Metadata       PresentationMeta `json:"metadata"`
}

// Normalize repairs the structural invariants: dense 1-based slide ordering,
// defaulted slide ids ("slide-N"), the type discriminant, a creation
// timestamp, and a slide count that matches the slide list.
func (p *Presentation) Normalize() {
	p.Type = TypePresentation
	for i := range p.Slides {
		p.Slides[i].Order = i + 1
		if p.Slides[i].ID == "" {
			p.Slides[i].ID = fmt.Sprintf("slide-%d", i+1)
		}
	}
	if p.Metadata.CreatedAt == "" {
		p.Metadata.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	p.Metadata.SlideCount = len(p.Slides)
}

// Clone returns a deep copy. Slide Content and chart Data values are copied
// via JSON round-trip only where needed; top-level slices are always fresh so
// mutating the copy never touches the original.
func (p Presentation) Clone() Presentation {
	out := p
	out.Slides = make([]Slide, len(p.Slides))
	copy(out.Slides, p.Slides)
	for i := range out.Slides {
		if cc := out.Slides[i].ChartConfig; cc != nil {
			chart := *cc
			chart.Data = append([]map[string]any(nil), cc.Data...)
			chart.YAxisKeys = append([]string(nil), cc.YAxisKeys...)
			chart.Colors = append([]string(nil), cc.Colors...)
			out.Slides[i].ChartConfig = &chart
		}
	}
	return out
}

// ActionAddChart is the only presentation-update action currently defined.
const ActionAddChart = "add_chart"

// PresentationUpdate is an edit event targeting one slide of one
// presentation. ChartConfig may be a chart object or a JSON-encoded string;
// decoding is deferred to ApplyUpdate.
type PresentationUpdate struct {
	Type           string          `json:"type"`
	Action         string          `json:"action"`
	PresentationID string          `json:"presentationId"`
	SlideID        string          `json:"slideId"`
	ChartConfig    json.RawMessage `json:"chartConfig"`
}

// Suggestion ceiling per turn; extra suggestions are discarded.
const MaxSuggestions = 4

// Kind tags the variants a decoded tool output can take.
type Kind string

const (
	KindChart              Kind = "chart"
	KindPresentation       Kind = "presentation"
	KindPresentationUpdate Kind = "presentation_update"
	KindOpaque             Kind = "opaque"
)

// Value is the closed tagged variant produced by Decode. Exactly one of the
// typed fields is set for non-opaque kinds; Raw always holds the original
// payload text.
type Value struct {
	Kind         Kind
	Chart        *Chart
	Presentation *Presentation
	Update       *PresentationUpdate
	Raw          string
}

// Decode classifies a tool output string. JSON objects with a recognized
// "type" discriminant decode into their typed variant; everything else —
// including malformed JSON and JSON without a discriminant — is opaque.
// Decode never fails: parse errors degrade to KindOpaque.
func Decode(s string) Value {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return Value{Kind: KindOpaque, Raw: s}
	}

	switch probe.Type {
	case TypeChart:
		var c Chart
		if err := json.Unmarshal([]byte(s), &c); err != nil {
			return Value{Kind: KindOpaque, Raw: s}
		}
		c.Normalize()
		return Value{Kind: KindChart, Chart: &c, Raw: s}
	case TypePresentation:
		var p Presentation
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return Value{Kind: KindOpaque, Raw: s}
		}
		p.Normalize()
		return Value{Kind: KindPresentation, Presentation: &p, Raw: s}
	case TypePresentationUpdate:
		var u PresentationUpdate
		if err := json.Unmarshal([]byte(s), &u); err != nil {
			return Value{Kind: KindOpaque, Raw: s}
		}
		return Value{Kind: KindPresentationUpdate, Update: &u, Raw: s}
	default:
		return Value{Kind: KindOpaque, Raw: s}
	}
}
