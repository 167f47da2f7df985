package tools

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/quarry0/quarry/internal/artifact"
)

type outlineSlideInput struct {
	Title       string          `json:"title" jsonschema:"slide title"`
	ContentType string          `json:"content_type,omitempty" jsonschema:"text, chart, bullets or mixed"`
	Content     any             `json:"content,omitempty" jsonschema:"text content, bullet list or chart reference"`
	Notes       string          `json:"notes,omitempty" jsonschema:"optional speaker notes"`
	ChartConfig json.RawMessage `json:"chart_config,omitempty" jsonschema:"chart configuration from generate_chart_config"`
}

type outlineInput struct {
	Title  string              `json:"title" jsonschema:"presentation title"`
	Slides []outlineSlideInput `json:"slides" jsonschema:"slide configurations in presentation order"`
}

type addChartInput struct {
	PresentationID string          `json:"presentation_id" jsonschema:"id of the presentation"`
	SlideID        string          `json:"slide_id" jsonschema:"id of the slide to add the chart to"`
	ChartConfig    json.RawMessage `json:"chart_config" jsonschema:"chart configuration from generate_chart_config"`
}

type suggestSlidesInput struct {
	Topic       string `json:"topic" jsonschema:"main topic or theme of the presentation"`
	DataSummary string `json:"data_summary" jsonschema:"summary of the data available for the presentation"`
}

// suggestedSlides is the canned deck structure returned by
// generate_presentation_suggestions.
var suggestedSlides = []map[string]any{
	{"title": "Executive Summary", "content_type": "bullets", "description": "Key findings and highlights"},
	{"title": "Data Overview", "content_type": "mixed", "description": "High-level metrics and KPIs"},
	{"title": "Trend Analysis", "content_type": "chart", "description": "Time-based trends and patterns", "suggestedChartType": "line"},
	{"title": "Category Breakdown", "content_type": "chart", "description": "Comparison across categories", "suggestedChartType": "bar"},
	{"title": "Distribution Analysis", "content_type": "chart", "description": "Proportional distribution", "suggestedChartType": "pie"},
	{"title": "Key Insights", "content_type": "bullets", "description": "Main takeaways and findings"},
	{"title": "Recommendations", "content_type": "bullets", "description": "Actionable recommendations"},
	{"title": "Next Steps", "content_type": "text", "description": "Proposed action items"},
}

// NewPresentation builds the presentation tools. They synthesize artifact
// payloads for the frontend and never touch external resources.
func NewPresentation() ([]*Tool, error) {
	outline, err := New("create_presentation_outline",
		"Create a presentation outline for the frontend to preview and edit. "+
			"Each slide has a title, a content type (text, chart, bullets, mixed), content and optional notes.",
		func(_ context.Context, in outlineInput) (string, error) {
			p := artifact.Presentation{
				PresentationID: uuid.NewString(),
				Title:          in.Title,
			}
			for _, s := range in.Slides {
				slide := artifact.Slide{
					Title:       s.Title,
					ContentType: artifact.SlideContentType(s.ContentType),
					Content:     s.Content,
					Notes:       s.Notes,
				}
				if slide.ContentType == "" {
					slide.ContentType = artifact.SlideText
				}
				if len(s.ChartConfig) > 0 {
					var c artifact.Chart
					if err := json.Unmarshal(s.ChartConfig, &c); err == nil {
						c.Normalize()
						slide.ChartConfig = &c
					}
				}
				p.Slides = append(p.Slides, slide)
			}
			p.Normalize()
			b, err := json.Marshal(p)
			if err != nil {
				return Errorf("encode presentation: %v", err), nil
			}
			return string(b), nil
		})
	if err != nil {
		return nil, err
	}

	addChart, err := New("add_chart_to_presentation",
		"Add a chart to a specific slide of an existing presentation.",
		func(_ context.Context, in addChartInput) (string, error) {
			b, err := json.Marshal(map[string]any{
				"type":           artifact.TypePresentationUpdate,
				"action":         artifact.ActionAddChart,
				"presentationId": in.PresentationID,
				"slideId":        in.SlideID,
				"chartConfig":    in.ChartConfig,
				"success":        true,
			})
			if err != nil {
				return Errorf("encode update: %v", err), nil
			}
			return string(b), nil
		})
	if err != nil {
		return nil, err
	}

	suggest, err := New("generate_presentation_suggestions",
		"Generate a suggested slide structure for a presentation based on topic and available data.",
		func(_ context.Context, in suggestSlidesInput) (string, error) {
			b, err := json.Marshal(map[string]any{
				"type":            "presentation_suggestions",
				"topic":           in.Topic,
				"suggestedSlides": suggestedSlides,
			})
			if err != nil {
				return Errorf("encode suggestions: %v", err), nil
			}
			return string(b), nil
		})
	if err != nil {
		return nil, err
	}

	return []*Tool{outline, addChart, suggest}, nil
}
