package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/quarry0/quarry/internal/artifact"
)

func presentationRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	ppt, err := NewPresentation()
	if err != nil {
		t.Fatalf("NewPresentation: %v", err)
	}
	for _, tool := range ppt {
		if err := reg.Register(tool); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	return reg
}

func TestCreatePresentationOutline(t *testing.T) {
	reg := presentationRegistry(t)

	out := reg.Invoke(context.Background(), "create_presentation_outline", map[string]any{
		"title": "Q3 Sales Review",
		"slides": []map[string]any{
			{"title": "Overview", "content_type": "text", "content": "Strong quarter"},
			{"title": "Numbers", "content_type": "bullets", "content": []string{"Revenue up", "Costs flat"}},
			{"title": "Untitled type defaults to text", "content": "body"},
		},
	})

	v := artifact.Decode(out)
	if v.Kind != artifact.KindPresentation {
		t.Fatalf("output kind = %q, want presentation: %s", v.Kind, out)
	}
	p := v.Presentation
	if p.PresentationID == "" {
		t.Error("empty presentation id")
	}
	if p.Metadata.SlideCount != 3 || p.Metadata.CreatedAt == "" {
		t.Errorf("metadata = %+v", p.Metadata)
	}
	for i, s := range p.Slides {
		if s.Order != i+1 {
			t.Errorf("slide %d order = %d", i, s.Order)
		}
	}
	if p.Slides[0].ID != "slide-1" || p.Slides[2].ID != "slide-3" {
		t.Errorf("slide ids = %q, %q", p.Slides[0].ID, p.Slides[2].ID)
	}
	if p.Slides[2].ContentType != artifact.SlideText {
		t.Errorf("missing content type defaulted to %q, want text", p.Slides[2].ContentType)
	}
}

func TestAddChartToPresentation(t *testing.T) {
	reg := presentationRegistry(t)

	chart := map[string]any{"type": "chart", "chartType": "bar", "title": "Revenue"}
	out := reg.Invoke(context.Background(), "add_chart_to_presentation", map[string]any{
		"presentation_id": "pres-1",
		"slide_id":        "slide-2",
		"chart_config":    chart,
	})

	v := artifact.Decode(out)
	if v.Kind != artifact.KindPresentationUpdate {
		t.Fatalf("output kind = %q, want presentation_update: %s", v.Kind, out)
	}
	u := v.Update
	if u.Action != artifact.ActionAddChart || u.PresentationID != "pres-1" || u.SlideID != "slide-2" {
		t.Errorf("update = %+v", u)
	}
	var cc map[string]any
	if err := json.Unmarshal(u.ChartConfig, &cc); err != nil || cc["title"] != "Revenue" {
		t.Errorf("chart config not carried through: %s", u.ChartConfig)
	}
}

func TestGeneratePresentationSuggestions(t *testing.T) {
	reg := presentationRegistry(t)

	out := reg.Invoke(context.Background(), "generate_presentation_suggestions", map[string]any{
		"topic":        "Quarterly results",
		"data_summary": "sales by region and month",
	})

	var resp struct {
		Type            string           `json:"type"`
		Topic           string           `json:"topic"`
		SuggestedSlides []map[string]any `json:"suggestedSlides"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Type != "presentation_suggestions" || resp.Topic != "Quarterly results" {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.SuggestedSlides) != 8 {
		t.Errorf("got %d suggested slides, want 8", len(resp.SuggestedSlides))
	}
	if resp.SuggestedSlides[0]["title"] != "Executive Summary" {
		t.Errorf("first slide = %v", resp.SuggestedSlides[0])
	}

	// The suggestion payload has no artifact discriminant; the reconciler
	// must treat it as opaque.
	if v := artifact.Decode(out); v.Kind != artifact.KindOpaque {
		t.Errorf("Decode kind = %q, want opaque", v.Kind)
	}
}
