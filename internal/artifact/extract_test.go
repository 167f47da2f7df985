package artifact

import (
	"reflect"
	"testing"
)

func TestExtractSuggestions(t *testing.T) {
	ex := Extract("Here is data.\n[SUGGESTIONS]\n- View trend\n- Compare regions\n[/SUGGESTIONS]")

	if ex.Text != "Here is data." {
		t.Errorf("Text = %q, want %q", ex.Text, "Here is data.")
	}
	want := []string{"View trend", "Compare regions"}
	if !reflect.DeepEqual(ex.Suggestions, want) {
		t.Errorf("Suggestions = %v, want %v", ex.Suggestions, want)
	}
}

func TestExtractSuggestionsIgnoresNonDashLines(t *testing.T) {
	ex := Extract("[SUGGESTIONS]\nTry these:\n- One\nnot a suggestion\n- Two\n[/SUGGESTIONS]")
	want := []string{"One", "Two"}
	if !reflect.DeepEqual(ex.Suggestions, want) {
		t.Errorf("Suggestions = %v, want %v", ex.Suggestions, want)
	}
}

func TestExtractChartBlocks(t *testing.T) {
	text := "Revenue looks strong.\n" +
		"```chart\n{\"type\":\"chart\",\"chartType\":\"bar\",\"title\":\"Revenue\",\"yAxisKeys\":[\"v\"]}\n```\n" +
		"And a broken one:\n" +
		"```chart\n{not valid json\n```\n" +
		"Done."

	ex := Extract(text)

	if len(ex.Charts) != 1 {
		t.Fatalf("got %d charts, want 1", len(ex.Charts))
	}
	if ex.Charts[0].Title != "Revenue" {
		t.Errorf("chart title = %q", ex.Charts[0].Title)
	}
	if ex.Charts[0].Colors[0] != "#8884d8" {
		t.Errorf("chart not normalized: %v", ex.Charts[0].Colors)
	}
	want := "Revenue looks strong.\n\nAnd a broken one:\n\nDone."
	if ex.Text != want {
		t.Errorf("Text = %q, want %q (invalid block must still be stripped)", ex.Text, want)
	}
}

func TestExtractPresentationBlock(t *testing.T) {
	text := "Outline below.\n```presentation\n" +
		`{"type":"presentation","presentationId":"p1","title":"Q3","slides":[{"title":"Intro","contentType":"text","content":"hi"}]}` +
		"\n```"

	ex := Extract(text)

	if len(ex.Presentations) != 1 {
		t.Fatalf("got %d presentations, want 1", len(ex.Presentations))
	}
	p := ex.Presentations[0]
	if p.Metadata.SlideCount != 1 || p.Slides[0].Order != 1 || p.Slides[0].ID != "slide-1" {
		t.Errorf("presentation not normalized: %+v", p)
	}
	if ex.Text != "Outline below." {
		t.Errorf("Text = %q", ex.Text)
	}
}

func TestExtractStripsAllMarkersAnyOrder(t *testing.T) {
	text := "[SUGGESTIONS]\n- Later\n[/SUGGESTIONS]\nLead text\n" +
		"```chart\n{\"type\":\"chart\",\"chartType\":\"pie\"}\n```\nTrailing"

	ex := Extract(text)

	if len(ex.Charts) != 1 || len(ex.Suggestions) != 1 {
		t.Fatalf("charts = %d, suggestions = %d", len(ex.Charts), len(ex.Suggestions))
	}
	if ex.Text != "Lead text\n\nTrailing" {
		t.Errorf("Text = %q", ex.Text)
	}
}

func TestExtractPlainText(t *testing.T) {
	ex := Extract("  Just an answer.  ")
	if ex.Text != "Just an answer." {
		t.Errorf("Text = %q", ex.Text)
	}
	if ex.Charts != nil || ex.Presentations != nil || ex.Suggestions != nil {
		t.Error("plain text produced artifacts")
	}
}

func TestExtractUnterminatedBlock(t *testing.T) {
	ex := Extract("Before\n```chart\n{\"type\":\"chart\",\"chartType\":\"line\"}")
	if len(ex.Charts) != 1 {
		t.Errorf("got %d charts, want 1 from unterminated block", len(ex.Charts))
	}
	if ex.Text != "Before" {
		t.Errorf("Text = %q", ex.Text)
	}
}
