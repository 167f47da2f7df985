package artifact

import (
	"encoding/json"
	"strings"
)

// Extraction is everything pulled out of a model's free-form answer text:
// fenced chart and presentation blocks, a suggestions block, and the residual
// text with all recognized markers stripped.
type Extraction struct {
	Text          string
	Charts        []Chart
	Presentations []Presentation
	Suggestions   []string
}

const (
	chartFence        = "```chart"
	presentationFence = "```presentation"
	fenceEnd          = "```"
	suggestionsOpen   = "[SUGGESTIONS]"
	suggestionsClose  = "[/SUGGESTIONS]"
)

// Extract parses a model answer. Fenced chart and presentation blocks decode
// as JSON; a block with invalid JSON contributes nothing but is still
// stripped from the residual text. Suggestions are the dash-prefixed lines
// between [SUGGESTIONS] markers. Stripping removes every recognized marker
// regardless of the order the sections appear.
func Extract(text string) Extraction {
	var ex Extraction

	rest := text
	for _, fence := range []struct {
		open string
		fill func(payload string)
	}{
		{chartFence, func(payload string) {
			var c Chart
			if err := json.Unmarshal([]byte(payload), &c); err != nil {
				return
			}
			c.Normalize()
			ex.Charts = append(ex.Charts, c)
		}},
		{presentationFence, func(payload string) {
			var p Presentation
			if err := json.Unmarshal([]byte(payload), &p); err != nil {
				return
			}
			p.Normalize()
			ex.Presentations = append(ex.Presentations, p)
		}},
	} {
		rest = stripFenced(rest, fence.open, fence.fill)
	}

	rest, ex.Suggestions = stripSuggestions(rest)
	ex.Text = strings.TrimSpace(rest)
	return ex
}

// stripFenced removes every block opened by the given fence marker and closed
// by a bare fence terminator, passing each enclosed payload to fill. An
// unterminated block is stripped to the end of the text.
func stripFenced(text, open string, fill func(string)) string {
	var b strings.Builder
	for {
		start := strings.Index(text, open)
		if start < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:start])

		body := text[start+len(open):]
		end := strings.Index(body, fenceEnd)
		if end < 0 {
			fill(strings.TrimSpace(body))
			return b.String()
		}
		fill(strings.TrimSpace(body[:end]))
		text = body[end+len(fenceEnd):]
	}
}

// stripSuggestions removes the [SUGGESTIONS] block and returns the dash
// lines inside it. Lines without a dash prefix are ignored.
func stripSuggestions(text string) (string, []string) {
	start := strings.Index(text, suggestionsOpen)
	if start < 0 {
		return text, nil
	}

	body := text[start+len(suggestionsOpen):]
	end := strings.Index(body, suggestionsClose)
	var block, rest string
	if end < 0 {
		block = body
		rest = text[:start]
	} else {
		block = body[:end]
		rest = text[:start] + body[end+len(suggestionsClose):]
	}

	var suggestions []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "-"); ok {
			if s := strings.TrimSpace(after); s != "" {
				suggestions = append(suggestions, s)
			}
		}
	}
	return rest, suggestions
}
