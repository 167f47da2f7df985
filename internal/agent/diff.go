package agent

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/quarry0/quarry/internal/artifact"
	"github.com/quarry0/quarry/internal/conversation"
)

// toolOutputPreview caps the tool output carried by a tool_end event. The
// full output remains in history and in the final event's artifacts.
const toolOutputPreview = 200

// diffEmitter turns successive snapshots of a growing conversation into
// incremental events. It tracks what the consumer has already seen; observe
// emits only the delta since the previous checkpoint and suppresses empty
// diffs entirely.
type diffEmitter struct {
	sink Sink

	msgCount     int
	chartCount   int
	presentation *artifact.Presentation
	slideIndex   int
	suggestions  []string
}

func newDiffEmitter(conv *conversation.Conversation, sink Sink) *diffEmitter {
	return &diffEmitter{
		sink:         sink,
		msgCount:     len(conv.Messages),
		chartCount:   len(conv.Charts),
		presentation: conv.Presentation,
		slideIndex:   conv.SlideIndex,
		suggestions:  append([]string(nil), conv.Suggestions...),
	}
}

// observe emits the diff between the last checkpoint and the current state:
// new tool message previews, a changed presentation, the newly appended chart
// suffix, a moved slide pointer, and changed suggestions.
func (d *diffEmitter) observe(ctx context.Context, conv *conversation.Conversation) error {
	for _, msg := range conv.Messages[d.msgCount:] {
		if msg.Role != ai.RoleTool {
			continue
		}
		for _, part := range msg.Content {
			if part.ToolResponse == nil {
				continue
			}
			output, _ := part.ToolResponse.Output.(string)
			if err := d.sink(ctx, Event{
				Type:   EventToolEnd,
				Tool:   part.ToolResponse.Name,
				Output: truncate(output, toolOutputPreview),
			}); err != nil {
				return err
			}
		}
	}
	d.msgCount = len(conv.Messages)

	if conv.Presentation != d.presentation {
		d.presentation = conv.Presentation
		if conv.Presentation != nil {
			if err := d.sink(ctx, Event{Type: EventPresentation, Presentation: conv.Presentation}); err != nil {
				return err
			}
		}
	}

	ev := Event{Type: EventStateUpdate}
	changed := false
	if len(conv.Charts) > d.chartCount {
		ev.Charts = append([]artifact.Chart(nil), conv.Charts[d.chartCount:]...)
		d.chartCount = len(conv.Charts)
		changed = true
	}
	if conv.SlideIndex != d.slideIndex {
		d.slideIndex = conv.SlideIndex
		idx := conv.SlideIndex
		ev.SlideIndex = &idx
		changed = true
	}
	if !equalStrings(conv.Suggestions, d.suggestions) {
		d.suggestions = append([]string(nil), conv.Suggestions...)
		ev.Suggestions = append([]string(nil), conv.Suggestions...)
		changed = true
	}
	if !changed {
		return nil
	}
	return d.sink(ctx, ev)
}

// applied reports a presentation edit: it emits the presentation_update
// event and re-baselines the tracked presentation so the next observe does
// not re-announce the same change as a new presentation.
func (d *diffEmitter) applied(ctx context.Context, u artifact.PresentationUpdate, conv *conversation.Conversation) error {
	d.presentation = conv.Presentation
	return d.sink(ctx, Event{
		Type:         EventPresentationUpdate,
		Update:       &u,
		Presentation: conv.Presentation,
	})
}

// final emits the authoritative end-of-turn snapshot. Exactly one final
// event is emitted per turn. It carries the conversation's full chart list,
// so folding the intermediate chart suffixes onto the initial state always
// reproduces it.
func (d *diffEmitter) final(ctx context.Context, conv *conversation.Conversation, result *Result) error {
	idx := conv.SlideIndex
	return d.sink(ctx, Event{
		Type:           EventFinal,
		ConversationID: conv.ID,
		Response:       result.Response,
		Charts:         append([]artifact.Chart(nil), conv.Charts...),
		Presentation:   conv.Presentation,
		Presentations:  result.Presentations,
		SlideIndex:     &idx,
		Suggestions:    result.Suggestions,
	})
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
