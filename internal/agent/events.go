package agent

import (
	"context"

	"github.com/quarry0/quarry/internal/artifact"
)

// EventType discriminates the streaming events a turn emits. The values are
// part of the wire contract with the frontend.
type EventType string

const (
	EventToolStart          EventType = "tool_start"
	EventToolEnd            EventType = "tool_end"
	EventPresentation       EventType = "presentation"
	EventPresentationUpdate EventType = "presentation_update"
	EventStateUpdate        EventType = "state_update"
	EventFinal              EventType = "final"
	EventError              EventType = "error"
)

// Event is one typed progress event. Fields are populated per event type and
// omitted otherwise; names match what the streaming client renders.
//
//	tool_start          Tool
//	tool_end            Tool, Output (preview, truncated)
//	presentation        Presentation
//	presentation_update Update, Presentation (the result of applying it)
//	state_update        any of Charts (new suffix), SlideIndex, Suggestions
//	final               ConversationID, Response, Charts (full list),
//	                    Presentation, Presentations, SlideIndex, Suggestions
//	error               Message
type Event struct {
	Type EventType `json:"type"`

	Tool   string `json:"tool,omitempty"`
	Output string `json:"output,omitempty"`

	Presentation  *artifact.Presentation       `json:"presentation,omitempty"`
	Presentations []artifact.Presentation      `json:"presentations,omitempty"`
	Update        *artifact.PresentationUpdate `json:"update,omitempty"`

	Charts      []artifact.Chart `json:"charts,omitempty"`
	SlideIndex  *int             `json:"slide_index,omitempty"`
	Suggestions []string         `json:"suggestions,omitempty"`

	ConversationID string `json:"conversation_id,omitempty"`
	Response       string `json:"response,omitempty"`
	Message        string `json:"message,omitempty"`
}

// Sink receives events in emission order. It blocks the turn until the
// consumer accepts the event, which is the backpressure mechanism: a slow
// consumer slows the turn instead of forcing unbounded buffering. A sink
// error aborts the turn's streaming.
type Sink func(ctx context.Context, ev Event) error

// discard is the sink used for synchronous turns.
func discard(context.Context, Event) error { return nil }
