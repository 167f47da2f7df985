// Package agent implements the turn execution engine: the decide/act loop
// that drives one user message to a finalized answer, folding tool artifacts
// into conversation state and streaming incremental diffs along the way.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/quarry0/quarry/internal/artifact"
	"github.com/quarry0/quarry/internal/conversation"
)

// FallbackResponse is used when the model finishes a turn with no text.
const FallbackResponse = "I've processed your request."

// abortedResponse is the synthesized answer for a turn that hit the cycle
// bound while the model was still requesting tools.
const abortedResponse = "I wasn't able to finish this request within the allowed number of analysis steps. " +
	"Try asking a more specific question, or break the request into smaller parts."

// DefaultMaxCycles bounds the decide/act loop per turn. A model that keeps
// requesting tools forever is an availability hazard, so the loop terminates
// with a synthesized answer when the bound is reached.
const DefaultMaxCycles = 10

// defaultSuggestions are offered when the model's answer yields none.
var defaultSuggestions = []string{
	"Show me revenue trends over time",
	"Compare sales by region",
	"What are the top products?",
}

// Decision is the model's verdict for one Deciding step: either requested
// tool calls, or final answer text.
type Decision struct {
	Text  string
	Calls []*ai.ToolRequest
}

// Decider produces a decision from the conversation history. Implementations
// wrap the model call; the engine treats it as opaque.
type Decider interface {
	Decide(ctx context.Context, history []*ai.Message) (*Decision, error)
}

// Invoker dispatches one tool call and always returns a string; failures are
// structured failure envelopes, never errors.
type Invoker interface {
	Invoke(ctx context.Context, name string, input any) string
}

// Config carries the engine's dependencies.
type Config struct {
	Decider   Decider
	Tools     Invoker
	Logger    *slog.Logger
	MaxCycles int
}

// Engine runs turns. It is stateless across turns; all per-conversation
// state lives in the conversation passed to RunTurn.
type Engine struct {
	decider   Decider
	tools     Invoker
	logger    *slog.Logger
	maxCycles int
}

func New(cfg Config) (*Engine, error) {
	if cfg.Decider == nil {
		return nil, errors.New("agent: Decider is required")
	}
	if cfg.Tools == nil {
		return nil, errors.New("agent: Tools is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxCycles := cfg.MaxCycles
	if maxCycles <= 0 {
		maxCycles = DefaultMaxCycles
	}
	return &Engine{
		decider:   cfg.Decider,
		tools:     cfg.Tools,
		logger:    logger,
		maxCycles: maxCycles,
	}, nil
}

// Result is the consolidated outcome of one turn.
type Result struct {
	ConversationID string                  `json:"conversation_id"`
	Response       string                  `json:"response"`
	Charts         []artifact.Chart        `json:"charts"`
	Presentations  []artifact.Presentation `json:"presentations"`
	Suggestions    []string                `json:"suggestions"`
	SlideIndex     int                     `json:"slide_index"`
	Aborted        bool                    `json:"-"`
}

// turnState accumulates the artifacts one turn produced, separate from the
// conversation's cross-turn accumulators, so final reconciliation can merge
// tool-sourced and parser-sourced artifacts for this turn alone.
type turnState struct {
	toolCharts []artifact.Chart
	toolPres   []artifact.Presentation
	updates    []artifact.PresentationUpdate
}

// RunTurn executes one user turn against the conversation. The caller must
// hold the conversation's single-flight slot. Events stream through sink in
// order, ending with exactly one final event; pass nil for a synchronous
// turn. On error the already-appended history is left intact so a retried
// turn resumes from the last committed state.
func (e *Engine) RunTurn(ctx context.Context, conv *conversation.Conversation, input string, sink Sink) (*Result, error) {
	if sink == nil {
		sink = discard
	}

	conv.Messages = append(conv.Messages, ai.NewUserMessage(ai.NewTextPart(input)))

	emitter := newDiffEmitter(conv, sink)
	turn := &turnState{}

	answer := ""
	aborted := true
	for cycle := 0; cycle < e.maxCycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		decision, err := e.decider.Decide(ctx, conv.Messages)
		if err != nil {
			return nil, fmt.Errorf("model decision: %w", err)
		}

		if len(decision.Calls) == 0 {
			answer = decision.Text
			aborted = false
			break
		}

		e.logger.Debug("dispatching tool calls",
			"conversation_id", conv.ID, "cycle", cycle, "count", len(decision.Calls))
		if err := e.act(ctx, conv, turn, emitter, decision); err != nil {
			return nil, err
		}
	}
	if aborted {
		e.logger.Warn("turn aborted at cycle bound",
			"conversation_id", conv.ID, "max_cycles", e.maxCycles)
		answer = abortedResponse
	}

	result, err := e.finalize(ctx, conv, turn, emitter, answer)
	if err != nil {
		return nil, err
	}
	result.Aborted = aborted
	return result, nil
}

// act runs one Acting step: append the assistant message carrying the tool
// requests, dispatch every call concurrently, append results in request
// order, fold artifacts, and emit the checkpoint diff.
func (e *Engine) act(ctx context.Context, conv *conversation.Conversation, turn *turnState, emitter *diffEmitter, decision *Decision) error {
	parts := make([]*ai.Part, 0, len(decision.Calls)+1)
	if decision.Text != "" {
		parts = append(parts, ai.NewTextPart(decision.Text))
	}
	for _, call := range decision.Calls {
		if call.Ref == "" {
			call.Ref = uuid.NewString()
		}
		parts = append(parts, ai.NewToolRequestPart(call))
	}
	conv.Messages = append(conv.Messages, ai.NewModelMessage(parts...))

	for _, call := range decision.Calls {
		if err := emitter.sink(ctx, Event{Type: EventToolStart, Tool: call.Name}); err != nil {
			return err
		}
	}

	outputs := make([]string, len(decision.Calls))
	var wg sync.WaitGroup
	for i, call := range decision.Calls {
		wg.Add(1)
		go func(i int, call *ai.ToolRequest) {
			defer wg.Done()
			outputs[i] = e.tools.Invoke(ctx, call.Name, call.Input)
		}(i, call)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	for i, call := range decision.Calls {
		conv.Messages = append(conv.Messages, ai.NewMessage(ai.RoleTool, nil,
			ai.NewToolResponsePart(&ai.ToolResponse{
				Name:   call.Name,
				Ref:    call.Ref,
				Output: outputs[i],
			})))
		if err := e.fold(ctx, conv, turn, emitter, outputs[i]); err != nil {
			return err
		}
	}

	return emitter.observe(ctx, conv)
}

// fold decodes one tool output and applies it to conversation state. Charts
// append (deduplicated against what the conversation already holds), a
// presentation replaces the current one and resets the slide pointer, and
// updates are staged and applied against the current presentation as soon as
// one exists. Outputs without a recognized discriminant stay plain history
// content for the model to read on the next Deciding step.
func (e *Engine) fold(ctx context.Context, conv *conversation.Conversation, turn *turnState, emitter *diffEmitter, output string) error {
	switch v := artifact.Decode(output); v.Kind {
	case artifact.KindChart:
		turn.toolCharts = append(turn.toolCharts, *v.Chart)
		appendChart(conv, *v.Chart)
	case artifact.KindPresentation:
		turn.toolPres = append(turn.toolPres, *v.Presentation)
		p := v.Presentation.Clone()
		conv.Presentation = &p
		conv.SlideIndex = 0
		return e.applyStaged(ctx, conv, turn, emitter)
	case artifact.KindPresentationUpdate:
		turn.updates = append(turn.updates, *v.Update)
		return e.applyUpdate(ctx, conv, emitter, *v.Update)
	}
	return nil
}

// applyUpdate applies one edit event against the current presentation if it
// targets it; non-targeting updates stay staged for a presentation that may
// still arrive this turn.
func (e *Engine) applyUpdate(ctx context.Context, conv *conversation.Conversation, emitter *diffEmitter, u artifact.PresentationUpdate) error {
	if conv.Presentation == nil ||
		u.PresentationID != conv.Presentation.PresentationID ||
		u.Action != artifact.ActionAddChart {
		return nil
	}
	applied := artifact.ApplyUpdate(*conv.Presentation, u)
	conv.Presentation = &applied
	return emitter.applied(ctx, u, conv)
}

// applyStaged replays updates staged earlier in the turn against a newly
// arrived presentation.
func (e *Engine) applyStaged(ctx context.Context, conv *conversation.Conversation, turn *turnState, emitter *diffEmitter) error {
	if err := emitter.observe(ctx, conv); err != nil {
		return err
	}
	for _, u := range turn.updates {
		if err := e.applyUpdate(ctx, conv, emitter, u); err != nil {
			return err
		}
	}
	return nil
}

// finalize parses the answer text for embedded artifacts, reconciles them
// with the tool-sourced set, updates the conversation, and emits the final
// event.
func (e *Engine) finalize(ctx context.Context, conv *conversation.Conversation, turn *turnState, emitter *diffEmitter, answer string) (*Result, error) {
	ex := artifact.Extract(answer)

	text := ex.Text
	if strings.TrimSpace(text) == "" {
		text = FallbackResponse
	}
	conv.Messages = append(conv.Messages, ai.NewModelMessage(ai.NewTextPart(text)))

	turnCharts, turnPres := artifact.Merge(turn.toolCharts, ex.Charts, turn.toolPres, ex.Presentations, turn.updates)

	for _, c := range ex.Charts {
		appendChart(conv, c)
	}
	if len(turnPres) > 0 {
		latest := turnPres[len(turnPres)-1].Clone()
		// Replace only on a real change, so the emitter does not
		// re-announce a presentation the stream already carried.
		if conv.Presentation == nil || !reflect.DeepEqual(*conv.Presentation, latest) {
			if conv.Presentation == nil || conv.Presentation.PresentationID != latest.PresentationID {
				conv.SlideIndex = 0
			}
			conv.Presentation = &latest
		}
	}

	suggestions := ex.Suggestions
	if len(suggestions) > artifact.MaxSuggestions {
		suggestions = suggestions[:artifact.MaxSuggestions]
	}
	if len(suggestions) == 0 {
		suggestions = append([]string(nil), defaultSuggestions...)
	}
	conv.Suggestions = suggestions

	if err := emitter.observe(ctx, conv); err != nil {
		return nil, err
	}

	result := &Result{
		ConversationID: conv.ID,
		Response:       text,
		Charts:         turnCharts,
		Presentations:  turnPres,
		Suggestions:    suggestions,
		SlideIndex:     conv.SlideIndex,
	}
	if err := emitter.final(ctx, conv, result); err != nil {
		return nil, err
	}
	return result, nil
}

// appendChart adds a chart to the conversation accumulator unless a
// structurally equal one is already present.
func appendChart(conv *conversation.Conversation, c artifact.Chart) {
	sig := artifact.Signature(c)
	for _, existing := range conv.Charts {
		if artifact.Signature(existing) == sig {
			return
		}
	}
	conv.Charts = append(conv.Charts, c)
}
