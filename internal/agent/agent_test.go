package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"go.uber.org/goleak"

	"github.com/quarry0/quarry/internal/artifact"
	"github.com/quarry0/quarry/internal/conversation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptDecider replays a fixed sequence of decisions; the last one repeats
// if the engine asks for more.
type scriptDecider struct {
	mu        sync.Mutex
	decisions []*Decision
	calls     int
}

func (d *scriptDecider) Decide(_ context.Context, _ []*ai.Message) (*Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	if i >= len(d.decisions) {
		i = len(d.decisions) - 1
	}
	d.calls++
	return d.decisions[i], nil
}

func (d *scriptDecider) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// mapInvoker serves canned outputs by tool name.
type mapInvoker map[string]string

func (m mapInvoker) Invoke(_ context.Context, name string, _ any) string {
	if out, ok := m[name]; ok {
		return out
	}
	return `{"success":false,"error":"unknown tool"}`
}

// collectSink records every emitted event.
type collectSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *collectSink) sink(_ context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *collectSink) byType(t EventType) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newEngine(t *testing.T, decider Decider, tools Invoker, maxCycles int) *Engine {
	t.Helper()
	e, err := New(Config{
		Decider:   decider,
		Tools:     tools,
		Logger:    slog.New(slog.DiscardHandler),
		MaxCycles: maxCycles,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func newConv(id string) *conversation.Conversation {
	return &conversation.Conversation{ID: id}
}

func toolCall(name string) *ai.ToolRequest {
	return &ai.ToolRequest{Name: name, Input: map[string]any{}}
}

func chartJSON(title string) string {
	b, _ := json.Marshal(artifact.Chart{
		Type:      artifact.TypeChart,
		ChartType: artifact.ChartBar,
		Title:     title,
		Data:      []map[string]any{{"x": "a", "y": 1}},
		XAxisKey:  "x",
		YAxisKeys: []string{"y"},
	})
	return string(b)
}

func presentationJSON(id string) string {
	p := artifact.Presentation{
		PresentationID: id,
		Title:          "Deck",
		Slides: []artifact.Slide{
			{Title: "Intro", ContentType: artifact.SlideText, Content: "hi"},
			{Title: "Data", ContentType: artifact.SlideText, Content: "tbd"},
		},
	}
	p.Normalize()
	b, _ := json.Marshal(p)
	return string(b)
}

func updateJSON(presID, slideID string) string {
	b, _ := json.Marshal(map[string]any{
		"type":           artifact.TypePresentationUpdate,
		"action":         artifact.ActionAddChart,
		"presentationId": presID,
		"slideId":        slideID,
		"chartConfig":    json.RawMessage(chartJSON("embedded")),
	})
	return string(b)
}

func TestRunTurnPlainAnswer(t *testing.T) {
	decider := &scriptDecider{decisions: []*Decision{{Text: "The answer is 42."}}}
	e := newEngine(t, decider, mapInvoker{}, 0)
	conv := newConv("c1")

	res, err := e.RunTurn(context.Background(), conv, "what is the answer?", nil)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.Response != "The answer is 42." {
		t.Errorf("Response = %q", res.Response)
	}
	if res.Aborted {
		t.Error("plain answer marked aborted")
	}
	if len(conv.Messages) != 2 {
		t.Errorf("history length = %d, want user + assistant", len(conv.Messages))
	}
	if !reflect.DeepEqual(res.Suggestions, defaultSuggestions) {
		t.Errorf("Suggestions = %v, want defaults", res.Suggestions)
	}
}

func TestRunTurnEmptyAnswerFallsBack(t *testing.T) {
	decider := &scriptDecider{decisions: []*Decision{{Text: "   "}}}
	e := newEngine(t, decider, mapInvoker{}, 0)

	res, err := e.RunTurn(context.Background(), newConv("c1"), "hi", nil)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.Response != FallbackResponse {
		t.Errorf("Response = %q, want fallback", res.Response)
	}
}

func TestRunTurnLoopTerminatesAtBound(t *testing.T) {
	const bound = 4
	decider := &scriptDecider{decisions: []*Decision{
		{Calls: []*ai.ToolRequest{toolCall("get_analytics_summary")}},
	}}
	e := newEngine(t, decider, mapInvoker{"get_analytics_summary": `{"success":true}`}, bound)
	conv := newConv("c1")

	res, err := e.RunTurn(context.Background(), conv, "loop forever", nil)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if !res.Aborted {
		t.Error("turn not aborted")
	}
	if decider.callCount() != bound {
		t.Errorf("decider called %d times, want exactly %d", decider.callCount(), bound)
	}
	if res.Response != abortedResponse {
		t.Errorf("Response = %q, want synthesized abort message", res.Response)
	}
}

func TestRunTurnFoldsToolChart(t *testing.T) {
	decider := &scriptDecider{decisions: []*Decision{
		{Calls: []*ai.ToolRequest{toolCall("generate_chart_config")}},
		{Text: "Here is the chart.\n[SUGGESTIONS]\n- Drill into June\n[/SUGGESTIONS]"},
	}}
	e := newEngine(t, decider, mapInvoker{"generate_chart_config": chartJSON("Revenue")}, 0)
	conv := newConv("c1")
	sink := &collectSink{}

	res, err := e.RunTurn(context.Background(), conv, "chart revenue", sink.sink)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.Response != "Here is the chart." {
		t.Errorf("Response = %q", res.Response)
	}
	if len(res.Charts) != 1 || res.Charts[0].Title != "Revenue" {
		t.Errorf("Charts = %+v", res.Charts)
	}
	if len(conv.Charts) != 1 {
		t.Errorf("conversation charts = %d, want 1", len(conv.Charts))
	}
	if !reflect.DeepEqual(res.Suggestions, []string{"Drill into June"}) {
		t.Errorf("Suggestions = %v", res.Suggestions)
	}

	if got := sink.byType(EventToolStart); len(got) != 1 || got[0].Tool != "generate_chart_config" {
		t.Errorf("tool_start events = %+v", got)
	}
	if got := sink.byType(EventToolEnd); len(got) != 1 || got[0].Output == "" {
		t.Errorf("tool_end events = %+v", got)
	}
	if got := sink.byType(EventFinal); len(got) != 1 {
		t.Fatalf("final events = %d, want exactly 1", len(got))
	}

	// History: user, assistant tool request, tool result, assistant answer.
	roles := make([]ai.Role, len(conv.Messages))
	for i, m := range conv.Messages {
		roles[i] = m.Role
	}
	want := []ai.Role{ai.RoleUser, ai.RoleModel, ai.RoleTool, ai.RoleModel}
	if !reflect.DeepEqual(roles, want) {
		t.Errorf("history roles = %v, want %v", roles, want)
	}
}

func TestRunTurnDuplicateChartsCollapse(t *testing.T) {
	decider := &scriptDecider{decisions: []*Decision{
		{Calls: []*ai.ToolRequest{toolCall("generate_chart_config"), toolCall("generate_chart_config")}},
		{Text: "done"},
	}}
	e := newEngine(t, decider, mapInvoker{"generate_chart_config": chartJSON("Same")}, 0)
	conv := newConv("c1")

	res, err := e.RunTurn(context.Background(), conv, "two identical charts", nil)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if len(res.Charts) != 1 {
		t.Errorf("result charts = %d, want deduped 1", len(res.Charts))
	}
	if len(conv.Charts) != 1 {
		t.Errorf("conversation charts = %d, want 1", len(conv.Charts))
	}
}

func TestRunTurnPresentationReplacesAndResetsSlide(t *testing.T) {
	decider := &scriptDecider{decisions: []*Decision{
		{Calls: []*ai.ToolRequest{toolCall("create_presentation_outline")}},
		{Text: "Deck ready."},
	}}
	e := newEngine(t, decider, mapInvoker{"create_presentation_outline": presentationJSON("pres-9")}, 0)
	conv := newConv("c1")
	conv.SlideIndex = 5
	sink := &collectSink{}

	_, err := e.RunTurn(context.Background(), conv, "make a deck", sink.sink)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if conv.Presentation == nil || conv.Presentation.PresentationID != "pres-9" {
		t.Fatalf("Presentation = %+v", conv.Presentation)
	}
	if conv.SlideIndex != 0 {
		t.Errorf("SlideIndex = %d, want reset to 0", conv.SlideIndex)
	}
	if got := sink.byType(EventPresentation); len(got) != 1 {
		t.Errorf("presentation events = %d, want 1", len(got))
	}
}

func TestRunTurnUpdateAppliedToCurrentPresentation(t *testing.T) {
	decider := &scriptDecider{decisions: []*Decision{
		{Calls: []*ai.ToolRequest{toolCall("create_presentation_outline")}},
		{Calls: []*ai.ToolRequest{toolCall("add_chart_to_presentation")}},
		{Text: "Chart added."},
	}}
	e := newEngine(t, decider, mapInvoker{
		"create_presentation_outline": presentationJSON("pres-9"),
		"add_chart_to_presentation":   updateJSON("pres-9", "slide-2"),
	}, 0)
	conv := newConv("c1")
	sink := &collectSink{}

	_, err := e.RunTurn(context.Background(), conv, "add the chart", sink.sink)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if conv.Presentation.Slides[1].ContentType != artifact.SlideChart {
		t.Errorf("target slide = %+v", conv.Presentation.Slides[1])
	}
	if got := sink.byType(EventPresentationUpdate); len(got) != 1 {
		t.Errorf("presentation_update events = %d, want 1", len(got))
	}
}

func TestRunTurnUpdateStagedBeforePresentationArrives(t *testing.T) {
	// The update lands one cycle before its presentation; it must be held
	// and applied once the presentation exists within the same turn.
	decider := &scriptDecider{decisions: []*Decision{
		{Calls: []*ai.ToolRequest{toolCall("add_chart_to_presentation")}},
		{Calls: []*ai.ToolRequest{toolCall("create_presentation_outline")}},
		{Text: "done"},
	}}
	e := newEngine(t, decider, mapInvoker{
		"add_chart_to_presentation":   updateJSON("pres-9", "slide-1"),
		"create_presentation_outline": presentationJSON("pres-9"),
	}, 0)
	conv := newConv("c1")

	_, err := e.RunTurn(context.Background(), conv, "out of order", nil)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if conv.Presentation.Slides[0].ContentType != artifact.SlideChart {
		t.Errorf("staged update not applied: %+v", conv.Presentation.Slides[0])
	}
}

func TestRunTurnNonTargetingUpdateIsNoOp(t *testing.T) {
	decider := &scriptDecider{decisions: []*Decision{
		{Calls: []*ai.ToolRequest{toolCall("create_presentation_outline")}},
		{Calls: []*ai.ToolRequest{toolCall("add_chart_to_presentation")}},
		{Text: "done"},
	}}
	e := newEngine(t, decider, mapInvoker{
		"create_presentation_outline": presentationJSON("pres-9"),
		"add_chart_to_presentation":   updateJSON("other-pres", "slide-1"),
	}, 0)
	conv := newConv("c1")
	sink := &collectSink{}

	_, err := e.RunTurn(context.Background(), conv, "wrong target", sink.sink)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if conv.Presentation.Slides[0].ContentType == artifact.SlideChart {
		t.Error("non-targeting update mutated the presentation")
	}
	if got := sink.byType(EventPresentationUpdate); len(got) != 0 {
		t.Errorf("presentation_update events = %d, want 0", len(got))
	}
}

func TestRunTurnParserArtifactsMerged(t *testing.T) {
	answer := "Numbers below.\n```chart\n" + chartJSON("Inline") + "\n```"
	decider := &scriptDecider{decisions: []*Decision{
		{Calls: []*ai.ToolRequest{toolCall("generate_chart_config")}},
		{Text: answer},
	}}
	e := newEngine(t, decider, mapInvoker{"generate_chart_config": chartJSON("FromTool")}, 0)
	conv := newConv("c1")

	res, err := e.RunTurn(context.Background(), conv, "both sources", nil)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.Response != "Numbers below." {
		t.Errorf("Response = %q", res.Response)
	}
	if len(res.Charts) != 2 || res.Charts[0].Title != "FromTool" || res.Charts[1].Title != "Inline" {
		t.Errorf("merged charts = %+v (tool-sourced must come first)", res.Charts)
	}
}

func TestRunTurnCancellationPreservesHistory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	blocker := make(chan struct{})
	decider := deciderFunc(func(_ context.Context, _ []*ai.Message) (*Decision, error) {
		return &Decision{Calls: []*ai.ToolRequest{toolCall("slow")}}, nil
	})
	tools := invokerFunc(func(ctx context.Context, _ string, _ any) string {
		cancel()
		<-blocker
		return `{"success":true}`
	})
	defer close(blocker)
	go func() { blocker <- struct{}{} }()

	e := newEngine(t, decider, tools, 0)
	conv := newConv("c1")

	_, err := e.RunTurn(ctx, conv, "cancel me", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// The user message and the committed tool exchange stay in history.
	if len(conv.Messages) < 1 || conv.Messages[0].Role != ai.RoleUser {
		t.Errorf("user message lost: %d messages", len(conv.Messages))
	}
	var text strings.Builder
	for _, p := range conv.Messages[0].Content {
		text.WriteString(p.Text)
	}
	if text.String() != "cancel me" {
		t.Errorf("user message content = %q", text.String())
	}
}

func TestRunTurnSuggestionsCapped(t *testing.T) {
	answer := "ok\n[SUGGESTIONS]\n- a\n- b\n- c\n- d\n- e\n- f\n[/SUGGESTIONS]"
	decider := &scriptDecider{decisions: []*Decision{{Text: answer}}}
	e := newEngine(t, decider, mapInvoker{}, 0)

	res, err := e.RunTurn(context.Background(), newConv("c1"), "hi", nil)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if len(res.Suggestions) != artifact.MaxSuggestions {
		t.Errorf("suggestions = %v, want capped at %d", res.Suggestions, artifact.MaxSuggestions)
	}
}

type deciderFunc func(context.Context, []*ai.Message) (*Decision, error)

func (f deciderFunc) Decide(ctx context.Context, h []*ai.Message) (*Decision, error) {
	return f(ctx, h)
}

type invokerFunc func(context.Context, string, any) string

func (f invokerFunc) Invoke(ctx context.Context, name string, input any) string {
	return f(ctx, name, input)
}
