package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quarry0/quarry/internal/agent"
	"github.com/quarry0/quarry/internal/conversation"
)

// stubEngine scripts RunTurn for handler tests.
type stubEngine struct {
	result *agent.Result
	events []agent.Event
	err    error
}

func (s *stubEngine) RunTurn(ctx context.Context, conv *conversation.Conversation, input string, sink agent.Sink) (*agent.Result, error) {
	for _, ev := range s.events {
		if sink != nil {
			if err := sink(ctx, ev); err != nil {
				return nil, err
			}
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	r := *s.result
	r.ConversationID = conv.ID
	return &r, nil
}

func newTestServer(engine turnRunner, store *conversation.Store) http.Handler {
	logger := slog.New(slog.DiscardHandler)
	srv := NewServer(Config{
		Version: "test",
		Logger:  logger,
		Engine:  NewChatHandler(engine, store, logger),
		Health:  NewHealthHandler(nil, "test", logger),
		Pres:    NewPresentationHandler(logger),
	})
	return srv.Handler()
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatSync(t *testing.T) {
	engine := &stubEngine{result: &agent.Result{
		Response:    "Revenue is up.",
		Suggestions: []string{"Break it down by region"},
	}}
	h := newTestServer(engine, conversation.NewStore())

	rec := postJSON(t, h, "/api/chat", `{"message":"how is revenue?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["conversation_id"] == "" {
		t.Error("conversation_id missing")
	}
	if resp["response"] != "Revenue is up." {
		t.Errorf("response = %v", resp["response"])
	}
	// Collections must be arrays, never null.
	body := rec.Body.String()
	for _, key := range []string{`"charts":[]`, `"presentations":[]`} {
		if !strings.Contains(body, key) {
			t.Errorf("body missing %s: %s", key, body)
		}
	}
}

func TestChatValidation(t *testing.T) {
	h := newTestServer(&stubEngine{result: &agent.Result{}}, conversation.NewStore())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing message", `{"conversation_id":"c1"}`, http.StatusBadRequest},
		{"malformed json", `{"message":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h, "/api/chat", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestChatBusyConversation(t *testing.T) {
	store := conversation.NewStore()
	_, release, err := store.Acquire("c1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	h := newTestServer(&stubEngine{result: &agent.Result{}}, store)
	rec := postJSON(t, h, "/api/chat", `{"message":"hi","conversation_id":"c1"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestChatTurnFailure(t *testing.T) {
	h := newTestServer(&stubEngine{err: errors.New("model decision: boom")}, conversation.NewStore())
	rec := postJSON(t, h, "/api/chat", `{"message":"hi"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestChatStreamFrames(t *testing.T) {
	engine := &stubEngine{
		events: []agent.Event{
			{Type: agent.EventToolStart, Tool: "execute_sql_query"},
			{Type: agent.EventToolEnd, Tool: "execute_sql_query", Output: `{"success":true}`},
			{Type: agent.EventFinal, Response: "done"},
		},
		result: &agent.Result{Response: "done"},
	}
	h := newTestServer(engine, conversation.NewStore())

	rec := postJSON(t, h, "/api/chat/stream", `{"message":"hi","conversation_id":"c1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}
	if got := rec.Header().Get("X-Conversation-Id"); got != "c1" {
		t.Errorf("X-Conversation-Id = %q", got)
	}

	frames := parseFrames(t, rec.Body.String())
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3: %s", len(frames), rec.Body.String())
	}
	types := []string{"tool_start", "tool_end", "final"}
	for i, frame := range frames {
		if frame["type"] != types[i] {
			t.Errorf("frame %d type = %v, want %s", i, frame["type"], types[i])
		}
	}
}

func TestChatStreamErrorFrame(t *testing.T) {
	engine := &stubEngine{err: errors.New("model unreachable")}
	h := newTestServer(engine, conversation.NewStore())

	rec := postJSON(t, h, "/api/chat/stream", `{"message":"hi"}`)
	frames := parseFrames(t, rec.Body.String())
	if len(frames) != 1 || frames[0]["type"] != "error" {
		t.Fatalf("frames = %v, want single error frame", frames)
	}
	if msg, _ := frames[0]["message"].(string); !strings.Contains(msg, "model unreachable") {
		t.Errorf("error message = %v", frames[0]["message"])
	}
}

// parseFrames splits an SSE body into decoded data frames.
func parseFrames(t *testing.T, body string) []map[string]any {
	t.Helper()
	var frames []map[string]any
	for _, line := range strings.Split(body, "\n") {
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var frame map[string]any
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			t.Fatalf("bad frame %q: %v", data, err)
		}
		frames = append(frames, frame)
	}
	return frames
}

func TestClearConversationIdempotent(t *testing.T) {
	store := conversation.NewStore()
	_, release, _ := store.Acquire("c1")
	release()

	h := newTestServer(&stubEngine{result: &agent.Result{}}, store)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodDelete, "/api/chat/c1", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("delete %d status = %d", i, rec.Code)
		}
	}
	if store.Len() != 0 {
		t.Errorf("store len = %d after clear", store.Len())
	}
}

func TestUpdateSlide(t *testing.T) {
	store := conversation.NewStore()
	_, release, _ := store.Acquire("c1")
	release()
	h := newTestServer(&stubEngine{result: &agent.Result{}}, store)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"ok", "/api/chat/c1/slide", `{"slide_index":3}`, http.StatusOK},
		{"unknown conversation", "/api/chat/nope/slide", `{"slide_index":1}`, http.StatusNotFound},
		{"negative index", "/api/chat/c1/slide", `{"slide_index":-1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	conv, err := store.Get("c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if conv.SlideIndex != 3 {
		t.Errorf("slide index = %d, want 3", conv.SlideIndex)
	}
}
