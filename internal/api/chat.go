package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/quarry0/quarry/internal/agent"
	"github.com/quarry0/quarry/internal/artifact"
	"github.com/quarry0/quarry/internal/conversation"
)

// turnRunner runs one agent turn. Satisfied by *agent.Engine.
type turnRunner interface {
	RunTurn(ctx context.Context, conv *conversation.Conversation, input string, sink agent.Sink) (*agent.Result, error)
}

// ChatHandler serves the conversation endpoints.
type ChatHandler struct {
	engine turnRunner
	store  storeAPI
	logger *slog.Logger
}

func NewChatHandler(engine turnRunner, store storeAPI, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{engine: engine, store: store, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("POST /api/chat/stream", h.handleStream)
	mux.HandleFunc("DELETE /api/chat/{id}", h.handleClear)
	mux.HandleFunc("POST /api/chat/{id}/slide", h.handleSlide)
}

// ChatRequest is the body for both the sync and streaming endpoints. An empty
// conversation id starts a new conversation.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

func (h *ChatHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (*ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request body: %v", err))
		return nil, false
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "missing_message", "message is required")
		return nil, false
	}
	return &req, true
}

// handleChat runs a full turn and returns the consolidated response.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	conv, release, err := h.store.Acquire(req.ConversationID)
	if errors.Is(err, conversation.ErrBusy) {
		writeError(w, http.StatusConflict, "conversation_busy", "a turn is already running for this conversation")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	defer release()

	result, err := h.engine.RunTurn(r.Context(), conv, req.Message, nil)
	if err != nil {
		h.logger.Error("turn failed", "conversation_id", conv.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "turn_failed", err.Error())
		return
	}

	// Empty collections serialize as [] for the frontend, never null.
	if result.Charts == nil {
		result.Charts = []artifact.Chart{}
	}
	if result.Presentations == nil {
		result.Presentations = []artifact.Presentation{}
	}
	if result.Suggestions == nil {
		result.Suggestions = []string{}
	}
	writeJSON(w, http.StatusOK, result)
}

// handleStream runs a turn and streams every engine event as an SSE frame.
// Frames are data-only JSON with an embedded type discriminant.
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	conv, release, err := h.store.Acquire(req.ConversationID)
	if errors.Is(err, conversation.ErrBusy) {
		writeError(w, http.StatusConflict, "conversation_busy", "a turn is already running for this conversation")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	defer release()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Conversation-Id", conv.ID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	sink := func(ctx context.Context, ev agent.Event) error {
		return writeFrame(w, flusher, ev)
	}

	if _, err := h.engine.RunTurn(ctx, conv, req.Message, sink); err != nil {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected", "conversation_id", conv.ID)
			return
		}
		h.logger.Error("turn failed", "conversation_id", conv.ID, "error", err)
		_ = writeFrame(w, flusher, agent.Event{Type: agent.EventError, Message: err.Error()})
	}
}

// writeFrame emits one SSE data frame and flushes it immediately.
func writeFrame(w http.ResponseWriter, flusher http.Flusher, ev agent.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// handleClear drops a conversation. Clearing an unknown id succeeds.
func (h *ChatHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	h.store.Delete(r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Conversation cleared",
	})
}

// SlideRequest is the body for the slide pointer endpoint.
type SlideRequest struct {
	SlideIndex int `json:"slide_index"`
}

// handleSlide moves the current slide pointer of an existing conversation.
func (h *ChatHandler) handleSlide(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req SlideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.SlideIndex < 0 {
		writeError(w, http.StatusBadRequest, "invalid_slide_index", "slide_index must be >= 0")
		return
	}

	if err := h.store.UpdateSlide(id, req.SlideIndex); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"slide_index":     req.SlideIndex,
	})
}
