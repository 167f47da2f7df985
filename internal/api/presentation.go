package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/quarry0/quarry/internal/pptx"
)

const pptxContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

// PresentationHandler serves presentation preview and export.
type PresentationHandler struct {
	logger *slog.Logger
}

func NewPresentationHandler(logger *slog.Logger) *PresentationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PresentationHandler{logger: logger}
}

// RegisterRoutes registers presentation routes on the given mux.
func (h *PresentationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/presentation/preview", h.handlePreview)
	mux.HandleFunc("POST /api/presentation/generate", h.handleGenerate)
}

// slidePayload mirrors the frontend's slide shape.
type slidePayload struct {
	ID          string          `json:"id"`
	Order       int             `json:"order"`
	Title       string          `json:"title"`
	ContentType string          `json:"contentType"`
	Content     json.RawMessage `json:"content"`
	Notes       string          `json:"notes"`
	ChartConfig json.RawMessage `json:"chartConfig"`
	ChartImage  string          `json:"chartImage"`
}

func (s *slidePayload) hasChart() bool {
	return rawPresent(s.ChartConfig) || s.ChartImage != ""
}

func rawPresent(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null"
}

// presentationRequest is the body for both presentation endpoints.
type presentationRequest struct {
	Title  string         `json:"title"`
	Slides []slidePayload `json:"slides"`
}

func decodePresentation(w http.ResponseWriter, r *http.Request) (*presentationRequest, bool) {
	var req presentationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request body: %v", err))
		return nil, false
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "missing_title", "title is required")
		return nil, false
	}
	return &req, true
}

// handlePreview summarizes the deck structure without generating a file.
func (h *PresentationHandler) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePresentation(w, r)
	if !ok {
		return
	}

	slides := make([]map[string]any, 0, len(req.Slides))
	for _, s := range req.Slides {
		slides = append(slides, map[string]any{
			"id":          s.ID,
			"order":       s.Order,
			"title":       s.Title,
			"contentType": s.ContentType,
			"hasChart":    s.hasChart(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":      req.Title,
		"slideCount": len(req.Slides),
		"slides":     slides,
	})
}

// handleGenerate builds a PPTX file from the deck and returns it as a
// download attachment.
func (h *PresentationHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePresentation(w, r)
	if !ok {
		return
	}

	doc := pptx.Document{Title: req.Title}
	for _, s := range req.Slides {
		doc.Slides = append(doc.Slides, toPPTXSlide(s))
	}

	var buf bytes.Buffer
	if err := pptx.Write(&buf, doc); err != nil {
		h.logger.Error("pptx generation failed", "title", req.Title, "error", err)
		writeError(w, http.StatusInternalServerError, "generation_failed", err.Error())
		return
	}

	filename := strings.ReplaceAll(req.Title, " ", "_") + ".pptx"
	w.Header().Set("Content-Type", pptxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// toPPTXSlide maps a frontend slide to the writer's model. Content decodes
// to bullets when it is a JSON array, plain text otherwise.
func toPPTXSlide(s slidePayload) pptx.Slide {
	out := pptx.Slide{
		Title: s.Title,
		Notes: s.Notes,
	}
	var bullets []string
	var text string
	switch {
	case json.Unmarshal(s.Content, &bullets) == nil:
		out.Bullets = bullets
	case json.Unmarshal(s.Content, &text) == nil:
		out.Text = text
	default:
		out.Text = strings.TrimSpace(string(s.Content))
	}
	if s.ContentType == "chart" && s.hasChart() {
		out.ChartPlaceholder = true
	}
	return out
}
