// Package assistant exposes the conversational HTTP surface: the streaming
// and aggregate query endpoints plus session management.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/shopmate-ai/shopmate/internal/agent"
	"github.com/shopmate-ai/shopmate/internal/api"
	"github.com/shopmate-ai/shopmate/internal/memory"
)

// QueryRequest is the body of POST /query and POST /query/stream. Context,
// cart and retrieved are optional client-side state; when absent the
// server-side session is used.
type QueryRequest struct {
	UserID     int                   `json:"user_id" validate:"required,gt=0"`
	Query      string                `json:"query"`
	Image      string                `json:"image"`
	Context    string                `json:"context"`
	Cart       []CartItemWire        `json:"cart"`
	Retrieved  []agent.RetrievedItem `json:"retrieved"`
	Guardrails *bool                 `json:"guardrails"`
}

// CartItemWire is the wire form of one cart entry.
type CartItemWire struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// QueryResponse is the aggregate (non-streaming) reply.
type QueryResponse struct {
	Response string             `json:"response"`
	Images   map[string]string  `json:"images"`
	Timings  map[string]float64 `json:"timings"`
}

// Orchestrator is the pipeline entry point the handler drives.
type Orchestrator interface {
	Handle(ctx context.Context, turn *agent.Turn) <-chan agent.StreamEvent
}

// Handler serves the assistant endpoints.
type Handler struct {
	orch     Orchestrator
	store    memory.Store
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates the assistant handler.
func NewHandler(orch Orchestrator, store memory.Store, logger *slog.Logger) *Handler {
	return &Handler{orch: orch, store: store, validate: validator.New(), logger: logger}
}

func (h *Handler) parseRequest(r *http.Request) (*agent.Turn, error) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, api.ErrBadRequest
	}
	if err := h.validate.Struct(&req); err != nil {
		return nil, api.NewValidationError("user_id must be a positive integer")
	}
	if strings.TrimSpace(req.Query) == "" && req.Image == "" {
		return nil, api.NewValidationError("query or image is required")
	}

	guardrails := true
	if req.Guardrails != nil {
		guardrails = *req.Guardrails
	}
	turn := &agent.Turn{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		Query:      strings.TrimSpace(req.Query),
		Image:      req.Image,
		Guardrails: guardrails,
		Context:    req.Context,
		Retrieved:  agent.RetrievedSet{Items: req.Retrieved},
	}
	for _, it := range req.Cart {
		if it.ItemID != "" && it.Quantity > 0 {
			turn.Cart.Items = append(turn.Cart.Items, memory.CartItem{ItemID: it.ItemID, Quantity: it.Quantity})
		}
	}
	return turn, nil
}

// QueryStream handles POST /query/stream: one SSE data frame per event and a
// terminal [DONE] marker.
func (h *Handler) QueryStream(w http.ResponseWriter, r *http.Request) {
	turn, err := h.parseRequest(r)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("response writer does not support streaming")
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for ev := range h.orch.Handle(r.Context(), turn) {
		data, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("encoding stream event failed", "turn_id", turn.ID, "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// Query handles POST /query: the same pipeline with events folded into one
// aggregate response.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	turn, err := h.parseRequest(r)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	var (
		response strings.Builder
		images   = map[string]string{}
		timings  = map[string]float64{}
		errMsg   string
	)
	for ev := range h.orch.Handle(r.Context(), turn) {
		switch ev.Type {
		case agent.EventContent:
			if s, ok := ev.Payload.(string); ok {
				response.WriteString(s)
			}
		case agent.EventImages:
			if m, ok := ev.Payload.(map[string]string); ok {
				for id, img := range m {
					images[id] = img
				}
			}
		case agent.EventError:
			if s, ok := ev.Payload.(string); ok {
				errMsg = s
			}
		case agent.EventDone:
			if m, ok := ev.Payload.(map[string]float64); ok {
				timings = m
			}
		}
	}
	if errMsg != "" && response.Len() == 0 {
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONRaw(w, http.StatusOK, QueryResponse{
		Response: response.String(),
		Images:   images,
		Timings:  timings,
	})
}

// ResetSession handles POST /session/{user_id}/reset.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "user_id"))
	if err != nil || userID <= 0 {
		api.HandleError(w, api.NewValidationError("user_id must be a positive integer"))
		return
	}
	if err := h.store.ResetSession(r.Context(), userID); err != nil {
		h.logger.Error("session reset failed", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSONMessage(w, http.StatusOK, "session reset")
}
