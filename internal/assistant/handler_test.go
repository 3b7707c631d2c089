package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmate-ai/shopmate/internal/agent"
	"github.com/shopmate-ai/shopmate/internal/memory"
)

// scriptedOrchestrator replays a fixed event sequence and records the turn.
type scriptedOrchestrator struct {
	events  []agent.StreamEvent
	gotTurn *agent.Turn
}

func (s *scriptedOrchestrator) Handle(_ context.Context, turn *agent.Turn) <-chan agent.StreamEvent {
	s.gotTurn = turn
	ch := make(chan agent.StreamEvent, len(s.events))
	for _, ev := range s.events {
		ch <- ev
	}
	close(ch)
	return ch
}

// resetStore only supports ResetSession; the handler touches nothing else.
type resetStore struct {
	memory.Store
	resetUser int
	resetErr  error
}

func (s *resetStore) ResetSession(_ context.Context, userID int) error {
	s.resetUser = userID
	return s.resetErr
}

func successEvents() []agent.StreamEvent {
	return []agent.StreamEvent{
		agent.ImagesEvent(map[string]string{"dress_1": "img/1.jpg"}),
		agent.ContentEvent("We have "),
		agent.ContentEvent("two dresses."),
		agent.DoneEvent(map[string]float64{"planner": 0.1, "total": 1.2}),
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestQueryAggregatesStream(t *testing.T) {
	orch := &scriptedOrchestrator{events: successEvents()}
	h := NewHandler(orch, &resetStore{}, slog.New(slog.DiscardHandler))

	rec := postJSON(t, h.Query, map[string]any{"user_id": 7, "query": "show me dresses"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "We have two dresses.", resp.Response)
	assert.Equal(t, map[string]string{"dress_1": "img/1.jpg"}, resp.Images)
	assert.InDelta(t, 1.2, resp.Timings["total"], 0.0001)

	require.NotNil(t, orch.gotTurn)
	assert.Equal(t, 7, orch.gotTurn.UserID)
	assert.True(t, orch.gotTurn.Guardrails, "guardrails default on")
	assert.NotEmpty(t, orch.gotTurn.ID)
}

func TestQueryStreamEmitsSSEFrames(t *testing.T) {
	orch := &scriptedOrchestrator{events: successEvents()}
	h := NewHandler(orch, &resetStore{}, slog.New(slog.DiscardHandler))

	rec := postJSON(t, h.QueryStream, map[string]any{"user_id": 7, "query": "show me dresses"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	frames := parseSSE(t, rec.Body.String())
	require.Len(t, frames, 5)

	var first agent.StreamEvent
	require.NoError(t, json.Unmarshal([]byte(frames[0]), &first))
	assert.Equal(t, agent.EventImages, first.Type)
	assert.NotZero(t, first.Timestamp)

	var second agent.StreamEvent
	require.NoError(t, json.Unmarshal([]byte(frames[1]), &second))
	assert.Equal(t, agent.EventContent, second.Type)
	assert.Equal(t, "We have ", second.Payload)

	var done agent.StreamEvent
	require.NoError(t, json.Unmarshal([]byte(frames[3]), &done))
	assert.Equal(t, agent.EventDone, done.Type)

	assert.Equal(t, "[DONE]", frames[4], "stream terminates with the sentinel frame")
}

func parseSSE(t *testing.T, body string) []string {
	t.Helper()
	var frames []string
	for _, line := range strings.Split(body, "\n") {
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			frames = append(frames, data)
		}
	}
	return frames
}

func TestQueryValidation(t *testing.T) {
	h := NewHandler(&scriptedOrchestrator{}, &resetStore{}, slog.New(slog.DiscardHandler))

	tests := []struct {
		name string
		body any
	}{
		{"missing user_id", map[string]any{"query": "dresses"}},
		{"zero user_id", map[string]any{"user_id": 0, "query": "dresses"}},
		{"no query and no image", map[string]any{"user_id": 7}},
		{"blank query", map[string]any{"user_id": 7, "query": "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.Query, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestQueryMalformedBody(t *testing.T) {
	h := NewHandler(&scriptedOrchestrator{}, &resetStore{}, slog.New(slog.DiscardHandler))

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Query(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryCarriesClientStateIntoTurn(t *testing.T) {
	orch := &scriptedOrchestrator{events: successEvents()}
	h := NewHandler(orch, &resetStore{}, slog.New(slog.DiscardHandler))

	guardrails := false
	rec := postJSON(t, h.Query, map[string]any{
		"user_id":    7,
		"query":      "add the first one",
		"context":    "User: hi\nAssistant: hello",
		"guardrails": guardrails,
		"cart":       []map[string]any{{"item_id": "dress_1", "quantity": 2}},
		"retrieved": []map[string]any{
			{"product_id": "dress_1", "name": "Zip Front Dress", "image_url": "img/1.jpg", "price": 89.90},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	turn := orch.gotTurn
	require.NotNil(t, turn)
	assert.False(t, turn.Guardrails)
	assert.Equal(t, "User: hi\nAssistant: hello", turn.Context)
	assert.Equal(t, 2, turn.Cart.Quantity("dress_1"))
	require.Len(t, turn.Retrieved.Items, 1)
	assert.Equal(t, "Zip Front Dress", turn.Retrieved.Items[0].Name)
}

func TestQueryErrorOnlyStreamIs500(t *testing.T) {
	orch := &scriptedOrchestrator{events: []agent.StreamEvent{
		agent.ErrorEvent("Something went wrong."),
		agent.DoneEvent(nil),
	}}
	h := NewHandler(orch, &resetStore{}, slog.New(slog.DiscardHandler))

	rec := postJSON(t, h.Query, map[string]any{"user_id": 7, "query": "dresses"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestImageOnlyRequestIsAccepted(t *testing.T) {
	orch := &scriptedOrchestrator{events: successEvents()}
	h := NewHandler(orch, &resetStore{}, slog.New(slog.DiscardHandler))

	rec := postJSON(t, h.Query, map[string]any{"user_id": 7, "image": "aGVsbG8="})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "aGVsbG8=", orch.gotTurn.Image)
}

func TestResetSession(t *testing.T) {
	store := &resetStore{}
	h := NewHandler(&scriptedOrchestrator{}, store, slog.New(slog.DiscardHandler))

	r := chi.NewRouter()
	r.Post("/session/{user_id}/reset", h.ResetSession)

	req := httptest.NewRequest(http.MethodPost, "/session/7/reset", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, store.resetUser)
}

func TestResetSessionRejectsBadUserID(t *testing.T) {
	h := NewHandler(&scriptedOrchestrator{}, &resetStore{}, slog.New(slog.DiscardHandler))

	r := chi.NewRouter()
	r.Post("/session/{user_id}/reset", h.ResetSession)

	for _, id := range []string{"abc", "-1", "0"} {
		req := httptest.NewRequest(http.MethodPost, "/session/"+id+"/reset", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, id)
	}
}
