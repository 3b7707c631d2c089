// Package agent holds the specialized agents of the shopping assistant
// pipeline and the turn-scoped types they exchange. Agents never mutate a
// Turn; they receive read access and return their own results.
package agent

import (
	"fmt"
	"time"

	"github.com/shopmate-ai/shopmate/internal/memory"
)

// Agent names appear in timing maps, metrics labels and logs.
type Agent interface {
	Name() string
}

// Intent is the closed set of turn classifications produced by the planner.
type Intent string

const (
	IntentSearch        Intent = "search"
	IntentCartAdd       Intent = "cart_add"
	IntentCartRemove    Intent = "cart_remove"
	IntentCartView      Intent = "cart_view"
	IntentCartClear     Intent = "cart_clear"
	IntentCartUpdateQty Intent = "cart_update_qty"
	IntentGeneral       Intent = "general"
)

// IsCartOp reports whether the intent targets the cart at all.
func (i Intent) IsCartOp() bool {
	switch i {
	case IntentCartAdd, IntentCartRemove, IntentCartView, IntentCartClear, IntentCartUpdateQty:
		return true
	}
	return false
}

// IsCartMutation reports whether the intent changes cart state.
func (i Intent) IsCartMutation() bool {
	return i.IsCartOp() && i != IntentCartView
}

// Plan is the planner's routing decision plus loosely-typed parameters
// extracted from the query.
type Plan struct {
	Intent   Intent
	Category string
	MaxPrice float64
	ItemRef  string
	Quantity int
}

// RetrievedItem is one product surfaced to the user during this session.
// The slice form preserves presentation order so ordinal references ("the
// second one") resolve deterministically.
type RetrievedItem struct {
	ID       string  `json:"product_id"`
	Name     string  `json:"name"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
}

// RetrievedSet is the turn-scoped, ordered product set threaded from the
// retriever agent to the cart agent and the client.
type RetrievedSet struct {
	Items []RetrievedItem
}

// IsEmpty reports whether nothing has been retrieved.
func (s RetrievedSet) IsEmpty() bool {
	return len(s.Items) == 0
}

// ImageMap returns the product id → image reference mapping emitted on the
// images stream event.
func (s RetrievedSet) ImageMap() map[string]string {
	if len(s.Items) == 0 {
		return map[string]string{}
	}
	m := make(map[string]string, len(s.Items))
	for _, it := range s.Items {
		m[it.ID] = it.ImageURL
	}
	return m
}

// Turn is one request/response cycle. It is immutable once the pipeline
// starts; agents work on derived values, and only the orchestrator owns it.
type Turn struct {
	ID         string
	UserID     int
	Query      string
	Image      string // base64 payload, empty when text-only
	Guardrails bool

	// Session state loaded at turn start.
	Context   string
	Cart      memory.Cart
	Retrieved RetrievedSet // carried over from earlier turns
}

// HasImage reports whether the turn carries an image payload.
func (t *Turn) HasImage() bool { return t.Image != "" }

// EventType tags one unit of the outbound stream protocol.
type EventType string

const (
	EventContent EventType = "content"
	EventImages  EventType = "images"
	EventError   EventType = "error"
	EventDone    EventType = "done"
)

// StreamEvent is the unit of the outbound protocol. Within one turn events
// are delivered in production order and done is always last.
type StreamEvent struct {
	Type      EventType `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp float64   `json:"timestamp"`
}

func newEvent(t EventType, payload any) StreamEvent {
	return StreamEvent{
		Type:      t,
		Payload:   payload,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	}
}

// ContentEvent wraps a text fragment.
func ContentEvent(text string) StreamEvent { return newEvent(EventContent, text) }

// ImagesEvent wraps the product id → image reference map.
func ImagesEvent(images map[string]string) StreamEvent { return newEvent(EventImages, images) }

// ErrorEvent wraps a user-safe error message.
func ErrorEvent(msg string) StreamEvent { return newEvent(EventError, msg) }

// DoneEvent is the terminal marker of every stream. Successful turns attach
// their per-step timings; error paths pass nil.
func DoneEvent(timings map[string]float64) StreamEvent {
	if len(timings) == 0 {
		return newEvent(EventDone, nil)
	}
	return newEvent(EventDone, timings)
}

// AmbiguousReferenceError reports that an item reference matched more than
// one product. It is surfaced as a clarifying reply, never as a mutation.
type AmbiguousReferenceError struct {
	Ref        string
	Candidates []string
}

func (e *AmbiguousReferenceError) Error() string {
	return fmt.Sprintf("ambiguous item reference %q: %d candidates", e.Ref, len(e.Candidates))
}

// UnresolvedReferenceError reports that an item reference matched nothing.
type UnresolvedReferenceError struct {
	Ref string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved item reference %q", e.Ref)
}
