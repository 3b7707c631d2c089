// Package events publishes turn-level audit events to NATS JetStream when a
// broker is configured. All publishers are nil-safe so the assistant runs
// unchanged without NATS.
package events

import (
	"time"
)

// Stream and subject constants.
const (
	StreamEvents = "SHOPMATE_EVENTS"

	SubjectTurnCompleted    = "shopmate.events.turn.completed"
	SubjectCartMutated      = "shopmate.events.cart.mutated"
	SubjectGuardrailBlocked = "shopmate.events.guardrail.blocked"
)

// TurnCompleted records one finished pipeline run.
type TurnCompleted struct {
	TurnID        string             `json:"turn_id"`
	UserID        int                `json:"user_id"`
	Intent        string             `json:"intent"`
	PolicyFlagged bool               `json:"policy_flagged"`
	Timings       map[string]float64 `json:"timings"`
	Timestamp     time.Time          `json:"timestamp"`
}

// CartMutated records an applied cart change.
type CartMutated struct {
	TurnID    string    `json:"turn_id"`
	UserID    int       `json:"user_id"`
	Operation string    `json:"operation"`
	ItemID    string    `json:"item_id"`
	Quantity  int       `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// GuardrailBlocked records a rail firing on either direction.
type GuardrailBlocked struct {
	TurnID    string    `json:"turn_id"`
	UserID    int       `json:"user_id"`
	Direction string    `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
}
