package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/shopmate-ai/shopmate/internal/config"
)

// Publisher publishes audit events to JetStream. A nil *Publisher is a
// valid no-op publisher.
type Publisher struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// Connect dials NATS and ensures the events stream exists. Returns
// (nil, nil) when no URL is configured.
func Connect(ctx context.Context, cfg config.NATSConfig) (*Publisher, error) {
	if cfg.URL == "" {
		slog.Info("NATS not configured, audit events disabled")
		return nil, nil
	}

	nc, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamEvents,
		Subjects:  []string{"shopmate.events.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensuring events stream: %w", err)
	}

	slog.Info("connected to NATS", "url", cfg.URL)
	return &Publisher{conn: nc, js: js}, nil
}

// Close drains the underlying connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}

// PublishTurnCompleted emits a turn completion event.
func (p *Publisher) PublishTurnCompleted(ctx context.Context, ev TurnCompleted) {
	p.publish(ctx, SubjectTurnCompleted, ev)
}

// PublishCartMutated emits a cart mutation event.
func (p *Publisher) PublishCartMutated(ctx context.Context, ev CartMutated) {
	p.publish(ctx, SubjectCartMutated, ev)
}

// PublishGuardrailBlocked emits a guardrail block event.
func (p *Publisher) PublishGuardrailBlocked(ctx context.Context, ev GuardrailBlocked) {
	p.publish(ctx, SubjectGuardrailBlocked, ev)
}

// publish is fire-and-forget: audit delivery must never fail a turn.
func (p *Publisher) publish(ctx context.Context, subject string, data any) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("marshaling audit event", "subject", subject, "error", err)
		return
	}
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		slog.Error("publishing audit event", "subject", subject, "error", err)
	}
}
