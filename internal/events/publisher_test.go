package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmate-ai/shopmate/internal/config"
)

func TestConnectWithoutURLIsDisabled(t *testing.T) {
	p, err := Connect(context.Background(), config.NATSConfig{})
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestNilPublisherIsSafe(t *testing.T) {
	var p *Publisher

	ctx := context.Background()
	p.PublishTurnCompleted(ctx, TurnCompleted{TurnID: "t1", UserID: 1, Timestamp: time.Now()})
	p.PublishCartMutated(ctx, CartMutated{TurnID: "t1", UserID: 1, Operation: "cart_add"})
	p.PublishGuardrailBlocked(ctx, GuardrailBlocked{TurnID: "t1", UserID: 1, Direction: "input"})
	p.Close()
}
