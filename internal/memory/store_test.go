package memory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Hour), mr
}

func TestContext_AppendAndGet(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	got, err := store.GetContext(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.AppendContext(ctx, 42, "User asked about dresses."))
	require.NoError(t, store.AppendContext(ctx, 42, "Assistant showed three dresses."))

	got, err = store.GetContext(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "User asked about dresses.\nAssistant showed three dresses.", got)
}

func TestContext_Replace(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendContext(ctx, 1, "long rambling context"))
	require.NoError(t, store.ReplaceContext(ctx, 1, "condensed summary"))

	got, err := store.GetContext(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "condensed summary", got)
}

func TestCart_AddAccumulatesQuantity(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.AddToCart(ctx, 7, "dress_1", 1)
	require.NoError(t, err)
	cart, err := store.AddToCart(ctx, 7, "dress_1", 1)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, "dress_1", cart.Items[0].ItemID)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestCart_PreservesInsertionOrder(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.AddToCart(ctx, 7, "hat_2", 1)
	require.NoError(t, err)
	_, err = store.AddToCart(ctx, 7, "dress_1", 2)
	require.NoError(t, err)
	cart, err := store.AddToCart(ctx, 7, "shoes_3", 1)
	require.NoError(t, err)

	require.Len(t, cart.Items, 3)
	assert.Equal(t, "hat_2", cart.Items[0].ItemID)
	assert.Equal(t, "dress_1", cart.Items[1].ItemID)
	assert.Equal(t, "shoes_3", cart.Items[2].ItemID)
}

func TestCart_RemoveAbsentIsNoop(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.AddToCart(ctx, 7, "dress_1", 1)
	require.NoError(t, err)

	cart, err := store.RemoveFromCart(ctx, 7, "not_in_cart")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "dress_1", cart.Items[0].ItemID)
}

func TestCart_UpdateQuantityZeroRemoves(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.AddToCart(ctx, 7, "dress_1", 3)
	require.NoError(t, err)

	cart, err := store.UpdateQuantity(ctx, 7, "dress_1", 0)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestCart_UpdateQuantitySets(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.AddToCart(ctx, 7, "dress_1", 1)
	require.NoError(t, err)

	cart, err := store.UpdateQuantity(ctx, 7, "dress_1", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, cart.Quantity("dress_1"))
}

func TestCart_ClearAndReset(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.AddToCart(ctx, 7, "dress_1", 1)
	require.NoError(t, err)
	require.NoError(t, store.AppendContext(ctx, 7, "some context"))

	require.NoError(t, store.ClearCart(ctx, 7))
	cart, err := store.GetCart(ctx, 7)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	// Context survives a cart clear but not a session reset.
	got, err := store.GetContext(ctx, 7)
	require.NoError(t, err)
	assert.NotEmpty(t, got)

	require.NoError(t, store.ResetSession(ctx, 7))
	got, err = store.GetContext(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCart_IsolatedByUser(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.AddToCart(ctx, 1, "dress_1", 1)
	require.NoError(t, err)
	_, err = store.AddToCart(ctx, 2, "hat_2", 1)
	require.NoError(t, err)

	cart1, err := store.GetCart(ctx, 1)
	require.NoError(t, err)
	cart2, err := store.GetCart(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, 1, cart1.Quantity("dress_1"))
	assert.Equal(t, 0, cart1.Quantity("hat_2"))
	assert.Equal(t, 1, cart2.Quantity("hat_2"))
}

func TestCart_SessionTTL(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	_, err := store.AddToCart(ctx, 7, "dress_1", 1)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	cart, err := store.GetCart(ctx, 7)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}
