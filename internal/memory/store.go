// Package memory persists per-user conversational context and carts in
// Redis. All cart mutations run under WATCH-based compare-and-swap so two
// near-simultaneous messages from one user cannot interleave into an
// inconsistent cart.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the session-state interface consumed by the orchestrator and the
// cart and summary agents.
type Store interface {
	GetContext(ctx context.Context, userID int) (string, error)
	AppendContext(ctx context.Context, userID int, text string) error
	ReplaceContext(ctx context.Context, userID int, text string) error

	GetCart(ctx context.Context, userID int) (Cart, error)
	AddToCart(ctx context.Context, userID int, itemID string, qty int) (Cart, error)
	RemoveFromCart(ctx context.Context, userID int, itemID string) (Cart, error)
	UpdateQuantity(ctx context.Context, userID int, itemID string, qty int) (Cart, error)
	ClearCart(ctx context.Context, userID int) error

	ResetSession(ctx context.Context, userID int) error
	Healthy(ctx context.Context) bool
}

const casRetries = 10

var errContention = errors.New("memory: too many concurrent cart updates")

// RedisStore implements Store on a Redis client.
type RedisStore struct {
	client     *redis.Client
	sessionTTL time.Duration
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, sessionTTL time.Duration) *RedisStore {
	return &RedisStore{client: client, sessionTTL: sessionTTL}
}

func contextKey(userID int) string { return fmt.Sprintf("context:%d", userID) }
func cartKey(userID int) string    { return fmt.Sprintf("cart:%d", userID) }

func (s *RedisStore) GetContext(ctx context.Context, userID int) (string, error) {
	val, err := s.client.Get(ctx, contextKey(userID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting context for user %d: %w", userID, err)
	}
	return val, nil
}

func (s *RedisStore) AppendContext(ctx context.Context, userID int, text string) error {
	if text == "" {
		return nil
	}
	key := contextKey(userID)
	for i := 0; i < casRetries; i++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			old, err := tx.Get(ctx, key).Result()
			if err != nil && err != redis.Nil {
				return err
			}
			joined := text
			if old != "" {
				joined = old + "\n" + text
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, joined, s.sessionTTL)
				return nil
			})
			return err
		}, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return fmt.Errorf("appending context for user %d: %w", userID, err)
		}
		return nil
	}
	return errContention
}

func (s *RedisStore) ReplaceContext(ctx context.Context, userID int, text string) error {
	if err := s.client.Set(ctx, contextKey(userID), text, s.sessionTTL).Err(); err != nil {
		return fmt.Errorf("replacing context for user %d: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) GetCart(ctx context.Context, userID int) (Cart, error) {
	val, err := s.client.Get(ctx, cartKey(userID)).Result()
	if err == redis.Nil {
		return Cart{}, nil // first access: empty cart
	}
	if err != nil {
		return Cart{}, fmt.Errorf("getting cart for user %d: %w", userID, err)
	}
	var cart Cart
	if err := json.Unmarshal([]byte(val), &cart); err != nil {
		return Cart{}, fmt.Errorf("decoding cart for user %d: %w", userID, err)
	}
	return cart, nil
}

func (s *RedisStore) AddToCart(ctx context.Context, userID int, itemID string, qty int) (Cart, error) {
	if qty < 1 {
		qty = 1
	}
	return s.mutateCart(ctx, userID, func(c *Cart) {
		c.add(itemID, qty)
	})
}

// RemoveFromCart deletes the entry for itemID. Removing an absent item is a
// no-op, not an error.
func (s *RedisStore) RemoveFromCart(ctx context.Context, userID int, itemID string) (Cart, error) {
	return s.mutateCart(ctx, userID, func(c *Cart) {
		c.remove(itemID)
	})
}

func (s *RedisStore) UpdateQuantity(ctx context.Context, userID int, itemID string, qty int) (Cart, error) {
	return s.mutateCart(ctx, userID, func(c *Cart) {
		c.setQuantity(itemID, qty)
	})
}

func (s *RedisStore) ClearCart(ctx context.Context, userID int) error {
	if err := s.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("clearing cart for user %d: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) ResetSession(ctx context.Context, userID int) error {
	if err := s.client.Del(ctx, contextKey(userID), cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("resetting session for user %d: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) Healthy(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

// mutateCart applies fn to the user's cart under optimistic locking and
// returns the post-mutation cart.
func (s *RedisStore) mutateCart(ctx context.Context, userID int, fn func(*Cart)) (Cart, error) {
	key := cartKey(userID)
	var out Cart

	for i := 0; i < casRetries; i++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			var cart Cart
			val, err := tx.Get(ctx, key).Result()
			if err != nil && err != redis.Nil {
				return err
			}
			if err != redis.Nil {
				if uerr := json.Unmarshal([]byte(val), &cart); uerr != nil {
					return fmt.Errorf("decoding cart: %w", uerr)
				}
			}

			fn(&cart)
			cart.normalize()

			data, err := json.Marshal(cart)
			if err != nil {
				return fmt.Errorf("encoding cart: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, s.sessionTTL)
				return nil
			})
			out = cart
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue // another mutation won the race, retry on fresh state
		}
		if err != nil {
			return Cart{}, fmt.Errorf("updating cart for user %d: %w", userID, err)
		}
		return out, nil
	}
	return Cart{}, errContention
}
