package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront/internal/core/domain"
)

const (
	cartKeyPrefix         = "cart:"
	checkoutLockKeyPrefix = "checkout-lock:"

	DefaultCartTTL         = 24 * time.Hour
	DefaultCheckoutLockTTL = 30 * time.Second
)

// releaseLockScript deletes the lock only if it still holds the caller's
// token, so an expired-and-retaken lock is never dropped by its old owner.
var releaseLockScript = redis.NewScript(`
local key = KEYS[1]
local token = ARGV[1]

if redis.call('GET', key) == token then
	return redis.call('DEL', key)
end

return 0
`)

type RedisAdapter struct {
	client  *redis.Client
	cartTTL time.Duration
	lockTTL time.Duration
}

func NewRedisAdapter(client *redis.Client, cartTTL, lockTTL time.Duration) *RedisAdapter {
	if cartTTL <= 0 {
		cartTTL = DefaultCartTTL
	}
	if lockTTL <= 0 {
		lockTTL = DefaultCheckoutLockTTL
	}
	return &RedisAdapter{client: client, cartTTL: cartTTL, lockTTL: lockTTL}
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisAdapter) GetCart(ctx context.Context, sessionID string) ([]domain.CartLineItem, error) {
	key := cartKeyPrefix + sessionID

	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []domain.CartLineItem{}, nil
	}
	if err != nil {
		return nil, err
	}

	var items []domain.CartLineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", sessionID, err)
	}

	// Reading a cart keeps it alive.
	if err := r.client.Expire(ctx, key, r.cartTTL).Err(); err != nil {
		return nil, fmt.Errorf("refresh cart %s: %w", sessionID, err)
	}
	return items, nil
}

func (r *RedisAdapter) SaveCart(ctx context.Context, sessionID string, items []domain.CartLineItem) error {
	key := cartKeyPrefix + sessionID
	if len(items) == 0 {
		return r.client.Del(ctx, key).Err()
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart %s: %w", sessionID, err)
	}
	return r.client.Set(ctx, key, raw, r.cartTTL).Err()
}

func (r *RedisAdapter) ClearCart(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, cartKeyPrefix+sessionID).Err()
}

func (r *RedisAdapter) AcquireCheckoutLock(ctx context.Context, sessionID, token string) (bool, error) {
	ok, err := r.client.SetNX(ctx, checkoutLockKeyPrefix+sessionID, token, r.lockTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseCheckoutLock(ctx context.Context, sessionID, token string) error {
	return releaseLockScript.Run(ctx, r.client, []string{checkoutLockKeyPrefix + sessionID}, token).Err()
}
