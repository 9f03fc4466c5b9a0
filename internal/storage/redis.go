package storage

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/redis"
)

type cartKV interface {
	ReadCart(ctx context.Context, key string) ([]byte, error)
	WriteCart(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// Redis keeps one string value per cart under sf:cart:<key>.
type Redis struct {
	client cartKV
	ttl    time.Duration
}

// NewRedis builds a Redis backend. A zero ttl keeps records until cleared.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Load(ctx context.Context, key string) ([]byte, error) {
	payload, err := r.client.ReadCart(ctx, key)
	if errors.Is(err, redis.ErrNil) {
		return nil, ErrNotFound
	}
	return payload, err
}

func (r *Redis) Save(ctx context.Context, key string, payload []byte) error {
	return r.client.WriteCart(ctx, key, payload, r.ttl)
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
