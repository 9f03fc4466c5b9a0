package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// ErrNil is returned by ReadCart when no record exists for the key.
var ErrNil = redis.Nil

var errNotConnected = errors.New("redis client not initialized")

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
}

// Client reads and writes serialized cart records under sf:cart:<key>.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// New dials Redis and fails fast when the server cannot be pinged.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"redis_addr": opts.Addr,
			"redis_db":   opts.DB,
		}), "cart redis connected")
	}
	return &Client{store: raw, raw: raw}, nil
}

// optionsFromConfig prefers STOREFRONT_REDIS_URL; explicit pool and timeout
// settings fill whatever the URL left unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password}
	default:
		return nil, errors.New("redis url or address is required")
	}

	fillInt(&opts.DB, cfg.DB)
	fillInt(&opts.PoolSize, cfg.PoolSize)
	fillInt(&opts.MinIdleConns, cfg.MinIdleConns)
	fillDuration(&opts.DialTimeout, cfg.DialTimeout)
	fillDuration(&opts.ReadTimeout, cfg.ReadTimeout)
	fillDuration(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fillInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func fillDuration(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}

// ReadCart returns the raw record stored for key, ErrNil when absent.
func (c *Client) ReadCart(ctx context.Context, key string) ([]byte, error) {
	if c.store == nil {
		return nil, errNotConnected
	}
	value, err := c.store.Get(ctx, CartKey(key)).Result()
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

// WriteCart replaces the record for key. A zero ttl keeps it until cleared.
func (c *Client) WriteCart(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if c.store == nil {
		return errNotConnected
	}
	return c.store.Set(ctx, CartKey(key), string(payload), ttl).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return errNotConnected
	}
	return c.store.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// CartKey namespaces a storage key, e.g. "cart:s1" becomes "sf:cart:cart:s1".
func CartKey(key string) string {
	parts := []string{"sf", "cart"}
	if key = strings.TrimSpace(key); key != "" {
		parts = append(parts, key)
	}
	return strings.Join(parts, ":")
}
