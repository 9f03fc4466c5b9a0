package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/redis/go-redis/v9"
)

func TestWriteReadCart(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	if _, err := client.ReadCart(ctx, "cart:s1"); !errors.Is(err, ErrNil) {
		t.Fatalf("expected ErrNil for missing cart, got %v", err)
	}
	if err := client.WriteCart(ctx, "cart:s1", []byte(`{"items":[]}`), time.Hour); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if mock.ttls["sf:cart:cart:s1"] != time.Hour {
		t.Fatalf("expected ttl on namespaced key, got %v", mock.ttls)
	}
	got, err := client.ReadCart(ctx, "cart:s1")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != `{"items":[]}` {
		t.Fatalf("unexpected payload %q", got)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error on empty client")
	}
	if _, err := client.ReadCart(context.Background(), "k"); err == nil {
		t.Fatalf("expected read error on empty client")
	}
	if err := client.WriteCart(context.Background(), "k", nil, 0); err == nil {
		t.Fatalf("expected write error on empty client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on empty client should be a no-op: %v", err)
	}
}

func TestCartKey(t *testing.T) {
	if got := CartKey("abc"); got != "sf:cart:abc" {
		t.Fatalf("unexpected cart key %s", got)
	}
	if got := CartKey(" "); got != "sf:cart" {
		t.Fatalf("blank key should be skipped, got %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}

	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://localhost:6379/3",
		PoolSize:    7,
		DialTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 3 || opts.PoolSize != 7 || opts.DialTimeout != time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.DB != 2 {
		t.Fatalf("unexpected options %+v", opts)
	}
}

type mockCmdable struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}
