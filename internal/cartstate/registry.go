package cartstate

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/notifications"
	"github.com/angelmondragon/storefront-cart/internal/storage"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRegistrySize = 4096
	maxSessionLength    = 128
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Storage    storage.Storage
	KeyPrefix  string
	MinorUnits int32
	Size       int
	Sink       notifications.Sink
	Logger     *logger.Logger
	Metrics    *metrics.CartMetrics
}

// Registry hands out one initialized provider per cart session. Idle
// sessions are evicted least-recently-used first and reload from storage on
// their next use.
type Registry struct {
	opts  RegistryOptions
	logg  *logger.Logger
	cache *lru.Cache
	group singleflight.Group
}

// NewRegistry builds a registry over the shared storage backend.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.Storage == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart storage required")
	}
	if strings.TrimSpace(opts.KeyPrefix) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart storage key required")
	}
	if opts.Size <= 0 {
		opts.Size = DefaultRegistrySize
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	r := &Registry{opts: opts, logg: logg}
	cache, err := lru.NewWithEvict(opts.Size, func(key, _ interface{}) {
		r.logg.Debug(r.logg.WithSessionID(context.Background(), fmt.Sprint(key)), "cart.session_evicted")
	})
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	r.cache = cache
	return r, nil
}

// StorageKey returns the storage key used for session's record.
func (r *Registry) StorageKey(session string) string {
	return r.opts.KeyPrefix + ":" + session
}

// Get returns the ready provider for session, loading it on first use.
// Concurrent first requests for the same session share one load. A provider
// whose load failed serves its degraded cart but is not cached, so the next
// request reads storage again.
func (r *Registry) Get(ctx context.Context, session string) (*Provider, error) {
	session = strings.TrimSpace(session)
	if session == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart session required")
	}
	if len(session) > maxSessionLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart session too long").
			WithDetails(map[string]any{"max": maxSessionLength})
	}

	if cached, ok := r.cache.Get(session); ok {
		return cached.(*Provider), nil
	}

	v, err, _ := r.group.Do(session, func() (interface{}, error) {
		if cached, ok := r.cache.Get(session); ok {
			return cached, nil
		}
		provider, err := r.build(session)
		if err != nil {
			return nil, err
		}
		// The load outlives the first caller, whose request may be cancelled
		// while others wait on the same flight.
		loadCtx := r.logg.WithSessionID(context.WithoutCancel(ctx), session)
		provider.Init(loadCtx)
		if err := provider.LoadErr(); err != nil {
			r.logg.Warn(r.logg.WithFields(loadCtx, pkgerrors.Dump(err).Fields()), "cart.session_load_degraded")
			return provider, nil
		}
		r.cache.Add(session, provider)
		return provider, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Provider), nil
}

// Forget drops session from the cache. Its stored record is untouched.
func (r *Registry) Forget(session string) {
	r.cache.Remove(session)
}

// Len reports how many sessions are cached.
func (r *Registry) Len() int {
	return r.cache.Len()
}

func (r *Registry) build(session string) (*Provider, error) {
	store, err := cart.NewStore(r.opts.Storage, cart.Options{
		Key:        r.StorageKey(session),
		MinorUnits: r.opts.MinorUnits,
		Logger:     r.logg,
		Metrics:    r.opts.Metrics,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build cart store")
	}
	return NewProvider(store, ProviderOptions{Sink: r.opts.Sink, Logger: r.logg})
}
