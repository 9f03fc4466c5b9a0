package storage

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/db"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/migrate"
	"github.com/angelmondragon/storefront-cart/pkg/redis"
)

// Backend is an opened storage backend together with the clients it owns.
type Backend struct {
	Storage
	driver  string
	pinger  Pinger
	closers []func() error
}

// Open connects the backend selected by cfg.Cart.Storage. SQL backends have
// their schema migrated per migrate.MaybeRun before use.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Backend, error) {
	driver := cfg.Cart.StorageDriver()
	b := &Backend{driver: driver}

	switch driver {
	case config.StorageMemory:
		mem := NewMemory()
		b.Storage, b.pinger = mem, mem

	case config.StorageRedis:
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		backend := NewRedis(client, cfg.Cart.RedisTTL)
		b.Storage, b.pinger = backend, backend

	case config.StorageSQL:
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap database: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
			return nil, multierr.Append(fmt.Errorf("migrate cart schema: %w", err), b.Close())
		}
		backend := NewSQL(client.DB())
		b.Storage, b.pinger = backend, backend

	default:
		return nil, fmt.Errorf("unsupported cart storage %q", cfg.Cart.Storage)
	}

	logg.Info(logg.WithField(ctx, "storage", driver), "cart storage ready")
	return b, nil
}

// Driver names the selected backend.
func (b *Backend) Driver() string {
	return b.driver
}

func (b *Backend) Ping(ctx context.Context) error {
	if b.pinger == nil {
		return nil
	}
	return b.pinger.Ping(ctx)
}

// Close releases every client the backend opened.
func (b *Backend) Close() error {
	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.closers[i]())
	}
	b.closers = nil
	return err
}
