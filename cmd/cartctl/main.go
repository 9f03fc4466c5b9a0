// Command cartctl inspects and edits a visitor's stored cart from a terminal.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-cart/internal/cartstate"
	"github.com/angelmondragon/storefront-cart/internal/notifications"
	"github.com/angelmondragon/storefront-cart/internal/storage"
	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

func main() {
	app := &cliApp{open: openFromEnv}
	if err := newRootCmd(app).Execute(); err != nil {
		os.Exit(1)
	}
}

// openFromEnv connects to the configured cart storage and loads session.
func openFromEnv(ctx context.Context, session string, sink notifications.Sink) (*cartstate.Provider, func() error, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logg := logger.New(logger.Options{
		ServiceName: "cartctl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      logger.FormatConsole,
		Output:      os.Stderr,
	})

	backend, err := storage.Open(ctx, cfg, logg)
	if err != nil {
		return nil, nil, err
	}

	sessions, err := cartstate.NewRegistry(cartstate.RegistryOptions{
		Storage:    backend,
		KeyPrefix:  cfg.Cart.StorageKey,
		MinorUnits: cfg.Cart.MinorUnits,
		Size:       1,
		Sink:       sink,
		Logger:     logg,
	})
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}

	provider, err := sessions.Get(ctx, session)
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}
	return provider, backend.Close, nil
}
