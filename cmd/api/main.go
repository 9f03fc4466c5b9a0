package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-cart/api/routes"
	"github.com/angelmondragon/storefront-cart/internal/cartstate"
	"github.com/angelmondragon/storefront-cart/internal/notifications"
	"github.com/angelmondragon/storefront-cart/internal/storage"
	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/instance"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "cart-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cart-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := storage.Open(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to open cart storage", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sessions, err := cartstate.NewRegistry(cartstate.RegistryOptions{
		Storage:    backend,
		KeyPrefix:  cfg.Cart.StorageKey,
		MinorUnits: cfg.Cart.MinorUnits,
		Size:       cfg.Cart.RegistrySize,
		Sink:       notifications.NewLoggerSink(logg),
		Logger:     logg,
		Metrics:    metrics.NewCartMetrics(reg),
	})
	if err != nil {
		logg.Error(ctx, "failed to create cart sessions", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"storage":  backend.Driver(),
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting cart api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, backend, sessions, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logg.Info(ctx, "shutting down cart api server")
	case runErr = <-serveErr:
		logg.Error(ctx, "cart api server stopped unexpectedly", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := multierr.Combine(server.Shutdown(shutdownCtx), backend.Close()); err != nil {
		logg.Error(ctx, "error during shutdown", err)
		os.Exit(1)
	}
	if runErr != nil {
		os.Exit(1)
	}
}
