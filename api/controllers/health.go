package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/storefront-cart/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

const readyTimeout = 2 * time.Second

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

const envHeader = "X-Storefront-Env"

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the cart storage backend.
func HealthReady(cfg *config.Config, logg *logger.Logger, storage Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		if storage != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()
			if err := storage.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart storage not ready").
					WithDetails(map[string]any{"storage": cfg.Cart.StorageDriver()}))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{
			"status":  "ready",
			"storage": cfg.Cart.StorageDriver(),
		})
	}
}
