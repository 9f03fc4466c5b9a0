package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-cart/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-cart/api/controllers/cart"
	"github.com/angelmondragon/storefront-cart/api/middleware"
	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

// NewRouter wires the cart API. gatherer may be nil to omit /metrics.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	storage controllers.Pinger,
	sessions cartcontrollers.Sessions,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)
	if len(cfg.App.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.App.CORSOrigins, cfg.Cart.SessionHeader))
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, storage))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	sessionOpts := middleware.SessionOptions{
		Header:       cfg.Cart.SessionHeader,
		Cookie:       cfg.Cart.SessionCookie,
		SecureCookie: cfg.App.IsProd(),
	}

	// Redis and SQL may be shared by several API instances.
	fetch := cartcontrollers.CartFetchLatest
	if cfg.Cart.StorageDriver() == config.StorageMemory {
		fetch = cartcontrollers.CartFetch
	}

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.CartSession(sessionOpts, logg))

		r.Get("/", fetch(sessions, logg))
		r.Delete("/", cartcontrollers.CartClear(sessions, logg))
		r.Post("/refresh", cartcontrollers.CartRefresh(sessions, logg))

		r.Route("/items", func(r chi.Router) {
			r.Post("/", cartcontrollers.CartAddItem(sessions, logg))
			r.Patch("/{productId}", cartcontrollers.CartUpdateItem(sessions, logg))
			r.Delete("/{productId}", cartcontrollers.CartRemoveItem(sessions, logg))
		})
	})

	return r
}
