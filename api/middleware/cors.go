package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns middleware allowing the storefront origins to call the cart API
// and read the session header.
func CORS(origins []string, sessionHeader string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id", sessionHeader},
		ExposedHeaders:   []string{"X-Request-Id", sessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
