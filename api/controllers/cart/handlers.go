package cart

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	cartdto "github.com/angelmondragon/storefront-cart/api/controllers/cart/dto"
	"github.com/angelmondragon/storefront-cart/api/middleware"
	"github.com/angelmondragon/storefront-cart/api/responses"
	"github.com/angelmondragon/storefront-cart/api/validators"
	"github.com/angelmondragon/storefront-cart/internal/cartstate"
	"github.com/angelmondragon/storefront-cart/internal/notifications"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

const maxProductIDLength = 255

// Sessions resolves the cart provider for a visitor session.
type Sessions interface {
	Get(ctx context.Context, session string) (*cartstate.Provider, error)
}

// CartFetch returns the session's current cart snapshot.
func CartFetch(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, err := providerFromRequest(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(provider.Snapshot()))
	}
}

// CartFetchLatest re-reads the stored cart before answering. It serves
// deployments where several processes write the same storage, so a cached
// snapshot may trail writes made through another instance.
func CartFetchLatest(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, err := providerFromRequest(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := provider.RefreshCart(r.Context())
		responses.WriteSuccess(w, newCartView(out.Snapshot))
	}
}

// CartAddItem adds a product to the cart.
func CartAddItem(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, err := providerFromRequest(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartdto.AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			writeCommandError(r.Context(), logg, w, err, cartstate.FailureNotification(err))
			return
		}

		product, quantity := toProduct(payload)
		writeOutcome(w, r, logg, provider.AddToCart(r.Context(), product, quantity))
	}
}

// CartUpdateItem sets the quantity of a cart line.
func CartUpdateItem(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, err := providerFromRequest(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartdto.UpdateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			writeCommandError(r.Context(), logg, w, err, cartstate.FailureNotification(err))
			return
		}

		writeOutcome(w, r, logg, provider.UpdateQuantity(r.Context(), productIDParam(r), *payload.Quantity))
	}
}

// CartRemoveItem removes a cart line; removing an absent line succeeds.
func CartRemoveItem(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, err := providerFromRequest(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOutcome(w, r, logg, provider.RemoveFromCart(r.Context(), productIDParam(r)))
	}
}

// CartClear empties the cart.
func CartClear(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, err := providerFromRequest(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOutcome(w, r, logg, provider.ClearCart(r.Context()))
	}
}

// CartRefresh re-reads the stored cart, picking up writes made elsewhere.
func CartRefresh(sessions Sessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, err := providerFromRequest(r, sessions)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := provider.RefreshCart(r.Context())
		responses.WriteSuccess(w, newCartView(out.Snapshot))
	}
}

func providerFromRequest(r *http.Request, sessions Sessions) (*cartstate.Provider, error) {
	if sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart sessions unavailable")
	}
	session := middleware.CartSessionFromContext(r.Context())
	if session == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart session required")
	}
	return sessions.Get(r.Context(), session)
}

func productIDParam(r *http.Request) string {
	return validators.PathParam(chi.URLParam(r, "productId"), maxProductIDLength)
}

func writeOutcome(w http.ResponseWriter, r *http.Request, logg *logger.Logger, out cartstate.Outcome) {
	if out.Failed() {
		writeCommandError(r.Context(), logg, w, out.Err, out.Notification)
		return
	}
	responses.WriteSuccess(w, newCartMutation(out))
}

// writeCommandError keeps the original error code and message and carries
// the notification, plus any field details, in the envelope's details.
func writeCommandError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error, note notifications.Notification) {
	typed := pkgerrors.As(err)
	if typed == nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	details := map[string]any{"notification": note}
	if fields := typed.Details(); fields != nil {
		details["fields"] = fields
	}
	responses.WriteError(ctx, logg, w, pkgerrors.Wrap(typed.Code(), err, typed.Message()).WithDetails(details))
}
