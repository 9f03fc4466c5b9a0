package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

const (
	maxSessionLength = 128
	sessionCookieAge = 365 * 24 * time.Hour
)

// SessionOptions names where the cart session travels.
type SessionOptions struct {
	Header       string
	Cookie       string
	SecureCookie bool
}

// CartSession resolves the visitor's cart session from the header, then the
// cookie, minting a new one when neither carries a usable value. The session
// is echoed in both so clients can pick either.
func CartSession(opts SessionOptions, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, supplied := sessionFromRequest(r, opts)
			ctx := r.Context()
			if !validSession(session) {
				if supplied && logg != nil {
					logg.Warn(logg.WithField(ctx, "supplied_length", len(session)), "session.rejected")
				}
				session = uuid.NewString()
			}

			if opts.Header != "" {
				w.Header().Set(opts.Header, session)
			}
			if opts.Cookie != "" {
				http.SetCookie(w, &http.Cookie{
					Name:     opts.Cookie,
					Value:    session,
					Path:     "/",
					MaxAge:   int(sessionCookieAge.Seconds()),
					HttpOnly: true,
					Secure:   opts.SecureCookie,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx = WithCartSession(ctx, session)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, session)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFromRequest(r *http.Request, opts SessionOptions) (string, bool) {
	if opts.Header != "" {
		if v := strings.TrimSpace(r.Header.Get(opts.Header)); v != "" {
			return v, true
		}
	}
	if opts.Cookie != "" {
		if c, err := r.Cookie(opts.Cookie); err == nil {
			if v := strings.TrimSpace(c.Value); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// validSession accepts opaque ids made of letters, digits, '-' and '_'.
func validSession(s string) bool {
	if s == "" || len(s) > maxSessionLength {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
