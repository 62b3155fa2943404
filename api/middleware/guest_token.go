package middleware

import (
	"net/http"
	"strings"

	"github.com/distribuida/libreria-backend/api/responses"
	pkgerrors "github.com/distribuida/libreria-backend/pkg/errors"
	"github.com/distribuida/libreria-backend/pkg/logger"
)

const guestTokenParam = "token"

// GuestToken requires the guest cart token query parameter and attaches it
// to the request context for handlers and idempotency scoping.
func GuestToken(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.URL.Query().Get(guestTokenParam))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart token is required"))
				return
			}

			ctx := WithCartToken(r.Context(), token)
			if logg != nil {
				ctx = logg.WithCartToken(ctx, token)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
