package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/distribuida/libreria-backend/pkg/logger"
)

// CustomerScope attaches the customer id path parameter to the log context.
// Validation of the id stays with the handlers.
func CustomerScope(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logg != nil {
				if id := chi.URLParam(r, "customerID"); id != "" {
					r = r.WithContext(logg.WithCustomerID(r.Context(), id))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
