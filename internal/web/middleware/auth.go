package middleware

import (
	"net/http"

	"github.com/producthub/producthub/internal/auth"
)

// WithSession makes sure every request carries a browser session id and
// stores it in the request context. The id keys the pending submission.
func WithSession(sessionManager *auth.SessionManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := sessionManager.SessionID(w, r)
			if err != nil {
				http.Error(w, "Failed to establish session", http.StatusInternalServerError)
				return
			}

			ctx := auth.SetSessionIDInContext(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
