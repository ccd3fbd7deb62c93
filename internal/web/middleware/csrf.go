package middleware

import (
	"net/http"

	"github.com/gorilla/csrf"
)

// CSRFProtection creates a CSRF protection middleware using gorilla/csrf.
// When the page is served over plain HTTP requests are marked as such so
// the referer check does not reject them. A nil onFailure uses
// CSRFFailureHandler.
func CSRFProtection(secret []byte, secure bool, fieldName string, onFailure http.Handler) func(http.Handler) http.Handler {
	if fieldName == "" {
		fieldName = "csrf_token"
	}
	if onFailure == nil {
		onFailure = http.HandlerFunc(CSRFFailureHandler)
	}

	csrfMiddleware := csrf.Protect(
		secret,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.FieldName(fieldName),
		csrf.ErrorHandler(onFailure),
	)

	return func(next http.Handler) http.Handler {
		protected := csrfMiddleware(next)
		if secure {
			return protected
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			protected.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

// CSRFFailureHandler renders a plain error for rejected form posts
func CSRFFailureHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "CSRF token validation failed. Please refresh the page and try again.", http.StatusForbidden)
}
