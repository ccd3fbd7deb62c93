package middleware

import (
	"errors"
	"net/http"
)

// MaxBytesMiddleware creates middleware that limits request body size.
// A non-positive limit disables it.
func MaxBytesMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BodyTooLarge reports whether the request body already ran into the limit
// set by MaxBytesMiddleware. The limited reader keeps returning its error
// after the first overflow, so this works after the body was consumed.
func BodyTooLarge(r *http.Request) (*http.MaxBytesError, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false
	}
	_, err := r.Body.Read(make([]byte, 1))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return tooLarge, true
	}
	return nil, false
}
