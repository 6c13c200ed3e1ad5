package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/teilomillet/reprompt/errors"
)

// Authentication returns middleware requiring one of keys in the X-API-Key
// header. With no keys configured every request passes, which suits the
// default loopback-only deployment.
func Authentication(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())
			apiKey := r.Header.Get(APIKeyHeader)
			if apiKey == "" {
				errors.WriteError(w, errors.NewAuthError(requestID, "Missing API key", nil))
				return
			}
			if !validKey(keys, apiKey) {
				errors.WriteError(w, errors.NewAuthError(requestID, "Invalid API key", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validKey(keys []string, candidate string) bool {
	ok := false
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(candidate)) == 1 {
			ok = true
		}
	}
	return ok
}
