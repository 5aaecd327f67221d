package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// AuthKeys are the accepted bearer tokens. ReadOnly keys may only issue
// GET and HEAD requests, which is enough for a storefront that reads
// sessions and query params but must not change them.
type AuthKeys struct {
	ReadWrite []string
	ReadOnly  []string
}

// BearerAuthMiddleware returns a middleware that validates Bearer tokens.
// With no keys at all, authentication is disabled (pass-through).
func BearerAuthMiddleware(keys AuthKeys) func(http.Handler) http.Handler {
	rw := nonEmptyKeys(keys.ReadWrite)
	ro := nonEmptyKeys(keys.ReadOnly)

	return func(next http.Handler) http.Handler {
		if len(rw) == 0 && len(ro) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, ErrorResponseCodeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized,
					ErrorResponseCodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}
			token := []byte(auth[len(bearerPrefix):])

			switch {
			case validKey(rw, token):
			case validKey(ro, token):
				if r.Method != http.MethodGet && r.Method != http.MethodHead {
					writeError(w, http.StatusForbidden, ErrorResponseCodeForbidden, "api key is read-only")
					return
				}
			default:
				w.Header().Set("WWW-Authenticate", `Bearer realm="refine"`)
				writeError(w, http.StatusUnauthorized, ErrorResponseCodeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func nonEmptyKeys(in []string) [][]byte {
	out := make([][]byte, 0, len(in))
	for _, k := range in {
		if k != "" {
			out = append(out, []byte(k))
		}
	}
	return out
}

// validKey compares token against every key in constant time.
func validKey(keys [][]byte, token []byte) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, token)
	}
	return found == 1
}
