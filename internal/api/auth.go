package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ayesh20/Clinic-backend/internal/auth"
)

const principalKey contextKey = "principal"

// AuthMiddleware resolves the bearer token into a Principal and stores it
// in the request context. Requests without a valid token are rejected;
// routes that allow anonymous access are mounted outside this middleware.
func AuthMiddleware(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "missing_token", "Authorization: Bearer <token> header required")
				return
			}

			principal, err := verifier.Verify(token)
			if err != nil {
				if errors.Is(err, auth.ErrNoToken) {
					writeError(w, http.StatusUnauthorized, "missing_token", err.Error())
					return
				}
				writeError(w, http.StatusUnauthorized, "invalid_token", err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole guards a route subtree to the given roles. Must be mounted
// inside AuthMiddleware.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing_token", "authentication required")
				return
			}
			for _, role := range roles {
				if principal.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
		})
	}
}

// PrincipalFrom retrieves the authenticated principal from context.
func PrincipalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(auth.Principal)
	return p, ok
}
