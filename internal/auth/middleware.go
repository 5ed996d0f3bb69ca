package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const claimsKey contextKey = "claims"

// Middleware rejects requests without a valid bearer token and stores the
// claims in the request context.
func (t *Tokens) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing authorization header"})
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || scheme != "Bearer" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid authorization format"})
			return
		}

		claims, err := t.Validate(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// AdminOnly is Middleware restricted to admin tokens. Design session
// tokens are refused with 403.
func (t *Tokens) AdminOnly(next http.Handler) http.Handler {
	return t.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := ClaimsFromContext(r.Context()); c == nil || !c.IsAdmin() {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin token required"})
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the session claims, or nil outside Middleware.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}
