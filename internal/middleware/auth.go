// Package middleware contains HTTP middleware for the Tildra API.
//
// Middleware functions follow the standard Go pattern of wrapping
// http.Handler and are composed into a stack in main.
package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tildra/tildra/internal/identity"
)

// =============================================================================
// Context Keys
// =============================================================================

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const clerkIDContextKey contextKey = "clerk_id"

// GetClerkID retrieves the authenticated Clerk user id from the request
// context. Returns the empty string if the request is unauthenticated.
func GetClerkID(ctx context.Context) string {
	id, _ := ctx.Value(clerkIDContextKey).(string)
	return id
}

// setClerkID stores the authenticated Clerk user id in the request context.
func setClerkID(ctx context.Context, clerkID string) context.Context {
	return context.WithValue(ctx, clerkIDContextKey, clerkID)
}

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware authenticates requests by verifying the Bearer token
// against the identity provider's signing keys.
type AuthMiddleware struct {
	verifier *identity.Verifier
	logger   *slog.Logger
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(verifier *identity.Verifier, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logger:   logger,
	}
}

// RequireAuth returns middleware that rejects requests without a valid
// Bearer token. On success the Clerk user id is stored in the request
// context for handlers to read with GetClerkID.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeAuthError(w, "missing bearer token")
			return
		}

		clerkID, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			m.logger.Info("Rejected invalid bearer token", "path", r.URL.Path, "error", err)
			writeAuthError(w, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(setClerkID(r.Context(), clerkID)))
	})
}

// Stack composes middlewares so the first argument is the outermost.
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return auth[len(prefix):], true
}

// writeAuthError writes a JSON 401 response.
func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
