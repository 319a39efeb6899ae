package httpserver

import (
	"context"
	"net/http"
	"strings"

	"chatcore/internal/security"
	"chatcore/internal/service"
)

type contextKey string

const userContextKey contextKey = "currentUserID"

// WithUserID returns a new context carrying the authenticated caller's ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

// CurrentUserID extracts the authenticated caller's ID from context, empty
// if none is set.
func CurrentUserID(r *http.Request) string {
	if v := r.Context().Value(userContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// AuthMiddleware verifies the bearer token and attaches the caller's user ID
// to the request context. It never looks up a local password — verification
// only, since identity is owned by an external provider.
func AuthMiddleware(verifier *security.TokenVerifier, users *service.UserDirectoryService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			userID, err := verifier.Verify(extractBearer(authHeader))
			if err != nil {
				writeError(w, err)
				return
			}
			if err := users.Touch(r.Context(), userID); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func extractBearer(authHeader string) string {
	authHeader = strings.TrimSpace(authHeader)
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[len("bearer "):])
	}
	return ""
}
