package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/taskforge/taskify/internal/api"
	"github.com/taskforge/taskify/internal/auth"
	"github.com/taskforge/taskify/internal/models"
	"github.com/taskforge/taskify/internal/store"
)

// UserResolver resolves a token subject to a user record.
type UserResolver interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// extractToken pulls the bearer token from the Authorization header,
// falling back to the http-only cookie.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(auth.TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth validates the bearer token, resolves the user and injects it
// into the request context. Requests without a valid identity are rejected.
func RequireAuth(tokens *auth.TokenService, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				api.WriteError(w, api.NewError(http.StatusUnauthorized, api.CodeNoToken, "Access token required"))
				return
			}

			userID, err := tokens.Verify(token)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					api.WriteError(w, api.NewError(http.StatusUnauthorized, api.CodeTokenExpired, "Token expired"))
					return
				}
				api.WriteError(w, api.NewError(http.StatusUnauthorized, api.CodeInvalidToken, "Invalid token"))
				return
			}

			user, err := users.GetUserByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					api.WriteError(w, api.NewError(http.StatusUnauthorized, api.CodeInvalidUser, "Invalid token - user not found"))
					return
				}
				api.WriteServerError(w, "Server error during authentication", err, false)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
		})
	}
}

// OptionalAuth attaches the user when a valid token is presented, and
// continues anonymously on any failure.
func OptionalAuth(tokens *auth.TokenService, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := tokens.Verify(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			user, err := users.GetUserByID(r.Context(), userID)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin rejects requests whose attached user is not an admin. Must
// run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFrom(r.Context())
		if user == nil || user.Role != models.RoleAdmin {
			api.WriteError(w, api.NewError(http.StatusForbidden, api.CodeForbidden, "Admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
