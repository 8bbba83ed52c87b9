package auth

import (
	"context"

	"github.com/taskforge/taskify/internal/models"
)

type ctxKey int

const userKey ctxKey = iota

// WithUser attaches the resolved user to the request context.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFrom returns the authenticated user attached to the request context,
// or nil for anonymous requests.
func UserFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}
