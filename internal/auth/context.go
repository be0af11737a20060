package auth

import (
	"context"

	"github.com/haasonsaas/mnemos/pkg/models"
)

type userContextKey struct{}

// WithUser attaches the resolved owner to the request context; handlers
// read it back to scope agent lookups.
func WithUser(ctx context.Context, user *models.User) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the resolved owner, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(*models.User)
	return user, ok
}
