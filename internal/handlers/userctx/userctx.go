package userctx

import (
	"context"

	"github.com/nkiryanov/todo/internal/models"
)

// Unexported key type, so no other package can overwrite the principal
type principalKey struct{}

// New returns context carrying the authenticated user
func New(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, principalKey{}, u)
}

// FromContext returns the authenticated user if the request passed auth middleware
func FromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(principalKey{}).(models.User)
	return u, ok
}
