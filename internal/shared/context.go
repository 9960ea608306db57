package shared

import (
	"context"

	"github.com/google/uuid"
)

type accountContextKey struct{}

// ContextWithAccount stores the authenticated account id in context.
func ContextWithAccount(ctx context.Context, accountID uuid.UUID) context.Context {
	return context.WithValue(ctx, accountContextKey{}, accountID)
}

// AccountFromContext extracts the authenticated account id from context.
func AccountFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountContextKey{}).(uuid.UUID)
	return id, ok
}
