package auth

import (
	"context"

	"github.com/google/uuid"
)

type principalKey struct{}

type Principal struct {
	UserID  uuid.UUID
	IsAdmin bool
}

func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
