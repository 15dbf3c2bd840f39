package auth

import (
	"context"

	"github.com/spotshare/spotshare/internal/store"
)

type contextKey string

const contextKeyPrincipal contextKey = "principal"

func WithPrincipal(ctx context.Context, p *store.Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, p)
}

func PrincipalFromContext(ctx context.Context) (*store.Principal, bool) {
	p, ok := ctx.Value(contextKeyPrincipal).(*store.Principal)
	return p, ok
}
