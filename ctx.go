package gateway

import (
	"context"

	"github.com/goliatone/go-router"
)

var principalCtxKey = &contextKey{"principal"}
var tokenCtxKey = &contextKey{"access_token"}

type contextKey struct {
	name string
}

const (
	principalLocalsKey = "gateway.principal"
	tokenLocalsKey     = "gateway.access_token"
	payloadLocalsKey   = "gateway.payload"
)

// WithPrincipal sets the Principal in the given context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext finds the principal in the context
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	raw, ok := ctx.Value(principalCtxKey).(*Principal)
	return raw, ok && raw != nil
}

// WithAccessToken sets the caller's bearer token in the given context
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenCtxKey, token)
}

// AccessTokenFromContext returns the caller's bearer token
func AccessTokenFromContext(ctx context.Context) (string, bool) {
	raw, ok := ctx.Value(tokenCtxKey).(string)
	return raw, ok && raw != ""
}

// GetPrincipal returns the principal attached by RequireAuth
func GetPrincipal(ctx router.Context) (*Principal, bool) {
	raw, ok := ctx.Get(principalLocalsKey, nil).(*Principal)
	return raw, ok && raw != nil
}

// AccessToken returns the bearer token accepted by RequireAuth
func AccessToken(ctx router.Context) (string, bool) {
	raw := ctx.GetString(tokenLocalsKey, "")
	return raw, raw != ""
}

func setPrincipal(ctx router.Context, p *Principal, token string) {
	ctx.Set(principalLocalsKey, p)
	ctx.Set(tokenLocalsKey, token)

	c := WithPrincipal(ctx.Context(), p)
	c = WithAccessToken(c, token)
	ctx.SetContext(c)
}
