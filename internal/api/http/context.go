package http

import (
	"context"

	"peer-rental-core/internal/security"
)

type contextKey string

const (
	claimsKey contextKey = "claims"
	tokenKey  contextKey = "raw-token"
)

func withCaller(ctx context.Context, claims *security.UserClaims, token string) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	return context.WithValue(ctx, tokenKey, token)
}

// CallerEmail returns the authenticated caller's email injected by the auth
// middleware.
func CallerEmail(ctx context.Context) (string, bool) {
	claims, ok := ctx.Value(claimsKey).(*security.UserClaims)
	if !ok || claims.Email == "" {
		return "", false
	}
	return claims.Email, true
}

func rawToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}
