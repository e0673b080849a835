package app

import (
	"context"
	"strings"

	"github.com/DaniBoe/fake-checker/auth"
)

// EnsureAccountFromClaims creates an account row for a verified caller if
// one does not already exist.
func (a *API) EnsureAccountFromClaims(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.Subject == "" {
		return nil
	}
	return a.store.EnsureAccount(ctx, claims.Subject, readStringClaim(claims.Raw, "email"))
}

func readStringClaim(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	if s, ok := raw[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
