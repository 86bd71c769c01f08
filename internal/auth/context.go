// Package auth verifies session tokens issued by the managed auth service
// and carries the authenticated account through request contexts.
//
// This package is imported by both middleware and handler packages without
// causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/DukeRupert/dentalab/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	accountContextKey contextKey = "account"
	claimsContextKey  contextKey = "claims"
)

// GetAccount retrieves the authenticated account from the context.
//
// Returns nil if no account is authenticated.
//
// Usage:
//
//	account := auth.GetAccount(r.Context())
//	if account == nil {
//	    // Handle unauthenticated request
//	}
func GetAccount(ctx context.Context) *domain.Account {
	account, ok := ctx.Value(accountContextKey).(*domain.Account)
	if !ok {
		return nil
	}
	return account
}

// GetAccountFromRequest is GetAccount for a request.
func GetAccountFromRequest(r *http.Request) *domain.Account {
	return GetAccount(r.Context())
}

// SetAccount stores an account in the context. Called by the auth
// middleware after the session token is verified.
func SetAccount(ctx context.Context, account *domain.Account) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}

// WithClaims stores verified claims in a context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the verified claims, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}
