// Package middleware contains HTTP middleware for the dental lab API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/dentalab/internal/auth"
	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/DukeRupert/dentalab/internal/handler"
	"github.com/DukeRupert/dentalab/internal/service"
)

// TokenVerifier validates a session token issued by the managed auth service.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AuthMiddleware authenticates API requests by bearer token.
type AuthMiddleware struct {
	verifier TokenVerifier
	accounts service.AccountService
	logger   *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware.
func NewAuthMiddleware(verifier TokenVerifier, accounts service.AccountService, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		accounts: accounts,
		logger:   logger,
	}
}

// RequireAccount rejects requests without a valid session with 401.
//
// On success the account row is created or refreshed from the token claims
// and stored in the request context; see auth.GetAccount.
func (m *AuthMiddleware) RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		if !ok {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			m.logger.Info("session token rejected", "error", err, "path", r.URL.Path)
			handler.ErrorResponse(w, r, m.logger, domain.Unauthorized("auth.verify", "Invalid or expired session"))
			return
		}

		account, err := m.accounts.Ensure(r.Context(), domain.EnsureAccountParams{
			ID:    claims.AccountID,
			Email: claims.Email,
			Name:  claims.Name,
		})
		if err != nil {
			handler.ErrorResponse(w, r, m.logger, err)
			return
		}

		recordAccount(r.Context(), account.ID.String())

		ctx := auth.SetAccount(r.Context(), account)
		ctx = auth.WithClaims(ctx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(rateLimit.Limit, authMw.RequireAccount)
//	mux.Handle("POST /api/images", stack(imagesHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

var _ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireAccount
