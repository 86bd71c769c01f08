// Package handler contains the HTTP handlers for the JSON API.
//
// This file implements the read-only plan and usage endpoints.
//
// Routes handled:
//   - GET /api/subscription        -> GetSubscription
//   - GET /api/usage               -> GetUsage
//   - GET /api/entitlements/{kind} -> CheckEntitlement
package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/dentalab/internal/auth"
	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/DukeRupert/dentalab/internal/service"
)

// UsageHandler serves subscription, usage and entitlement queries.
type UsageHandler struct {
	subscriptions service.SubscriptionService
	entitlements  service.EntitlementService
	logger        *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(subscriptions service.SubscriptionService, entitlements service.EntitlementService, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{
		subscriptions: subscriptions,
		entitlements:  entitlements,
		logger:        logger,
	}
}

// RegisterRoutes registers usage routes on the provided mux.
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux, requireAccount func(http.Handler) http.Handler) {
	mux.Handle("GET /api/subscription", requireAccount(http.HandlerFunc(h.GetSubscription)))
	mux.Handle("GET /api/usage", requireAccount(http.HandlerFunc(h.GetUsage)))
	mux.Handle("GET /api/entitlements/{kind}", requireAccount(http.HandlerFunc(h.CheckEntitlement)))
}

// GetSubscription reports the account's subscription and resolved plan.
func (h *UsageHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	res := h.subscriptions.GetSubscriptionStatus(r.Context(), account.ID)
	writeJSON(w, http.StatusOK, toSubscriptionResponse(res))
}

// GetUsage reports the account's usage for the current month.
func (h *UsageHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	summary, err := h.entitlements.Summary(r.Context(), account.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUsageResponse(summary))
}

// CheckEntitlement evaluates the gate for one resource kind without
// performing any action.
func (h *UsageHandler) CheckEntitlement(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	kind, err := domain.ParseResourceKind(r.PathValue("kind"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("entitlement.check", err.Error()))
		return
	}

	decision, err := h.entitlements.CheckAndReserve(r.Context(), account.ID, kind)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toDecisionResponse(decision))
}
