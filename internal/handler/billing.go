// Package handler contains the HTTP handlers for the JSON API.
//
// This file implements billing handlers backed by Stripe.
//
// Routes handled:
//   - POST /api/billing/checkout -> CreateCheckout
//   - POST /api/billing/portal   -> OpenPortal
//   - POST /webhooks/stripe      -> HandleStripeWebhook (public)
package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/dentalab/internal/auth"
	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/DukeRupert/dentalab/internal/service"
)

// maxWebhookBytes bounds webhook payloads.
const maxWebhookBytes = 65536

// BillingHandler handles subscription purchase requests and provider webhooks.
type BillingHandler struct {
	billing service.BillingService
	logger  *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billing service.BillingService, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing: billing,
		logger:  logger,
	}
}

// RegisterRoutes registers billing routes on the provided mux. The webhook
// route is public; its payload is authenticated by signature.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, requireAccount func(http.Handler) http.Handler) {
	mux.Handle("POST /api/billing/checkout", requireAccount(http.HandlerFunc(h.CreateCheckout)))
	mux.Handle("POST /api/billing/portal", requireAccount(http.HandlerFunc(h.OpenPortal)))
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

type checkoutRequest struct {
	Plan     string `json:"plan"`
	Interval string `json:"interval"`
	PriceID  string `json:"priceId"`
}

// CreateCheckout returns a hosted checkout URL.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	const op = "handler.checkout"

	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req checkoutRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	url, err := h.billing.CreateCheckout(r.Context(), account, service.CheckoutRequest{
		Plan:     domain.PlanKey(req.Plan),
		Interval: req.Interval,
		PriceID:  req.PriceID,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, RedirectResponse{URL: url})
}

// OpenPortal returns a hosted customer portal URL.
func (h *BillingHandler) OpenPortal(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	url, err := h.billing.CreatePortal(r.Context(), account)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, RedirectResponse{URL: url})
}

// HandleStripeWebhook verifies and processes a Stripe event.
func (h *BillingHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.billing.HandleWebhook(r.Context(), body, r.Header.Get("Stripe-Signature")); err != nil {
		if domain.ErrorCode(err) == domain.ENOTIMPL {
			// Acknowledge so Stripe stops retrying against an unconfigured deployment.
			h.logger.Warn("stripe webhook received but billing is not configured")
			w.WriteHeader(http.StatusOK)
			return
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
