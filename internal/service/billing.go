// Package service contains the business logic layer.
//
// This file implements checkout, the customer portal and webhook handling.
// Subscription state itself is never stored; the webhook only records which
// payment provider customer belongs to which account.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/DukeRupert/dentalab/internal/billing"
	"github.com/DukeRupert/dentalab/internal/catalog"
	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/DukeRupert/dentalab/internal/metrics"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

// Billing intervals accepted by checkout.
const (
	IntervalMonth = "month"
	IntervalYear  = "year"
)

// CheckoutRequest selects what to subscribe to. PriceID wins over Plan.
type CheckoutRequest struct {
	Plan     domain.PlanKey
	Interval string
	PriceID  string
}

// BillingService manages subscription purchases.
type BillingService interface {
	// CreateCheckout returns a hosted checkout URL for the account,
	// creating the payment provider customer on first use.
	CreateCheckout(ctx context.Context, account *domain.Account, req CheckoutRequest) (string, error)

	// CreatePortal returns a hosted customer portal URL.
	CreatePortal(ctx context.Context, account *domain.Account) (string, error)

	// HandleWebhook verifies and processes a payment provider event.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type billingService struct {
	billing  billing.Service
	accounts AccountService
	catalog  *catalog.Catalog
	baseURL  string
	logger   *slog.Logger
}

// NewBillingService creates a new BillingService. billingSvc may be nil,
// in which case every operation returns ENOTIMPL.
func NewBillingService(billingSvc billing.Service, accounts AccountService, plans *catalog.Catalog, baseURL string, logger *slog.Logger) BillingService {
	return &billingService{
		billing:  billingSvc,
		accounts: accounts,
		catalog:  plans,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
	}
}

func (s *billingService) CreateCheckout(ctx context.Context, account *domain.Account, req CheckoutRequest) (string, error) {
	const op = "billing.checkout"

	if s.billing == nil {
		return "", domain.Errorf(domain.ENOTIMPL, op, "Billing is not configured")
	}

	priceID, err := s.priceFor(op, req)
	if err != nil {
		return "", err
	}

	customerID, err := s.ensureCustomer(ctx, op, account)
	if err != nil {
		return "", err
	}

	url, err := s.billing.CreateCheckoutSession(ctx, billing.CheckoutParams{
		CustomerID:      customerID,
		PriceID:         priceID,
		ClientReference: account.ID.String(),
		SuccessURL:      s.baseURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:       s.baseURL + "/billing",
	})
	if err != nil {
		return "", domain.ExternalFailure(err, op, "Failed to start checkout")
	}
	return url, nil
}

func (s *billingService) CreatePortal(ctx context.Context, account *domain.Account) (string, error) {
	const op = "billing.portal"

	if s.billing == nil {
		return "", domain.Errorf(domain.ENOTIMPL, op, "Billing is not configured")
	}

	customerID, err := s.accounts.GetCustomerID(ctx, account.ID)
	if err != nil {
		return "", err
	}
	if customerID == "" {
		return "", domain.Invalid(op, "No billing account exists yet. Subscribe to a plan first.")
	}

	url, err := s.billing.CreatePortalSession(ctx, customerID, s.baseURL+"/billing")
	if err != nil {
		return "", domain.ExternalFailure(err, op, "Failed to open the billing portal")
	}
	return url, nil
}

func (s *billingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	const op = "billing.webhook"

	if s.billing == nil {
		return domain.Errorf(domain.ENOTIMPL, op, "Billing is not configured")
	}

	event, err := s.billing.VerifyWebhookSignature(payload, signature)
	if err != nil {
		return domain.Wrap(err, domain.EINVALID, op, "invalid webhook signature")
	}
	metrics.WebhookEventsTotal.WithLabelValues(string(event.Type)).Inc()

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, op, event)
	default:
		s.logger.Debug("ignoring webhook event", "type", event.Type, "event_id", event.ID)
		return nil
	}
}

func (s *billingService) handleCheckoutCompleted(ctx context.Context, op string, event stripe.Event) error {
	if event.Data == nil {
		return domain.Invalid(op, "event has no data")
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return domain.Wrap(err, domain.EINVALID, op, "malformed checkout session")
	}

	accountID, err := uuid.Parse(sess.ClientReferenceID)
	if err != nil {
		s.logger.Warn("checkout session without account reference", "session_id", sess.ID)
		return nil
	}
	if sess.Customer == nil || sess.Customer.ID == "" {
		s.logger.Warn("checkout session without customer", "session_id", sess.ID, "account_id", accountID)
		return nil
	}

	return s.accounts.SetCustomerID(ctx, accountID, sess.Customer.ID)
}

// priceFor picks the price identifier for a checkout request.
func (s *billingService) priceFor(op string, req CheckoutRequest) (string, error) {
	if req.PriceID != "" {
		if !s.catalog.HasPriceID(req.PriceID) {
			return "", domain.NewValidationError(op, "priceId", "Unknown price")
		}
		return req.PriceID, nil
	}

	if !req.Plan.Valid() || req.Plan == domain.PlanFree {
		return "", domain.NewValidationError(op, "plan", "Choose a paid plan")
	}
	plan, ok := s.catalog.Plan(req.Plan)
	if !ok || (plan.MonthlyPriceID == "" && plan.YearlyPriceID == "") {
		return "", domain.NewValidationError(op, "plan", "This plan is not available for purchase")
	}

	var priceID string
	switch req.Interval {
	case "", IntervalMonth:
		priceID = plan.MonthlyPriceID
	case IntervalYear:
		priceID = plan.YearlyPriceID
	default:
		return "", domain.NewValidationError(op, "interval", "Interval must be month or year")
	}
	if priceID == "" {
		return "", domain.NewValidationError(op, "interval", "This billing interval is not available for this plan")
	}
	return priceID, nil
}

func (s *billingService) ensureCustomer(ctx context.Context, op string, account *domain.Account) (string, error) {
	customerID, err := s.accounts.GetCustomerID(ctx, account.ID)
	if err != nil {
		return "", err
	}
	if customerID != "" {
		return customerID, nil
	}

	customerID, err = s.billing.CreateCustomer(ctx, account.Email, account.Name)
	if err != nil {
		return "", domain.ExternalFailure(err, op, "Failed to create billing account")
	}
	if err := s.accounts.SetCustomerID(ctx, account.ID, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}
