// Package billing provides Stripe billing integration for subscription management.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Subscription is the slice of a Stripe subscription the metering core
// needs: which price the customer pays for and until when.
type Subscription struct {
	ID        string
	PriceID   string
	Status    string
	PeriodEnd time.Time
}

// Service defines the interface for billing operations.
type Service interface {
	// LookupSubscription returns the customer's newest active or trialing
	// subscription, or nil when the customer has none.
	LookupSubscription(ctx context.Context, customerID string) (*Subscription, error)

	// CreateCustomer creates a new Stripe customer for the given email.
	CreateCustomer(ctx context.Context, email, name string) (string, error)

	// CreateCheckoutSession creates a Stripe Checkout session for subscribing.
	// ClientReference is echoed back in the checkout.session.completed event.
	// Returns the checkout URL to redirect the user to.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)

	// CreatePortalSession creates a Stripe Customer Portal session.
	// Returns the portal URL to redirect the user to.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)
}

// CheckoutParams describes a subscription checkout.
type CheckoutParams struct {
	CustomerID      string
	PriceID         string
	ClientReference string
	SuccessURL      string
	CancelURL       string
}

// Config configures the Stripe client.
type Config struct {
	SecretKey     string
	WebhookSecret string

	// APIURL overrides the Stripe API endpoint. Used by tests.
	APIURL string
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	api           *client.API
	webhookSecret string
}

// NewStripeService creates a new Stripe billing service.
//
// The secret key authenticates Stripe API calls and the webhook secret
// verifies incoming webhook signatures. Each service owns its client so
// nothing is written to the stripe package globals.
func NewStripeService(cfg Config) Service {
	backendCfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	return &stripeService{
		api: client.New(cfg.SecretKey, &stripe.Backends{
			API:     backend,
			Connect: backend,
			Uploads: backend,
		}),
		webhookSecret: cfg.WebhookSecret,
	}
}

func (s *stripeService) LookupSubscription(ctx context.Context, customerID string) (*Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(10)

	var newest *stripe.Subscription
	iter := s.api.Subscriptions.List(params)
	for iter.Next() {
		sub := iter.Subscription()
		if !isEntitling(sub.Status) {
			continue
		}
		if newest == nil || sub.Created > newest.Created {
			newest = sub
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe list subscriptions: %w", err)
	}
	if newest == nil {
		return nil, nil
	}

	out := &Subscription{
		ID:        newest.ID,
		Status:    string(newest.Status),
		PeriodEnd: time.Unix(newest.CurrentPeriodEnd, 0).UTC(),
	}
	if newest.Items != nil && len(newest.Items.Data) > 0 && newest.Items.Data[0].Price != nil {
		out.PriceID = newest.Items.Data[0].Price.ID
	}
	return out, nil
}

// isEntitling reports whether a subscription in status grants paid limits.
func isEntitling(status stripe.SubscriptionStatus) bool {
	return status == stripe.SubscriptionStatusActive || status == stripe.SubscriptionStatusTrialing
}

func (s *stripeService) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	params.Context = ctx

	c, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

func (s *stripeService) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(p.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	if p.ClientReference != "" {
		params.ClientReferenceID = stripe.String(p.ClientReference)
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create portal session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}
