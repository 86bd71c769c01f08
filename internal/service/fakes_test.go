package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/dentalab/internal/billing"
	"github.com/DukeRupert/dentalab/internal/catalog"
	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalog() *catalog.Catalog {
	c, err := catalog.Default(catalog.DefaultPriceIDs{
		BasicMonthly:        "price_basic_m",
		BasicYearly:         "price_basic_y",
		ProfessionalMonthly: "price_pro_m",
		PremiumYearly:       "price_premium_y",
	})
	if err != nil {
		panic(err)
	}
	return c
}

// =============================================================================
// Usage counter
// =============================================================================

type fakeCounter struct {
	mu       sync.Mutex
	counts   map[domain.UsageKey]int64
	getErr   error
	incErr   error
	gets     int
	incs     int
	lastIncr domain.UsageKey
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[domain.UsageKey]int64)}
}

func (c *fakeCounter) Get(ctx context.Context, key domain.UsageKey) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return 0, c.getErr
	}
	return c.counts[key], nil
}

func (c *fakeCounter) Increment(ctx context.Context, key domain.UsageKey) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incs++
	c.lastIncr = key
	if c.incErr != nil {
		return 0, c.incErr
	}
	c.counts[key]++
	return c.counts[key], nil
}

func (c *fakeCounter) set(key domain.UsageKey, n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key] = n
}

func (c *fakeCounter) value(key domain.UsageKey) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

// =============================================================================
// Subscriptions
// =============================================================================

type fixedSubscriptions struct {
	result domain.SubscriptionResult
	calls  int
}

func (f *fixedSubscriptions) GetSubscriptionStatus(ctx context.Context, accountID uuid.UUID) domain.SubscriptionResult {
	f.calls++
	r := f.result
	r.Record.AccountID = accountID
	return r
}

func onPlan(key domain.PlanKey) *fixedSubscriptions {
	p, ok := testCatalog().Plan(key)
	if !ok {
		panic("unknown plan " + string(key))
	}
	return &fixedSubscriptions{result: domain.Ok(domain.SubscriptionRecord{Subscribed: key != domain.PlanFree}, p)}
}

// =============================================================================
// Accounts
// =============================================================================

type fakeAccounts struct {
	mu        sync.Mutex
	customers map[uuid.UUID]string
	err       error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{customers: make(map[uuid.UUID]string)}
}

func (a *fakeAccounts) Ensure(ctx context.Context, p domain.EnsureAccountParams) (*domain.Account, error) {
	return &domain.Account{ID: p.ID, Email: p.Email, Name: p.Name}, nil
}

func (a *fakeAccounts) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return &domain.Account{ID: id, StripeCustomerID: a.customers[id]}, nil
}

func (a *fakeAccounts) GetCustomerID(ctx context.Context, id uuid.UUID) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	return a.customers[id], nil
}

func (a *fakeAccounts) SetCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.customers[id] = customerID
	return nil
}

func (a *fakeAccounts) GetByCustomerID(ctx context.Context, customerID string) (*domain.Account, error) {
	for id, c := range a.customers {
		if c == customerID {
			return &domain.Account{ID: id, StripeCustomerID: c}, nil
		}
	}
	return nil, domain.NotFound("test", "account", customerID)
}

// =============================================================================
// Billing provider
// =============================================================================

type fakeBilling struct {
	sub       *billing.Subscription
	lookupErr error
	lookups   int

	createdCustomers int
	checkout         billing.CheckoutParams
	portalCustomer   string

	event    stripe.Event
	eventErr error
}

func (b *fakeBilling) LookupSubscription(ctx context.Context, customerID string) (*billing.Subscription, error) {
	b.lookups++
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("lookup called without a deadline")
	}
	return b.sub, b.lookupErr
}

func (b *fakeBilling) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	b.createdCustomers++
	return "cus_new", nil
}

func (b *fakeBilling) CreateCheckoutSession(ctx context.Context, p billing.CheckoutParams) (string, error) {
	b.checkout = p
	return "https://checkout.example/" + p.PriceID, nil
}

func (b *fakeBilling) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	b.portalCustomer = customerID
	return "https://portal.example/" + customerID, nil
}

func (b *fakeBilling) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	return b.event, b.eventErr
}

// =============================================================================
// Storage
// =============================================================================

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  map[string]error
	urlErr  error
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte), putErr: make(map[string]error)}
}

func (s *fakeStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for prefix, err := range s.putErr {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			return err
		}
	}
	s.objects[key] = data
	return nil
}

func (s *fakeStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if s.urlErr != nil {
		return "", s.urlErr
	}
	return "https://files.example/" + key, nil
}
