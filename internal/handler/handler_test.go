package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DukeRupert/dentalab/internal/auth"
	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/DukeRupert/dentalab/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeSubscriptions struct{ result domain.SubscriptionResult }

func (f *fakeSubscriptions) GetSubscriptionStatus(ctx context.Context, accountID uuid.UUID) domain.SubscriptionResult {
	return f.result
}

type fakeEntitlements struct {
	decision domain.GateDecision
	summary  *domain.UsageSummary
	err      error
}

func (f *fakeEntitlements) CheckAndReserve(ctx context.Context, accountID uuid.UUID, kind domain.ResourceKind) (domain.GateDecision, error) {
	d := f.decision
	d.Kind = kind
	return d, f.err
}

func (f *fakeEntitlements) CheckAndReserveAt(ctx context.Context, accountID uuid.UUID, kind domain.ResourceKind, month domain.YearMonth) (domain.GateDecision, error) {
	return f.CheckAndReserve(ctx, accountID, kind)
}

func (f *fakeEntitlements) Summary(ctx context.Context, accountID uuid.UUID) (*domain.UsageSummary, error) {
	return f.summary, f.err
}

type fakeImages struct {
	got domain.ImageRequest
	out *domain.GeneratedImage
	err error
}

func (f *fakeImages) Generate(ctx context.Context, accountID uuid.UUID, req domain.ImageRequest) (*domain.GeneratedImage, error) {
	f.got = req
	return f.out, f.err
}

type fakeDocuments struct {
	got *domain.InvoiceData
	out *domain.GeneratedDocument
	err error
}

func (f *fakeDocuments) GenerateInvoice(ctx context.Context, accountID uuid.UUID, data *domain.InvoiceData) (*domain.GeneratedDocument, error) {
	f.got = data
	return f.out, f.err
}

type fakeBillingService struct {
	checkout   service.CheckoutRequest
	webhookErr error
	webhooks   int
}

func (f *fakeBillingService) CreateCheckout(ctx context.Context, account *domain.Account, req service.CheckoutRequest) (string, error) {
	f.checkout = req
	return "https://checkout.example/1", nil
}

func (f *fakeBillingService) CreatePortal(ctx context.Context, account *domain.Account) (string, error) {
	return "https://portal.example/1", nil
}

func (f *fakeBillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	f.webhooks++
	return f.webhookErr
}

// =============================================================================
// Helpers
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testAccount = &domain.Account{ID: uuid.MustParse("6f1c1f9e-3c1a-4b7e-9a5e-1d2c3b4a5f60"), Email: "lab@example.com"}

// requireTestAccount stands in for the auth middleware.
func requireTestAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(auth.SetAccount(r.Context(), testAccount)))
	})
}

func noAccount(next http.Handler) http.Handler { return next }

func do(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func int64p(v int64) *int64 { return &v }

// =============================================================================
// Error mapping
// =============================================================================

func TestErrorCodeToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ErrorCodeToHTTPStatus(domain.EINVALID))
	assert.Equal(t, http.StatusUnauthorized, ErrorCodeToHTTPStatus(domain.EUNAUTHORIZED))
	assert.Equal(t, http.StatusPaymentRequired, ErrorCodeToHTTPStatus(domain.ELIMIT))
	assert.Equal(t, http.StatusBadGateway, ErrorCodeToHTTPStatus(domain.EEXTERNAL))
	assert.Equal(t, http.StatusNotImplemented, ErrorCodeToHTTPStatus(domain.ENOTIMPL))
	assert.Equal(t, http.StatusInternalServerError, ErrorCodeToHTTPStatus("unknown"))
}

func TestErrorResponse_LimitReached(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/images", nil)

	ErrorResponse(rec, req, testLogger(), domain.LimitReached("metering.perform", domain.ResourceImage, domain.PlanBasic, 70, 70))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	body := decodeBody(t, rec)["error"].(map[string]any)
	assert.Equal(t, domain.ELIMIT, body["code"])
	assert.Equal(t, domain.ReasonLimitReached, body["reason"])
	assert.Equal(t, float64(70), body["usage"])
	assert.Equal(t, float64(70), body["limit"])
	assert.Equal(t, "basic", body["plan"])
}

func TestErrorResponse_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/usage", nil)

	ErrorResponse(rec, req, testLogger(), domain.Internal(errors.New("pq: password authentication failed"), "usage.get", "failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "usage.get")
}

func TestErrorResponse_ValidationFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/images", nil)

	ErrorResponse(rec, req, testLogger(), domain.NewValidationError("image.generate", "prompt", "Prompt is required"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)["error"].(map[string]any)
	assert.Equal(t, "Prompt is required", body["fields"].(map[string]any)["prompt"])
	assert.NotContains(t, rec.Body.String(), "image.generate")
}

// =============================================================================
// Usage endpoints
// =============================================================================

func TestGetSubscription(t *testing.T) {
	periodEnd := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	subs := &fakeSubscriptions{result: domain.Ok(domain.SubscriptionRecord{
		Subscribed:    true,
		ActivePriceID: "price_basic_m",
		PeriodEnd:     &periodEnd,
	}, domain.Plan{Key: domain.PlanBasic, Features: []string{"invoices"}})}

	mux := http.NewServeMux()
	NewUsageHandler(subs, &fakeEntitlements{}, testLogger()).RegisterRoutes(mux, requireTestAccount)

	rec := do(t, mux, http.MethodGet, "/api/subscription", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["subscribed"])
	assert.Equal(t, "basic", body["plan"])
	assert.Equal(t, "price_basic_m", body["priceId"])
	assert.Equal(t, "2026-11-01T00:00:00Z", body["periodEnd"])
	assert.Equal(t, false, body["degraded"])
}

func TestGetSubscription_NotSubscribedHasNulls(t *testing.T) {
	subs := &fakeSubscriptions{result: domain.Ok(domain.SubscriptionRecord{}, domain.Plan{Key: domain.PlanFree})}

	mux := http.NewServeMux()
	NewUsageHandler(subs, &fakeEntitlements{}, testLogger()).RegisterRoutes(mux, requireTestAccount)

	body := decodeBody(t, do(t, mux, http.MethodGet, "/api/subscription", ""))
	assert.Equal(t, false, body["subscribed"])
	assert.Nil(t, body["priceId"])
	assert.Nil(t, body["periodEnd"])
	assert.Equal(t, "free", body["plan"])
}

func TestGetSubscription_Unauthenticated(t *testing.T) {
	mux := http.NewServeMux()
	NewUsageHandler(&fakeSubscriptions{}, &fakeEntitlements{}, testLogger()).RegisterRoutes(mux, noAccount)

	rec := do(t, mux, http.MethodGet, "/api/subscription", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetUsage(t *testing.T) {
	ents := &fakeEntitlements{summary: &domain.UsageSummary{
		Plan:  domain.PlanBasic,
		Month: domain.YearMonth{Year: 2026, Month: time.October},
		Resources: []domain.ResourceUsage{
			{Kind: domain.ResourceImage, Used: 49, Limit: int64p(70), Percent: 70, Level: domain.UsageLevelApproaching},
			{Kind: domain.ResourcePDF, IsUnlimited: true, Level: domain.UsageLevelOK},
		},
	}}

	mux := http.NewServeMux()
	NewUsageHandler(&fakeSubscriptions{}, ents, testLogger()).RegisterRoutes(mux, requireTestAccount)

	rec := do(t, mux, http.MethodGet, "/api/usage", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got UsageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "2026-10", got.Month)
	require.Len(t, got.Resources, 2)
	assert.Equal(t, domain.UsageLevelApproaching, got.Resources[0].Level)
	assert.Nil(t, got.Resources[1].Limit)
	assert.True(t, got.Resources[1].IsUnlimited)
}

func TestCheckEntitlement(t *testing.T) {
	ents := &fakeEntitlements{decision: domain.GateDecision{
		Allowed:      false,
		Plan:         domain.PlanFree,
		CurrentUsage: 5,
		Limit:        int64p(5),
		Reason:       domain.ReasonLimitReached,
	}}

	mux := http.NewServeMux()
	NewUsageHandler(&fakeSubscriptions{}, ents, testLogger()).RegisterRoutes(mux, requireTestAccount)

	rec := do(t, mux, http.MethodGet, "/api/entitlements/image", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["allowed"])
	assert.Equal(t, "image", body["kind"])
	assert.Equal(t, "limit_reached", body["reason"])

	rec = do(t, mux, http.MethodGet, "/api/entitlements/video", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// Generation endpoints
// =============================================================================

func TestGenerateImage(t *testing.T) {
	images := &fakeImages{out: &domain.GeneratedImage{
		ID:          uuid.New(),
		URL:         "https://files.example/a.png",
		ContentType: "image/png",
		Usage:       domain.MeteredResult{Kind: domain.ResourceImage, UsageCount: 70, UsageLimit: int64p(70)},
	}}

	mux := http.NewServeMux()
	NewGenerateHandler(images, &fakeDocuments{}, testLogger()).RegisterRoutes(mux, requireTestAccount)

	rec := do(t, mux, http.MethodPost, "/api/images", `{"prompt":"crown","size":"1024x1024"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, "crown", images.got.Prompt)
	usage := decodeBody(t, rec)["usage"].(map[string]any)
	assert.Equal(t, true, usage["success"])
	assert.Equal(t, float64(70), usage["usageCount"])
	assert.Equal(t, float64(70), usage["usageLimit"])
	assert.Equal(t, false, usage["isUnlimited"])
}

func TestGenerateImage_UnknownUsageCount(t *testing.T) {
	images := &fakeImages{out: &domain.GeneratedImage{
		ID:    uuid.New(),
		URL:   "https://files.example/a.png",
		Usage: domain.MeteredResult{Kind: domain.ResourceImage, IsUnlimited: true, UsageUnknown: true},
	}}

	mux := http.NewServeMux()
	NewGenerateHandler(images, &fakeDocuments{}, testLogger()).RegisterRoutes(mux, requireTestAccount)

	rec := do(t, mux, http.MethodPost, "/api/images", `{"prompt":"crown"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	usage := decodeBody(t, rec)["usage"].(map[string]any)
	assert.Equal(t, true, usage["success"])
	assert.Contains(t, usage, "usageCount")
	assert.Nil(t, usage["usageCount"])
	assert.Nil(t, usage["usageLimit"])
	assert.Equal(t, true, usage["isUnlimited"])
}

func TestGenerateImage_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "malformed json", body: `{"prompt":`, status: http.StatusBadRequest},
		{name: "empty body", body: "", status: http.StatusBadRequest},
		{name: "limit reached", body: `{"prompt":"x"}`, err: domain.LimitReached("op", domain.ResourceImage, domain.PlanFree, 5, 5), status: http.StatusPaymentRequired},
		{name: "provider failure", body: `{"prompt":"x"}`, err: domain.ExternalFailure(errors.New("503"), "op", "Image generation failed"), status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			NewGenerateHandler(&fakeImages{err: tt.err}, &fakeDocuments{}, testLogger()).RegisterRoutes(mux, requireTestAccount)

			rec := do(t, mux, http.MethodPost, "/api/images", tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestGenerateInvoice(t *testing.T) {
	docs := &fakeDocuments{out: &domain.GeneratedDocument{
		ID:          uuid.New(),
		URL:         "https://files.example/a.pdf",
		ContentType: "application/pdf",
		SizeBytes:   1234,
		Usage:       domain.MeteredResult{Kind: domain.ResourcePDF, UsageCount: 1, IsUnlimited: true},
	}}

	mux := http.NewServeMux()
	NewGenerateHandler(&fakeImages{}, docs, testLogger()).RegisterRoutes(mux, requireTestAccount)

	body := `{
		"clinicName": "Bright Smiles",
		"currency": "eur",
		"issuedAt": "2026-10-15T00:00:00Z",
		"lines": [{"description": "Crown", "quantity": 2, "unitPriceCents": 12500}],
		"deliveryFeeCents": 500,
		"taxPercent": 7.5
	}`
	rec := do(t, mux, http.MethodPost, "/api/documents/invoice", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NotNil(t, docs.got)
	assert.Equal(t, "Bright Smiles", docs.got.ClinicName)
	assert.Equal(t, int64(25000), docs.got.SubtotalCents())
	assert.Equal(t, int64(500), docs.got.DeliveryFee)
	assert.Equal(t, 2026, docs.got.IssuedAt.Year())

	usage := decodeBody(t, rec)["usage"].(map[string]any)
	assert.Equal(t, true, usage["success"])
	assert.Equal(t, float64(1), usage["usageCount"])
	assert.Nil(t, usage["usageLimit"])
	assert.Equal(t, true, usage["isUnlimited"])
}

// =============================================================================
// Billing endpoints
// =============================================================================

func TestCreateCheckout(t *testing.T) {
	b := &fakeBillingService{}
	mux := http.NewServeMux()
	NewBillingHandler(b, testLogger()).RegisterRoutes(mux, requireTestAccount)

	rec := do(t, mux, http.MethodPost, "/api/billing/checkout", `{"plan":"basic","interval":"year"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, domain.PlanBasic, b.checkout.Plan)
	assert.Equal(t, "year", b.checkout.Interval)
	assert.Equal(t, "https://checkout.example/1", decodeBody(t, rec)["url"])
}

func TestOpenPortal(t *testing.T) {
	mux := http.NewServeMux()
	NewBillingHandler(&fakeBillingService{}, testLogger()).RegisterRoutes(mux, requireTestAccount)

	rec := do(t, mux, http.MethodPost, "/api/billing/portal", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://portal.example/1", decodeBody(t, rec)["url"])
}

func TestStripeWebhook(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "processed", status: http.StatusOK},
		{name: "bad signature", err: domain.Invalid("billing.webhook", "invalid webhook signature"), status: http.StatusBadRequest},
		{name: "billing disabled", err: domain.Errorf(domain.ENOTIMPL, "billing.webhook", "Billing is not configured"), status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBillingService{webhookErr: tt.err}
			mux := http.NewServeMux()
			// The webhook route must not require a session.
			NewBillingHandler(b, testLogger()).RegisterRoutes(mux, noAccount)

			rec := do(t, mux, http.MethodPost, "/webhooks/stripe", `{"id":"evt_1"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, 1, b.webhooks)
		})
	}
}

// =============================================================================
// Health
// =============================================================================

func TestHealth(t *testing.T) {
	ok := PingFunc(func(ctx context.Context) error { return nil })
	down := PingFunc(func(ctx context.Context) error { return errors.New("refused") })

	mux := http.NewServeMux()
	NewHealthHandler(map[string]Pinger{"database": ok}, testLogger()).RegisterRoutes(mux)
	rec := do(t, mux, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	mux = http.NewServeMux()
	NewHealthHandler(map[string]Pinger{"database": ok, "usage": down}, testLogger()).RegisterRoutes(mux)
	rec = do(t, mux, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", decodeBody(t, rec)["checks"].(map[string]any)["usage"])
}
