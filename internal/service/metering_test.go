package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/DukeRupert/dentalab/internal/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMetering(subs SubscriptionService, counter *fakeCounter, now func() time.Time) MeteringService {
	gate := NewEntitlementService(subs, counter, EntitlementConfig{Now: now}, testLogger())
	return NewMeteringService(gate, counter, MeteringConfig{Now: now}, testLogger())
}

func fixedNow() time.Time { return testNow }

func TestPerform_ChargesAfterSuccess(t *testing.T) {
	accountID := uuid.New()
	counter := newFakeCounter()
	counter.set(imageKey(accountID), 69)
	svc := newMetering(onPlan(domain.PlanBasic), counter, fixedNow)

	calls := 0
	res, err := svc.Perform(context.Background(), accountID, domain.ResourceImage, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(70), res.UsageCount)
	require.NotNil(t, res.UsageLimit)
	assert.Equal(t, int64(70), *res.UsageLimit)
	assert.False(t, res.IsUnlimited)
	assert.Equal(t, int64(70), counter.value(imageKey(accountID)))

	// The next request is blocked and the action is not called.
	_, err = svc.Perform(context.Background(), accountID, domain.ResourceImage, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var le *domain.LimitError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, int64(70), le.Used)
	assert.Equal(t, int64(70), le.Limit)
	assert.Equal(t, domain.PlanBasic, le.Plan)
	assert.Equal(t, domain.ELIMIT, domain.ErrorCode(err))
	assert.Equal(t, int64(70), counter.value(imageKey(accountID)))
}

func TestPerform_UnlimitedStillCounts(t *testing.T) {
	accountID := uuid.New()
	counter := newFakeCounter()
	counter.set(imageKey(accountID), 10000)
	svc := newMetering(onPlan(domain.PlanPremium), counter, fixedNow)

	res, err := svc.Perform(context.Background(), accountID, domain.ResourceImage, func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	assert.True(t, res.IsUnlimited)
	assert.Nil(t, res.UsageLimit)
	assert.Equal(t, int64(10001), res.UsageCount)
	assert.Zero(t, counter.gets)
}

func TestPerform_FailedActionIsNotCharged(t *testing.T) {
	accountID := uuid.New()
	counter := newFakeCounter()
	counter.set(imageKey(accountID), 3)
	svc := newMetering(onPlan(domain.PlanBasic), counter, fixedNow)

	before := testutil.ToFloat64(metrics.MeteredActionsTotal.WithLabelValues("image", metrics.StatusFailed))

	_, err := svc.Perform(context.Background(), accountID, domain.ResourceImage, func(ctx context.Context) error {
		return errors.New("provider returned 503")
	})

	assert.Equal(t, domain.EEXTERNAL, domain.ErrorCode(err))
	assert.Equal(t, int64(3), counter.value(imageKey(accountID)))
	assert.Zero(t, counter.incs)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.MeteredActionsTotal.WithLabelValues("image", metrics.StatusFailed)))
}

func TestPerform_ActionErrorsKeepTheirCode(t *testing.T) {
	svc := newMetering(onPlan(domain.PlanBasic), newFakeCounter(), fixedNow)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "external", err: domain.ExternalFailure(errors.New("x"), "op", "Render failed"), want: domain.EEXTERNAL},
		{name: "validation", err: domain.NewValidationError("op", "prompt", "bad"), want: domain.EINVALID},
		{name: "internal becomes external", err: domain.Internal(errors.New("x"), "op", "boom"), want: domain.EEXTERNAL},
		{name: "cancelled becomes external", err: context.Canceled, want: domain.EEXTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Perform(context.Background(), uuid.New(), domain.ResourcePDF, func(ctx context.Context) error { return tt.err })
			assert.Equal(t, tt.want, domain.ErrorCode(err))
		})
	}
}

func TestPerform_IncrementFailureStillReturnsResult(t *testing.T) {
	accountID := uuid.New()
	counter := newFakeCounter()
	counter.set(imageKey(accountID), 10)
	counter.incErr = errors.New("redis gone")
	svc := newMetering(onPlan(domain.PlanBasic), counter, fixedNow)

	before := testutil.ToFloat64(metrics.UsageIncrementFailuresTotal.WithLabelValues("image"))

	res, err := svc.Perform(context.Background(), accountID, domain.ResourceImage, func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, int64(11), res.UsageCount)
	assert.False(t, res.UsageUnknown)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.UsageIncrementFailuresTotal.WithLabelValues("image")))
}

func TestPerform_IncrementFailureOnUnlimitedPlanReadsCounter(t *testing.T) {
	accountID := uuid.New()
	counter := newFakeCounter()
	counter.set(imageKey(accountID), 500)
	counter.incErr = errors.New("redis gone")
	svc := newMetering(onPlan(domain.PlanPremium), counter, fixedNow)

	res, err := svc.Perform(context.Background(), accountID, domain.ResourceImage, func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	assert.True(t, res.IsUnlimited)
	assert.Equal(t, int64(501), res.UsageCount)
	assert.False(t, res.UsageUnknown)
	assert.Equal(t, 1, counter.gets)
}

func TestPerform_IncrementFailureOnUnlimitedPlanWithUnreadableCounter(t *testing.T) {
	accountID := uuid.New()
	counter := newFakeCounter()
	counter.set(imageKey(accountID), 500)
	counter.incErr = errors.New("redis gone")
	counter.getErr = errors.New("redis gone")
	svc := newMetering(onPlan(domain.PlanPremium), counter, fixedNow)

	res, err := svc.Perform(context.Background(), accountID, domain.ResourceImage, func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	assert.True(t, res.IsUnlimited)
	assert.True(t, res.UsageUnknown)
	assert.Zero(t, res.UsageCount)
}

func TestPerform_GateErrorSkipsAction(t *testing.T) {
	counter := newFakeCounter()
	counter.getErr = errors.New("timeout")
	svc := newMetering(onPlan(domain.PlanBasic), counter, fixedNow)

	called := false
	_, err := svc.Perform(context.Background(), uuid.New(), domain.ResourceImage, func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
	assert.False(t, called)
}

func TestPerform_IncrementSurvivesCancellation(t *testing.T) {
	accountID := uuid.New()
	counter := newFakeCounter()
	svc := newMetering(onPlan(domain.PlanBasic), counter, fixedNow)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.Perform(ctx, accountID, domain.ResourceImage, func(ctx context.Context) error {
		cancel()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), counter.value(imageKey(accountID)))
}

func TestPerform_MonthIsPinnedAtGate(t *testing.T) {
	accountID := uuid.New()
	counter := newFakeCounter()

	times := []time.Time{
		time.Date(2026, 10, 31, 23, 59, 59, 0, time.UTC),
		time.Date(2026, 11, 1, 0, 0, 1, 0, time.UTC),
	}
	i := 0
	now := func() time.Time {
		t := times[i]
		if i < len(times)-1 {
			i++
		}
		return t
	}
	svc := newMetering(onPlan(domain.PlanBasic), counter, now)

	_, err := svc.Perform(context.Background(), accountID, domain.ResourceImage, func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, domain.YearMonth{Year: 2026, Month: time.October}, counter.lastIncr.Month)
}

func TestPerform_SoftLimitAllowsOvershoot(t *testing.T) {
	accountID := uuid.New()
	counter := newFakeCounter()
	counter.set(imageKey(accountID), 69)
	svc := newMetering(onPlan(domain.PlanBasic), counter, fixedNow)

	// Both requests pass the gate at 69 before either is charged.
	_, err := svc.Perform(context.Background(), accountID, domain.ResourceImage, func(ctx context.Context) error {
		_, err := svc.Perform(ctx, accountID, domain.ResourceImage, func(ctx context.Context) error { return nil })
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, int64(71), counter.value(imageKey(accountID)))
}
