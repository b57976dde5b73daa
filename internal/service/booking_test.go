package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/provider"
	"peer-rental-core/internal/repository/memory"
	"peer-rental-core/internal/service"
)

const (
	ownerEmail    = "owner@test.com"
	renterEmail   = "renter@test.com"
	outsiderEmail = "outsider@test.com"
)

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	engine   *service.BookingEngine
	notifier *MockNotifier
	item     *domain.Item
}

func testPolicy() service.Policy {
	p := service.DefaultPolicy()
	p.ProviderRetry = service.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	p.ConflictRetry = service.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	return p
}

func newFixture(t *testing.T, pp service.PaymentProvider) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.Users().Create(ctx, &domain.User{
		Email:                ownerEmail,
		Name:                 "Owner",
		Intent:               domain.UserIntentOwner,
		IdentityVerification: domain.VerificationUnverified,
		PayoutVerification:   domain.VerificationVerified,
		Active:               true,
	}))
	require.NoError(t, store.Users().Create(ctx, &domain.User{
		Email:                renterEmail,
		Name:                 "Renter",
		Intent:               domain.UserIntentRenter,
		IdentityVerification: domain.VerificationUnverified,
		PayoutVerification:   domain.VerificationUnverified,
		HasPaymentMethod:     true,
		PaymentMethodRef:     "pm_renter",
		Active:               true,
	}))
	require.NoError(t, store.Users().Create(ctx, &domain.User{
		Email:  outsiderEmail,
		Name:   "Outsider",
		Active: true,
	}))

	item := &domain.Item{
		OwnerEmail:            ownerEmail,
		Name:                  "Cordless drill",
		DailyRateCents:        1500,
		DepositCents:          5000,
		MinRentalDays:         1,
		InstantBookingEnabled: true,
		Available:             true,
	}
	require.NoError(t, store.Items().Create(ctx, item))

	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything).Return()

	repos := service.BookingRepos{
		Bookings: store.Bookings(),
		Items:    store.Items(),
		Users:    store.Users(),
		Reports:  store.Reports(),
		Events:   store.ProviderEvents(),
	}
	engine := service.NewBookingEngine(repos, service.NewGatekeeper(store.Users()), pp, notifier, testPolicy())
	return &fixture{ctx: ctx, store: store, engine: engine, notifier: notifier, item: item}
}

// span returns an inclusive range starting offset days from today.
func span(offset, days int) domain.DateRange {
	start := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, offset)
	return domain.DateRange{Start: start, End: start.AddDate(0, 0, days-1)}
}

func (f *fixture) updateUser(t *testing.T, email string, fn func(u *domain.User)) {
	t.Helper()
	u, err := f.store.Users().GetByEmail(f.ctx, email)
	require.NoError(t, err)
	fn(u)
	require.NoError(t, f.store.Users().Update(f.ctx, u))
}

func (f *fixture) requestMode(t *testing.T) {
	t.Helper()
	f.item.InstantBookingEnabled = false
	require.NoError(t, f.store.Items().Update(f.ctx, f.item))
}

func (f *fixture) book(t *testing.T, offset, days int) *domain.Booking {
	t.Helper()
	b, err := f.engine.CreateBooking(f.ctx, f.item.ID, renterEmail, span(offset, days))
	require.NoError(t, err)
	return b
}

func (f *fixture) reload(t *testing.T, id int32) *domain.Booking {
	t.Helper()
	b, err := f.store.Bookings().GetByID(f.ctx, id)
	require.NoError(t, err)
	return b
}

// active books and pays through the sandbox provider.
func (f *fixture) active(t *testing.T, offset int) *domain.Booking {
	t.Helper()
	b := f.book(t, offset, 3)
	b, err := f.engine.ConfirmPayment(f.ctx, b.ID, renterEmail)
	require.NoError(t, err)
	require.Equal(t, domain.BookingStateActive, b.State)
	return b
}

func damages() []domain.Damage {
	return []domain.Damage{{Severity: domain.DamageSeverityModerate, Description: "cracked battery housing"}}
}

func TestBookingService_CreateBooking(t *testing.T) {
	t.Run("Instant when every gate holds", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		b := f.book(t, 2, 3)

		assert.Equal(t, domain.BookingModeInstant, b.Mode)
		assert.Equal(t, domain.BookingStateInstantConfirmed, b.State)
		assert.Equal(t, int32(4500), b.TotalCents)
		assert.Equal(t, int32(5000), b.DepositCents)
		assert.Equal(t, domain.PaymentLegNone, b.Charge.Status)
		assert.Equal(t, domain.PaymentLegNone, b.Deposit.Status)
		f.notifier.AssertCalled(t, "Notify", mock.Anything, ofType(domain.NotificationBookingCreated))
	})

	t.Run("Falls back to request without a payment method", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		f.updateUser(t, renterEmail, func(u *domain.User) { u.HasPaymentMethod = false })

		b := f.book(t, 2, 3)
		assert.Equal(t, domain.BookingModeRequest, b.Mode)
		assert.Equal(t, domain.BookingStatePendingReview, b.State)
	})

	t.Run("Falls back to request when payout verification regressed", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		f.updateUser(t, ownerEmail, func(u *domain.User) { u.PayoutVerification = domain.VerificationFailed })

		b := f.book(t, 2, 3)
		assert.Equal(t, domain.BookingModeRequest, b.Mode)
	})

	t.Run("Request when instant booking is off", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		f.requestMode(t)

		b := f.book(t, 2, 3)
		assert.Equal(t, domain.BookingStatePendingReview, b.State)
	})

	t.Run("Overlap is rejected until the blocker is cancelled", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		first := f.book(t, 5, 3)

		_, err := f.engine.CreateBooking(f.ctx, f.item.ID, renterEmail, span(7, 2))
		assert.True(t, domain.IsKind(err, domain.KindValidation))

		_, err = f.engine.Cancel(f.ctx, first.ID, renterEmail)
		require.NoError(t, err)

		b, err := f.engine.CreateBooking(f.ctx, f.item.ID, renterEmail, span(7, 2))
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, b.ID)
	})

	t.Run("Concurrent overlapping requests have one winner", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())

		const callers = 6
		var wg sync.WaitGroup
		errs := make([]error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = f.engine.CreateBooking(f.ctx, f.item.ID, renterEmail, span(5+i%3, 3))
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, domain.IsKind(err, domain.KindValidation), "unexpected error %v", err)
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("Adjacent ranges do not collide", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		f.book(t, 5, 3)
		f.book(t, 8, 2)
	})

	t.Run("Validation failures", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())

		_, err := f.engine.CreateBooking(f.ctx, f.item.ID, ownerEmail, span(2, 2))
		assert.True(t, domain.IsKind(err, domain.KindValidation), "owner renting own item")

		_, err = f.engine.CreateBooking(f.ctx, f.item.ID, renterEmail, span(-2, 2))
		assert.True(t, domain.IsKind(err, domain.KindValidation), "start in the past")

		_, err = f.engine.CreateBooking(f.ctx, 999, renterEmail, span(2, 2))
		assert.True(t, domain.IsKind(err, domain.KindNotFound))

		f.item.MaxRentalDays = 2
		require.NoError(t, f.store.Items().Update(f.ctx, f.item))
		_, err = f.engine.CreateBooking(f.ctx, f.item.ID, renterEmail, span(2, 3))
		assert.True(t, domain.IsKind(err, domain.KindValidation), "longer than max rental days")

		f.item.Available = false
		require.NoError(t, f.store.Items().Update(f.ctx, f.item))
		_, err = f.engine.CreateBooking(f.ctx, f.item.ID, renterEmail, span(2, 1))
		assert.True(t, domain.IsKind(err, domain.KindValidation), "item unavailable")
	})

	t.Run("Deactivated renter", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		f.updateUser(t, renterEmail, func(u *domain.User) { u.Active = false })

		_, err := f.engine.CreateBooking(f.ctx, f.item.ID, renterEmail, span(2, 2))
		assert.True(t, domain.IsKind(err, domain.KindGatingFailure))
		assert.Equal(t, domain.PreconditionAccountActive, domain.PreconditionOf(err))
	})
}

func TestBookingService_Decide(t *testing.T) {
	t.Run("Approve", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		f.requestMode(t)
		b := f.book(t, 2, 2)

		_, err := f.engine.Decide(f.ctx, b.ID, renterEmail, true, "")
		assert.True(t, domain.IsKind(err, domain.KindForbidden))

		b, err = f.engine.Decide(f.ctx, b.ID, ownerEmail, true, "")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStateAwaitingPayment, b.State)
		assert.NotNil(t, b.DecidedAt)
		f.notifier.AssertCalled(t, "Notify", mock.Anything, ofType(domain.NotificationBookingDecided))

		_, err = f.engine.Decide(f.ctx, b.ID, ownerEmail, false, "changed my mind")
		assert.True(t, domain.IsKind(err, domain.KindInvalidTransition))
	})

	t.Run("Reject frees the dates", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		f.requestMode(t)
		b := f.book(t, 2, 2)

		b, err := f.engine.Decide(f.ctx, b.ID, ownerEmail, false, " out of town ")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStateRejected, b.State)
		assert.Equal(t, "out of town", b.RejectionReason)

		f.book(t, 2, 2)
	})

	t.Run("Instant bookings are never decided", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		b := f.book(t, 2, 2)

		_, err := f.engine.Decide(f.ctx, b.ID, ownerEmail, true, "")
		assert.True(t, domain.IsKind(err, domain.KindInvalidTransition))
	})

	t.Run("Concurrent decisions have one winner", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		f.requestMode(t)
		b := f.book(t, 2, 2)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, approve := range []bool{true, false} {
			wg.Add(1)
			go func(i int, approve bool) {
				defer wg.Done()
				_, errs[i] = f.engine.Decide(f.ctx, b.ID, ownerEmail, approve, "")
			}(i, approve)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			kind := domain.KindOf(err)
			assert.True(t, kind == domain.KindInvalidTransition || kind == domain.KindConcurrency, "unexpected error %v", err)
		}
		assert.Equal(t, 1, succeeded)

		final := f.reload(t, b.ID)
		assert.Contains(t, []domain.BookingState{domain.BookingStateAwaitingPayment, domain.BookingStateRejected}, final.State)
		assert.Equal(t, int32(2), final.Version)
	})
}

func TestBookingService_ConfirmPayment(t *testing.T) {
	t.Run("Success activates the booking", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		b := f.book(t, 2, 3)

		b, err := f.engine.ConfirmPayment(f.ctx, b.ID, renterEmail)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStateActive, b.State)
		assert.Equal(t, domain.PaymentLegSucceeded, b.Charge.Status)
		assert.Equal(t, domain.PaymentLegSucceeded, b.Deposit.Status)
		assert.NotEmpty(t, b.Charge.ProviderRef)
		assert.NotNil(t, b.PaidAt)
		f.notifier.AssertCalled(t, "Notify", mock.Anything, ofType(domain.NotificationPaymentConfirmed))

		_, err = f.engine.ConfirmPayment(f.ctx, b.ID, renterEmail)
		assert.True(t, domain.IsKind(err, domain.KindInvalidTransition))
	})

	t.Run("Request must be approved first", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		f.requestMode(t)
		b := f.book(t, 2, 3)

		_, err := f.engine.ConfirmPayment(f.ctx, b.ID, renterEmail)
		assert.True(t, domain.IsKind(err, domain.KindInvalidTransition))
	})

	t.Run("Gates are re-read", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		b := f.book(t, 2, 3)

		_, err := f.engine.ConfirmPayment(f.ctx, b.ID, ownerEmail)
		assert.True(t, domain.IsKind(err, domain.KindForbidden))

		f.updateUser(t, ownerEmail, func(u *domain.User) { u.PayoutVerification = domain.VerificationFailed })
		_, err = f.engine.ConfirmPayment(f.ctx, b.ID, renterEmail)
		assert.True(t, domain.IsKind(err, domain.KindGatingFailure))
		assert.Equal(t, domain.PreconditionPayoutVerification, domain.PreconditionOf(err))

		f.updateUser(t, ownerEmail, func(u *domain.User) { u.PayoutVerification = domain.VerificationVerified })
		f.updateUser(t, renterEmail, func(u *domain.User) { u.HasPaymentMethod = false })
		_, err = f.engine.ConfirmPayment(f.ctx, b.ID, renterEmail)
		assert.True(t, domain.IsKind(err, domain.KindGatingFailure))
		assert.Equal(t, domain.PreconditionPaymentMethod, domain.PreconditionOf(err))

		assert.Equal(t, domain.BookingStateInstantConfirmed, f.reload(t, b.ID).State)
	})

	t.Run("Decline consumes the attempt", func(t *testing.T) {
		pp := new(MockPaymentProvider)
		f := newFixture(t, pp)
		b := f.book(t, 2, 3)

		pp.On("InitiateCharge", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("%w: card declined", provider.ErrDeclined)).Once()
		pp.On("InitiateDepositHold", mock.Anything, mock.Anything).Return(&provider.LegResult{Ref: "dh_1", Status: provider.LegSucceeded}, nil).Once()

		_, err := f.engine.ConfirmPayment(f.ctx, b.ID, renterEmail)
		assert.True(t, domain.IsKind(err, domain.KindExternalProvider))
		f.notifier.AssertCalled(t, "Notify", mock.Anything, ofType(domain.NotificationPaymentFailed))

		got := f.reload(t, b.ID)
		assert.Equal(t, domain.BookingStateInstantConfirmed, got.State)
		assert.Equal(t, domain.PaymentLegFailed, got.Charge.Status)
		assert.Equal(t, domain.PaymentLegSucceeded, got.Deposit.Status)
		assert.Equal(t, int32(1), got.PaymentAttempt)

		pp.On("InitiateCharge", mock.Anything, mock.Anything).Return(&provider.LegResult{Ref: "ch_2", Status: provider.LegSucceeded}, nil).Once()

		b, err = f.engine.ConfirmPayment(f.ctx, b.ID, renterEmail)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStateActive, b.State)
		assert.Equal(t, "ch_2", b.Charge.ProviderRef)
		assert.Equal(t, "dh_1", b.Deposit.ProviderRef)

		pp.AssertNumberOfCalls(t, "InitiateDepositHold", 1)
		var keys []string
		for _, call := range pp.Calls {
			if call.Method != "InitiateCharge" {
				continue
			}
			req := call.Arguments.Get(1).(provider.LegRequest)
			assert.Equal(t, int32(4500), req.AmountCents)
			assert.Equal(t, "pm_renter", req.PaymentMethodRef)
			keys = append(keys, req.IdempotencyKey)
		}
		require.Len(t, keys, 2)
		assert.NotEqual(t, keys[0], keys[1])
	})

	t.Run("Unavailable provider is retried with one key", func(t *testing.T) {
		pp := new(MockPaymentProvider)
		f := newFixture(t, pp)
		b := f.book(t, 2, 3)

		pp.On("InitiateCharge", mock.Anything, mock.Anything).Return(nil, provider.ErrUnavailable)
		pp.On("InitiateDepositHold", mock.Anything, mock.Anything).Return(&provider.LegResult{Ref: "dh_1", Status: provider.LegSucceeded}, nil)

		_, err := f.engine.ConfirmPayment(f.ctx, b.ID, renterEmail)
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.KindExternalProvider))
		pp.AssertNumberOfCalls(t, "InitiateCharge", 3)

		keys := map[string]bool{}
		for _, call := range pp.Calls {
			if call.Method == "InitiateCharge" {
				keys[call.Arguments.Get(1).(provider.LegRequest).IdempotencyKey] = true
			}
		}
		assert.Len(t, keys, 1)

		got := f.reload(t, b.ID)
		assert.Equal(t, domain.PaymentLegNone, got.Charge.Status)
		assert.Equal(t, int32(0), got.PaymentAttempt)
	})

	t.Run("Zero deposit needs no hold", func(t *testing.T) {
		pp := new(MockPaymentProvider)
		f := newFixture(t, pp)
		f.item.DepositCents = 0
		require.NoError(t, f.store.Items().Update(f.ctx, f.item))
		b := f.book(t, 2, 1)

		pp.On("InitiateCharge", mock.Anything, mock.Anything).Return(&provider.LegResult{Ref: "ch_1", Status: provider.LegSucceeded}, nil)

		b, err := f.engine.ConfirmPayment(f.ctx, b.ID, renterEmail)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStateActive, b.State)
		pp.AssertNotCalled(t, "InitiateDepositHold", mock.Anything, mock.Anything)
	})
}

func pendingProvider() *MockPaymentProvider {
	pp := new(MockPaymentProvider)
	pp.On("InitiateCharge", mock.Anything, mock.Anything).Return(&provider.LegResult{Ref: "ch_1", Status: provider.LegPending}, nil)
	pp.On("InitiateDepositHold", mock.Anything, mock.Anything).Return(&provider.LegResult{Ref: "dh_1", Status: provider.LegPending}, nil)
	return pp
}

func TestBookingService_OnChargeResult(t *testing.T) {
	f := newFixture(t, pendingProvider())
	b := f.book(t, 2, 3)

	b, err := f.engine.ConfirmPayment(f.ctx, b.ID, renterEmail)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStateInstantConfirmed, b.State)
	assert.Equal(t, domain.PaymentLegPending, b.Charge.Status)
	assert.Equal(t, domain.PaymentLegPending, b.Deposit.Status)

	t.Run("Invalid event", func(t *testing.T) {
		err := f.engine.OnChargeResult(f.ctx, domain.ChargeResultEvent{BookingID: b.ID, Leg: domain.PaymentLegCharge, Outcome: domain.LegOutcomeSucceeded})
		assert.True(t, domain.IsKind(err, domain.KindValidation))

		err = f.engine.OnChargeResult(f.ctx, domain.ChargeResultEvent{Token: "t0", BookingID: b.ID, Leg: "REFUND", Outcome: domain.LegOutcomeSucceeded})
		assert.True(t, domain.IsKind(err, domain.KindValidation))
	})

	t.Run("Charge settles first", func(t *testing.T) {
		require.NoError(t, f.engine.OnChargeResult(f.ctx, domain.ChargeResultEvent{
			Token: "evt_1", BookingID: b.ID, Leg: domain.PaymentLegCharge, Outcome: domain.LegOutcomeSucceeded, ProviderRef: "ch_1",
		}))
		got := f.reload(t, b.ID)
		assert.Equal(t, domain.PaymentLegSucceeded, got.Charge.Status)
		assert.Equal(t, domain.BookingStateInstantConfirmed, got.State)
	})

	t.Run("Superseded reference is ignored", func(t *testing.T) {
		require.NoError(t, f.engine.OnChargeResult(f.ctx, domain.ChargeResultEvent{
			Token: "evt_stale", BookingID: b.ID, Leg: domain.PaymentLegDeposit, Outcome: domain.LegOutcomeFailed, ProviderRef: "dh_old",
		}))
		assert.Equal(t, domain.PaymentLegPending, f.reload(t, b.ID).Deposit.Status)
	})

	t.Run("Deposit completes payment", func(t *testing.T) {
		require.NoError(t, f.engine.OnChargeResult(f.ctx, domain.ChargeResultEvent{
			Token: "evt_2", BookingID: b.ID, Leg: domain.PaymentLegDeposit, Outcome: domain.LegOutcomeSucceeded, ProviderRef: "dh_1",
		}))
		got := f.reload(t, b.ID)
		assert.Equal(t, domain.BookingStateActive, got.State)
		f.notifier.AssertCalled(t, "Notify", mock.Anything, ofType(domain.NotificationPaymentConfirmed))
	})

	t.Run("Replays are no-ops", func(t *testing.T) {
		before := f.reload(t, b.ID)
		require.NoError(t, f.engine.OnChargeResult(f.ctx, domain.ChargeResultEvent{
			Token: "evt_1", BookingID: b.ID, Leg: domain.PaymentLegCharge, Outcome: domain.LegOutcomeFailed, ProviderRef: "ch_1",
		}))
		after := f.reload(t, b.ID)
		assert.Equal(t, before.Version, after.Version)
		assert.Equal(t, domain.PaymentLegSucceeded, after.Charge.Status)
	})
}

func TestBookingService_Cancel(t *testing.T) {
	t.Run("Held deposit is released", func(t *testing.T) {
		pp := new(MockPaymentProvider)
		f := newFixture(t, pp)
		b := f.book(t, 2, 3)

		pp.On("InitiateCharge", mock.Anything, mock.Anything).Return(nil, provider.ErrDeclined).Once()
		pp.On("InitiateDepositHold", mock.Anything, mock.Anything).Return(&provider.LegResult{Ref: "dh_1", Status: provider.LegSucceeded}, nil).Once()
		pp.On("ReleaseDepositHold", mock.Anything, "dh_1", mock.Anything).Return(nil).Once()

		_, err := f.engine.ConfirmPayment(f.ctx, b.ID, renterEmail)
		require.Error(t, err)

		_, err = f.engine.Cancel(f.ctx, b.ID, outsiderEmail)
		assert.True(t, domain.IsKind(err, domain.KindForbidden))

		b, err = f.engine.Cancel(f.ctx, b.ID, " Renter@Test.com ")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStateCancelled, b.State)
		assert.Equal(t, renterEmail, b.CancelledBy)
		assert.Equal(t, domain.PaymentLegCompensated, b.Deposit.Status)
		assert.Equal(t, domain.PaymentLegFailed, b.Charge.Status)
		pp.AssertCalled(t, "ReleaseDepositHold", mock.Anything, "dh_1", mock.Anything)
		pp.AssertNotCalled(t, "RefundCharge", mock.Anything, mock.Anything, mock.Anything)
		f.notifier.AssertCalled(t, "Notify", mock.Anything, ofType(domain.NotificationBookingCancelled))

		stored := f.reload(t, b.ID)
		assert.Equal(t, domain.PaymentLegCompensated, stored.Deposit.Status)
	})

	t.Run("Active bookings cannot be cancelled", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		b := f.active(t, 2)

		_, err := f.engine.Cancel(f.ctx, b.ID, ownerEmail)
		assert.True(t, domain.IsKind(err, domain.KindInvalidTransition))
	})

	t.Run("Late success after cancellation is compensated", func(t *testing.T) {
		pp := pendingProvider()
		pp.On("RefundCharge", mock.Anything, "ch_1", mock.Anything).Return(nil)
		pp.On("ReleaseDepositHold", mock.Anything, "dh_1", mock.Anything).Return(nil)
		f := newFixture(t, pp)
		b := f.book(t, 2, 3)

		_, err := f.engine.ConfirmPayment(f.ctx, b.ID, renterEmail)
		require.NoError(t, err)

		b, err = f.engine.Cancel(f.ctx, b.ID, ownerEmail)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentLegCompensated, b.Charge.Status)
		assert.Equal(t, domain.PaymentLegCompensated, b.Deposit.Status)

		require.NoError(t, f.engine.OnChargeResult(f.ctx, domain.ChargeResultEvent{
			Token: "evt_late", BookingID: b.ID, Leg: domain.PaymentLegCharge, Outcome: domain.LegOutcomeSucceeded, ProviderRef: "ch_1",
		}))
		got := f.reload(t, b.ID)
		assert.Equal(t, domain.BookingStateCancelled, got.State)
		assert.Equal(t, domain.PaymentLegCompensated, got.Charge.Status)
	})
}

func TestBookingService_ReconcilePayments(t *testing.T) {
	t.Run("Polls pending legs", func(t *testing.T) {
		pp := pendingProvider()
		pp.On("GetLegStatus", mock.Anything, "ch_1").Return(&provider.LegResult{Ref: "ch_1", Status: provider.LegSucceeded}, nil)
		pp.On("GetLegStatus", mock.Anything, "dh_1").Return(&provider.LegResult{Ref: "dh_1", Status: provider.LegSucceeded}, nil)
		f := newFixture(t, pp)
		b := f.book(t, 2, 3)

		_, err := f.engine.ConfirmPayment(f.ctx, b.ID, renterEmail)
		require.NoError(t, err)

		touched, err := f.engine.ReconcilePayments(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, touched)
		assert.Equal(t, domain.BookingStateActive, f.reload(t, b.ID).State)

		touched, err = f.engine.ReconcilePayments(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, touched)
	})

	t.Run("Retries failed compensation", func(t *testing.T) {
		pp := pendingProvider()
		pp.On("RefundCharge", mock.Anything, "ch_1", mock.Anything).Return(provider.ErrUnavailable).Times(3)
		pp.On("ReleaseDepositHold", mock.Anything, "dh_1", mock.Anything).Return(nil)
		f := newFixture(t, pp)
		b := f.book(t, 2, 3)

		_, err := f.engine.ConfirmPayment(f.ctx, b.ID, renterEmail)
		require.NoError(t, err)

		b, err = f.engine.Cancel(f.ctx, b.ID, renterEmail)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentLegCompensationPending, b.Charge.Status)
		assert.Equal(t, domain.PaymentLegCompensated, b.Deposit.Status)

		pp.On("RefundCharge", mock.Anything, "ch_1", mock.Anything).Return(nil)

		touched, err := f.engine.ReconcilePayments(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, touched)
		assert.Equal(t, domain.PaymentLegCompensated, f.reload(t, b.ID).Charge.Status)
		pp.AssertNumberOfCalls(t, "RefundCharge", 4)
	})
}

func TestBookingService_ExpireStaleRequests(t *testing.T) {
	f := newFixture(t, provider.NewSandbox())
	f.requestMode(t)
	stale := f.book(t, 2, 2)
	fresh := f.book(t, 10, 2)
	f.store.Backdate(stale.ID, time.Now().UTC().Add(-72*time.Hour))

	expired, err := f.engine.ExpireStaleRequests(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got := f.reload(t, stale.ID)
	assert.Equal(t, domain.BookingStateCancelled, got.State)
	assert.Equal(t, service.SystemActor, got.CancelledBy)
	assert.Equal(t, domain.BookingStatePendingReview, f.reload(t, fresh.ID).State)

	expired, err = f.engine.ExpireStaleRequests(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)
}

func TestBookingService_Reports(t *testing.T) {
	t.Run("Pickup then clean return completes", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		b := f.active(t, 2)

		_, cr, err := f.engine.ConfirmPickup(f.ctx, b.ID, renterEmail, domain.ReportInput{Notes: " all good "})
		require.NoError(t, err)
		assert.Equal(t, domain.ReportTypePickup, cr.Type)
		assert.Equal(t, domain.ReporterRoleRenter, cr.ReporterRole)
		assert.Equal(t, "all good", cr.Notes)

		_, _, err = f.engine.ConfirmPickup(f.ctx, b.ID, renterEmail, domain.ReportInput{})
		assert.True(t, domain.IsKind(err, domain.KindValidation), "duplicate pickup report")

		_, _, err = f.engine.ConfirmPickup(f.ctx, b.ID, ownerEmail, domain.ReportInput{Damages: damages()})
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStateActive, f.reload(t, b.ID).State, "pickup damages never settle")

		_, _, err = f.engine.ConfirmReturn(f.ctx, b.ID, outsiderEmail, domain.ReportInput{})
		assert.True(t, domain.IsKind(err, domain.KindForbidden))

		b, cr, err = f.engine.ConfirmReturn(f.ctx, b.ID, ownerEmail, domain.ReportInput{})
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStateCompleted, b.State)
		assert.NotNil(t, b.CompletedAt)
		assert.Equal(t, domain.ReportTypeReturn, cr.Type)
		f.notifier.AssertCalled(t, "Notify", mock.Anything, ofType(domain.NotificationBookingCompleted))

		reports, err := f.engine.ListReports(f.ctx, b.ID, renterEmail)
		require.NoError(t, err)
		assert.Len(t, reports, 3)

		_, err = f.engine.ListReports(f.ctx, b.ID, outsiderEmail)
		assert.True(t, domain.IsKind(err, domain.KindForbidden))
	})

	t.Run("Damaged return opens a dispute", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		b := f.active(t, 2)

		b, _, err := f.engine.ConfirmReturn(f.ctx, b.ID, ownerEmail, domain.ReportInput{Damages: damages(), Photos: []string{"s3://photos/1.jpg"}})
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStateDisputed, b.State)
		f.notifier.AssertCalled(t, "Notify", mock.Anything, ofType(domain.NotificationDisputeOpened))

		open, err := f.engine.HasOpenDispute(f.ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, open)
	})

	t.Run("Invalid damage is rejected", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		b := f.active(t, 2)

		_, _, err := f.engine.ConfirmReturn(f.ctx, b.ID, ownerEmail, domain.ReportInput{Damages: []domain.Damage{{Severity: "CATASTROPHIC", Description: "gone"}}})
		assert.True(t, domain.IsKind(err, domain.KindValidation))
		assert.Equal(t, domain.BookingStateActive, f.reload(t, b.ID).State)
	})

	t.Run("Reports need an active booking", func(t *testing.T) {
		f := newFixture(t, provider.NewSandbox())
		b := f.book(t, 2, 2)

		_, _, err := f.engine.ConfirmPickup(f.ctx, b.ID, renterEmail, domain.ReportInput{})
		assert.True(t, domain.IsKind(err, domain.KindInvalidTransition))
		_, _, err = f.engine.ConfirmReturn(f.ctx, b.ID, renterEmail, domain.ReportInput{})
		assert.True(t, domain.IsKind(err, domain.KindInvalidTransition))
	})
}

func TestBookingService_Queries(t *testing.T) {
	f := newFixture(t, provider.NewSandbox())
	first := f.book(t, 2, 2)
	second := f.book(t, 6, 2)
	_, err := f.engine.Cancel(f.ctx, second.ID, renterEmail)
	require.NoError(t, err)

	t.Run("GetBooking", func(t *testing.T) {
		b, err := f.engine.GetBooking(f.ctx, first.ID, ownerEmail)
		require.NoError(t, err)
		assert.Equal(t, first.ID, b.ID)

		_, err = f.engine.GetBooking(f.ctx, first.ID, outsiderEmail)
		assert.True(t, domain.IsKind(err, domain.KindForbidden))

		_, err = f.engine.GetBooking(f.ctx, 999, ownerEmail)
		assert.True(t, domain.IsKind(err, domain.KindNotFound))
	})

	t.Run("ListBookings", func(t *testing.T) {
		list, total, err := f.engine.ListBookings(f.ctx, renterEmail, domain.ReporterRoleRenter, nil, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int32(2), total)
		assert.Len(t, list, 2)

		list, total, err = f.engine.ListBookings(f.ctx, ownerEmail, domain.ReporterRoleOwner, []domain.BookingState{domain.BookingStateCancelled}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int32(1), total)
		assert.Equal(t, second.ID, list[0].ID)

		_, total, err = f.engine.ListBookings(f.ctx, ownerEmail, domain.ReporterRoleRenter, nil, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int32(0), total)

		_, _, err = f.engine.ListBookings(f.ctx, ownerEmail, "ADMIN", nil, 1, 10)
		assert.True(t, domain.IsKind(err, domain.KindValidation))

		_, _, err = f.engine.ListBookings(f.ctx, ownerEmail, domain.ReporterRoleOwner, []domain.BookingState{"LOST"}, 1, 10)
		assert.True(t, domain.IsKind(err, domain.KindValidation))

		_, _, err = f.engine.ListBookings(f.ctx, ownerEmail, domain.ReporterRoleOwner, nil, 1, 500)
		assert.True(t, domain.IsKind(err, domain.KindValidation))
	})

	t.Run("ConversationRef is stable", func(t *testing.T) {
		a, err := f.engine.ConversationRef(f.ctx, first.ID, renterEmail)
		require.NoError(t, err)
		b, err := f.engine.ConversationRef(f.ctx, first.ID, ownerEmail)
		require.NoError(t, err)
		assert.Equal(t, a.Ref, b.Ref)
		assert.Equal(t, []string{renterEmail, ownerEmail}, a.Participants)

		other, err := f.engine.ConversationRef(f.ctx, second.ID, renterEmail)
		require.NoError(t, err)
		assert.NotEqual(t, a.Ref, other.Ref)

		_, err = f.engine.ConversationRef(f.ctx, first.ID, outsiderEmail)
		assert.True(t, domain.IsKind(err, domain.KindForbidden))
	})
}
