package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/provider"
	"peer-rental-core/internal/repository/memory"
	"peer-rental-core/internal/service"
)

func TestVerificationService(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Users().Create(ctx, &domain.User{
		Email:                ownerEmail,
		IdentityVerification: domain.VerificationUnverified,
		PayoutVerification:   domain.VerificationUnverified,
		Active:               true,
	}))

	pp := new(MockPaymentProvider)
	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything).Return()
	svc := service.NewVerificationService(store.Users(), store.ProviderEvents(), pp, notifier, testPolicy())
	gate := service.NewGatekeeper(store.Users())

	t.Run("Submit opens a session", func(t *testing.T) {
		pp.On("InitiatePayoutOnboarding", mock.Anything, ownerEmail).Return(&provider.Session{ID: "sess_1", URL: "https://provider.test/onboard"}, nil).Once()

		u, session, err := svc.SubmitPayout(ctx, ownerEmail)
		require.NoError(t, err)
		assert.Equal(t, domain.VerificationPending, u.PayoutVerification)
		require.NotNil(t, session)
		assert.Equal(t, "sess_1", session.ID)

		u, session, err = svc.SubmitPayout(ctx, ownerEmail)
		require.NoError(t, err)
		assert.Nil(t, session)
		assert.Equal(t, domain.VerificationPending, u.PayoutVerification)
		pp.AssertNumberOfCalls(t, "InitiatePayoutOnboarding", 1)
	})

	t.Run("Verified callback unlocks instant booking", func(t *testing.T) {
		ok, err := gate.CanInstantBook(ctx, ownerEmail)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, svc.OnPayoutStatus(ctx, domain.VerificationEvent{Token: "pv_1", Email: ownerEmail, Outcome: domain.OutcomeVerified}))

		u, err := svc.GetVerification(ctx, ownerEmail)
		require.NoError(t, err)
		assert.Equal(t, domain.VerificationVerified, u.PayoutVerification)
		assert.Equal(t, domain.VerificationUnverified, u.IdentityVerification)
		notifier.AssertCalled(t, "Notify", mock.Anything, ofType(domain.NotificationVerificationUpdated))

		ok, err = gate.CanInstantBook(ctx, ownerEmail)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Verified is sticky for submissions", func(t *testing.T) {
		_, _, err := svc.SubmitPayout(ctx, ownerEmail)
		assert.True(t, domain.IsKind(err, domain.KindInvalidTransition))
	})

	t.Run("Replayed token is ignored", func(t *testing.T) {
		require.NoError(t, svc.OnPayoutStatus(ctx, domain.VerificationEvent{Token: "pv_1", Email: ownerEmail, Outcome: domain.OutcomeRevoked}))
		u, err := svc.GetVerification(ctx, ownerEmail)
		require.NoError(t, err)
		assert.Equal(t, domain.VerificationVerified, u.PayoutVerification)
	})

	t.Run("Revocation closes the gate", func(t *testing.T) {
		require.NoError(t, svc.OnPayoutStatus(ctx, domain.VerificationEvent{Token: "pv_2", Email: ownerEmail, Outcome: domain.OutcomeRevoked}))

		err := gate.RequirePayoutVerified(ctx, "confirm_payment", ownerEmail)
		assert.True(t, domain.IsKind(err, domain.KindGatingFailure))
		assert.Equal(t, domain.PreconditionPayoutVerification, domain.PreconditionOf(err))
	})

	t.Run("Stale verified callback does not undo a revocation", func(t *testing.T) {
		require.NoError(t, svc.OnPayoutStatus(ctx, domain.VerificationEvent{Token: "pv_late", Email: ownerEmail, Outcome: domain.OutcomeVerified}))

		u, err := svc.GetVerification(ctx, ownerEmail)
		require.NoError(t, err)
		assert.Equal(t, domain.VerificationFailed, u.PayoutVerification)

		ok, err := gate.CanCapturePayment(ctx, ownerEmail)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Identity result before submission", func(t *testing.T) {
		require.NoError(t, svc.OnIdentityStatus(ctx, domain.VerificationEvent{Token: "id_1", Email: " OWNER@test.com ", Outcome: domain.OutcomeVerified}))
		u, err := svc.GetVerification(ctx, ownerEmail)
		require.NoError(t, err)
		assert.Equal(t, domain.VerificationVerified, u.IdentityVerification)
	})

	t.Run("Invalid callbacks", func(t *testing.T) {
		err := svc.OnPayoutStatus(ctx, domain.VerificationEvent{Email: ownerEmail, Outcome: domain.OutcomeVerified})
		assert.True(t, domain.IsKind(err, domain.KindValidation))

		err = svc.OnPayoutStatus(ctx, domain.VerificationEvent{Token: "pv_3", Email: ownerEmail, Outcome: "MAYBE"})
		assert.True(t, domain.IsKind(err, domain.KindValidation))

		err = svc.OnPayoutStatus(ctx, domain.VerificationEvent{Token: "pv_4", Email: "ghost@test.com", Outcome: domain.OutcomeVerified})
		assert.True(t, domain.IsKind(err, domain.KindNotFound))
	})

	t.Run("Provider failure leaves the status alone", func(t *testing.T) {
		require.NoError(t, store.Users().Create(ctx, &domain.User{Email: renterEmail, Active: true,
			IdentityVerification: domain.VerificationUnverified, PayoutVerification: domain.VerificationUnverified}))
		pp.On("InitiateIdentitySession", mock.Anything, renterEmail).Return(nil, provider.ErrUnavailable).Once()

		_, _, err := svc.SubmitIdentity(ctx, renterEmail)
		assert.True(t, domain.IsKind(err, domain.KindExternalProvider))

		u, err := svc.GetVerification(ctx, renterEmail)
		require.NoError(t, err)
		assert.Equal(t, domain.VerificationUnverified, u.IdentityVerification)
	})
}

func TestPaymentMethodService(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Users().Create(ctx, &domain.User{Email: renterEmail, Active: true}))
	svc := service.NewPaymentMethodService(store.Users(), testPolicy())
	gate := service.NewGatekeeper(store.Users())

	_, err := svc.AttachPaymentMethod(ctx, renterEmail, " ")
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	u, err := svc.AttachPaymentMethod(ctx, renterEmail, "pm_123")
	require.NoError(t, err)
	assert.True(t, u.HasPaymentMethod)
	assert.Equal(t, "pm_123", u.PaymentMethodRef)

	ok, err := gate.CanPay(ctx, renterEmail)
	require.NoError(t, err)
	assert.True(t, ok)

	u, err = svc.DetachPaymentMethod(ctx, renterEmail)
	require.NoError(t, err)
	assert.False(t, u.HasPaymentMethod)
	assert.Empty(t, u.PaymentMethodRef)

	has, err := svc.HasPaymentMethod(ctx, renterEmail)
	require.NoError(t, err)
	assert.False(t, has)

	err = gate.RequirePaymentMethod(ctx, "confirm_payment", renterEmail)
	assert.Equal(t, domain.PreconditionPaymentMethod, domain.PreconditionOf(err))
}
