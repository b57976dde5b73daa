package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/provider"
	"peer-rental-core/internal/repository"
)

// SystemActor is recorded as CancelledBy when a job cancels a booking.
const SystemActor = "system"

type bookingService struct {
	*bookingCore
}

// BookingEngine implements BookingService, BookingMaintenance and
// DisputeService over one shared core.
type BookingEngine struct {
	bookingService
	disputeService
}

func NewBookingEngine(repos BookingRepos, gate Gatekeeper, pp PaymentProvider, notifier Notifier, policy Policy) *BookingEngine {
	core := &bookingCore{
		repos:    repos,
		gate:     gate,
		provider: pp,
		notifier: notifier,
		policy:   policy,
		now:      func() time.Time { return time.Now().UTC() },
	}
	return &BookingEngine{
		bookingService: bookingService{core},
		disputeService: disputeService{core},
	}
}

// WithClock replaces the engine's time source.
func (e *BookingEngine) WithClock(now func() time.Time) *BookingEngine {
	e.bookingService.now = now
	return e
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *bookingService) CreateBooking(ctx context.Context, itemID int32, renterEmail string, dates domain.DateRange) (*domain.Booking, error) {
	const op = "create_booking"
	logger.EnterMethod("bookingService.CreateBooking", "itemID", itemID, "renter", renterEmail, "start", dates.Start, "end", dates.End)

	renterEmail = domain.NormalizeEmail(renterEmail)
	if err := dates.Validate(); err != nil {
		return nil, err
	}
	if dates.Start.Before(today(s.now())) {
		return nil, domain.NewValidationError(op, "start date %s is in the past", dates.Start.Format(domain.DateLayout))
	}

	item, err := s.repos.Items.GetByID(ctx, itemID)
	if err != nil {
		return nil, lookupError(op, err, "item %d", itemID)
	}
	if !item.Available {
		return nil, domain.NewValidationError(op, "item %d is not available for rent", itemID)
	}
	if item.OwnerEmail == renterEmail {
		return nil, domain.NewValidationError(op, "owners cannot rent their own item")
	}
	days := dates.Days()
	if !item.AllowsLength(days) {
		return nil, domain.NewValidationError(op, "rental of %d days is outside the item's %d-%d day policy",
			days, item.MinRentalDays, item.MaxRentalDays)
	}

	renter, err := s.repos.Users.GetByEmail(ctx, renterEmail)
	if err != nil {
		return nil, lookupError(op, err, "user %s", renterEmail)
	}
	if !renter.Active {
		return nil, domain.NewGatingFailure(op, domain.PreconditionAccountActive, "renter account is deactivated")
	}

	mode, err := s.resolveMode(ctx, item, renterEmail)
	if err != nil {
		return nil, err
	}

	b := &domain.Booking{
		ItemID:       item.ID,
		RenterEmail:  renterEmail,
		OwnerEmail:   item.OwnerEmail,
		StartDate:    dates.Start,
		EndDate:      dates.End,
		TotalCents:   item.DailyRateCents * days,
		DepositCents: item.DepositCents,
		Mode:         mode,
		State:        mode.InitialState(),
		Charge:       domain.PaymentLeg{Status: domain.PaymentLegNone},
		Deposit:      domain.PaymentLeg{Status: domain.PaymentLegNone},
	}
	if err := s.repos.Bookings.CreateIfAvailable(ctx, b); err != nil {
		switch {
		case errors.Is(err, repository.ErrDateOverlap):
			err = domain.NewValidationError(op, "dates %s to %s overlap an existing booking of item %d",
				dates.Start.Format(domain.DateLayout), dates.End.Format(domain.DateLayout), itemID)
		case errors.Is(err, repository.ErrNotFound):
			err = domain.NewNotFound(op, "item %d not found", itemID)
		}
		logger.ExitMethodWithError("bookingService.CreateBooking", err)
		return nil, err
	}

	logger.Info("Booking created", "booking_id", b.ID, "mode", b.Mode, "state", b.State)
	if mode == domain.BookingModeInstant {
		s.notify(ctx, domain.NotificationBookingCreated, b, "Instant booking confirmed",
			fmt.Sprintf("%s booked item %d from %s to %s", renterEmail, item.ID,
				dates.Start.Format(domain.DateLayout), dates.End.Format(domain.DateLayout)), b.OwnerEmail, b.RenterEmail)
	} else {
		s.notify(ctx, domain.NotificationBookingCreated, b, "New rental request",
			fmt.Sprintf("%s requested item %d from %s to %s", renterEmail, item.ID,
				dates.Start.Format(domain.DateLayout), dates.End.Format(domain.DateLayout)), b.OwnerEmail)
	}
	logger.ExitMethod("bookingService.CreateBooking", "bookingID", b.ID)
	return b, nil
}

// resolveMode picks instant only when every precondition holds right now;
// any missing one falls back to a request.
func (s *bookingService) resolveMode(ctx context.Context, item *domain.Item, renterEmail string) (domain.BookingMode, error) {
	if !item.InstantBookingEnabled {
		return domain.BookingModeRequest, nil
	}
	ownerOK, err := s.gate.CanInstantBook(ctx, item.OwnerEmail)
	if err != nil {
		return "", err
	}
	renterOK, err := s.gate.CanPay(ctx, renterEmail)
	if err != nil {
		return "", err
	}
	if ownerOK && renterOK {
		return domain.BookingModeInstant, nil
	}
	logger.Info("Instant booking unavailable, falling back to request", "itemID", item.ID, "ownerReady", ownerOK, "renterReady", renterOK)
	return domain.BookingModeRequest, nil
}

func (s *bookingService) Decide(ctx context.Context, bookingID int32, ownerEmail string, approve bool, reason string) (*domain.Booking, error) {
	const op = "decide"
	logger.EnterMethod("bookingService.Decide", "bookingID", bookingID, "approve", approve)

	b, _, err := s.mutate(ctx, op, bookingID, func(b *domain.Booking) (*domain.ConditionReport, error) {
		if role, err := participant(op, b, ownerEmail); err != nil || role != domain.ReporterRoleOwner {
			return nil, domain.NewForbidden(op, "only the owner may decide booking %d", b.ID)
		}
		if b.State != domain.BookingStatePendingReview {
			return nil, domain.NewInvalidTransition(op, b.State, "booking %d is not awaiting a decision", b.ID)
		}
		next := domain.BookingStateAwaitingPayment
		if !approve {
			next = domain.BookingStateRejected
			b.RejectionReason = strings.TrimSpace(reason)
		}
		return nil, b.TransitionTo(op, next, s.now())
	})
	if err != nil {
		logger.ExitMethodWithError("bookingService.Decide", err)
		return nil, err
	}

	if approve {
		s.notify(ctx, domain.NotificationBookingDecided, b, "Request approved", "Your rental request was approved, complete payment to confirm", b.RenterEmail)
	} else {
		s.notify(ctx, domain.NotificationBookingDecided, b, "Request declined", "Your rental request was declined", b.RenterEmail)
	}
	logger.ExitMethod("bookingService.Decide", "state", b.State)
	return b, nil
}

type legStart struct {
	kind   domain.PaymentLegKind
	result *provider.LegResult
	err    error
}

// ConfirmPayment gates, starts the missing legs with the provider and records
// their results. Gating is re-read here because verification can regress
// after the booking was created.
func (s *bookingService) ConfirmPayment(ctx context.Context, bookingID int32, renterEmail string) (*domain.Booking, error) {
	const op = "confirm_payment"
	logger.EnterMethod("bookingService.ConfirmPayment", "bookingID", bookingID)

	b, err := s.load(ctx, op, bookingID)
	if err != nil {
		return nil, err
	}
	if role, err := participant(op, b, renterEmail); err != nil || role != domain.ReporterRoleRenter {
		return nil, domain.NewForbidden(op, "only the renter may pay for booking %d", b.ID)
	}
	if !b.State.AwaitsPayment() {
		return nil, domain.NewInvalidTransition(op, b.State, "booking %d is not awaiting payment", b.ID)
	}
	if err := s.gate.RequirePayoutVerified(ctx, op, b.OwnerEmail); err != nil {
		logger.ExitMethodWithError("bookingService.ConfirmPayment", err, "gate", "owner payout")
		return nil, err
	}
	if err := s.gate.RequirePaymentMethod(ctx, op, b.RenterEmail); err != nil {
		logger.ExitMethodWithError("bookingService.ConfirmPayment", err, "gate", "renter payment method")
		return nil, err
	}
	renter, err := s.repos.Users.GetByEmail(ctx, b.RenterEmail)
	if err != nil {
		return nil, lookupError(op, err, "user %s", b.RenterEmail)
	}

	var starts []legStart
	for _, kind := range []domain.PaymentLegKind{domain.PaymentLegCharge, domain.PaymentLegDeposit} {
		if !b.Leg(kind).NeedsInitiation() {
			continue
		}
		amount := b.TotalCents
		if kind == domain.PaymentLegDeposit {
			amount = b.DepositCents
		}
		req := provider.LegRequest{
			IdempotencyKey:   legKey(b.ID, kind, "initiate", b.PaymentAttempt),
			BookingID:        b.ID,
			CustomerEmail:    b.RenterEmail,
			PaymentMethodRef: renter.PaymentMethodRef,
			AmountCents:      amount,
			Description:      fmt.Sprintf("booking %d %s", b.ID, strings.ToLower(string(kind))),
		}
		if amount == 0 {
			starts = append(starts, legStart{kind: kind, result: &provider.LegResult{Status: provider.LegSucceeded}})
			continue
		}
		var res *provider.LegResult
		err := s.callProvider(ctx, "initiate_"+strings.ToLower(string(kind)), func(ctx context.Context) error {
			var callErr error
			if kind == domain.PaymentLegCharge {
				res, callErr = s.provider.InitiateCharge(ctx, req)
			} else {
				res, callErr = s.provider.InitiateDepositHold(ctx, req)
			}
			return callErr
		})
		starts = append(starts, legStart{kind: kind, result: res, err: err})
	}

	attempt := b.PaymentAttempt
	var failure error
	b, _, err = s.mutate(ctx, op, bookingID, func(cur *domain.Booking) (*domain.ConditionReport, error) {
		failure = nil
		changed, declined := false, false
		for _, st := range starts {
			leg := cur.Leg(st.kind)
			name := strings.ToLower(string(st.kind))
			switch {
			case st.err != nil && errors.Is(st.err, provider.ErrDeclined):
				if leg.NeedsInitiation() {
					leg.Status = domain.PaymentLegFailed
					declined = true
				}
				failure = domain.NewProviderFailure(op, st.err, "%s leg was declined", name)
			case st.err != nil:
				failure = domain.NewProviderFailure(op, st.err, "%s leg could not be started", name)
			case leg.NeedsInitiation() && st.result.Status == provider.LegFailed:
				leg.ProviderRef = st.result.Ref
				leg.Status = domain.PaymentLegFailed
				declined = true
				failure = domain.NewProviderFailure(op, provider.ErrDeclined, "%s leg failed", name)
			case leg.NeedsInitiation():
				leg.ProviderRef = st.result.Ref
				leg.Status = domain.PaymentLegNone
				changed = applyLegOutcome(cur, st.kind, st.result.Ref, st.result.Status) || changed
			default:
				changed = applyLegOutcome(cur, st.kind, st.result.Ref, st.result.Status) || changed
			}
		}
		// A decline consumes the attempt so the next confirmation gets fresh keys.
		if declined && cur.PaymentAttempt == attempt {
			cur.PaymentAttempt++
			changed = true
		}
		if cur.State.AwaitsPayment() && cur.PaymentComplete() {
			if err := cur.TransitionTo(op, domain.BookingStateActive, s.now()); err != nil {
				return nil, err
			}
			changed = true
		}
		if !cur.State.AwaitsPayment() && cur.State != domain.BookingStateActive {
			// Cancelled while the provider calls were in flight.
			changed = markForCompensation(cur) || changed
			if !changed {
				return nil, domain.NewInvalidTransition(op, cur.State, "booking %d is no longer awaiting payment", cur.ID)
			}
		}
		if !changed {
			return nil, errUnchanged
		}
		return nil, nil
	})
	if err != nil {
		logger.ExitMethodWithError("bookingService.ConfirmPayment", err)
		return nil, err
	}

	if needsCompensation(b) {
		s.compensate(ctx, b)
		err := domain.NewInvalidTransition(op, b.State, "booking %d was cancelled during payment, funds are being returned", b.ID)
		logger.ExitMethodWithError("bookingService.ConfirmPayment", err)
		return nil, err
	}
	if failure != nil {
		s.notify(ctx, domain.NotificationPaymentFailed, b, "Payment failed", failure.Error(), b.RenterEmail)
		logger.ExitMethodWithError("bookingService.ConfirmPayment", failure, "attempt", b.PaymentAttempt)
		return nil, failure
	}
	if b.State == domain.BookingStateActive {
		s.notify(ctx, domain.NotificationPaymentConfirmed, b, "Booking paid", "Payment captured and deposit held", b.RenterEmail, b.OwnerEmail)
	}
	logger.ExitMethod("bookingService.ConfirmPayment", "state", b.State, "charge", b.Charge.Status, "deposit", b.Deposit.Status)
	return b, nil
}

// OnChargeResult applies an asynchronous leg result. Replays of a token are
// no-ops; the token is recorded only after the result is stored.
func (s *bookingService) OnChargeResult(ctx context.Context, ev domain.ChargeResultEvent) error {
	const op = "on_charge_result"
	logger.EnterMethod("bookingService.OnChargeResult", "token", ev.Token, "bookingID", ev.BookingID, "leg", ev.Leg, "outcome", ev.Outcome)

	if ev.Token == "" || ev.BookingID == 0 {
		return domain.NewValidationError(op, "token and booking id are required")
	}
	if !ev.Leg.Valid() || !ev.Outcome.Valid() {
		return domain.NewValidationError(op, "invalid leg %q or outcome %q", ev.Leg, ev.Outcome)
	}

	seen, err := s.repos.Events.Exists(ctx, ev.Token)
	if err != nil {
		return err
	}
	if seen {
		logger.ExitMethod("bookingService.OnChargeResult", "duplicate", true)
		return nil
	}

	b, err := s.applyResult(ctx, op, ev.BookingID, ev.Leg, ev.ProviderRef, provider.LegStatus(ev.Outcome))
	if err != nil {
		logger.ExitMethodWithError("bookingService.OnChargeResult", err)
		return err
	}

	if _, err := s.repos.Events.Record(ctx, &domain.ProviderEvent{
		Token:   ev.Token,
		Kind:    domain.ProviderEventCharge,
		Subject: fmt.Sprintf("booking:%d:%s", ev.BookingID, strings.ToLower(string(ev.Leg))),
	}); err != nil {
		logger.Warn("Failed to record provider event token", "token", ev.Token, "error", err)
	}
	logger.ExitMethod("bookingService.OnChargeResult", "state", b.State)
	return nil
}

// applyResult stores a leg status reported by the provider and runs the
// follow-ups: activation, compensation and notifications.
func (s *bookingService) applyResult(ctx context.Context, op string, bookingID int32, kind domain.PaymentLegKind, ref string, status provider.LegStatus) (*domain.Booking, error) {
	var (
		before  domain.BookingState
		applied bool
	)
	b, _, err := s.mutate(ctx, op, bookingID, func(cur *domain.Booking) (*domain.ConditionReport, error) {
		before = cur.State
		applied = applyLegOutcome(cur, kind, ref, status)
		if !applied {
			return nil, errUnchanged
		}
		if cur.State.AwaitsPayment() && cur.PaymentComplete() {
			if err := cur.TransitionTo(op, domain.BookingStateActive, s.now()); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	if needsCompensation(b) {
		s.compensate(ctx, b)
	}
	if before != b.State && b.State == domain.BookingStateActive {
		s.notify(ctx, domain.NotificationPaymentConfirmed, b, "Booking paid", "Payment captured and deposit held", b.RenterEmail, b.OwnerEmail)
	}
	if applied && status == provider.LegFailed && b.State.AwaitsPayment() {
		s.notify(ctx, domain.NotificationPaymentFailed, b, "Payment failed",
			fmt.Sprintf("The %s could not be completed, please retry", strings.ToLower(string(kind))), b.RenterEmail)
	}
	return b, nil
}

func (s *bookingService) ConfirmPickup(ctx context.Context, bookingID int32, reporterEmail string, in domain.ReportInput) (*domain.Booking, *domain.ConditionReport, error) {
	const op = "confirm_pickup"
	if err := in.Validate(op); err != nil {
		return nil, nil, err
	}
	return s.mutate(ctx, op, bookingID, func(b *domain.Booking) (*domain.ConditionReport, error) {
		role, err := participant(op, b, reporterEmail)
		if err != nil {
			return nil, err
		}
		if b.State != domain.BookingStateActive {
			return nil, domain.NewInvalidTransition(op, b.State, "pickup can only be confirmed on an active booking")
		}
		return newReport(b, domain.ReportTypePickup, reporterEmail, role, in), nil
	})
}

// ConfirmReturn files the return report. Its content alone decides between
// completed and disputed.
func (s *bookingService) ConfirmReturn(ctx context.Context, bookingID int32, reporterEmail string, in domain.ReportInput) (*domain.Booking, *domain.ConditionReport, error) {
	const op = "confirm_return"
	logger.EnterMethod("bookingService.ConfirmReturn", "bookingID", bookingID, "damages", len(in.Damages))
	if err := in.Validate(op); err != nil {
		return nil, nil, err
	}

	b, cr, err := s.mutate(ctx, op, bookingID, func(b *domain.Booking) (*domain.ConditionReport, error) {
		role, err := participant(op, b, reporterEmail)
		if err != nil {
			return nil, err
		}
		if b.State != domain.BookingStateActive {
			return nil, domain.NewInvalidTransition(op, b.State, "return can only be confirmed on an active booking")
		}
		cr := newReport(b, domain.ReportTypeReturn, reporterEmail, role, in)
		if err := b.ApplyReturnReport(op, cr, s.now()); err != nil {
			return nil, err
		}
		return cr, nil
	})
	if err != nil {
		logger.ExitMethodWithError("bookingService.ConfirmReturn", err)
		return nil, nil, err
	}

	if b.State == domain.BookingStateDisputed {
		s.notify(ctx, domain.NotificationDisputeOpened, b, "Dispute opened",
			fmt.Sprintf("The return report lists %d damage(s)", len(cr.Damages)), b.RenterEmail, b.OwnerEmail)
	} else {
		s.notify(ctx, domain.NotificationBookingCompleted, b, "Rental completed", "The item was returned in good condition", b.RenterEmail, b.OwnerEmail)
	}
	logger.ExitMethod("bookingService.ConfirmReturn", "state", b.State)
	return b, cr, nil
}

// Cancel is allowed before the booking is active. Money already held is
// returned by compensation after the cancellation commits.
func (s *bookingService) Cancel(ctx context.Context, bookingID int32, byEmail string) (*domain.Booking, error) {
	const op = "cancel"
	logger.EnterMethod("bookingService.Cancel", "bookingID", bookingID, "by", byEmail)

	b, _, err := s.mutate(ctx, op, bookingID, func(b *domain.Booking) (*domain.ConditionReport, error) {
		if _, err := participant(op, b, byEmail); err != nil {
			return nil, err
		}
		if err := b.TransitionTo(op, domain.BookingStateCancelled, s.now()); err != nil {
			return nil, err
		}
		b.CancelledBy = domain.NormalizeEmail(byEmail)
		markForCompensation(b)
		return nil, nil
	})
	if err != nil {
		logger.ExitMethodWithError("bookingService.Cancel", err)
		return nil, err
	}

	if needsCompensation(b) {
		s.compensate(ctx, b)
	}
	s.notify(ctx, domain.NotificationBookingCancelled, b, "Booking cancelled",
		fmt.Sprintf("Booking %d was cancelled by %s", b.ID, b.CancelledBy), b.Counterparty(byEmail))
	logger.ExitMethod("bookingService.Cancel", "charge", b.Charge.Status, "deposit", b.Deposit.Status)
	return b, nil
}

func (s *bookingService) GetBooking(ctx context.Context, bookingID int32, callerEmail string) (*domain.Booking, error) {
	const op = "get_booking"
	b, err := s.load(ctx, op, bookingID)
	if err != nil {
		return nil, err
	}
	if _, err := participant(op, b, callerEmail); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *bookingService) ListBookings(ctx context.Context, email string, role domain.ReporterRole, states []domain.BookingState, page, pageSize int32) ([]domain.Booking, int32, error) {
	const op = "list_bookings"
	filter := repository.BookingFilter{States: states, Page: page, PageSize: pageSize}
	switch role {
	case domain.ReporterRoleOwner:
		filter.OwnerEmail = domain.NormalizeEmail(email)
	case domain.ReporterRoleRenter, "":
		filter.RenterEmail = domain.NormalizeEmail(email)
	default:
		return nil, 0, domain.NewValidationError(op, "unknown role %q", role)
	}
	for _, st := range states {
		if !st.Valid() {
			return nil, 0, domain.NewValidationError(op, "unknown state %q", st)
		}
	}
	if pageSize > 100 {
		return nil, 0, domain.NewValidationError(op, "page size must not exceed 100")
	}
	return s.repos.Bookings.List(ctx, filter)
}

// ConversationRef hands the messaging collaborator a stable thread key.
func (s *bookingService) ConversationRef(ctx context.Context, bookingID int32, callerEmail string) (*domain.ConversationRef, error) {
	const op = "conversation_ref"
	b, err := s.load(ctx, op, bookingID)
	if err != nil {
		return nil, err
	}
	if _, err := participant(op, b, callerEmail); err != nil {
		return nil, err
	}
	return &domain.ConversationRef{
		BookingID:    b.ID,
		Ref:          uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("booking:%d", b.ID))).String(),
		Participants: []string{b.RenterEmail, b.OwnerEmail},
	}, nil
}

// ReconcilePayments retries pending compensations and polls the provider
// for legs still pending. It returns the number of bookings touched.
func (s *bookingService) ReconcilePayments(ctx context.Context) (int, error) {
	bookings, err := s.repos.Bookings.ListWithOpenPaymentLegs(ctx)
	if err != nil {
		return 0, err
	}

	touched := 0
	for i := range bookings {
		b := &bookings[i]
		if ctx.Err() != nil {
			return touched, ctx.Err()
		}
		if needsCompensation(b) {
			s.compensate(ctx, b)
			touched++
		}
		for _, kind := range []domain.PaymentLegKind{domain.PaymentLegCharge, domain.PaymentLegDeposit} {
			leg := *b.Leg(kind)
			if leg.Status != domain.PaymentLegPending || leg.ProviderRef == "" {
				continue
			}
			var res *provider.LegResult
			err := s.callProvider(ctx, "get_leg_status", func(ctx context.Context) error {
				var callErr error
				res, callErr = s.provider.GetLegStatus(ctx, leg.ProviderRef)
				return callErr
			})
			if err != nil {
				logger.Warn("Leg status poll failed", "booking_id", b.ID, "leg", kind, "error", err)
				continue
			}
			if res.Status == provider.LegPending {
				continue
			}
			updated, err := s.applyResult(ctx, "reconcile_payments", b.ID, kind, leg.ProviderRef, res.Status)
			if err != nil {
				logger.Warn("Failed to apply polled leg status", "booking_id", b.ID, "leg", kind, "error", err)
				continue
			}
			*b = *updated
			touched++
		}
	}
	return touched, nil
}

// ExpireStaleRequests cancels requests the owner never answered.
func (s *bookingService) ExpireStaleRequests(ctx context.Context) (int, error) {
	const op = "expire_stale_requests"
	cutoff := s.now().Add(-s.policy.RequestExpiry)
	stale, err := s.repos.Bookings.ListStale(ctx, domain.BookingStatePendingReview, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range stale {
		b, _, err := s.mutate(ctx, op, candidate.ID, func(b *domain.Booking) (*domain.ConditionReport, error) {
			if b.State != domain.BookingStatePendingReview {
				return nil, errUnchanged
			}
			b.CancelledBy = SystemActor
			return nil, b.TransitionTo(op, domain.BookingStateCancelled, s.now())
		})
		if err != nil {
			logger.Warn("Failed to expire request", "booking_id", candidate.ID, "error", err)
			continue
		}
		if b.State != domain.BookingStateCancelled || b.CancelledBy != SystemActor {
			continue
		}
		expired++
		s.notify(ctx, domain.NotificationBookingCancelled, b, "Request expired",
			"The owner did not answer in time, the request was cancelled", b.RenterEmail, b.OwnerEmail)
	}
	return expired, nil
}
