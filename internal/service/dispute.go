package service

import (
	"context"
	"fmt"
	"strings"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/logger"
)

type disputeService struct {
	*bookingCore
}

// RaiseDispute opens a dispute on a completed booking within the grace
// window. The damage report is its own DISPUTE entry, so the party who
// checked the item in clean can still raise one.
func (s *disputeService) RaiseDispute(ctx context.Context, bookingID int32, reporterEmail string, in domain.ReportInput) (*domain.Booking, *domain.ConditionReport, error) {
	const op = "raise_dispute"
	logger.EnterMethod("disputeService.RaiseDispute", "bookingID", bookingID, "reporter", reporterEmail)

	if len(in.Damages) == 0 {
		return nil, nil, domain.NewValidationError(op, "a dispute must list at least one damage")
	}
	if err := in.Validate(op); err != nil {
		return nil, nil, err
	}

	b, cr, err := s.mutate(ctx, op, bookingID, func(b *domain.Booking) (*domain.ConditionReport, error) {
		role, err := participant(op, b, reporterEmail)
		if err != nil {
			return nil, err
		}
		if b.State != domain.BookingStateCompleted {
			return nil, domain.NewInvalidTransition(op, b.State, "disputes can only be raised on a completed booking")
		}
		if b.CompletedAt == nil || s.now().After(b.CompletedAt.Add(s.policy.DisputeGrace)) {
			return nil, domain.NewValidationError(op, "the %s dispute window after completion has passed", s.policy.DisputeGrace)
		}
		cr := newReport(b, domain.ReportTypeDispute, reporterEmail, role, in)
		if err := b.ApplyReturnReport(op, cr, s.now()); err != nil {
			return nil, err
		}
		return cr, nil
	})
	if err != nil {
		logger.ExitMethodWithError("disputeService.RaiseDispute", err)
		return nil, nil, err
	}

	s.notify(ctx, domain.NotificationDisputeOpened, b, "Dispute opened",
		fmt.Sprintf("%s reported %d damage(s) after the rental completed", cr.ReportedBy, len(cr.Damages)),
		b.RenterEmail, b.OwnerEmail)
	logger.ExitMethod("disputeService.RaiseDispute", "state", b.State)
	return b, cr, nil
}

// ResolveDispute records the outcome reached outside the core. The booking
// stays DISPUTED; only the open flag clears.
func (s *disputeService) ResolveDispute(ctx context.Context, bookingID int32, resolution string) (*domain.Booking, error) {
	const op = "resolve_dispute"
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		return nil, domain.NewValidationError(op, "resolution is required")
	}

	b, _, err := s.mutate(ctx, op, bookingID, func(b *domain.Booking) (*domain.ConditionReport, error) {
		if !b.HasOpenDispute() {
			return nil, domain.NewInvalidTransition(op, b.State, "booking %d has no open dispute", b.ID)
		}
		now := s.now()
		b.DisputeResolution = resolution
		b.DisputeResolvedAt = &now
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Dispute resolved", "booking_id", b.ID)
	s.notify(ctx, domain.NotificationDisputeResolved, b, "Dispute resolved", resolution, b.RenterEmail, b.OwnerEmail)
	return b, nil
}

func (s *disputeService) HasOpenDispute(ctx context.Context, bookingID int32) (bool, error) {
	b, err := s.load(ctx, "has_open_dispute", bookingID)
	if err != nil {
		return false, err
	}
	return b.HasOpenDispute(), nil
}

func (s *disputeService) ListReports(ctx context.Context, bookingID int32, callerEmail string) ([]domain.ConditionReport, error) {
	const op = "list_reports"
	b, err := s.load(ctx, op, bookingID)
	if err != nil {
		return nil, err
	}
	if _, err := participant(op, b, callerEmail); err != nil {
		return nil, err
	}
	return s.repos.Reports.ListByBooking(ctx, bookingID)
}
