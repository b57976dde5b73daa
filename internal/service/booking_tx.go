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

// BookingRepos groups the stores the booking engine reads and writes.
type BookingRepos struct {
	Bookings repository.BookingRepository
	Items    repository.ItemRepository
	Users    repository.UserRepository
	Reports  repository.ConditionReportRepository
	Events   repository.ProviderEventRepository
}

// bookingCore holds what the booking and dispute services share: the
// versioned mutate loop, provider plumbing and notification fan-out.
type bookingCore struct {
	repos    BookingRepos
	gate     Gatekeeper
	provider PaymentProvider
	notifier Notifier
	policy   Policy
	now      func() time.Time
}

type mutation func(b *domain.Booking) (*domain.ConditionReport, error)

// mutate loads the booking, applies fn and saves it together with the report
// fn returns. A lost version race reloads and reapplies fn, so a concurrent
// winner's transition is seen and rejected by fn on the next pass.
func (c *bookingCore) mutate(ctx context.Context, op string, id int32, fn mutation) (*domain.Booking, *domain.ConditionReport, error) {
	var (
		result *domain.Booking
		report *domain.ConditionReport
	)
	err := retryWithBackoff(ctx, op, isVersionConflict, func(ctx context.Context) error {
		b, err := c.repos.Bookings.GetByID(ctx, id)
		if err != nil {
			return lookupError(op, err, "booking %d", id)
		}
		from := b.State
		cr, err := fn(b)
		if err != nil {
			if errors.Is(err, errUnchanged) {
				result, report = b, nil
				return nil
			}
			return err
		}
		if err := c.repos.Bookings.Save(ctx, b, cr); err != nil {
			if errors.Is(err, repository.ErrAlreadyExists) {
				return domain.NewValidationError(op, "a %s report by %s already exists for booking %d",
					strings.ToLower(string(cr.Type)), cr.ReportedBy, id)
			}
			return err
		}
		if from != b.State {
			logger.Info("Booking transitioned", "booking_id", b.ID, "from", from, "to", b.State, "operation", op)
		}
		result, report = b, cr
		return nil
	}, c.policy.ConflictRetry.options()...)
	if err != nil {
		if isVersionConflict(err) {
			return nil, nil, domain.NewConcurrencyConflict(op, err)
		}
		return nil, nil, err
	}
	return result, report, nil
}

func (c *bookingCore) load(ctx context.Context, op string, id int32) (*domain.Booking, error) {
	b, err := c.repos.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(op, err, "booking %d", id)
	}
	return b, nil
}

// participant returns the caller's role or FORBIDDEN for outsiders.
func participant(op string, b *domain.Booking, email string) (domain.ReporterRole, error) {
	role := b.RoleOf(email)
	if role == "" {
		return "", domain.NewForbidden(op, "%s is not a participant of booking %d", domain.NormalizeEmail(email), b.ID)
	}
	return role, nil
}

func newReport(b *domain.Booking, typ domain.ReportType, email string, role domain.ReporterRole, in domain.ReportInput) *domain.ConditionReport {
	return &domain.ConditionReport{
		BookingID:    b.ID,
		Type:         typ,
		ReportedBy:   domain.NormalizeEmail(email),
		ReporterRole: role,
		Notes:        strings.TrimSpace(in.Notes),
		Damages:      in.Damages,
		Photos:       in.Photos,
	}
}

// legKey derives a stable idempotency key for one provider action on one leg.
// Retries of the same attempt reuse it; a new attempt after a failure does not.
func legKey(bookingID int32, leg domain.PaymentLegKind, action string, attempt int32) string {
	name := fmt.Sprintf("booking-%d-%s-%s-%d", bookingID, strings.ToLower(string(leg)), action, attempt)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func (c *bookingCore) callProvider(ctx context.Context, name string, fn retryableFunc) error {
	return retryWithBackoff(ctx, name, isProviderUnavailable, fn, c.policy.ProviderRetry.options()...)
}

// markForCompensation flags every leg that may hold money so a refund or a
// release follows the cancellation.
func markForCompensation(b *domain.Booking) bool {
	marked := false
	for _, kind := range []domain.PaymentLegKind{domain.PaymentLegCharge, domain.PaymentLegDeposit} {
		leg := b.Leg(kind)
		if leg.Holds() {
			leg.Status = domain.PaymentLegCompensationPending
			marked = true
		}
	}
	return marked
}

// compensate refunds the charge and releases the deposit of legs marked
// COMPENSATION_PENDING. Failures are logged and left for the reconciler.
func (c *bookingCore) compensate(ctx context.Context, b *domain.Booking) {
	for _, kind := range []domain.PaymentLegKind{domain.PaymentLegCharge, domain.PaymentLegDeposit} {
		leg := *b.Leg(kind)
		if leg.Status != domain.PaymentLegCompensationPending {
			continue
		}
		if leg.ProviderRef != "" {
			key := legKey(b.ID, kind, "compensate", b.PaymentAttempt)
			err := c.callProvider(ctx, "compensate_"+strings.ToLower(string(kind)), func(ctx context.Context) error {
				if kind == domain.PaymentLegCharge {
					return c.provider.RefundCharge(ctx, leg.ProviderRef, key)
				}
				return c.provider.ReleaseDepositHold(ctx, leg.ProviderRef, key)
			})
			if err != nil {
				logger.Error("Compensation failed, left for reconciliation", "booking_id", b.ID, "leg", kind, "ref", leg.ProviderRef, "error", err)
				continue
			}
		}
		updated, _, err := c.mutate(ctx, "compensate", b.ID, func(cur *domain.Booking) (*domain.ConditionReport, error) {
			l := cur.Leg(kind)
			if l.Status != domain.PaymentLegCompensationPending {
				return nil, errUnchanged
			}
			l.Status = domain.PaymentLegCompensated
			return nil, nil
		})
		if err != nil {
			logger.Error("Failed to record compensation", "booking_id", b.ID, "leg", kind, "error", err)
			continue
		}
		*b = *updated
		logger.Info("Payment leg compensated", "booking_id", b.ID, "leg", kind)
	}
}

// applyLegOutcome folds a provider result into a leg. It ignores results for
// a superseded provider reference and never moves a settled leg backwards.
func applyLegOutcome(b *domain.Booking, kind domain.PaymentLegKind, ref string, status provider.LegStatus) bool {
	leg := b.Leg(kind)
	if leg.ProviderRef != "" && ref != "" && leg.ProviderRef != ref {
		return false
	}
	switch leg.Status {
	case domain.PaymentLegSucceeded, domain.PaymentLegCompensationPending, domain.PaymentLegCompensated:
		return false
	}
	if leg.Status == domain.PaymentLegFailed && leg.ProviderRef == ref {
		return false
	}

	if ref != "" {
		leg.ProviderRef = ref
	}
	switch status {
	case provider.LegSucceeded:
		leg.Status = domain.PaymentLegSucceeded
		if !b.State.AwaitsPayment() {
			// The booking was cancelled while the leg was in flight.
			leg.Status = domain.PaymentLegCompensationPending
		}
	case provider.LegFailed:
		leg.Status = domain.PaymentLegFailed
		b.PaymentAttempt++
	case provider.LegPending:
		if leg.Status == domain.PaymentLegPending {
			return false
		}
		leg.Status = domain.PaymentLegPending
		if !b.State.AwaitsPayment() {
			leg.Status = domain.PaymentLegCompensationPending
		}
	default:
		return false
	}
	return true
}

func needsCompensation(b *domain.Booking) bool {
	return b.Charge.Status == domain.PaymentLegCompensationPending || b.Deposit.Status == domain.PaymentLegCompensationPending
}

func (c *bookingCore) notify(ctx context.Context, typ domain.NotificationType, b *domain.Booking, title, message string, recipients ...string) {
	c.notifier.Notify(ctx, domain.NotificationEvent{
		Type:       typ,
		Recipients: recipients,
		Title:      title,
		Message:    message,
		Attributes: map[string]string{
			"booking_id": fmt.Sprintf("%d", b.ID),
			"item_id":    fmt.Sprintf("%d", b.ItemID),
			"state":      string(b.State),
		},
	})
}
