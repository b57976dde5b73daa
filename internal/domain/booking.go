package domain

import (
	"time"
)

type BookingState string

const (
	BookingStatePendingReview    BookingState = "PENDING_REVIEW"
	BookingStateInstantConfirmed BookingState = "INSTANT_CONFIRMED"
	BookingStateRejected         BookingState = "REJECTED"
	BookingStateAwaitingPayment  BookingState = "AWAITING_PAYMENT"
	BookingStateActive           BookingState = "ACTIVE"
	BookingStateCompleted        BookingState = "COMPLETED"
	BookingStateDisputed         BookingState = "DISPUTED"
	BookingStateCancelled        BookingState = "CANCELLED"
)

var bookingTransitions = map[BookingState][]BookingState{
	BookingStatePendingReview:    {BookingStateAwaitingPayment, BookingStateRejected, BookingStateCancelled},
	BookingStateInstantConfirmed: {BookingStateActive, BookingStateCancelled},
	BookingStateAwaitingPayment:  {BookingStateActive, BookingStateCancelled},
	BookingStateActive:           {BookingStateCompleted, BookingStateDisputed},
	BookingStateCompleted:        {BookingStateDisputed},
}

// CalendarBlockingStates hold the item's dates; two bookings in these states
// may never share a day.
var CalendarBlockingStates = []BookingState{
	BookingStatePendingReview,
	BookingStateInstantConfirmed,
	BookingStateAwaitingPayment,
	BookingStateActive,
}

func (s BookingState) CanTransitionTo(next BookingState) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingState) BlocksCalendar() bool {
	for _, st := range CalendarBlockingStates {
		if st == s {
			return true
		}
	}
	return false
}

// AwaitsPayment is true for the two pre-payment states confirmPayment accepts.
func (s BookingState) AwaitsPayment() bool {
	return s == BookingStateInstantConfirmed || s == BookingStateAwaitingPayment
}

func (s BookingState) Valid() bool {
	switch s {
	case BookingStatePendingReview, BookingStateInstantConfirmed, BookingStateRejected,
		BookingStateAwaitingPayment, BookingStateActive, BookingStateCompleted,
		BookingStateDisputed, BookingStateCancelled:
		return true
	}
	return false
}

type BookingMode string

const (
	BookingModeInstant BookingMode = "INSTANT"
	BookingModeRequest BookingMode = "REQUEST"
)

// InitialState is fixed by the mode chosen at creation time.
func (m BookingMode) InitialState() BookingState {
	if m == BookingModeInstant {
		return BookingStateInstantConfirmed
	}
	return BookingStatePendingReview
}

type PaymentLegKind string

const (
	PaymentLegCharge  PaymentLegKind = "CHARGE"
	PaymentLegDeposit PaymentLegKind = "DEPOSIT"
)

func (k PaymentLegKind) Valid() bool {
	return k == PaymentLegCharge || k == PaymentLegDeposit
}

// PaymentLegStatus tracks one provider leg. For the charge leg SUCCEEDED means
// captured and COMPENSATED means refunded; for the deposit leg they mean
// authorized and released.
type PaymentLegStatus string

const (
	PaymentLegNone                PaymentLegStatus = "NONE"
	PaymentLegPending             PaymentLegStatus = "PENDING"
	PaymentLegSucceeded           PaymentLegStatus = "SUCCEEDED"
	PaymentLegFailed              PaymentLegStatus = "FAILED"
	PaymentLegCompensationPending PaymentLegStatus = "COMPENSATION_PENDING"
	PaymentLegCompensated         PaymentLegStatus = "COMPENSATED"
)

type PaymentLeg struct {
	Status      PaymentLegStatus `json:"status"`
	ProviderRef string           `json:"provider_ref,omitempty"`
}

// NeedsInitiation is true when no provider call is outstanding or succeeded.
func (l PaymentLeg) NeedsInitiation() bool {
	return l.Status == "" || l.Status == PaymentLegNone || l.Status == PaymentLegFailed
}

// Holds reports whether the provider may hold money for this leg.
func (l PaymentLeg) Holds() bool {
	return l.Status == PaymentLegPending || l.Status == PaymentLegSucceeded
}

type Booking struct {
	ID                int32        `json:"id"`
	ItemID            int32        `json:"item_id"`
	RenterEmail       string       `json:"renter_email"`
	OwnerEmail        string       `json:"owner_email"`
	StartDate         time.Time    `json:"start_date"`
	EndDate           time.Time    `json:"end_date"`
	TotalCents        int32        `json:"total_cents"`
	DepositCents      int32        `json:"deposit_cents"`
	Mode              BookingMode  `json:"mode"`
	State             BookingState `json:"state"`
	Charge            PaymentLeg   `json:"charge"`
	Deposit           PaymentLeg   `json:"deposit"`
	PaymentAttempt    int32        `json:"payment_attempt"`
	CancelledBy       string       `json:"cancelled_by,omitempty"`
	RejectionReason   string       `json:"rejection_reason,omitempty"`
	DisputeResolution string       `json:"dispute_resolution,omitempty"`
	DecidedAt         *time.Time   `json:"decided_at,omitempty"`
	PaidAt            *time.Time   `json:"paid_at,omitempty"`
	CompletedAt       *time.Time   `json:"completed_at,omitempty"`
	DisputedAt        *time.Time   `json:"disputed_at,omitempty"`
	DisputeResolvedAt *time.Time   `json:"dispute_resolved_at,omitempty"`
	CreatedOn         time.Time    `json:"created_on"`
	UpdatedOn         time.Time    `json:"updated_on"`
	Version           int32        `json:"version"`
}

func (b *Booking) Dates() DateRange {
	return DateRange{Start: b.StartDate, End: b.EndDate}
}

func (b *Booking) Leg(kind PaymentLegKind) *PaymentLeg {
	if kind == PaymentLegDeposit {
		return &b.Deposit
	}
	return &b.Charge
}

// RoleOf returns the participant role of email, or "" for outsiders.
func (b *Booking) RoleOf(email string) ReporterRole {
	switch NormalizeEmail(email) {
	case b.RenterEmail:
		return ReporterRoleRenter
	case b.OwnerEmail:
		return ReporterRoleOwner
	}
	return ""
}

// Counterparty returns the other participant's email.
func (b *Booking) Counterparty(email string) string {
	if NormalizeEmail(email) == b.RenterEmail {
		return b.OwnerEmail
	}
	return b.RenterEmail
}

func (b *Booking) PaymentComplete() bool {
	return b.Charge.Status == PaymentLegSucceeded && b.Deposit.Status == PaymentLegSucceeded
}

func (b *Booking) HasOpenDispute() bool {
	return b.State == BookingStateDisputed && b.DisputeResolvedAt == nil
}

// TransitionTo moves the booking along the lifecycle graph and stamps the
// matching timestamp.
func (b *Booking) TransitionTo(op string, next BookingState, now time.Time) error {
	if !b.State.CanTransitionTo(next) {
		return NewInvalidTransition(op, b.State, "cannot move booking %d to %s", b.ID, next)
	}
	b.State = next
	switch next {
	case BookingStateAwaitingPayment, BookingStateRejected:
		b.DecidedAt = &now
	case BookingStateActive:
		b.PaidAt = &now
	case BookingStateCompleted:
		b.CompletedAt = &now
	case BookingStateDisputed:
		b.DisputedAt = &now
	}
	return nil
}

// ApplyReturnReport derives the post-return state from report content alone:
// damages open a dispute, a clean report completes the booking. Late dispute
// reports follow the same rule.
func (b *Booking) ApplyReturnReport(op string, r *ConditionReport, now time.Time) error {
	if r.Type != ReportTypeReturn && r.Type != ReportTypeDispute {
		return NewValidationError(op, "only return or dispute reports settle a booking")
	}
	if r.Type == ReportTypeDispute && !r.HasDamages() {
		return NewValidationError(op, "a dispute report must list damages")
	}
	if r.HasDamages() {
		return b.TransitionTo(op, BookingStateDisputed, now)
	}
	if b.State != BookingStateActive {
		return NewInvalidTransition(op, b.State, "an undamaged return report only completes an active booking")
	}
	return b.TransitionTo(op, BookingStateCompleted, now)
}
