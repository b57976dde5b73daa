// Package provider talks to the external payment and verification provider.
package provider

import (
	"errors"
)

var (
	// ErrUnavailable marks transport failures, timeouts and 5xx answers. Only
	// these are worth retrying, and only for idempotent calls.
	ErrUnavailable = errors.New("payment provider unavailable")
	// ErrDeclined means the provider refused the request (card declined,
	// insufficient funds, onboarding rejected).
	ErrDeclined = errors.New("payment provider declined the request")
)

type LegStatus string

const (
	LegPending   LegStatus = "PENDING"
	LegSucceeded LegStatus = "SUCCEEDED"
	LegFailed    LegStatus = "FAILED"
)

// LegRequest starts a charge or a deposit hold. The provider deduplicates on
// IdempotencyKey so a retried request never moves money twice.
type LegRequest struct {
	IdempotencyKey   string `json:"idempotency_key"`
	BookingID        int32  `json:"booking_id"`
	CustomerEmail    string `json:"customer_email"`
	PaymentMethodRef string `json:"payment_method_ref"`
	AmountCents      int32  `json:"amount_cents"`
	Description      string `json:"description"`
}

type LegResult struct {
	Ref    string    `json:"ref"`
	Status LegStatus `json:"status"`
}

// Session is a hosted onboarding flow the client is redirected to.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
