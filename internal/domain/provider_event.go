package domain

import "time"

type ProviderEventKind string

const (
	ProviderEventCharge   ProviderEventKind = "CHARGE"
	ProviderEventIdentity ProviderEventKind = "IDENTITY"
	ProviderEventPayout   ProviderEventKind = "PAYOUT"
)

// ProviderEvent is the dedup record of a processed provider callback.
type ProviderEvent struct {
	Token      string            `json:"token"`
	Kind       ProviderEventKind `json:"kind"`
	Subject    string            `json:"subject"`
	ReceivedOn time.Time         `json:"received_on"`
}

type LegOutcome string

const (
	LegOutcomeSucceeded LegOutcome = "SUCCEEDED"
	LegOutcomeFailed    LegOutcome = "FAILED"
)

func (o LegOutcome) Valid() bool {
	return o == LegOutcomeSucceeded || o == LegOutcomeFailed
}

// ChargeResultEvent reports the asynchronous result of a charge or deposit leg.
type ChargeResultEvent struct {
	Token       string
	BookingID   int32
	Leg         PaymentLegKind
	Outcome     LegOutcome
	ProviderRef string
}

// VerificationEvent reports an identity or payout verification result.
type VerificationEvent struct {
	Token   string
	Email   string
	Kind    VerificationKind
	Outcome VerificationOutcome
}

// ConversationRef is what the messaging collaborator needs to open the chat
// thread attached to a booking.
type ConversationRef struct {
	BookingID    int32    `json:"booking_id"`
	Ref          string   `json:"ref"`
	Participants []string `json:"participants"`
}
