package domain

type VerificationKind string

const (
	VerificationKindIdentity VerificationKind = "IDENTITY"
	VerificationKindPayout   VerificationKind = "PAYOUT"
)

func (k VerificationKind) Valid() bool {
	return k == VerificationKindIdentity || k == VerificationKindPayout
}

type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "UNVERIFIED"
	VerificationPending    VerificationStatus = "PENDING"
	VerificationVerified   VerificationStatus = "VERIFIED"
	VerificationFailed     VerificationStatus = "FAILED"
)

// VerificationOutcome is what the external provider reports for a session.
type VerificationOutcome string

const (
	OutcomeVerified VerificationOutcome = "VERIFIED"
	OutcomeFailed   VerificationOutcome = "FAILED"
	OutcomeRevoked  VerificationOutcome = "REVOKED"
)

func (o VerificationOutcome) Valid() bool {
	switch o {
	case OutcomeVerified, OutcomeFailed, OutcomeRevoked:
		return true
	}
	return false
}

// Submit applies a local onboarding submission. A repeated submission while
// pending is a no-op; verified is sticky.
func (s VerificationStatus) Submit() (VerificationStatus, bool, error) {
	switch s {
	case VerificationUnverified, VerificationFailed, "":
		return VerificationPending, true, nil
	case VerificationPending:
		return s, false, nil
	default:
		return s, false, &Error{Kind: KindInvalidTransition, Op: "submit_verification", Message: "verification already completed"}
	}
}

// Apply folds a provider outcome into the status. Callbacks may arrive before
// the local submission is recorded, so a result is accepted from unverified too.
// Only a revocation may move verified backwards, and failed only leaves via a
// fresh Submit.
func (s VerificationStatus) Apply(outcome VerificationOutcome) (VerificationStatus, bool) {
	switch outcome {
	case OutcomeVerified:
		if s == VerificationPending || s == VerificationUnverified || s == "" {
			return VerificationVerified, true
		}
		return s, false
	case OutcomeFailed:
		if s == VerificationPending || s == VerificationUnverified || s == "" {
			return VerificationFailed, true
		}
		return s, false
	case OutcomeRevoked:
		if s == VerificationVerified || s == VerificationPending {
			return VerificationFailed, true
		}
		return s, false
	}
	return s, false
}
