package domain

import (
	"strings"
	"time"
)

type UserIntent string

const (
	UserIntentUnset  UserIntent = "UNSET"
	UserIntentRenter UserIntent = "RENTER"
	UserIntentOwner  UserIntent = "OWNER"
	UserIntentBoth   UserIntent = "BOTH"
)

func (i UserIntent) Valid() bool {
	switch i {
	case UserIntentUnset, UserIntentRenter, UserIntentOwner, UserIntentBoth:
		return true
	}
	return false
}

type User struct {
	ID                   int32              `json:"id"`
	Email                string             `json:"email"`
	PasswordHash         string             `json:"-"`
	Name                 string             `json:"name"`
	Intent               UserIntent         `json:"intent"`
	IdentityVerification VerificationStatus `json:"identity_verification"`
	PayoutVerification   VerificationStatus `json:"payout_verification"`
	HasPaymentMethod     bool               `json:"has_payment_method"`
	PaymentMethodRef     string             `json:"-"`
	Active               bool               `json:"active"`
	Version              int32              `json:"-"`
	CreatedOn            time.Time          `json:"created_on"`
	UpdatedOn            time.Time          `json:"updated_on"`
}

// Verification returns the status of the given verification machine.
func (u *User) Verification(kind VerificationKind) VerificationStatus {
	if kind == VerificationKindPayout {
		return u.PayoutVerification
	}
	return u.IdentityVerification
}

func (u *User) SetVerification(kind VerificationKind, status VerificationStatus) {
	if kind == VerificationKindPayout {
		u.PayoutVerification = status
		return
	}
	u.IdentityVerification = status
}

// NormalizeEmail lowercases and trims an email so it can serve as identity key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
