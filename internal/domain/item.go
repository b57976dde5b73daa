package domain

import "time"

type Item struct {
	ID                    int32     `json:"id"`
	OwnerEmail            string    `json:"owner_email"`
	Name                  string    `json:"name"`
	Description           string    `json:"description"`
	DailyRateCents        int32     `json:"daily_rate_cents"`
	DepositCents          int32     `json:"deposit_cents"`
	MinRentalDays         int32     `json:"min_rental_days"`
	MaxRentalDays         int32     `json:"max_rental_days"` // 0 means no upper bound
	InstantBookingEnabled bool      `json:"instant_booking_enabled"`
	Available             bool      `json:"available"`
	Version               int32     `json:"version"`
	CreatedOn             time.Time `json:"created_on"`
	UpdatedOn             time.Time `json:"updated_on"`
}

// AllowsLength reports whether a rental of the given inclusive day count fits
// the owner's min/max policy.
func (i *Item) AllowsLength(days int32) bool {
	minDays := i.MinRentalDays
	if minDays < 1 {
		minDays = 1
	}
	if days < minDays {
		return false
	}
	return i.MaxRentalDays <= 0 || days <= i.MaxRentalDays
}
