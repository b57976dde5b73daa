package http

import (
	"peer-rental-core/internal/domain"
)

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
	Intent   string `json:"intent" validate:"omitempty,oneof=UNSET RENTER OWNER BOTH"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *domain.User `json:"user,omitempty"`
}

type intentRequest struct {
	Intent string `json:"intent" validate:"required,oneof=UNSET RENTER OWNER BOTH"`
}

type paymentMethodRequest struct {
	ProviderRef string `json:"provider_ref" validate:"required,max=255"`
}

type createItemRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	Description    string `json:"description" validate:"max=2000"`
	DailyRateCents int32  `json:"daily_rate_cents" validate:"required,gt=0"`
	DepositCents   int32  `json:"deposit_cents" validate:"gte=0"`
	MinRentalDays  int32  `json:"min_rental_days" validate:"gte=0"`
	MaxRentalDays  int32  `json:"max_rental_days" validate:"gte=0"`
	InstantBooking bool   `json:"instant_booking_enabled"`
}

type toggleRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type createBookingRequest struct {
	ItemID    int32  `json:"item_id" validate:"required,gt=0"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type decisionRequest struct {
	Approve *bool  `json:"approve" validate:"required"`
	Reason  string `json:"reason" validate:"max=500"`
}

type damageDTO struct {
	Severity    string `json:"severity" validate:"required,oneof=MINOR MODERATE SEVERE"`
	Description string `json:"description" validate:"required,max=1000"`
}

type reportRequest struct {
	Notes   string      `json:"notes" validate:"max=2000"`
	Damages []damageDTO `json:"damages" validate:"max=50,dive"`
	Photos  []string    `json:"photos" validate:"max=20,dive,url"`
}

type disputeRequest struct {
	Notes   string      `json:"notes" validate:"max=2000"`
	Damages []damageDTO `json:"damages" validate:"required,min=1,max=50,dive"`
	Photos  []string    `json:"photos" validate:"max=20,dive,url"`
}

type resolutionRequest struct {
	Resolution string `json:"resolution" validate:"required,max=2000"`
}

type relationRequest struct {
	Kind   string `json:"kind" validate:"required,oneof=FAVORITE FOLLOW BLOCK"`
	Target string `json:"target" validate:"required,max=255"`
	Active *bool  `json:"active" validate:"required"`
	ID     string `json:"id" validate:"omitempty,uuid"`
}

type chargeWebhook struct {
	Token       string `json:"token" validate:"required"`
	BookingID   int32  `json:"booking_id" validate:"required,gt=0"`
	Leg         string `json:"leg" validate:"required,oneof=CHARGE DEPOSIT"`
	Outcome     string `json:"outcome" validate:"required,oneof=SUCCEEDED FAILED"`
	ProviderRef string `json:"provider_ref"`
}

type verificationWebhook struct {
	Token   string `json:"token" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Outcome string `json:"outcome" validate:"required,oneof=VERIFIED FAILED REVOKED"`
}

type pageResponse[T any] struct {
	Items []T   `json:"items"`
	Total int32 `json:"total"`
	Page  int32 `json:"page"`
}

type bookingResponse struct {
	Booking *domain.Booking         `json:"booking"`
	Report  *domain.ConditionReport `json:"report,omitempty"`
}

func toReportInput(notes string, damages []damageDTO, photos []string) domain.ReportInput {
	in := domain.ReportInput{Notes: notes, Photos: photos}
	for _, d := range damages {
		in.Damages = append(in.Damages, domain.Damage{
			Severity:    domain.DamageSeverity(d.Severity),
			Description: d.Description,
		})
	}
	return in
}
