package domain

import "time"

type NotificationType string

const (
	NotificationBookingCreated      NotificationType = "BOOKING_CREATED"
	NotificationBookingDecided      NotificationType = "BOOKING_DECIDED"
	NotificationBookingCancelled    NotificationType = "BOOKING_CANCELLED"
	NotificationPaymentConfirmed    NotificationType = "PAYMENT_CONFIRMED"
	NotificationPaymentFailed       NotificationType = "PAYMENT_FAILED"
	NotificationBookingCompleted    NotificationType = "BOOKING_COMPLETED"
	NotificationDisputeOpened       NotificationType = "DISPUTE_OPENED"
	NotificationDisputeResolved     NotificationType = "DISPUTE_RESOLVED"
	NotificationVerificationUpdated NotificationType = "VERIFICATION_UPDATED"
)

type Notification struct {
	ID         int32             `json:"id"`
	UserEmail  string            `json:"user_email"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	IsRead     bool              `json:"is_read"`
	Attributes map[string]string `json:"attributes"`
	CreatedOn  time.Time         `json:"created_on"`
}

// NotificationEvent is emitted fire-and-forget by the core after a committed
// transition.
type NotificationEvent struct {
	Type       NotificationType
	Recipients []string
	Title      string
	Message    string
	Attributes map[string]string
}
