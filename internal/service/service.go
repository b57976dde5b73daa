package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/provider"
)

type AuthService interface {
	Signup(ctx context.Context, email, password, name string, intent domain.UserIntent) (*domain.User, string, string, error)
	Login(ctx context.Context, email, password string) (string, string, error) // access, refresh
	RefreshToken(ctx context.Context, refresh string) (string, string, error)
}

type UserService interface {
	GetProfile(ctx context.Context, email string) (*domain.User, error)
	SetIntent(ctx context.Context, email string, intent domain.UserIntent) (*domain.User, error)
	Deactivate(ctx context.Context, email string) error
}

type VerificationService interface {
	SubmitIdentity(ctx context.Context, email string) (*domain.User, *provider.Session, error)
	SubmitPayout(ctx context.Context, email string) (*domain.User, *provider.Session, error)
	OnIdentityStatus(ctx context.Context, ev domain.VerificationEvent) error
	OnPayoutStatus(ctx context.Context, ev domain.VerificationEvent) error
	GetVerification(ctx context.Context, email string) (*domain.User, error)
}

type PaymentMethodService interface {
	AttachPaymentMethod(ctx context.Context, email, providerRef string) (*domain.User, error)
	DetachPaymentMethod(ctx context.Context, email string) (*domain.User, error)
	HasPaymentMethod(ctx context.Context, email string) (bool, error)
}

// Gatekeeper answers capability questions from the current user records.
// Nothing is cached: every call reads the ledger again.
type Gatekeeper interface {
	CanInstantBook(ctx context.Context, ownerEmail string) (bool, error)
	CanCapturePayment(ctx context.Context, ownerEmail string) (bool, error)
	CanPay(ctx context.Context, renterEmail string) (bool, error)
	RequirePayoutVerified(ctx context.Context, op, ownerEmail string) error
	RequirePaymentMethod(ctx context.Context, op, renterEmail string) error
}

type ItemService interface {
	CreateItem(ctx context.Context, item *domain.Item) (*domain.Item, error)
	GetItem(ctx context.Context, id int32) (*domain.Item, error)
	ListMyItems(ctx context.Context, ownerEmail string) ([]domain.Item, error)
	SetInstantBooking(ctx context.Context, itemID int32, ownerEmail string, enabled bool) (*domain.Item, error)
	SetAvailability(ctx context.Context, itemID int32, ownerEmail string, available bool) (*domain.Item, error)
}

type BookingService interface {
	CreateBooking(ctx context.Context, itemID int32, renterEmail string, dates domain.DateRange) (*domain.Booking, error)
	Decide(ctx context.Context, bookingID int32, ownerEmail string, approve bool, reason string) (*domain.Booking, error)
	ConfirmPayment(ctx context.Context, bookingID int32, renterEmail string) (*domain.Booking, error)
	OnChargeResult(ctx context.Context, ev domain.ChargeResultEvent) error
	ConfirmPickup(ctx context.Context, bookingID int32, reporterEmail string, in domain.ReportInput) (*domain.Booking, *domain.ConditionReport, error)
	ConfirmReturn(ctx context.Context, bookingID int32, reporterEmail string, in domain.ReportInput) (*domain.Booking, *domain.ConditionReport, error)
	Cancel(ctx context.Context, bookingID int32, byEmail string) (*domain.Booking, error)
	GetBooking(ctx context.Context, bookingID int32, callerEmail string) (*domain.Booking, error)
	ListBookings(ctx context.Context, email string, role domain.ReporterRole, states []domain.BookingState, page, pageSize int32) ([]domain.Booking, int32, error)
	ConversationRef(ctx context.Context, bookingID int32, callerEmail string) (*domain.ConversationRef, error)
}

// BookingMaintenance is the surface the cron jobs drive.
type BookingMaintenance interface {
	ReconcilePayments(ctx context.Context) (int, error)
	ExpireStaleRequests(ctx context.Context) (int, error)
}

type DisputeService interface {
	RaiseDispute(ctx context.Context, bookingID int32, reporterEmail string, in domain.ReportInput) (*domain.Booking, *domain.ConditionReport, error)
	ResolveDispute(ctx context.Context, bookingID int32, resolution string) (*domain.Booking, error)
	HasOpenDispute(ctx context.Context, bookingID int32) (bool, error)
	ListReports(ctx context.Context, bookingID int32, callerEmail string) ([]domain.ConditionReport, error)
}

type RelationService interface {
	// SetRelation makes the relation exist (desired) or not exist. surrogateID
	// is an optional fallback address for deletion.
	SetRelation(ctx context.Context, key domain.RelationKey, desired bool, surrogateID uuid.UUID) (*domain.Relation, error)
	ListRelations(ctx context.Context, kind domain.RelationKind, actorEmail string) ([]domain.Relation, error)
}

type NotificationService interface {
	GetNotifications(ctx context.Context, email string, page, pageSize int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, email string, notificationID int32) error
}

// Notifier delivers fire-and-forget events. Implementations must not return
// delivery failures to the caller.
type Notifier interface {
	Notify(ctx context.Context, ev domain.NotificationEvent)
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type PushSender interface {
	Push(ctx context.Context, email, title, body string, data map[string]string) error
}

// PaymentProvider is the payment and verification provider as seen by the
// core. Charge, hold, refund, release and status calls are idempotent and may
// be retried; session calls are not.
type PaymentProvider interface {
	InitiateCharge(ctx context.Context, req provider.LegRequest) (*provider.LegResult, error)
	InitiateDepositHold(ctx context.Context, req provider.LegRequest) (*provider.LegResult, error)
	RefundCharge(ctx context.Context, ref, idempotencyKey string) error
	ReleaseDepositHold(ctx context.Context, ref, idempotencyKey string) error
	GetLegStatus(ctx context.Context, ref string) (*provider.LegResult, error)
	InitiateIdentitySession(ctx context.Context, email string) (*provider.Session, error)
	InitiatePayoutOnboarding(ctx context.Context, email string) (*provider.Session, error)
}

// Policy carries the business constants the services enforce.
type Policy struct {
	DisputeGrace  time.Duration
	RequestExpiry time.Duration
	ProviderRetry RetryPolicy
	ConflictRetry RetryPolicy
}

func DefaultPolicy() Policy {
	return Policy{
		DisputeGrace:  72 * time.Hour,
		RequestExpiry: 48 * time.Hour,
		ProviderRetry: RetryPolicy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond},
		ConflictRetry: RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond},
	}
}
