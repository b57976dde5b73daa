package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"peer-rental-core/internal/domain"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrAlreadyExists   = errors.New("record already exists")
	ErrVersionConflict = errors.New("record was modified concurrently")
	ErrDateOverlap     = errors.New("dates overlap an existing booking")
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Update writes the user only if Version still matches and bumps it.
	Update(ctx context.Context, user *domain.User) error
}

type ItemRepository interface {
	Create(ctx context.Context, item *domain.Item) error
	GetByID(ctx context.Context, id int32) (*domain.Item, error)
	// Update returns ErrVersionConflict when item.Version is stale.
	Update(ctx context.Context, item *domain.Item) error
	ListByOwner(ctx context.Context, ownerEmail string) ([]domain.Item, error)
}

type BookingFilter struct {
	RenterEmail string
	OwnerEmail  string
	States      []domain.BookingState
	Page        int32
	PageSize    int32
}

type BookingRepository interface {
	// CreateIfAvailable inserts the booking unless a calendar-blocking booking
	// of the same item shares a day with it (ErrDateOverlap). The check and the
	// insert are atomic per item.
	CreateIfAvailable(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id int32) (*domain.Booking, error)
	// Save writes the booking guarded by its Version and, in the same unit of
	// work, appends report when it is non-nil.
	Save(ctx context.Context, booking *domain.Booking, report *domain.ConditionReport) error
	List(ctx context.Context, filter BookingFilter) ([]domain.Booking, int32, error)
	ListStale(ctx context.Context, state domain.BookingState, createdBefore time.Time) ([]domain.Booking, error)
	ListWithOpenPaymentLegs(ctx context.Context) ([]domain.Booking, error)
}

type ConditionReportRepository interface {
	ListByBooking(ctx context.Context, bookingID int32) ([]domain.ConditionReport, error)
}

type RelationRepository interface {
	// Insert returns false without error when the composite key already exists.
	Insert(ctx context.Context, relation *domain.Relation) (bool, error)
	GetByKey(ctx context.Context, key domain.RelationKey) (*domain.Relation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Relation, error)
	DeleteByKey(ctx context.Context, key domain.RelationKey) (bool, error)
	// DeleteByID only removes the relation when actorEmail owns it.
	DeleteByID(ctx context.Context, id uuid.UUID, actorEmail string) (bool, error)
	ListByActor(ctx context.Context, kind domain.RelationKind, actorEmail string) ([]domain.Relation, error)
}

type ProviderEventRepository interface {
	Exists(ctx context.Context, token string) (bool, error)
	// Record returns false when the token was already recorded.
	Record(ctx context.Context, event *domain.ProviderEvent) (bool, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, note *domain.Notification) error
	List(ctx context.Context, userEmail string, limit, offset int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, id int32, userEmail string) error
}
