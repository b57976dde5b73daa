package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/repository"
	"peer-rental-core/internal/repository/memory"
)

func day(n int) time.Time {
	return time.Date(2024, 6, n, 0, 0, 0, 0, time.UTC)
}

func TestStore_Bookings(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	item := &domain.Item{OwnerEmail: "owner@test.com", Name: "Drill", DailyRateCents: 100}
	require.NoError(t, store.Items().Create(ctx, item))

	newBooking := func(start, end int) *domain.Booking {
		return &domain.Booking{
			ItemID: item.ID, RenterEmail: "renter@test.com", OwnerEmail: "owner@test.com",
			StartDate: day(start), EndDate: day(end), State: domain.BookingStatePendingReview,
		}
	}

	first := newBooking(1, 3)
	require.NoError(t, store.Bookings().CreateIfAvailable(ctx, first))
	assert.Equal(t, int32(1), first.Version)

	t.Run("Overlap", func(t *testing.T) {
		err := store.Bookings().CreateIfAvailable(ctx, newBooking(3, 4))
		assert.ErrorIs(t, err, repository.ErrDateOverlap)

		require.NoError(t, store.Bookings().CreateIfAvailable(ctx, newBooking(4, 5)))
	})

	t.Run("Missing item", func(t *testing.T) {
		b := newBooking(10, 11)
		b.ItemID = 999
		assert.ErrorIs(t, store.Bookings().CreateIfAvailable(ctx, b), repository.ErrNotFound)
	})

	t.Run("Version guard", func(t *testing.T) {
		a, err := store.Bookings().GetByID(ctx, first.ID)
		require.NoError(t, err)
		b, err := store.Bookings().GetByID(ctx, first.ID)
		require.NoError(t, err)

		a.State = domain.BookingStateAwaitingPayment
		require.NoError(t, store.Bookings().Save(ctx, a, nil))
		assert.Equal(t, int32(2), a.Version)

		b.State = domain.BookingStateRejected
		assert.ErrorIs(t, store.Bookings().Save(ctx, b, nil), repository.ErrVersionConflict)

		got, err := store.Bookings().GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStateAwaitingPayment, got.State)
	})

	t.Run("Duplicate report leaves the booking untouched", func(t *testing.T) {
		b, err := store.Bookings().GetByID(ctx, first.ID)
		require.NoError(t, err)
		report := &domain.ConditionReport{BookingID: b.ID, Type: domain.ReportTypePickup, ReportedBy: "renter@test.com"}
		require.NoError(t, store.Bookings().Save(ctx, b, report))
		assert.NotZero(t, report.ID)

		version := b.Version
		dup := &domain.ConditionReport{BookingID: b.ID, Type: domain.ReportTypePickup, ReportedBy: "renter@test.com"}
		assert.ErrorIs(t, store.Bookings().Save(ctx, b, dup), repository.ErrAlreadyExists)
		assert.Equal(t, version, b.Version)

		reports, err := store.Reports().ListByBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Len(t, reports, 1)
	})

	t.Run("List pages newest first", func(t *testing.T) {
		list, total, err := store.Bookings().List(ctx, repository.BookingFilter{RenterEmail: "renter@test.com", PageSize: 1})
		require.NoError(t, err)
		assert.Equal(t, int32(2), total)
		require.Len(t, list, 1)
		assert.Greater(t, list[0].ID, first.ID)

		list, _, err = store.Bookings().List(ctx, repository.BookingFilter{RenterEmail: "renter@test.com", Page: 3, PageSize: 1})
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("Stale requests", func(t *testing.T) {
		stale, err := store.Bookings().ListStale(ctx, domain.BookingStatePendingReview, time.Now().Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, stale, 1)

		store.Backdate(stale[0].ID, time.Now().Add(-72*time.Hour))
		stale, err = store.Bookings().ListStale(ctx, domain.BookingStatePendingReview, time.Now().Add(-48*time.Hour))
		require.NoError(t, err)
		assert.Len(t, stale, 1)
	})
}

func TestStore_Users(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.Users().Create(ctx, &domain.User{Email: "a@test.com"}))
	assert.ErrorIs(t, store.Users().Create(ctx, &domain.User{Email: "a@test.com"}), repository.ErrAlreadyExists)

	u, err := store.Users().GetByEmail(ctx, "a@test.com")
	require.NoError(t, err)
	stale := *u

	u.Name = "A"
	require.NoError(t, store.Users().Update(ctx, u))
	assert.ErrorIs(t, store.Users().Update(ctx, &stale), repository.ErrVersionConflict)

	_, err = store.Users().GetByEmail(ctx, "b@test.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_ProviderEvents(t *testing.T) {
	ctx := context.Background()
	events := memory.NewStore().ProviderEvents()

	fresh, err := events.Record(ctx, &domain.ProviderEvent{Token: "evt_1", Kind: domain.ProviderEventCharge})
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = events.Record(ctx, &domain.ProviderEvent{Token: "evt_1", Kind: domain.ProviderEventCharge})
	require.NoError(t, err)
	assert.False(t, fresh)

	seen, err := events.Exists(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestStore_ItemVersionGuard(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	item := &domain.Item{OwnerEmail: "owner@test.com", Name: "Drill", DailyRateCents: 100}
	require.NoError(t, store.Items().Create(ctx, item))
	assert.Equal(t, int32(1), item.Version)

	a, err := store.Items().GetByID(ctx, item.ID)
	require.NoError(t, err)
	b, err := store.Items().GetByID(ctx, item.ID)
	require.NoError(t, err)

	a.Available = false
	require.NoError(t, store.Items().Update(ctx, a))
	assert.Equal(t, int32(2), a.Version)

	b.InstantBookingEnabled = true
	assert.ErrorIs(t, store.Items().Update(ctx, b), repository.ErrVersionConflict)
	assert.Equal(t, int32(1), b.Version)

	b.ID = 999
	assert.ErrorIs(t, store.Items().Update(ctx, b), repository.ErrNotFound)
}

func TestStore_RelationDeleteByIDScopedToActor(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	rel := &domain.Relation{Kind: domain.RelationBlock, ActorEmail: "owner@test.com", Target: "renter@test.com"}
	inserted, err := store.Relations().Insert(ctx, rel)
	require.NoError(t, err)
	require.True(t, inserted)

	removed, err := store.Relations().DeleteByID(ctx, rel.ID, "renter@test.com")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = store.Relations().DeleteByID(ctx, rel.ID, "owner@test.com")
	require.NoError(t, err)
	assert.True(t, removed)
}
