package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/repository"
	"peer-rental-core/internal/repository/postgres"
)

var bookingCols = []string{
	"id", "item_id", "renter_email", "owner_email", "start_date", "end_date", "total_cents", "deposit_cents",
	"mode", "state", "charge_status", "charge_ref", "deposit_status", "deposit_ref", "payment_attempt",
	"cancelled_by", "rejection_reason", "dispute_resolution", "decided_at", "paid_at", "completed_at",
	"disputed_at", "dispute_resolved_at", "version", "created_on", "updated_on",
}

func bookingRows(now time.Time) *sqlmock.Rows {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(bookingCols).AddRow(
		1, 3, "renter@test.com", "owner@test.com", start, start.AddDate(0, 0, 2), 4500, 5000,
		"INSTANT", "ACTIVE", "SUCCEEDED", "ch_1", "SUCCEEDED", "dh_1", 0,
		"", "", "", nil, now, nil,
		nil, nil, 2, now, now,
	)
}

func TestBookingRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := postgres.NewBookingRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1").
			WithArgs(int32(1)).
			WillReturnRows(bookingRows(now))

		b, err := repo.GetByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int32(1), b.ID)
		assert.Equal(t, domain.BookingStateActive, b.State)
		assert.Equal(t, domain.BookingModeInstant, b.Mode)
		assert.Equal(t, "ch_1", b.Charge.ProviderRef)
		assert.Equal(t, domain.PaymentLegSucceeded, b.Deposit.Status)
		assert.Nil(t, b.DecidedAt)
		require.NotNil(t, b.PaidAt)
		assert.Equal(t, int32(2), b.Version)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1").
			WithArgs(int32(2)).
			WillReturnRows(sqlmock.NewRows(bookingCols))

		b, err := repo.GetByID(ctx, 2)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, b)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_CreateIfAvailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := postgres.NewBookingRepository(db)
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	newBooking := func() *domain.Booking {
		return &domain.Booking{
			ItemID: 3, RenterEmail: "renter@test.com", OwnerEmail: "owner@test.com",
			StartDate: start, EndDate: start.AddDate(0, 0, 2), TotalCents: 4500, DepositCents: 5000,
			Mode: domain.BookingModeRequest, State: domain.BookingStatePendingReview,
			Charge: domain.PaymentLeg{Status: domain.PaymentLegNone}, Deposit: domain.PaymentLeg{Status: domain.PaymentLegNone},
		}
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM items WHERE id = \\$1 FOR UPDATE").
			WithArgs(int32(3)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM bookings").
			WithArgs(int32(3), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("INSERT INTO bookings").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
		mock.ExpectCommit()

		b := newBooking()
		require.NoError(t, repo.CreateIfAvailable(ctx, b))
		assert.Equal(t, int32(11), b.ID)
		assert.Equal(t, int32(1), b.Version)
		assert.False(t, b.CreatedOn.IsZero())
	})

	t.Run("Overlap", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM items WHERE id = \\$1 FOR UPDATE").
			WithArgs(int32(3)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM bookings").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectRollback()

		err := repo.CreateIfAvailable(ctx, newBooking())
		assert.ErrorIs(t, err, repository.ErrDateOverlap)
	})

	t.Run("Exclusion constraint", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM items WHERE id = \\$1 FOR UPDATE").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM bookings").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("INSERT INTO bookings").
			WillReturnError(&pq.Error{Code: "23P01"})
		mock.ExpectRollback()

		err := repo.CreateIfAvailable(ctx, newBooking())
		assert.ErrorIs(t, err, repository.ErrDateOverlap)
	})

	t.Run("Missing item", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM items WHERE id = \\$1 FOR UPDATE").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		err := repo.CreateIfAvailable(ctx, newBooking())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := postgres.NewBookingRepository(db)
	ctx := context.Background()

	t.Run("Success with report", func(t *testing.T) {
		b := &domain.Booking{ID: 1, State: domain.BookingStateCompleted, Version: 4}
		cr := &domain.ConditionReport{BookingID: 1, Type: domain.ReportTypeReturn, ReportedBy: "owner@test.com", ReporterRole: domain.ReporterRoleOwner}

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE bookings SET (.+) WHERE id=\\$16 AND version=\\$17").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO condition_reports").
			WithArgs(int32(1), "RETURN", "owner@test.com", "OWNER", "", []byte("[]"), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
		mock.ExpectCommit()

		require.NoError(t, repo.Save(ctx, b, cr))
		assert.Equal(t, int32(5), b.Version)
		assert.Equal(t, int32(9), cr.ID)
	})

	t.Run("Version conflict", func(t *testing.T) {
		b := &domain.Booking{ID: 1, State: domain.BookingStateCancelled, Version: 4}

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE bookings SET").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.Save(ctx, b, nil)
		assert.ErrorIs(t, err, repository.ErrVersionConflict)
		assert.Equal(t, int32(4), b.Version)
	})

	t.Run("Duplicate report rolls back", func(t *testing.T) {
		b := &domain.Booking{ID: 1, State: domain.BookingStateActive, Version: 5}
		cr := &domain.ConditionReport{BookingID: 1, Type: domain.ReportTypePickup, ReportedBy: "renter@test.com", ReporterRole: domain.ReporterRoleRenter}

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE bookings SET").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO condition_reports").
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		err := repo.Save(ctx, b, cr)
		assert.ErrorIs(t, err, repository.ErrAlreadyExists)
		assert.Equal(t, int32(5), b.Version)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := postgres.NewBookingRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "bookings" WHERE (.+)"owner_email" = 'owner@test.com'`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT (.+) FROM "bookings" WHERE (.+) ORDER BY "created_on" DESC, "id" DESC LIMIT 10`).
		WillReturnRows(bookingRows(time.Now().UTC()))

	list, total, err := repo.List(ctx, repository.BookingFilter{
		OwnerEmail: "owner@test.com",
		States:     []domain.BookingState{domain.BookingStateActive},
		Page:       1,
		PageSize:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "renter@test.com", list[0].RenterEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_ListWithOpenPaymentLegs(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := postgres.NewBookingRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM bookings WHERE charge_status = ANY\\(\\$1\\) OR deposit_status = ANY\\(\\$1\\)").
		WithArgs(pq.StringArray{"PENDING", "COMPENSATION_PENDING"}).
		WillReturnRows(bookingRows(time.Now().UTC()))

	list, err := repo.ListWithOpenPaymentLegs(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
