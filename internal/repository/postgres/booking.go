package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/repository"
)

const dialectPostgres = "postgres"

var bookingColumns = []any{
	"id", "item_id", "renter_email", "owner_email", "start_date", "end_date", "total_cents", "deposit_cents",
	"mode", "state", "charge_status", goqu.COALESCE(goqu.C("charge_ref"), ""), "deposit_status",
	goqu.COALESCE(goqu.C("deposit_ref"), ""), "payment_attempt", goqu.COALESCE(goqu.C("cancelled_by"), ""),
	goqu.COALESCE(goqu.C("rejection_reason"), ""), goqu.COALESCE(goqu.C("dispute_resolution"), ""),
	"decided_at", "paid_at", "completed_at", "disputed_at", "dispute_resolved_at",
	"version", "created_on", "updated_on",
}

const bookingSelect = `SELECT id, item_id, renter_email, owner_email, start_date, end_date, total_cents, deposit_cents,
	mode, state, charge_status, COALESCE(charge_ref, ''), deposit_status, COALESCE(deposit_ref, ''), payment_attempt,
	COALESCE(cancelled_by, ''), COALESCE(rejection_reason, ''), COALESCE(dispute_resolution, ''),
	decided_at, paid_at, completed_at, disputed_at, dispute_resolved_at, version, created_on, updated_on
	FROM bookings`

type bookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) repository.BookingRepository {
	return &bookingRepository{db: db}
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	b := &domain.Booking{}
	var decided, paid, completed, disputed, resolved sql.NullTime
	err := row.Scan(&b.ID, &b.ItemID, &b.RenterEmail, &b.OwnerEmail, &b.StartDate, &b.EndDate, &b.TotalCents,
		&b.DepositCents, &b.Mode, &b.State, &b.Charge.Status, &b.Charge.ProviderRef, &b.Deposit.Status,
		&b.Deposit.ProviderRef, &b.PaymentAttempt, &b.CancelledBy, &b.RejectionReason, &b.DisputeResolution,
		&decided, &paid, &completed, &disputed, &resolved, &b.Version, &b.CreatedOn, &b.UpdatedOn)
	if err != nil {
		return nil, err
	}
	b.DecidedAt = timePtr(decided)
	b.PaidAt = timePtr(paid)
	b.CompletedAt = timePtr(completed)
	b.DisputedAt = timePtr(disputed)
	b.DisputeResolvedAt = timePtr(resolved)
	return b, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func blockingStates() pq.StringArray {
	states := make(pq.StringArray, len(domain.CalendarBlockingStates))
	for i, s := range domain.CalendarBlockingStates {
		states[i] = string(s)
	}
	return states
}

// CreateIfAvailable locks the item row so that concurrent creations for the
// same item serialize on the overlap check. The exclusion constraint on the
// table backs the check up.
func (r *bookingRepository) CreateIfAvailable(ctx context.Context, b *domain.Booking) error {
	logger.EnterMethod("bookingRepository.CreateIfAvailable", "itemID", b.ItemID, "start", b.StartDate, "end", b.EndDate)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("bookingRepository.CreateIfAvailable", err)
		return err
	}
	defer tx.Rollback()

	var itemID int32
	logger.DatabaseCall("SELECT FOR UPDATE", "items", "itemID", b.ItemID)
	if err := tx.QueryRowContext(ctx, `SELECT id FROM items WHERE id = $1 FOR UPDATE`, b.ItemID).Scan(&itemID); err != nil {
		err = translate(err)
		logger.ExitMethodWithError("bookingRepository.CreateIfAvailable", err, "reason", "item lock")
		return err
	}

	var overlapping int
	logger.DatabaseCall("SELECT", "bookings", "itemID", b.ItemID, "check", "overlap")
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings
	          WHERE item_id = $1 AND state = ANY($2) AND start_date <= $3 AND end_date >= $4`,
		b.ItemID, blockingStates(), b.EndDate, b.StartDate).Scan(&overlapping)
	if err != nil {
		logger.ExitMethodWithError("bookingRepository.CreateIfAvailable", err)
		return err
	}
	if overlapping > 0 {
		logger.ExitMethodWithError("bookingRepository.CreateIfAvailable", repository.ErrDateOverlap, "overlapping", overlapping)
		return repository.ErrDateOverlap
	}

	now := time.Now().UTC()
	query := `INSERT INTO bookings (item_id, renter_email, owner_email, start_date, end_date, total_cents, deposit_cents,
	          mode, state, charge_status, deposit_status, payment_attempt, version, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, $13, $13) RETURNING id`
	logger.DatabaseCall("INSERT", "bookings", "itemID", b.ItemID, "state", b.State)
	err = tx.QueryRowContext(ctx, query, b.ItemID, b.RenterEmail, b.OwnerEmail, b.StartDate, b.EndDate,
		b.TotalCents, b.DepositCents, b.Mode, b.State, b.Charge.Status, b.Deposit.Status, b.PaymentAttempt, now).Scan(&b.ID)
	logger.DatabaseResult("INSERT", 1, err, "bookingID", b.ID)
	if err != nil {
		err = translate(err)
		logger.ExitMethodWithError("bookingRepository.CreateIfAvailable", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		err = translate(err)
		logger.ExitMethodWithError("bookingRepository.CreateIfAvailable", err, "reason", "commit")
		return err
	}

	b.Version = 1
	b.CreatedOn = now
	b.UpdatedOn = now
	logger.ExitMethod("bookingRepository.CreateIfAvailable", "bookingID", b.ID)
	return nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id int32) (*domain.Booking, error) {
	logger.DatabaseCall("SELECT", "bookings", "bookingID", id)
	b, err := scanBooking(r.db.QueryRowContext(ctx, bookingSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return b, nil
}

func (r *bookingRepository) Save(ctx context.Context, b *domain.Booking, report *domain.ConditionReport) error {
	logger.EnterMethod("bookingRepository.Save", "bookingID", b.ID, "state", b.State, "version", b.Version)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("bookingRepository.Save", err)
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	query := `UPDATE bookings SET state=$1, charge_status=$2, charge_ref=$3, deposit_status=$4, deposit_ref=$5,
	          payment_attempt=$6, cancelled_by=$7, rejection_reason=$8, dispute_resolution=$9, decided_at=$10,
	          paid_at=$11, completed_at=$12, disputed_at=$13, dispute_resolved_at=$14, version=version+1, updated_on=$15
	          WHERE id=$16 AND version=$17`
	logger.DatabaseCall("UPDATE", "bookings", "bookingID", b.ID, "state", b.State)
	res, err := tx.ExecContext(ctx, query, b.State, b.Charge.Status, nullString(b.Charge.ProviderRef),
		b.Deposit.Status, nullString(b.Deposit.ProviderRef), b.PaymentAttempt, nullString(b.CancelledBy),
		nullString(b.RejectionReason), nullString(b.DisputeResolution), nullTime(b.DecidedAt), nullTime(b.PaidAt),
		nullTime(b.CompletedAt), nullTime(b.DisputedAt), nullTime(b.DisputeResolvedAt), now, b.ID, b.Version)
	if err != nil {
		err = translate(err)
		logger.ExitMethodWithError("bookingRepository.Save", err)
		return err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "bookingID", b.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		logger.ExitMethodWithError("bookingRepository.Save", repository.ErrVersionConflict, "bookingID", b.ID)
		return repository.ErrVersionConflict
	}

	if report != nil {
		if err := insertReport(ctx, tx, report); err != nil {
			logger.ExitMethodWithError("bookingRepository.Save", err, "reason", "condition report")
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		logger.ExitMethodWithError("bookingRepository.Save", err, "reason", "commit")
		return err
	}

	b.Version++
	b.UpdatedOn = now
	logger.ExitMethod("bookingRepository.Save", "bookingID", b.ID, "version", b.Version)
	return nil
}

func (r *bookingRepository) List(ctx context.Context, filter repository.BookingFilter) ([]domain.Booking, int32, error) {
	logger.EnterMethod("bookingRepository.List", "renter", filter.RenterEmail, "owner", filter.OwnerEmail)

	where := goqu.Ex{}
	if filter.RenterEmail != "" {
		where["renter_email"] = filter.RenterEmail
	}
	if filter.OwnerEmail != "" {
		where["owner_email"] = filter.OwnerEmail
	}
	if len(filter.States) > 0 {
		states := make([]string, len(filter.States))
		for i, s := range filter.States {
			states[i] = string(s)
		}
		where["state"] = states
	}

	ds := goqu.Dialect(dialectPostgres).From("bookings")
	if len(where) > 0 {
		ds = ds.Where(where)
	}
	countSQL, _, err := ds.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, err
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	selectSQL, _, err := ds.Select(bookingColumns...).
		Order(goqu.I("created_on").Desc(), goqu.I("id").Desc()).
		Limit(uint(pageSize)).Offset(uint((page - 1) * pageSize)).ToSQL()
	if err != nil {
		return nil, 0, err
	}

	var total int32
	logger.DatabaseCall("SELECT COUNT", "bookings")
	if err := r.db.QueryRowContext(ctx, countSQL).Scan(&total); err != nil {
		logger.ExitMethodWithError("bookingRepository.List", err)
		return nil, 0, err
	}

	bookings, err := r.query(ctx, selectSQL)
	if err != nil {
		logger.ExitMethodWithError("bookingRepository.List", err)
		return nil, 0, err
	}
	logger.ExitMethod("bookingRepository.List", "count", len(bookings), "total", total)
	return bookings, total, nil
}

func (r *bookingRepository) ListStale(ctx context.Context, state domain.BookingState, createdBefore time.Time) ([]domain.Booking, error) {
	logger.DatabaseCall("SELECT", "bookings", "state", state, "createdBefore", createdBefore)
	return r.query(ctx, bookingSelect+` WHERE state = $1 AND created_on < $2 ORDER BY id`, state, createdBefore)
}

// ListWithOpenPaymentLegs returns bookings with a pending leg or a pending
// compensation.
func (r *bookingRepository) ListWithOpenPaymentLegs(ctx context.Context) ([]domain.Booking, error) {
	logger.DatabaseCall("SELECT", "bookings", "check", "open payment legs")
	open := pq.StringArray{string(domain.PaymentLegPending), string(domain.PaymentLegCompensationPending)}
	return r.query(ctx, bookingSelect+` WHERE charge_status = ANY($1) OR deposit_status = ANY($1) ORDER BY id`, open)
}

func (r *bookingRepository) query(ctx context.Context, query string, args ...any) ([]domain.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}
