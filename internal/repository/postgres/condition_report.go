package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/repository"
)

type conditionReportRepository struct {
	db *sql.DB
}

func NewConditionReportRepository(db *sql.DB) repository.ConditionReportRepository {
	return &conditionReportRepository{db: db}
}

// insertReport appends a report inside the booking's transaction. The
// (booking_id, type, reported_by) key makes a second filing fail with
// ErrAlreadyExists.
func insertReport(ctx context.Context, tx *sql.Tx, cr *domain.ConditionReport) error {
	damages := cr.Damages
	if damages == nil {
		damages = []domain.Damage{}
	}
	damagesJSON, err := json.Marshal(damages)
	if err != nil {
		return err
	}
	photos := cr.Photos
	if photos == nil {
		photos = []string{}
	}

	now := time.Now().UTC()
	query := `INSERT INTO condition_reports (booking_id, type, reported_by, reporter_role, notes, damages, photos, created_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	logger.DatabaseCall("INSERT", "condition_reports", "bookingID", cr.BookingID, "type", cr.Type, "reportedBy", cr.ReportedBy)
	err = tx.QueryRowContext(ctx, query, cr.BookingID, cr.Type, cr.ReportedBy, cr.ReporterRole, cr.Notes,
		damagesJSON, pq.Array(photos), now).Scan(&cr.ID)
	logger.DatabaseResult("INSERT", 1, err, "reportID", cr.ID)
	if err != nil {
		return translate(err)
	}
	cr.CreatedOn = now
	return nil
}

func (r *conditionReportRepository) ListByBooking(ctx context.Context, bookingID int32) ([]domain.ConditionReport, error) {
	query := `SELECT id, booking_id, type, reported_by, reporter_role, COALESCE(notes, ''), damages, photos, created_on
	          FROM condition_reports WHERE booking_id = $1 ORDER BY created_on, id`
	logger.DatabaseCall("SELECT", "condition_reports", "bookingID", bookingID)
	rows, err := r.db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []domain.ConditionReport
	for rows.Next() {
		var cr domain.ConditionReport
		var damages []byte
		if err := rows.Scan(&cr.ID, &cr.BookingID, &cr.Type, &cr.ReportedBy, &cr.ReporterRole, &cr.Notes,
			&damages, pq.Array(&cr.Photos), &cr.CreatedOn); err != nil {
			return nil, err
		}
		if len(damages) > 0 {
			if err := json.Unmarshal(damages, &cr.Damages); err != nil {
				return nil, err
			}
		}
		reports = append(reports, cr)
	}
	return reports, rows.Err()
}
