package postgres

import (
	"context"
	"database/sql"
	"time"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/repository"
)

const itemColumns = `id, owner_email, name, COALESCE(description, ''), daily_rate_cents, deposit_cents,
	min_rental_days, max_rental_days, instant_booking_enabled, available, version, created_on, updated_on`

type itemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) repository.ItemRepository {
	return &itemRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	it := &domain.Item{}
	err := row.Scan(&it.ID, &it.OwnerEmail, &it.Name, &it.Description, &it.DailyRateCents, &it.DepositCents,
		&it.MinRentalDays, &it.MaxRentalDays, &it.InstantBookingEnabled, &it.Available, &it.Version, &it.CreatedOn, &it.UpdatedOn)
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (r *itemRepository) Create(ctx context.Context, it *domain.Item) error {
	logger.EnterMethod("itemRepository.Create", "owner", it.OwnerEmail, "name", it.Name)

	query := `INSERT INTO items (owner_email, name, description, daily_rate_cents, deposit_cents, min_rental_days,
	          max_rental_days, instant_booking_enabled, available, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10) RETURNING id`
	now := time.Now().UTC()
	logger.DatabaseCall("INSERT", "items", "owner", it.OwnerEmail)
	err := r.db.QueryRowContext(ctx, query, it.OwnerEmail, it.Name, it.Description, it.DailyRateCents,
		it.DepositCents, it.MinRentalDays, it.MaxRentalDays, it.InstantBookingEnabled, it.Available, now).Scan(&it.ID)
	logger.DatabaseResult("INSERT", 1, err, "itemID", it.ID)
	if err != nil {
		logger.ExitMethodWithError("itemRepository.Create", err)
		return translate(err)
	}
	it.Version = 1
	it.CreatedOn = now
	it.UpdatedOn = now
	logger.ExitMethod("itemRepository.Create", "itemID", it.ID)
	return nil
}

func (r *itemRepository) GetByID(ctx context.Context, id int32) (*domain.Item, error) {
	logger.DatabaseCall("SELECT", "items", "itemID", id)
	it, err := scanItem(r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return it, nil
}

// Update writes the item if its version still matches and bumps the version.
func (r *itemRepository) Update(ctx context.Context, it *domain.Item) error {
	query := `UPDATE items SET name=$1, description=$2, daily_rate_cents=$3, deposit_cents=$4, min_rental_days=$5,
	          max_rental_days=$6, instant_booking_enabled=$7, available=$8, version=version+1, updated_on=$9
	          WHERE id=$10 AND version=$11`
	now := time.Now().UTC()
	logger.DatabaseCall("UPDATE", "items", "itemID", it.ID, "version", it.Version)
	res, err := r.db.ExecContext(ctx, query, it.Name, it.Description, it.DailyRateCents, it.DepositCents,
		it.MinRentalDays, it.MaxRentalDays, it.InstantBookingEnabled, it.Available, now, it.ID, it.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "itemID", it.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrVersionConflict
	}
	it.Version++
	it.UpdatedOn = now
	return nil
}

func (r *itemRepository) ListByOwner(ctx context.Context, ownerEmail string) ([]domain.Item, error) {
	logger.DatabaseCall("SELECT", "items", "owner", ownerEmail)
	rows, err := r.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE owner_email = $1 ORDER BY id`, ownerEmail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}
