package postgres

import (
	"context"
	"database/sql"
	"time"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/repository"
)

type providerEventRepository struct {
	db *sql.DB
}

func NewProviderEventRepository(db *sql.DB) repository.ProviderEventRepository {
	return &providerEventRepository{db: db}
}

func (r *providerEventRepository) Exists(ctx context.Context, token string) (bool, error) {
	var exists bool
	logger.DatabaseCall("SELECT", "provider_events", "token", token)
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM provider_events WHERE token = $1)`, token).Scan(&exists)
	return exists, err
}

func (r *providerEventRepository) Record(ctx context.Context, ev *domain.ProviderEvent) (bool, error) {
	if ev.ReceivedOn.IsZero() {
		ev.ReceivedOn = time.Now().UTC()
	}
	logger.DatabaseCall("INSERT", "provider_events", "token", ev.Token, "kind", ev.Kind)
	res, err := r.db.ExecContext(ctx, `INSERT INTO provider_events (token, kind, subject, received_on)
	          VALUES ($1, $2, $3, $4) ON CONFLICT (token) DO NOTHING`, ev.Token, ev.Kind, ev.Subject, ev.ReceivedOn)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("INSERT", n, err, "token", ev.Token)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
