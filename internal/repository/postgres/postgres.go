package postgres

import (
	"database/sql"
	"errors"

	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"

	"peer-rental-core/internal/repository"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Postgres error codes the repositories translate into repository errors.
const (
	pqUniqueViolation    = "23505"
	pqExclusionViolation = "23P01"
)

type Store struct {
	db *sql.DB
	repository.UserRepository
	repository.ItemRepository
	repository.BookingRepository
	repository.ConditionReportRepository
	repository.RelationRepository
	repository.ProviderEventRepository
	repository.NotificationRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                        db,
		UserRepository:            NewUserRepository(db),
		ItemRepository:            NewItemRepository(db),
		BookingRepository:         NewBookingRepository(db),
		ConditionReportRepository: NewConditionReportRepository(db),
		RelationRepository:        NewRelationRepository(db),
		ProviderEventRepository:   NewProviderEventRepository(db),
		NotificationRepository:    NewNotificationRepository(db),
	}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// translate maps driver errors onto the repository sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return repository.ErrAlreadyExists
		case pqExclusionViolation:
			return repository.ErrDateOverlap
		}
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
