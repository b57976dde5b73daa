package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/repository"
	"peer-rental-core/internal/repository/postgres"
)

func TestRelationRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := postgres.NewRelationRepository(db)
	ctx := context.Background()
	key := domain.RelationKey{Kind: domain.RelationFollow, ActorEmail: "renter@test.com", Target: "owner@test.com"}

	t.Run("Insert", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO relations (.+) ON CONFLICT \\(kind, actor_email, target\\) DO NOTHING").
			WithArgs(sqlmock.AnyArg(), "FOLLOW", "renter@test.com", "owner@test.com", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		rel := &domain.Relation{Kind: key.Kind, ActorEmail: key.ActorEmail, Target: key.Target}
		inserted, err := repo.Insert(ctx, rel)
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.NotEqual(t, uuid.Nil, rel.ID)
		assert.False(t, rel.CreatedOn.IsZero())
	})

	t.Run("Insert conflict", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO relations").
			WillReturnResult(sqlmock.NewResult(0, 0))

		inserted, err := repo.Insert(ctx, &domain.Relation{Kind: key.Kind, ActorEmail: key.ActorEmail, Target: key.Target})
		require.NoError(t, err)
		assert.False(t, inserted)
	})

	t.Run("GetByKey", func(t *testing.T) {
		id := uuid.New()
		rows := sqlmock.NewRows([]string{"id", "kind", "actor_email", "target", "created_on"}).
			AddRow(id.String(), "FOLLOW", "renter@test.com", "owner@test.com", time.Now())
		mock.ExpectQuery("SELECT (.+) FROM relations WHERE kind = \\$1 AND actor_email = \\$2 AND target = \\$3").
			WithArgs("FOLLOW", "renter@test.com", "owner@test.com").
			WillReturnRows(rows)

		rel, err := repo.GetByKey(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, id, rel.ID)
		assert.Equal(t, domain.RelationFollow, rel.Kind)
	})

	t.Run("GetByKey not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM relations WHERE kind").
			WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "actor_email", "target", "created_on"}))

		_, err := repo.GetByKey(ctx, key)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("DeleteByKey", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM relations WHERE kind = \\$1").
			WithArgs("FOLLOW", "renter@test.com", "owner@test.com").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM relations WHERE kind = \\$1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		removed, err := repo.DeleteByKey(ctx, key)
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = repo.DeleteByKey(ctx, key)
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("DeleteByID", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectExec("DELETE FROM relations WHERE id = \\$1 AND actor_email = \\$2").
			WithArgs(id.String(), "renter@test.com").
			WillReturnResult(sqlmock.NewResult(0, 1))

		removed, err := repo.DeleteByID(ctx, id, "renter@test.com")
		require.NoError(t, err)
		assert.True(t, removed)

		mock.ExpectExec("DELETE FROM relations WHERE id = \\$1 AND actor_email = \\$2").
			WithArgs(id.String(), "outsider@test.com").
			WillReturnResult(sqlmock.NewResult(0, 0))

		removed, err = repo.DeleteByID(ctx, id, "outsider@test.com")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderEventRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := postgres.NewProviderEventRepository(db)
	ctx := context.Background()

	t.Run("Exists", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM provider_events WHERE token = \\$1\\)").
			WithArgs("evt_1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		ok, err := repo.Exists(ctx, "evt_1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Record replay", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO provider_events (.+) ON CONFLICT \\(token\\) DO NOTHING").
			WithArgs("evt_1", "CHARGE", "ch_1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO provider_events").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ev := &domain.ProviderEvent{Token: "evt_1", Kind: domain.ProviderEventCharge, Subject: "ch_1"}
		fresh, err := repo.Record(ctx, ev)
		require.NoError(t, err)
		assert.True(t, fresh)
		assert.False(t, ev.ReceivedOn.IsZero())

		fresh, err = repo.Record(ctx, &domain.ProviderEvent{Token: "evt_1", Kind: domain.ProviderEventCharge, Subject: "ch_1"})
		require.NoError(t, err)
		assert.False(t, fresh)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
