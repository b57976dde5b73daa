package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/repository"
)

type relationRepository struct {
	db *sql.DB
}

func NewRelationRepository(db *sql.DB) repository.RelationRepository {
	return &relationRepository{db: db}
}

func (r *relationRepository) Insert(ctx context.Context, rel *domain.Relation) (bool, error) {
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	if rel.CreatedOn.IsZero() {
		rel.CreatedOn = time.Now().UTC()
	}

	query := `INSERT INTO relations (id, kind, actor_email, target, created_on) VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (kind, actor_email, target) DO NOTHING`
	logger.DatabaseCall("INSERT", "relations", "kind", rel.Kind, "actor", rel.ActorEmail, "target", rel.Target)
	res, err := r.db.ExecContext(ctx, query, rel.ID, rel.Kind, rel.ActorEmail, rel.Target, rel.CreatedOn)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("INSERT", n, err, "relationID", rel.ID)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *relationRepository) get(ctx context.Context, where string, args ...any) (*domain.Relation, error) {
	rel := &domain.Relation{}
	err := r.db.QueryRowContext(ctx, `SELECT id, kind, actor_email, target, created_on FROM relations WHERE `+where, args...).
		Scan(&rel.ID, &rel.Kind, &rel.ActorEmail, &rel.Target, &rel.CreatedOn)
	if err != nil {
		return nil, translate(err)
	}
	return rel, nil
}

func (r *relationRepository) GetByKey(ctx context.Context, key domain.RelationKey) (*domain.Relation, error) {
	logger.DatabaseCall("SELECT", "relations", "kind", key.Kind, "actor", key.ActorEmail, "target", key.Target)
	return r.get(ctx, `kind = $1 AND actor_email = $2 AND target = $3`, key.Kind, key.ActorEmail, key.Target)
}

func (r *relationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Relation, error) {
	logger.DatabaseCall("SELECT", "relations", "relationID", id)
	return r.get(ctx, `id = $1`, id)
}

func (r *relationRepository) DeleteByKey(ctx context.Context, key domain.RelationKey) (bool, error) {
	logger.DatabaseCall("DELETE", "relations", "kind", key.Kind, "actor", key.ActorEmail, "target", key.Target)
	return r.delete(ctx, `DELETE FROM relations WHERE kind = $1 AND actor_email = $2 AND target = $3`,
		key.Kind, key.ActorEmail, key.Target)
}

func (r *relationRepository) DeleteByID(ctx context.Context, id uuid.UUID, actorEmail string) (bool, error) {
	logger.DatabaseCall("DELETE", "relations", "relationID", id, "actor", actorEmail)
	return r.delete(ctx, `DELETE FROM relations WHERE id = $1 AND actor_email = $2`, id, actorEmail)
}

func (r *relationRepository) delete(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("DELETE", n, err)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *relationRepository) ListByActor(ctx context.Context, kind domain.RelationKind, actorEmail string) ([]domain.Relation, error) {
	logger.DatabaseCall("SELECT", "relations", "kind", kind, "actor", actorEmail)
	rows, err := r.db.QueryContext(ctx, `SELECT id, kind, actor_email, target, created_on FROM relations
	          WHERE kind = $1 AND actor_email = $2 ORDER BY created_on DESC`, kind, actorEmail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []domain.Relation
	for rows.Next() {
		var rel domain.Relation
		if err := rows.Scan(&rel.ID, &rel.Kind, &rel.ActorEmail, &rel.Target, &rel.CreatedOn); err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}
