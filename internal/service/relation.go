package service

import (
	"context"

	"github.com/google/uuid"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/repository"
)

type relationService struct {
	relationRepo repository.RelationRepository
}

func NewRelationService(relationRepo repository.RelationRepository) RelationService {
	return &relationService{relationRepo: relationRepo}
}

// SetRelation converges the relation to the desired presence. Repeating a
// call is a no-op. Removal addresses the composite key first and falls back
// to surrogateID, scoped to the actor, when the key path fails or finds
// nothing. Absent under both is success.
func (s *relationService) SetRelation(ctx context.Context, key domain.RelationKey, desired bool, surrogateID uuid.UUID) (*domain.Relation, error) {
	const op = "set_relation"
	key = key.Normalize()
	if err := key.Validate(op); err != nil {
		return nil, err
	}
	logger.EnterMethod("relationService.SetRelation", "kind", key.Kind, "actor", key.ActorEmail, "target", key.Target, "desired", desired)

	if desired {
		rel := &domain.Relation{Kind: key.Kind, ActorEmail: key.ActorEmail, Target: key.Target}
		inserted, err := s.relationRepo.Insert(ctx, rel)
		if err != nil {
			logger.ExitMethodWithError("relationService.SetRelation", err)
			return nil, err
		}
		if !inserted {
			existing, err := s.relationRepo.GetByKey(ctx, key)
			if err != nil {
				return nil, lookupError(op, err, "relation %s", key.Kind)
			}
			rel = existing
		}
		logger.ExitMethod("relationService.SetRelation", "inserted", inserted, "relationID", rel.ID)
		return rel, nil
	}

	removed, keyErr := s.relationRepo.DeleteByKey(ctx, key)
	if keyErr != nil || !removed {
		if surrogateID == uuid.Nil {
			if keyErr != nil {
				logger.ExitMethodWithError("relationService.SetRelation", keyErr)
				return nil, keyErr
			}
			logger.ExitMethod("relationService.SetRelation", "removed", false)
			return nil, nil
		}
		if keyErr != nil {
			logger.Warn("Relation delete by key failed, using surrogate id", "relationID", surrogateID, "error", keyErr)
		}
		var err error
		removed, err = s.relationRepo.DeleteByID(ctx, surrogateID, key.ActorEmail)
		if err != nil {
			logger.ExitMethodWithError("relationService.SetRelation", err)
			return nil, err
		}
		// The key path never answered, so a miss here proves nothing.
		if keyErr != nil && !removed {
			logger.ExitMethodWithError("relationService.SetRelation", keyErr)
			return nil, keyErr
		}
	}
	logger.ExitMethod("relationService.SetRelation", "removed", removed)
	return nil, nil
}

func (s *relationService) ListRelations(ctx context.Context, kind domain.RelationKind, actorEmail string) ([]domain.Relation, error) {
	if !kind.Valid() {
		return nil, domain.NewValidationError("list_relations", "unknown relation kind %q", kind)
	}
	return s.relationRepo.ListByActor(ctx, kind, domain.NormalizeEmail(actorEmail))
}
