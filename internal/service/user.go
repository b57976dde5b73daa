package service

import (
	"context"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/repository"
)

type userService struct {
	ledger userLedger
}

func NewUserService(userRepo repository.UserRepository, policy Policy) UserService {
	return &userService{ledger: userLedger{users: userRepo, retry: policy.ConflictRetry}}
}

func (s *userService) GetProfile(ctx context.Context, email string) (*domain.User, error) {
	return s.ledger.get(ctx, "get_profile", email)
}

// SetIntent records what the user plans to do. Gating never reads it.
func (s *userService) SetIntent(ctx context.Context, email string, intent domain.UserIntent) (*domain.User, error) {
	const op = "set_intent"
	if !intent.Valid() {
		return nil, domain.NewValidationError(op, "unknown intent %q", intent)
	}
	return s.ledger.mutate(ctx, op, email, func(u *domain.User) error {
		if u.Intent == intent {
			return errUnchanged
		}
		u.Intent = intent
		return nil
	})
}

// Deactivate marks the user inactive. Users are never deleted.
func (s *userService) Deactivate(ctx context.Context, email string) error {
	_, err := s.ledger.mutate(ctx, "deactivate", email, func(u *domain.User) error {
		if !u.Active {
			return errUnchanged
		}
		u.Active = false
		return nil
	})
	return err
}
