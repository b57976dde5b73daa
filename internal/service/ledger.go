package service

import (
	"context"
	"errors"
	"fmt"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/repository"
)

// errUnchanged lets a mutation report that nothing needs to be written.
var errUnchanged = errors.New("unchanged")

// userLedger applies read-modify-write updates to one user record under its
// version guard, retrying lost races.
type userLedger struct {
	users repository.UserRepository
	retry RetryPolicy
}

func (l userLedger) get(ctx context.Context, op, email string) (*domain.User, error) {
	u, err := l.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, lookupError(op, err, "user %s", email)
	}
	return u, nil
}

// mutate loads the user, applies fn and saves it. fn returning errUnchanged
// short-circuits without a write.
func (l userLedger) mutate(ctx context.Context, op, email string, fn func(u *domain.User) error) (*domain.User, error) {
	var result *domain.User
	err := retryWithBackoff(ctx, op, isVersionConflict, func(ctx context.Context) error {
		u, err := l.get(ctx, op, email)
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			if errors.Is(err, errUnchanged) {
				result = u
				return nil
			}
			return err
		}
		if err := l.users.Update(ctx, u); err != nil {
			return err
		}
		result = u
		return nil
	}, l.retry.options()...)
	if err != nil {
		if isVersionConflict(err) {
			logger.Warn("User update lost every retry", "operation", op, "email", email)
			return nil, domain.NewConcurrencyConflict(op, err)
		}
		return nil, err
	}
	return result, nil
}

// lookupError converts a repository read failure into a domain error.
func lookupError(op string, err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NewNotFound(op, format+" not found", args...)
	}
	return fmt.Errorf("%s: %w", op, err)
}
