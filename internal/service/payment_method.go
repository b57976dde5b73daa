package service

import (
	"context"
	"strings"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/repository"
)

type paymentMethodService struct {
	ledger userLedger
}

func NewPaymentMethodService(userRepo repository.UserRepository, policy Policy) PaymentMethodService {
	return &paymentMethodService{ledger: userLedger{users: userRepo, retry: policy.ConflictRetry}}
}

func (s *paymentMethodService) AttachPaymentMethod(ctx context.Context, email, providerRef string) (*domain.User, error) {
	const op = "attach_payment_method"
	providerRef = strings.TrimSpace(providerRef)
	if providerRef == "" {
		return nil, domain.NewValidationError(op, "payment method reference is required")
	}
	return s.ledger.mutate(ctx, op, email, func(u *domain.User) error {
		if u.HasPaymentMethod && u.PaymentMethodRef == providerRef {
			return errUnchanged
		}
		u.HasPaymentMethod = true
		u.PaymentMethodRef = providerRef
		return nil
	})
}

func (s *paymentMethodService) DetachPaymentMethod(ctx context.Context, email string) (*domain.User, error) {
	return s.ledger.mutate(ctx, "detach_payment_method", email, func(u *domain.User) error {
		if !u.HasPaymentMethod {
			return errUnchanged
		}
		u.HasPaymentMethod = false
		u.PaymentMethodRef = ""
		return nil
	})
}

func (s *paymentMethodService) HasPaymentMethod(ctx context.Context, email string) (bool, error) {
	u, err := s.ledger.get(ctx, "has_payment_method", email)
	if err != nil {
		return false, err
	}
	return u.HasPaymentMethod, nil
}
