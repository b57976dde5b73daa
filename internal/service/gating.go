package service

import (
	"context"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/repository"
)

type gatekeeper struct {
	ledger userLedger
}

func NewGatekeeper(userRepo repository.UserRepository) Gatekeeper {
	return &gatekeeper{ledger: userLedger{users: userRepo}}
}

func (g *gatekeeper) CanInstantBook(ctx context.Context, ownerEmail string) (bool, error) {
	u, err := g.ledger.get(ctx, "can_instant_book", ownerEmail)
	if err != nil {
		return false, err
	}
	return u.Active && u.PayoutVerification == domain.VerificationVerified, nil
}

// CanCapturePayment uses the same rule as instant booking: the owner must be
// able to receive the money at the moment it moves.
func (g *gatekeeper) CanCapturePayment(ctx context.Context, ownerEmail string) (bool, error) {
	return g.CanInstantBook(ctx, ownerEmail)
}

func (g *gatekeeper) CanPay(ctx context.Context, renterEmail string) (bool, error) {
	u, err := g.ledger.get(ctx, "can_pay", renterEmail)
	if err != nil {
		return false, err
	}
	return u.Active && u.HasPaymentMethod, nil
}

func (g *gatekeeper) RequirePayoutVerified(ctx context.Context, op, ownerEmail string) error {
	u, err := g.ledger.get(ctx, op, ownerEmail)
	if err != nil {
		return err
	}
	if !u.Active {
		return domain.NewGatingFailure(op, domain.PreconditionAccountActive, "owner account %s is deactivated", u.Email)
	}
	if u.PayoutVerification != domain.VerificationVerified {
		return domain.NewGatingFailure(op, domain.PreconditionPayoutVerification,
			"owner payout account is %s", u.PayoutVerification)
	}
	return nil
}

func (g *gatekeeper) RequirePaymentMethod(ctx context.Context, op, renterEmail string) error {
	u, err := g.ledger.get(ctx, op, renterEmail)
	if err != nil {
		return err
	}
	if !u.Active {
		return domain.NewGatingFailure(op, domain.PreconditionAccountActive, "renter account %s is deactivated", u.Email)
	}
	if !u.HasPaymentMethod {
		return domain.NewGatingFailure(op, domain.PreconditionPaymentMethod, "renter has no payment method attached")
	}
	return nil
}
