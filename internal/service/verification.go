package service

import (
	"context"
	"strings"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/provider"
	"peer-rental-core/internal/repository"
)

type verificationService struct {
	ledger   userLedger
	events   repository.ProviderEventRepository
	provider PaymentProvider
	notifier Notifier
}

func NewVerificationService(userRepo repository.UserRepository, eventRepo repository.ProviderEventRepository,
	pp PaymentProvider, notifier Notifier, policy Policy) VerificationService {
	return &verificationService{
		ledger:   userLedger{users: userRepo, retry: policy.ConflictRetry},
		events:   eventRepo,
		provider: pp,
		notifier: notifier,
	}
}

func (s *verificationService) SubmitIdentity(ctx context.Context, email string) (*domain.User, *provider.Session, error) {
	return s.submit(ctx, "submit_identity", domain.VerificationKindIdentity, email, s.provider.InitiateIdentitySession)
}

func (s *verificationService) SubmitPayout(ctx context.Context, email string) (*domain.User, *provider.Session, error) {
	return s.submit(ctx, "submit_payout", domain.VerificationKindPayout, email, s.provider.InitiatePayoutOnboarding)
}

// submit opens a provider session and moves the machine to pending. Session
// creation is not idempotent on the provider side, so it is attempted once.
func (s *verificationService) submit(ctx context.Context, op string, kind domain.VerificationKind, email string,
	start func(context.Context, string) (*provider.Session, error)) (*domain.User, *provider.Session, error) {
	logger.EnterMethod("verificationService."+op, "email", email)

	u, err := s.ledger.get(ctx, op, email)
	if err != nil {
		logger.ExitMethodWithError("verificationService."+op, err)
		return nil, nil, err
	}
	if !u.Active {
		err := domain.NewGatingFailure(op, domain.PreconditionAccountActive, "account %s is deactivated", u.Email)
		logger.ExitMethodWithError("verificationService."+op, err)
		return nil, nil, err
	}
	_, changed, err := u.Verification(kind).Submit()
	if err != nil {
		logger.ExitMethodWithError("verificationService."+op, err, "status", u.Verification(kind))
		return nil, nil, err
	}
	if !changed {
		logger.ExitMethod("verificationService."+op, "status", u.Verification(kind), "noop", true)
		return u, nil, nil
	}

	session, err := start(ctx, u.Email)
	if err != nil {
		perr := domain.NewProviderFailure(op, err, "could not open %s session", strings.ToLower(string(kind)))
		logger.ExitMethodWithError("verificationService."+op, perr)
		return nil, nil, perr
	}

	u, err = s.ledger.mutate(ctx, op, u.Email, func(u *domain.User) error {
		next, changed, err := u.Verification(kind).Submit()
		if err != nil {
			return err
		}
		if !changed {
			return errUnchanged
		}
		u.SetVerification(kind, next)
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("verificationService."+op, err)
		return nil, nil, err
	}

	logger.ExitMethod("verificationService."+op, "status", u.Verification(kind), "sessionID", session.ID)
	return u, session, nil
}

func (s *verificationService) OnIdentityStatus(ctx context.Context, ev domain.VerificationEvent) error {
	ev.Kind = domain.VerificationKindIdentity
	return s.onStatus(ctx, "on_identity_status", ev)
}

func (s *verificationService) OnPayoutStatus(ctx context.Context, ev domain.VerificationEvent) error {
	ev.Kind = domain.VerificationKindPayout
	return s.onStatus(ctx, "on_payout_status", ev)
}

// onStatus folds a provider callback into the ledger. The dedup token is
// recorded only after the write so a failed apply is redelivered.
func (s *verificationService) onStatus(ctx context.Context, op string, ev domain.VerificationEvent) error {
	logger.EnterMethod("verificationService."+op, "token", ev.Token, "email", ev.Email, "outcome", ev.Outcome)

	if ev.Token == "" || ev.Email == "" {
		return domain.NewValidationError(op, "token and email are required")
	}
	if !ev.Outcome.Valid() {
		return domain.NewValidationError(op, "unknown outcome %q", ev.Outcome)
	}

	seen, err := s.events.Exists(ctx, ev.Token)
	if err != nil {
		logger.ExitMethodWithError("verificationService."+op, err)
		return err
	}
	if seen {
		logger.ExitMethod("verificationService."+op, "token", ev.Token, "duplicate", true)
		return nil
	}

	var before domain.VerificationStatus
	changed := false
	u, err := s.ledger.mutate(ctx, op, ev.Email, func(u *domain.User) error {
		before = u.Verification(ev.Kind)
		next, ok := before.Apply(ev.Outcome)
		if !ok {
			changed = false
			return errUnchanged
		}
		changed = true
		u.SetVerification(ev.Kind, next)
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("verificationService."+op, err)
		return err
	}

	if _, err := s.events.Record(ctx, &domain.ProviderEvent{
		Token:   ev.Token,
		Kind:    domain.ProviderEventKind(ev.Kind),
		Subject: u.Email,
	}); err != nil {
		logger.Warn("Failed to record provider event token", "token", ev.Token, "error", err)
	}

	if changed {
		logger.Info("Verification status changed", "email", u.Email, "kind", ev.Kind, "from", before, "to", u.Verification(ev.Kind))
		s.notifier.Notify(ctx, domain.NotificationEvent{
			Type:       domain.NotificationVerificationUpdated,
			Recipients: []string{u.Email},
			Title:      "Verification updated",
			Message:    strings.ToLower(string(ev.Kind)) + " verification is now " + strings.ToLower(string(u.Verification(ev.Kind))),
			Attributes: map[string]string{"kind": string(ev.Kind), "status": string(u.Verification(ev.Kind))},
		})
	}
	logger.ExitMethod("verificationService."+op, "status", u.Verification(ev.Kind), "changed", changed)
	return nil
}

func (s *verificationService) GetVerification(ctx context.Context, email string) (*domain.User, error) {
	return s.ledger.get(ctx, "get_verification", email)
}
