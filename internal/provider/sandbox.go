package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"peer-rental-core/internal/logger"
)

// Sandbox is an in-process provider for local runs. Charges and holds
// succeed synchronously unless the payer is listed in Decline.
type Sandbox struct {
	mu      sync.Mutex
	legs    map[string]LegResult
	byKey   map[string]string
	decline map[string]bool
}

func NewSandbox() *Sandbox {
	return &Sandbox{
		legs:    make(map[string]LegResult),
		byKey:   make(map[string]string),
		decline: make(map[string]bool),
	}
}

// Decline makes every future charge and hold for email fail.
func (s *Sandbox) Decline(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decline[email] = true
}

func (s *Sandbox) start(prefix string, req LegRequest) (*LegResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.byKey[req.IdempotencyKey]; ok {
		res := s.legs[ref]
		return &res, nil
	}
	if s.decline[req.CustomerEmail] {
		return nil, fmt.Errorf("%w: sandbox decline for %s", ErrDeclined, req.CustomerEmail)
	}
	res := LegResult{Ref: prefix + "_" + uuid.NewString(), Status: LegSucceeded}
	s.legs[res.Ref] = res
	s.byKey[req.IdempotencyKey] = res.Ref
	logger.Debug("Sandbox leg started", "ref", res.Ref, "bookingID", req.BookingID, "amountCents", req.AmountCents)
	return &res, nil
}

func (s *Sandbox) InitiateCharge(_ context.Context, req LegRequest) (*LegResult, error) {
	return s.start("ch", req)
}

func (s *Sandbox) InitiateDepositHold(_ context.Context, req LegRequest) (*LegResult, error) {
	return s.start("dh", req)
}

func (s *Sandbox) settle(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.legs[ref]; !ok {
		return fmt.Errorf("sandbox: unknown leg %s", ref)
	}
	delete(s.legs, ref)
	return nil
}

func (s *Sandbox) RefundCharge(_ context.Context, ref, _ string) error {
	return s.settle(ref)
}

func (s *Sandbox) ReleaseDepositHold(_ context.Context, ref, _ string) error {
	return s.settle(ref)
}

func (s *Sandbox) GetLegStatus(_ context.Context, ref string) (*LegResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.legs[ref]
	if !ok {
		return &LegResult{Ref: ref, Status: LegFailed}, nil
	}
	return &res, nil
}

func (s *Sandbox) InitiateIdentitySession(_ context.Context, email string) (*Session, error) {
	id := uuid.NewString()
	return &Session{ID: id, URL: "https://sandbox.invalid/identity/" + id}, nil
}

func (s *Sandbox) InitiatePayoutOnboarding(_ context.Context, email string) (*Session, error) {
	id := uuid.NewString()
	return &Session{ID: id, URL: "https://sandbox.invalid/payout/" + id}, nil
}
