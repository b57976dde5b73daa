package service_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/provider"
)

// MockPaymentProvider
type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) InitiateCharge(ctx context.Context, req provider.LegRequest) (*provider.LegResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.LegResult), args.Error(1)
}

func (m *MockPaymentProvider) InitiateDepositHold(ctx context.Context, req provider.LegRequest) (*provider.LegResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.LegResult), args.Error(1)
}

func (m *MockPaymentProvider) RefundCharge(ctx context.Context, ref, idempotencyKey string) error {
	args := m.Called(ctx, ref, idempotencyKey)
	return args.Error(0)
}

func (m *MockPaymentProvider) ReleaseDepositHold(ctx context.Context, ref, idempotencyKey string) error {
	args := m.Called(ctx, ref, idempotencyKey)
	return args.Error(0)
}

func (m *MockPaymentProvider) GetLegStatus(ctx context.Context, ref string) (*provider.LegResult, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.LegResult), args.Error(1)
}

func (m *MockPaymentProvider) InitiateIdentitySession(ctx context.Context, email string) (*provider.Session, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Session), args.Error(1)
}

func (m *MockPaymentProvider) InitiatePayoutOnboarding(ctx context.Context, email string) (*provider.Session, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Session), args.Error(1)
}

// MockNotifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, ev domain.NotificationEvent) {
	m.Called(ctx, ev)
}

// ofType matches a notification event by type.
func ofType(typ domain.NotificationType) interface{} {
	return mock.MatchedBy(func(ev domain.NotificationEvent) bool { return ev.Type == typ })
}

// MockEmailSender
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// MockPushSender
type MockPushSender struct {
	mock.Mock
}

func (m *MockPushSender) Push(ctx context.Context, email, title, body string, data map[string]string) error {
	args := m.Called(ctx, email, title, body, data)
	return args.Error(0)
}

// MockRelationRepo
type MockRelationRepo struct {
	mock.Mock
}

func (m *MockRelationRepo) Insert(ctx context.Context, rel *domain.Relation) (bool, error) {
	args := m.Called(ctx, rel)
	return args.Bool(0), args.Error(1)
}

func (m *MockRelationRepo) GetByKey(ctx context.Context, key domain.RelationKey) (*domain.Relation, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Relation), args.Error(1)
}

func (m *MockRelationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Relation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Relation), args.Error(1)
}

func (m *MockRelationRepo) DeleteByKey(ctx context.Context, key domain.RelationKey) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockRelationRepo) DeleteByID(ctx context.Context, id uuid.UUID, actorEmail string) (bool, error) {
	args := m.Called(ctx, id, actorEmail)
	return args.Bool(0), args.Error(1)
}

func (m *MockRelationRepo) ListByActor(ctx context.Context, kind domain.RelationKind, actorEmail string) ([]domain.Relation, error) {
	args := m.Called(ctx, kind, actorEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Relation), args.Error(1)
}
