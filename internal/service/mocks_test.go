package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stretchr/testify/mock"

	"fulfilment-backend/internal/domain"
	"fulfilment-backend/internal/fulfilment"
	"fulfilment-backend/internal/repository"
)

// memStore is an in-memory event store and snapshot source. Events run
// through the real reducer so test state evolves exactly like production
// state.
type memStore struct {
	states     map[string]*domain.Fulfilment
	tombstoned map[string]bool
	applied    []domain.Event
	due        []domain.Fulfilment
	now        time.Time
}

func newMemStore() *memStore {
	return &memStore{
		states:     make(map[string]*domain.Fulfilment),
		tombstoned: make(map[string]bool),
		now:        time.Date(2025, time.April, 15, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) seed(state *domain.Fulfilment) {
	m.states[state.ID] = state
}

func (m *memStore) Apply(ctx context.Context, tx *sql.Tx, aggregateID string, payload domain.EventPayload, principal *domain.Principal) (*domain.Fulfilment, error) {
	if principal == nil {
		return nil, domain.NewUnauthorizedError("event requires an authenticated principal")
	}
	if m.tombstoned[aggregateID] {
		return nil, domain.NewStateTransitionError(payload.EventType(), "deleted fulfilment accepts no further events")
	}
	event := domain.Event{
		ID:          fmt.Sprintf("evt-%d", len(m.applied)+1),
		AggregateID: aggregateID,
		Timestamp:   m.now,
		PrincipalID: principal.ID,
		Payload:     payload,
	}
	next, err := fulfilment.Reduce(m.states[aggregateID], event)
	if err != nil {
		return nil, err
	}
	m.applied = append(m.applied, event)
	if next == nil {
		delete(m.states, aggregateID)
		m.tombstoned[aggregateID] = true
		return nil, nil
	}
	m.states[aggregateID] = next
	return next, nil
}

func (m *memStore) appliedTypes() []string {
	var types []string
	for _, event := range m.applied {
		types = append(types, event.Payload.EventType())
	}
	return types
}

func (m *memStore) Get(ctx context.Context, tx *sql.Tx, aggregateID string) (*repository.Snapshot, error) {
	if m.tombstoned[aggregateID] {
		return &repository.Snapshot{AggregateID: aggregateID, Deleted: true}, nil
	}
	state, ok := m.states[aggregateID]
	if !ok {
		return nil, nil
	}
	return &repository.Snapshot{AggregateID: aggregateID, State: state, UpdatedAt: m.now}, nil
}

func (m *memStore) Upsert(ctx context.Context, tx *sql.Tx, snapshot *repository.Snapshot) error {
	return nil
}

func (m *memStore) ListRentalsDueForBilling(ctx context.Context, asOf time.Time, thresholdDays int) ([]domain.Fulfilment, error) {
	return m.due, nil
}

// passthroughTxRunner runs fn directly, standing in for a real transaction.
type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

type ownershipTuple struct {
	fulfilmentID string
	workspaceID  string
	salesOrderID string
}

type fakeAuthorizer struct {
	memberErr error
	adminErr  error
	owned     []ownershipTuple
}

func (f *fakeAuthorizer) RequireWorkspaceMember(ctx context.Context, principal *domain.Principal, workspaceID string) error {
	return f.memberErr
}

func (f *fakeAuthorizer) RequireERPAdmin(principal *domain.Principal) error {
	return f.adminErr
}

func (f *fakeAuthorizer) GrantWorkspaceMember(ctx context.Context, tx *sql.Tx, workspaceID, principalID string) error {
	return nil
}

func (f *fakeAuthorizer) RegisterFulfilmentOwnership(ctx context.Context, tx *sql.Tx, fulfilmentID, workspaceID, salesOrderID string) error {
	f.owned = append(f.owned, ownershipTuple{fulfilmentID, workspaceID, salesOrderID})
	return nil
}

type mockChargeRepo struct {
	mock.Mock
}

func (m *mockChargeRepo) Create(ctx context.Context, tx *sql.Tx, charge *domain.Charge) error {
	args := m.Called(ctx, tx, charge)
	return args.Error(0)
}

func (m *mockChargeRepo) List(ctx context.Context, tx *sql.Tx, filter domain.ChargeFilter) ([]domain.Charge, error) {
	args := m.Called(ctx, tx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Charge), args.Error(1)
}

func (m *mockChargeRepo) DeleteAllByFulfilmentID(ctx context.Context, tx *sql.Tx, fulfilmentID string) error {
	args := m.Called(ctx, tx, fulfilmentID)
	return args.Error(0)
}

func (m *mockChargeRepo) HasAnyInvoiced(ctx context.Context, tx *sql.Tx, fulfilmentID string) (bool, error) {
	args := m.Called(ctx, tx, fulfilmentID)
	return args.Bool(0), args.Error(1)
}

func (m *mockChargeRepo) createdCharges() []*domain.Charge {
	var charges []*domain.Charge
	for _, call := range m.Calls {
		if call.Method == "Create" {
			charges = append(charges, call.Arguments.Get(2).(*domain.Charge))
		}
	}
	return charges
}

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id string) (*domain.SalesOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SalesOrder), args.Error(1)
}

func (m *mockOrderRepo) GetLineItem(ctx context.Context, salesOrderID, lineItemID string) (*domain.SalesOrderLineItem, error) {
	args := m.Called(ctx, salesOrderID, lineItemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SalesOrderLineItem), args.Error(1)
}

type mockPriceRepo struct {
	mock.Mock
}

func (m *mockPriceRepo) GetByID(ctx context.Context, id string) (*domain.Price, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Price), args.Error(1)
}

type mockInventoryRepo struct {
	mock.Mock
}

func (m *mockInventoryRepo) GetByID(ctx context.Context, id string) (*domain.Inventory, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Inventory), args.Error(1)
}

func (m *mockInventoryRepo) CreateFulfilmentReservation(ctx context.Context, tx *sql.Tx, reservation *domain.FulfilmentReservation, allowOverlap bool) error {
	args := m.Called(ctx, tx, reservation, allowOverlap)
	return args.Error(0)
}

type mockJobRepo struct {
	mock.Mock
}

func (m *mockJobRepo) Schedule(ctx context.Context, tx *sql.Tx, job *domain.ScheduledJob) error {
	args := m.Called(ctx, tx, job)
	return args.Error(0)
}

func (m *mockJobRepo) ListDue(ctx context.Context, asOf time.Time) ([]domain.ScheduledJob, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScheduledJob), args.Error(1)
}

func (m *mockJobRepo) MarkCompleted(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockJobRepo) CancelByFulfilment(ctx context.Context, tx *sql.Tx, fulfilmentID, name string) error {
	args := m.Called(ctx, tx, fulfilmentID, name)
	return args.Error(0)
}
