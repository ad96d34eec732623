package eventstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fulfilment-backend/internal/domain"
	"fulfilment-backend/internal/repository"
)

type mockEventRepo struct {
	mock.Mock
}

func (m *mockEventRepo) Append(ctx context.Context, tx *sql.Tx, event *domain.Event) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

func (m *mockEventRepo) ListByAggregate(ctx context.Context, tx *sql.Tx, aggregateID string) ([]domain.Event, error) {
	args := m.Called(ctx, tx, aggregateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Event), args.Error(1)
}

type mockSnapshotRepo struct {
	mock.Mock
}

func (m *mockSnapshotRepo) Get(ctx context.Context, tx *sql.Tx, aggregateID string) (*repository.Snapshot, error) {
	args := m.Called(ctx, tx, aggregateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Snapshot), args.Error(1)
}

func (m *mockSnapshotRepo) Upsert(ctx context.Context, tx *sql.Tx, snapshot *repository.Snapshot) error {
	args := m.Called(ctx, tx, snapshot)
	return args.Error(0)
}

func (m *mockSnapshotRepo) ListRentalsDueForBilling(ctx context.Context, asOf time.Time, thresholdDays int) ([]domain.Fulfilment, error) {
	args := m.Called(ctx, asOf, thresholdDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Fulfilment), args.Error(1)
}

// passthroughTxRunner runs fn directly, standing in for a real transaction.
type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

var testPrincipal = &domain.Principal{ID: "alice"}

func createPayload() *domain.CreateRentalFulfilment {
	return &domain.CreateRentalFulfilment{
		FulfilmentID:         "f-1",
		WorkspaceID:          "ws-1",
		SalesOrderID:         "so-1",
		SalesOrderLineItemID: "li-1",
		DayRateInCents:       600,
		WeekRateInCents:      1000,
		MonthRateInCents:     5000,
	}
}

func TestApply_CreatePersistsEventAndSnapshot(t *testing.T) {
	events := new(mockEventRepo)
	snapshots := new(mockSnapshotRepo)
	store := NewStore(events, snapshots, passthroughTxRunner{})
	ctx := context.Background()

	snapshots.On("Get", ctx, (*sql.Tx)(nil), "f-1").Return(nil, nil)
	events.On("Append", ctx, (*sql.Tx)(nil), mock.AnythingOfType("*domain.Event")).Return(nil)
	snapshots.On("Upsert", ctx, (*sql.Tx)(nil), mock.AnythingOfType("*repository.Snapshot")).Return(nil)

	state, err := store.Apply(ctx, nil, "f-1", createPayload(), testPrincipal)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "f-1", state.ID)
	assert.Equal(t, "alice", state.CreatedBy)

	events.AssertExpectations(t)
	snapshots.AssertExpectations(t)

	appended := events.Calls[0].Arguments.Get(2).(*domain.Event)
	assert.Equal(t, "f-1", appended.AggregateID)
	assert.Equal(t, "alice", appended.PrincipalID)
	assert.NotEmpty(t, appended.ID)

	upserted := snapshots.Calls[1].Arguments.Get(2).(*repository.Snapshot)
	assert.False(t, upserted.Deleted)
	assert.Equal(t, state, upserted.State)
}

func TestApply_RejectsNilPrincipal(t *testing.T) {
	store := NewStore(new(mockEventRepo), new(mockSnapshotRepo), passthroughTxRunner{})

	_, err := store.Apply(context.Background(), nil, "f-1", createPayload(), nil)
	assert.True(t, domain.IsUnauthorized(err))
}

func TestApply_SchemaRejectsMalformedPayload(t *testing.T) {
	store := NewStore(new(mockEventRepo), new(mockSnapshotRepo), passthroughTxRunner{})

	// Missing required identifiers.
	_, err := store.Apply(context.Background(), nil, "f-1", &domain.CreateRentalFulfilment{}, testPrincipal)
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestApply_SchemaRejectsEmptyColumnID(t *testing.T) {
	store := NewStore(new(mockEventRepo), new(mockSnapshotRepo), passthroughTxRunner{})

	_, err := store.Apply(context.Background(), nil, "f-1", &domain.UpdateColumn{}, testPrincipal)
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestApply_DeletedAggregateAcceptsNothing(t *testing.T) {
	events := new(mockEventRepo)
	snapshots := new(mockSnapshotRepo)
	store := NewStore(events, snapshots, passthroughTxRunner{})
	ctx := context.Background()

	snapshots.On("Get", ctx, (*sql.Tx)(nil), "f-1").Return(&repository.Snapshot{
		AggregateID: "f-1",
		Deleted:     true,
	}, nil)

	_, err := store.Apply(ctx, nil, "f-1", &domain.UpdateColumn{ColumnID: "col-1"}, testPrincipal)
	var transition *domain.StateTransitionError
	assert.ErrorAs(t, err, &transition)
	events.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}

func TestApply_ReducerFailureWritesNothing(t *testing.T) {
	events := new(mockEventRepo)
	snapshots := new(mockSnapshotRepo)
	store := NewStore(events, snapshots, passthroughTxRunner{})
	ctx := context.Background()

	// Uninitialized aggregate, non-create event.
	snapshots.On("Get", ctx, (*sql.Tx)(nil), "f-1").Return(nil, nil)

	_, err := store.Apply(ctx, nil, "f-1", &domain.UpdateColumn{ColumnID: "col-1"}, testPrincipal)
	require.Error(t, err)
	events.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
	snapshots.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestApply_DeleteWritesTombstoneSnapshot(t *testing.T) {
	events := new(mockEventRepo)
	snapshots := new(mockSnapshotRepo)
	store := NewStore(events, snapshots, passthroughTxRunner{})
	ctx := context.Background()

	live := &domain.Fulfilment{ID: "f-1", WorkspaceID: "ws-1", Type: domain.SalesOrderTypeRental}
	snapshots.On("Get", ctx, (*sql.Tx)(nil), "f-1").Return(&repository.Snapshot{AggregateID: "f-1", State: live}, nil)
	events.On("Append", ctx, (*sql.Tx)(nil), mock.AnythingOfType("*domain.Event")).Return(nil)
	snapshots.On("Upsert", ctx, (*sql.Tx)(nil), mock.MatchedBy(func(s *repository.Snapshot) bool {
		return s.Deleted && s.State == nil
	})).Return(nil)

	state, err := store.Apply(ctx, nil, "f-1", &domain.DeleteFulfilment{}, testPrincipal)
	require.NoError(t, err)
	assert.Nil(t, state)
	snapshots.AssertExpectations(t)
}

func TestReplay_FoldsFullHistory(t *testing.T) {
	events := new(mockEventRepo)
	snapshots := new(mockSnapshotRepo)
	store := NewStore(events, snapshots, passthroughTxRunner{})
	ctx := context.Background()

	history := []domain.Event{
		{ID: "e-1", AggregateID: "f-1", Timestamp: time.Now(), PrincipalID: "alice", Payload: createPayload()},
		{ID: "e-2", AggregateID: "f-1", Timestamp: time.Now(), PrincipalID: "bob", Payload: &domain.UpdateColumn{ColumnID: "col-2"}},
	}
	events.On("ListByAggregate", ctx, (*sql.Tx)(nil), "f-1").Return(history, nil)

	state, err := store.Replay(ctx, "f-1")
	require.NoError(t, err)
	assert.Equal(t, "col-2", state.ColumnID)
	assert.Equal(t, "alice", state.CreatedBy)
	assert.Equal(t, "bob", state.UpdatedBy)
}

func TestReplay_UnknownAggregate(t *testing.T) {
	events := new(mockEventRepo)
	store := NewStore(events, new(mockSnapshotRepo), passthroughTxRunner{})
	ctx := context.Background()

	events.On("ListByAggregate", ctx, (*sql.Tx)(nil), "missing").Return(nil, nil)

	_, err := store.Replay(ctx, "missing")
	assert.True(t, domain.IsNotFound(err))
}
