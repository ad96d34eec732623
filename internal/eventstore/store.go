// Package eventstore applies commands to fulfilment aggregates. Apply is the
// single write path: it validates the payload, folds it over the current
// snapshot and persists event plus snapshot atomically.
package eventstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"fulfilment-backend/internal/domain"
	"fulfilment-backend/internal/fulfilment"
	"fulfilment-backend/internal/repository"
)

// TxRunner starts a transaction and runs fn inside it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type Store struct {
	events    repository.EventRepository
	snapshots repository.SnapshotRepository
	txRunner  TxRunner
	now       func() time.Time
}

func NewStore(events repository.EventRepository, snapshots repository.SnapshotRepository, txRunner TxRunner) *Store {
	return &Store{
		events:    events,
		snapshots: snapshots,
		txRunner:  txRunner,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Apply validates the payload, loads the aggregate's snapshot with a row
// lock, runs the reducer and persists the event together with the updated
// snapshot. With a nil tx it opens its own transaction, so the caller only
// passes one when the event must commit together with other writes.
//
// The snapshot row lock serializes concurrent commands per aggregate. Two
// writers against the same fulfilment queue at the Get and each one folds
// over the state the previous commit left behind.
func (s *Store) Apply(ctx context.Context, tx *sql.Tx, aggregateID string, payload domain.EventPayload, principal *domain.Principal) (*domain.Fulfilment, error) {
	if principal == nil {
		return nil, domain.NewUnauthorizedError("event requires an authenticated principal")
	}
	if aggregateID == "" {
		return nil, domain.NewValidationError("aggregate id is required", nil)
	}
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	if tx == nil {
		var state *domain.Fulfilment
		err := s.txRunner.WithTx(ctx, func(tx *sql.Tx) error {
			var applyErr error
			state, applyErr = s.apply(ctx, tx, aggregateID, payload, principal)
			return applyErr
		})
		return state, err
	}
	return s.apply(ctx, tx, aggregateID, payload, principal)
}

func (s *Store) apply(ctx context.Context, tx *sql.Tx, aggregateID string, payload domain.EventPayload, principal *domain.Principal) (*domain.Fulfilment, error) {
	snapshot, err := s.snapshots.Get(ctx, tx, aggregateID)
	if err != nil {
		return nil, err
	}

	var current *domain.Fulfilment
	if snapshot != nil {
		if snapshot.Deleted {
			return nil, domain.NewStateTransitionError(payload.EventType(), "deleted fulfilment accepts no further events")
		}
		current = snapshot.State
	}

	event := domain.Event{
		ID:          uuid.NewString(),
		AggregateID: aggregateID,
		Timestamp:   s.now(),
		PrincipalID: principal.ID,
		Payload:     payload,
	}

	next, err := fulfilment.Reduce(current, event)
	if err != nil {
		return nil, err
	}

	if err := s.events.Append(ctx, tx, &event); err != nil {
		return nil, err
	}
	if err := s.snapshots.Upsert(ctx, tx, &repository.Snapshot{
		AggregateID: aggregateID,
		State:       next,
		Deleted:     next == nil,
		UpdatedAt:   event.Timestamp,
	}); err != nil {
		return nil, err
	}
	return next, nil
}

// Replay folds the aggregate's full history from the event log. It is the
// recovery path for a lost or suspect snapshot and the reference the snapshot
// must agree with.
func (s *Store) Replay(ctx context.Context, aggregateID string) (*domain.Fulfilment, error) {
	events, err := s.events.ListByAggregate(ctx, nil, aggregateID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, domain.NewNotFoundError("fulfilment", aggregateID)
	}

	var state *domain.Fulfilment
	for _, event := range events {
		state, err = fulfilment.Reduce(state, event)
		if err != nil {
			return nil, err
		}
	}
	return state, nil
}
