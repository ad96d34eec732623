// Package repository declares the storage ports of the fulfilment core.
//
// Every mutating method accepts an optional *sql.Tx unit-of-work handle. A
// nil handle means the implementation runs against the connection pool;
// a non-nil handle must be honored so that multi-step operations stay
// all-or-nothing.
package repository

import (
	"context"
	"database/sql"
	"time"

	"fulfilment-backend/internal/domain"
)

// Snapshot is the persisted materialized state of one aggregate, equivalent
// to the fold of its full event history. Deleted marks a tombstone.
type Snapshot struct {
	AggregateID string
	State       *domain.Fulfilment
	Deleted     bool
	UpdatedAt   time.Time
}

// EventRepository is the append-only event log. Events are never updated or
// removed.
type EventRepository interface {
	Append(ctx context.Context, tx *sql.Tx, event *domain.Event) error
	ListByAggregate(ctx context.Context, tx *sql.Tx, aggregateID string) ([]domain.Event, error)
}

// SnapshotRepository stores the materialized aggregate state alongside the
// event log. Get must lock the row when called inside a transaction so
// concurrent commands against the same aggregate serialize at the store.
type SnapshotRepository interface {
	Get(ctx context.Context, tx *sql.Tx, aggregateID string) (*Snapshot, error)
	Upsert(ctx context.Context, tx *sql.Tx, snapshot *Snapshot) error
	ListRentalsDueForBilling(ctx context.Context, asOf time.Time, thresholdDays int) ([]domain.Fulfilment, error)
}

// ChargeRepository is the charge ledger collaborator.
type ChargeRepository interface {
	Create(ctx context.Context, tx *sql.Tx, charge *domain.Charge) error
	List(ctx context.Context, tx *sql.Tx, filter domain.ChargeFilter) ([]domain.Charge, error)
	DeleteAllByFulfilmentID(ctx context.Context, tx *sql.Tx, fulfilmentID string) error
	HasAnyInvoiced(ctx context.Context, tx *sql.Tx, fulfilmentID string) (bool, error)
}

// SalesOrderRepository looks up orders and their line items.
type SalesOrderRepository interface {
	GetByID(ctx context.Context, id string) (*domain.SalesOrder, error)
	GetLineItem(ctx context.Context, salesOrderID, lineItemID string) (*domain.SalesOrderLineItem, error)
}

// PriceRepository looks up price records.
type PriceRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Price, error)
}

// InventoryRepository looks up inventory units and records date-range
// reservations against them.
type InventoryRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Inventory, error)
	CreateFulfilmentReservation(ctx context.Context, tx *sql.Tx, reservation *domain.FulfilmentReservation, allowOverlap bool) error
}

// ScheduledJobRepository is the one-shot job queue backing the scheduler.
type ScheduledJobRepository interface {
	Schedule(ctx context.Context, tx *sql.Tx, job *domain.ScheduledJob) error
	ListDue(ctx context.Context, asOf time.Time) ([]domain.ScheduledJob, error)
	MarkCompleted(ctx context.Context, id string) error
	CancelByFulfilment(ctx context.Context, tx *sql.Tx, fulfilmentID, name string) error
}

// RelationRepository stores ownership relation tuples consumed by the
// authorization layer.
type RelationRepository interface {
	WriteRelation(ctx context.Context, tx *sql.Tx, resource, relation, subject string) error
	HasRelation(ctx context.Context, resource, relation, subject string) (bool, error)
}
