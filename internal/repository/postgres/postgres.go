package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"fulfilment-backend/internal/repository"

	_ "github.com/lib/pq"
)

// querier is satisfied by both *sql.DB and *sql.Tx so every repository can
// honor an optional transaction handle.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// pick returns the transaction when one is given, the pool otherwise.
func pick(db *sql.DB, tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return db
}

type Store struct {
	db *sql.DB
	repository.EventRepository
	repository.SnapshotRepository
	repository.ChargeRepository
	repository.SalesOrderRepository
	repository.PriceRepository
	repository.InventoryRepository
	repository.ScheduledJobRepository
	repository.RelationRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                     db,
		EventRepository:        NewEventRepository(db),
		SnapshotRepository:     NewSnapshotRepository(db),
		ChargeRepository:       NewChargeRepository(db),
		SalesOrderRepository:   NewSalesOrderRepository(db),
		PriceRepository:        NewPriceRepository(db),
		InventoryRepository:    NewInventoryRepository(db),
		ScheduledJobRepository: NewScheduledJobRepository(db),
		RelationRepository:     NewRelationRepository(db),
	}
}

// WithTx runs fn inside one transaction. If fn returns an error the
// transaction rolls back and no partial state is visible.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
