package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fulfilment-backend/internal/domain"
	"fulfilment-backend/internal/repository"
)

type snapshotRepository struct {
	db *sql.DB
}

func NewSnapshotRepository(db *sql.DB) repository.SnapshotRepository {
	return &snapshotRepository{db: db}
}

// Get loads the materialized state for one aggregate. Inside a transaction
// the row is locked, which serializes concurrent commands against the same
// aggregate at the store.
func (r *snapshotRepository) Get(ctx context.Context, tx *sql.Tx, aggregateID string) (*repository.Snapshot, error) {
	query := `SELECT state, deleted, updated_at FROM fulfilment_snapshots WHERE aggregate_id = $1`
	if tx != nil {
		query += " FOR UPDATE"
	}

	var (
		state     []byte
		deleted   bool
		updatedAt time.Time
	)
	err := pick(r.db, tx).QueryRowContext(ctx, query, aggregateID).Scan(&state, &deleted, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	snapshot := &repository.Snapshot{AggregateID: aggregateID, Deleted: deleted, UpdatedAt: updatedAt}
	if len(state) > 0 {
		var f domain.Fulfilment
		if err := json.Unmarshal(state, &f); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot state: %w", err)
		}
		snapshot.State = &f
	}
	return snapshot, nil
}

func (r *snapshotRepository) Upsert(ctx context.Context, tx *sql.Tx, snapshot *repository.Snapshot) error {
	var (
		state            []byte
		salesOrderType   sql.NullString
		rentalStartDate  sql.NullTime
		rentalEndDate    sql.NullTime
		lastChargedAt    sql.NullTime
		err              error
	)
	if snapshot.State != nil {
		state, err = json.Marshal(snapshot.State)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot state: %w", err)
		}
		salesOrderType = sql.NullString{String: string(snapshot.State.Type), Valid: true}
		rentalStartDate = nullTime(snapshot.State.RentalStartDate)
		rentalEndDate = nullTime(snapshot.State.RentalEndDate)
		lastChargedAt = nullTime(snapshot.State.LastChargedAt)
	}

	query := `INSERT INTO fulfilment_snapshots
	              (aggregate_id, state, sales_order_type, rental_start_date, rental_end_date, last_charged_at, deleted, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          ON CONFLICT (aggregate_id) DO UPDATE SET
	              state = EXCLUDED.state,
	              sales_order_type = EXCLUDED.sales_order_type,
	              rental_start_date = EXCLUDED.rental_start_date,
	              rental_end_date = EXCLUDED.rental_end_date,
	              last_charged_at = EXCLUDED.last_charged_at,
	              deleted = EXCLUDED.deleted,
	              updated_at = EXCLUDED.updated_at`
	_, err = pick(r.db, tx).ExecContext(ctx, query,
		snapshot.AggregateID, state, salesOrderType, rentalStartDate, rentalEndDate, lastChargedAt,
		snapshot.Deleted, snapshot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// ListRentalsDueForBilling finds active rentals whose start date is at least
// thresholdDays in the past and whose last charge, if any, is stale by at
// least thresholdDays.
func (r *snapshotRepository) ListRentalsDueForBilling(ctx context.Context, asOf time.Time, thresholdDays int) ([]domain.Fulfilment, error) {
	cutoff := asOf.AddDate(0, 0, -thresholdDays)
	query := `SELECT state FROM fulfilment_snapshots
	          WHERE deleted = false
	            AND sales_order_type = $1
	            AND rental_end_date IS NULL
	            AND rental_start_date IS NOT NULL AND rental_start_date <= $2
	            AND (last_charged_at IS NULL OR last_charged_at <= $2)`
	rows, err := r.db.QueryContext(ctx, query, domain.SalesOrderTypeRental, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list rentals due for billing: %w", err)
	}
	defer rows.Close()

	var fulfilments []domain.Fulfilment
	for rows.Next() {
		var state []byte
		if err := rows.Scan(&state); err != nil {
			return nil, err
		}
		var f domain.Fulfilment
		if err := json.Unmarshal(state, &f); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot state: %w", err)
		}
		fulfilments = append(fulfilments, f)
	}
	return fulfilments, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
