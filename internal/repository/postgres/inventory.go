package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fulfilment-backend/internal/domain"
	"fulfilment-backend/internal/repository"
)

type inventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) repository.InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) GetByID(ctx context.Context, id string) (*domain.Inventory, error) {
	inv := &domain.Inventory{}
	var serial sql.NullString
	query := `SELECT id, workspace_id, serial_number, purchase_order_line_item_id, created_at
	          FROM inventory WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&inv.ID, &inv.WorkspaceID, &serial, &inv.PurchaseOrderLineItemID, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("inventory", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	inv.SerialNumber = serial.String
	return inv, nil
}

// CreateFulfilmentReservation records a date-range reservation. Unless
// allowOverlap is set, an existing reservation on the same unit intersecting
// the requested window rejects the call, so a unit is never double-committed
// to two overlapping rental windows.
func (r *inventoryRepository) CreateFulfilmentReservation(ctx context.Context, tx *sql.Tx, res *domain.FulfilmentReservation, allowOverlap bool) error {
	q := pick(r.db, tx)

	if !allowOverlap {
		var overlapping int
		query := `SELECT count(*) FROM fulfilment_reservations
		          WHERE inventory_id = $1 AND start_date <= $3 AND end_date >= $2`
		if err := q.QueryRowContext(ctx, query, res.InventoryID, res.StartDate, res.EndDate).Scan(&overlapping); err != nil {
			return fmt.Errorf("failed to check reservation overlap: %w", err)
		}
		if overlapping > 0 {
			return domain.NewInvariantViolationError(
				fmt.Sprintf("inventory %s already has a reservation overlapping %s to %s",
					res.InventoryID, res.StartDate.Format("2006-01-02"), res.EndDate.Format("2006-01-02")))
		}
	}

	query := `INSERT INTO fulfilment_reservations (id, inventory_id, fulfilment_id, start_date, end_date, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := q.ExecContext(ctx, query, res.ID, res.InventoryID, res.FulfilmentID, res.StartDate, res.EndDate, res.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}
