package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"fulfilment-backend/internal/domain"
	"fulfilment-backend/internal/repository"
)

type chargeRepository struct {
	db *sql.DB
}

func NewChargeRepository(db *sql.DB) repository.ChargeRepository {
	return &chargeRepository{db: db}
}

func (r *chargeRepository) Create(ctx context.Context, tx *sql.Tx, c *domain.Charge) error {
	query := `INSERT INTO charges
	              (id, workspace_id, fulfilment_id, sales_order_id, type, amount_in_cents, description,
	               period_start, period_end, invoice_id, created_at, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := pick(r.db, tx).ExecContext(ctx, query,
		c.ID, c.WorkspaceID, c.FulfilmentID, c.SalesOrderID, c.Type, c.AmountInCents, c.Description,
		nullTime(c.PeriodStart), nullTime(c.PeriodEnd), c.InvoiceID, c.CreatedAt, c.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to create charge: %w", err)
	}
	return nil
}

func (r *chargeRepository) List(ctx context.Context, tx *sql.Tx, filter domain.ChargeFilter) ([]domain.Charge, error) {
	query := `SELECT id, workspace_id, fulfilment_id, sales_order_id, type, amount_in_cents, description,
	                 period_start, period_end, invoice_id, created_at, created_by
	          FROM charges WHERE 1=1`
	args := []any{}
	argIdx := 1
	if filter.FulfilmentID != "" {
		query += fmt.Sprintf(" AND fulfilment_id = $%d", argIdx)
		args = append(args, filter.FulfilmentID)
		argIdx++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, filter.Type)
		argIdx++
	}
	query += " ORDER BY created_at"

	rows, err := pick(r.db, tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list charges: %w", err)
	}
	defer rows.Close()

	var charges []domain.Charge
	for rows.Next() {
		var (
			c           domain.Charge
			periodStart sql.NullTime
			periodEnd   sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.FulfilmentID, &c.SalesOrderID, &c.Type, &c.AmountInCents,
			&c.Description, &periodStart, &periodEnd, &c.InvoiceID, &c.CreatedAt, &c.CreatedBy); err != nil {
			return nil, err
		}
		if periodStart.Valid {
			c.PeriodStart = &periodStart.Time
		}
		if periodEnd.Valid {
			c.PeriodEnd = &periodEnd.Time
		}
		charges = append(charges, c)
	}
	return charges, rows.Err()
}

func (r *chargeRepository) DeleteAllByFulfilmentID(ctx context.Context, tx *sql.Tx, fulfilmentID string) error {
	_, err := pick(r.db, tx).ExecContext(ctx, `DELETE FROM charges WHERE fulfilment_id = $1`, fulfilmentID)
	if err != nil {
		return fmt.Errorf("failed to delete charges: %w", err)
	}
	return nil
}

func (r *chargeRepository) HasAnyInvoiced(ctx context.Context, tx *sql.Tx, fulfilmentID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM charges WHERE fulfilment_id = $1 AND invoice_id IS NOT NULL)`
	if err := pick(r.db, tx).QueryRowContext(ctx, query, fulfilmentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check invoiced charges: %w", err)
	}
	return exists, nil
}
