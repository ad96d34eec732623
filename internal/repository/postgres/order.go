package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fulfilment-backend/internal/domain"
	"fulfilment-backend/internal/repository"
)

type salesOrderRepository struct {
	db *sql.DB
}

func NewSalesOrderRepository(db *sql.DB) repository.SalesOrderRepository {
	return &salesOrderRepository{db: db}
}

func (r *salesOrderRepository) GetByID(ctx context.Context, id string) (*domain.SalesOrder, error) {
	so := &domain.SalesOrder{}
	var projectID, contactID, poNumber sql.NullString
	query := `SELECT id, workspace_id, project_id, contact_id, purchase_order_number, created_at
	          FROM sales_orders WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&so.ID, &so.WorkspaceID, &projectID, &contactID, &poNumber, &so.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("sales order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sales order: %w", err)
	}
	so.ProjectID = projectID.String
	so.ContactID = contactID.String
	so.PurchaseOrderNumber = poNumber.String
	return so, nil
}

func (r *salesOrderRepository) GetLineItem(ctx context.Context, salesOrderID, lineItemID string) (*domain.SalesOrderLineItem, error) {
	li := &domain.SalesOrderLineItem{}
	var deliveryDate, offRentDate sql.NullTime
	query := `SELECT id, sales_order_id, type, price_id, quantity, delivery_charge_in_cents, delivery_date, off_rent_date
	          FROM sales_order_line_items WHERE id = $1 AND sales_order_id = $2`
	err := r.db.QueryRowContext(ctx, query, lineItemID, salesOrderID).Scan(
		&li.ID, &li.SalesOrderID, &li.Type, &li.PriceID, &li.Quantity, &li.DeliveryChargeInCents, &deliveryDate, &offRentDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("sales order line item", lineItemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sales order line item: %w", err)
	}
	if deliveryDate.Valid {
		li.DeliveryDate = &deliveryDate.Time
	}
	if offRentDate.Valid {
		li.OffRentDate = &offRentDate.Time
	}
	return li, nil
}

type priceRepository struct {
	db *sql.DB
}

func NewPriceRepository(db *sql.DB) repository.PriceRepository {
	return &priceRepository{db: db}
}

func (r *priceRepository) GetByID(ctx context.Context, id string) (*domain.Price, error) {
	p := &domain.Price{}
	query := `SELECT id, workspace_id, type, day_rate_in_cents, week_rate_in_cents, month_rate_in_cents, unit_cost_in_cents
	          FROM prices WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.WorkspaceID, &p.Type, &p.DayRateInCents, &p.WeekRateInCents, &p.MonthRateInCents, &p.UnitCostInCents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("price", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load price: %w", err)
	}
	return p, nil
}
