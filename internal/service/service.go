package service

import (
	"context"
	"database/sql"
	"time"

	"fulfilment-backend/internal/domain"
	"fulfilment-backend/internal/pricing"
)

// CreateFulfilmentInput carries the fields needed to seed a new fulfilment of
// any variant. Workspace, project, contact and PO number come from the owning
// sales order, not from the caller. Variant-specific fields are only read for
// their matching type.
type CreateFulfilmentInput struct {
	SalesOrderID         string                `json:"sales_order_id" validate:"required"`
	SalesOrderLineItemID string                `json:"sales_order_line_item_id" validate:"required"`
	Type                 domain.SalesOrderType `json:"type" validate:"required,oneof=RENTAL SALE SERVICE"`

	ColumnID string `json:"column_id"`

	DayRateInCents        int64      `json:"day_rate_in_cents" validate:"gte=0"`
	WeekRateInCents       int64      `json:"week_rate_in_cents" validate:"gte=0"`
	MonthRateInCents      int64      `json:"month_rate_in_cents" validate:"gte=0"`
	RentalStartDate       *time.Time `json:"rental_start_date"`
	ExpectedRentalEndDate *time.Time `json:"expected_rental_end_date"`

	UnitCostInCents int64 `json:"unit_cost_in_cents" validate:"gte=0"`
	Quantity        int   `json:"quantity" validate:"gte=0"`

	ServiceDate *time.Time           `json:"service_date"`
	Tasks       []domain.ServiceTask `json:"tasks"`
}

// DeliveryChargeData is the payload carried by a scheduled delivery-charge
// job.
type DeliveryChargeData struct {
	AmountInCents int64 `json:"amount_in_cents"`
}

type FulfilmentService interface {
	CreateFulfilment(ctx context.Context, principal *domain.Principal, input CreateFulfilmentInput) (*domain.Fulfilment, error)
	CreateFulfilmentFromSalesOrderItem(ctx context.Context, principal *domain.Principal, salesOrderID, lineItemID string) (*domain.Fulfilment, error)
	GetFulfilment(ctx context.Context, principal *domain.Principal, id string) (*domain.Fulfilment, error)

	UpdateColumn(ctx context.Context, principal *domain.Principal, id, columnID string) (*domain.Fulfilment, error)
	UpdateAssignee(ctx context.Context, principal *domain.Principal, id string, assignedToID *string) (*domain.Fulfilment, error)
	SetPurchaseOrderLineItemID(ctx context.Context, principal *domain.Principal, id string, purchaseOrderLineItemID *string) (*domain.Fulfilment, error)

	SetRentalStartDate(ctx context.Context, principal *domain.Principal, id string, startDate time.Time) (*domain.Fulfilment, error)
	SetExpectedRentalEndDate(ctx context.Context, principal *domain.Principal, id string, expectedEndDate time.Time) (*domain.Fulfilment, error)
	SetRentalEndDate(ctx context.Context, principal *domain.Principal, id string, endDate time.Time) (*domain.Fulfilment, error)

	AssignInventoryToRentalFulfilmentWithReservation(ctx context.Context, principal *domain.Principal, id, inventoryID string, allowOverlap bool) (*domain.Fulfilment, error)

	CreateRentalCharges(ctx context.Context, principal *domain.Principal, id string, until time.Time, minimumDays int) ([]domain.Charge, error)
	NightlyRentalCharges(ctx context.Context, principal *domain.Principal, asOf time.Time) (int, error)
	RunScheduledJob(ctx context.Context, job domain.ScheduledJob) error

	ForecastFulfilmentPricing(ctx context.Context, principal *domain.Principal, id string, numberOfDays int) (*pricing.Forecast, error)

	DeleteFulfilment(ctx context.Context, principal *domain.Principal, id string) error
}

// EventApplier is the write path into the event store. Satisfied by
// *eventstore.Store.
type EventApplier interface {
	Apply(ctx context.Context, tx *sql.Tx, aggregateID string, payload domain.EventPayload, principal *domain.Principal) (*domain.Fulfilment, error)
}
