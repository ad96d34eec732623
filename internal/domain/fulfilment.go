package domain

import "time"

// SalesOrderType discriminates the fulfilment variants.
type SalesOrderType string

const (
	SalesOrderTypeRental  SalesOrderType = "RENTAL"
	SalesOrderTypeSale    SalesOrderType = "SALE"
	SalesOrderTypeService SalesOrderType = "SERVICE"
)

// ServiceTask is one checklist item on a SERVICE fulfilment.
type ServiceTask struct {
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Fulfilment is the aggregate tracking one rentable, sellable or serviceable
// commitment derived from a sales order line item. It is a tagged union over
// Type: the rental, sale and service sections are only meaningful on their
// matching variant, and only mutable through variant-matching events.
//
// The struct is the materialized fold of the aggregate's event history; it is
// never mutated outside the reducer.
type Fulfilment struct {
	ID                   string         `json:"id"`
	WorkspaceID          string         `json:"workspace_id"`
	SalesOrderID         string         `json:"sales_order_id"`
	SalesOrderLineItemID string         `json:"sales_order_line_item_id"`
	Type                 SalesOrderType `json:"type"`

	ProjectID               string  `json:"project_id,omitempty"`
	ContactID               string  `json:"contact_id,omitempty"`
	PurchaseOrderNumber     string  `json:"purchase_order_number,omitempty"`
	PurchaseOrderLineItemID *string `json:"purchase_order_line_item_id,omitempty"`

	ColumnID     string  `json:"column_id,omitempty"`
	AssignedToID *string `json:"assigned_to_id,omitempty"`

	// RENTAL variant
	DayRateInCents        int64      `json:"day_rate_in_cents,omitempty"`
	WeekRateInCents       int64      `json:"week_rate_in_cents,omitempty"`
	MonthRateInCents      int64      `json:"month_rate_in_cents,omitempty"`
	RentalStartDate       *time.Time `json:"rental_start_date,omitempty"`
	RentalEndDate         *time.Time `json:"rental_end_date,omitempty"`
	ExpectedRentalEndDate *time.Time `json:"expected_rental_end_date,omitempty"`
	LastChargedAt         *time.Time `json:"last_charged_at,omitempty"`
	LastBillingPeriodEnd  *time.Time `json:"last_billing_period_end,omitempty"`
	DaysCharged           int        `json:"days_charged,omitempty"`
	InventoryID           *string    `json:"inventory_id,omitempty"`

	// SALE variant
	UnitCostInCents int64 `json:"unit_cost_in_cents,omitempty"`
	Quantity        int   `json:"quantity,omitempty"`

	// SERVICE variant
	ServiceDate *time.Time    `json:"service_date,omitempty"`
	Tasks       []ServiceTask `json:"tasks,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by"`
}

// IsRental reports whether the fulfilment is the RENTAL variant.
func (f *Fulfilment) IsRental() bool { return f.Type == SalesOrderTypeRental }
