package domain

import "time"

// LineItemType discriminates sales order line items.
type LineItemType string

const (
	LineItemTypeRental LineItemType = "RENTAL"
	LineItemTypeSale   LineItemType = "SALE"
)

// SalesOrder is the order a fulfilment originates from. Workspace, project,
// contact and PO number are denormalized onto new fulfilments.
type SalesOrder struct {
	ID                  string    `json:"id"`
	WorkspaceID         string    `json:"workspace_id"`
	ProjectID           string    `json:"project_id,omitempty"`
	ContactID           string    `json:"contact_id,omitempty"`
	PurchaseOrderNumber string    `json:"purchase_order_number,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// SalesOrderLineItem is one confirmed line on a sales order.
type SalesOrderLineItem struct {
	ID                    string       `json:"id"`
	SalesOrderID          string       `json:"sales_order_id"`
	Type                  LineItemType `json:"type"`
	PriceID               string       `json:"price_id"`
	Quantity              int          `json:"quantity"`
	DeliveryChargeInCents int64        `json:"delivery_charge_in_cents"`
	DeliveryDate          *time.Time   `json:"delivery_date,omitempty"`
	OffRentDate           *time.Time   `json:"off_rent_date,omitempty"`
}

// PriceType discriminates price records.
type PriceType string

const (
	PriceTypeRental PriceType = "RENTAL"
	PriceTypeSale   PriceType = "SALE"
)

// Price is a price record referenced by a sales order line item. RENTAL
// prices carry the day/week/month rates, SALE prices a unit cost.
type Price struct {
	ID               string    `json:"id"`
	WorkspaceID      string    `json:"workspace_id"`
	Type             PriceType `json:"type"`
	DayRateInCents   int64     `json:"day_rate_in_cents,omitempty"`
	WeekRateInCents  int64     `json:"week_rate_in_cents,omitempty"`
	MonthRateInCents int64     `json:"month_rate_in_cents,omitempty"`
	UnitCostInCents  int64     `json:"unit_cost_in_cents,omitempty"`
}
