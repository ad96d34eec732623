package domain

import "time"

// ChargeType classifies entries in the charge ledger.
type ChargeType string

const (
	ChargeTypeRental   ChargeType = "RENTAL"
	ChargeTypeSale     ChargeType = "SALE"
	ChargeTypeDelivery ChargeType = "DELIVERY"
)

// Charge is one monetary entry in the charge ledger. Charges are the only
// persisted consequence of the price engine; billing periods and cost options
// are always recomputed.
type Charge struct {
	ID            string     `json:"id"`
	WorkspaceID   string     `json:"workspace_id"`
	FulfilmentID  string     `json:"fulfilment_id"`
	SalesOrderID  string     `json:"sales_order_id"`
	Type          ChargeType `json:"type"`
	AmountInCents int64      `json:"amount_in_cents"`
	Description   string     `json:"description,omitempty"`
	PeriodStart   *time.Time `json:"period_start,omitempty"`
	PeriodEnd     *time.Time `json:"period_end,omitempty"`
	InvoiceID     *string    `json:"invoice_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CreatedBy     string     `json:"created_by"`
}

// ChargeFilter narrows charge ledger queries. Zero-valued fields are ignored.
type ChargeFilter struct {
	FulfilmentID string
	Type         ChargeType
}
