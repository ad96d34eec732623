package domain

import "time"

// Inventory is one physical unit that can be committed to a rental window.
type Inventory struct {
	ID                      string    `json:"id"`
	WorkspaceID             string    `json:"workspace_id"`
	SerialNumber            string    `json:"serial_number,omitempty"`
	PurchaseOrderLineItemID *string   `json:"purchase_order_line_item_id,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
}

// FulfilmentReservation commits an inventory unit to a fulfilment's rental
// window. Overlapping reservations on the same unit are rejected unless the
// caller explicitly allows them.
type FulfilmentReservation struct {
	ID           string    `json:"id"`
	InventoryID  string    `json:"inventory_id"`
	FulfilmentID string    `json:"fulfilment_id"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	CreatedAt    time.Time `json:"created_at"`
}
