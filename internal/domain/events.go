package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event type tags. The payload union is closed: the event store rejects any
// tag not listed here.
const (
	EventCreateRentalFulfilment      = "CREATE_RENTAL_FULFILMENT"
	EventCreateSaleFulfilment        = "CREATE_SALE_FULFILMENT"
	EventCreateServiceFulfilment     = "CREATE_SERVICE_FULFILMENT"
	EventUpdateColumn                = "UPDATE_COLUMN"
	EventUpdateAssignee              = "UPDATE_ASSIGNEE"
	EventSetRentalStartDate          = "SET_RENTAL_START_DATE"
	EventSetRentalEndDate            = "SET_RENTAL_END_DATE"
	EventSetExpectedRentalEndDate    = "SET_EXPECTED_RENTAL_END_DATE"
	EventUpdateLastChargedAt         = "UPDATE_LAST_CHARGED_AT"
	EventResetLastChargedAt          = "RESET_LAST_CHARGED_AT"
	EventAssignInventoryToFulfilment = "ASSIGN_INVENTORY_TO_FULFILMENT"
	EventUnassignInventory           = "UNASSIGN_INVENTORY_TO_FULFILMENT"
	EventSetPurchaseOrderLineItemID  = "SET_PURCHASE_ORDER_LINE_ITEM_ID"
	EventDeleteFulfilment            = "DELETE_FULFILMENT"
)

// EventPayload is the closed union of fulfilment event payloads.
type EventPayload interface {
	EventType() string
}

// Event is one immutable entry in a fulfilment's append-only history.
type Event struct {
	ID          string       `json:"id"`
	AggregateID string       `json:"aggregate_id"`
	Timestamp   time.Time    `json:"timestamp"`
	PrincipalID string       `json:"principal_id"`
	Payload     EventPayload `json:"payload"`
}

// CreateRentalFulfilment seeds a RENTAL aggregate.
type CreateRentalFulfilment struct {
	FulfilmentID            string     `json:"fulfilment_id"`
	WorkspaceID             string     `json:"workspace_id"`
	SalesOrderID            string     `json:"sales_order_id"`
	SalesOrderLineItemID    string     `json:"sales_order_line_item_id"`
	ProjectID               string     `json:"project_id,omitempty"`
	ContactID               string     `json:"contact_id,omitempty"`
	PurchaseOrderNumber     string     `json:"purchase_order_number,omitempty"`
	PurchaseOrderLineItemID *string    `json:"purchase_order_line_item_id,omitempty"`
	ColumnID                string     `json:"column_id,omitempty"`
	DayRateInCents          int64      `json:"day_rate_in_cents"`
	WeekRateInCents         int64      `json:"week_rate_in_cents"`
	MonthRateInCents        int64      `json:"month_rate_in_cents"`
	RentalStartDate         *time.Time `json:"rental_start_date,omitempty"`
	ExpectedRentalEndDate   *time.Time `json:"expected_rental_end_date,omitempty"`
}

func (CreateRentalFulfilment) EventType() string { return EventCreateRentalFulfilment }

// CreateSaleFulfilment seeds a SALE aggregate.
type CreateSaleFulfilment struct {
	FulfilmentID            string  `json:"fulfilment_id"`
	WorkspaceID             string  `json:"workspace_id"`
	SalesOrderID            string  `json:"sales_order_id"`
	SalesOrderLineItemID    string  `json:"sales_order_line_item_id"`
	ProjectID               string  `json:"project_id,omitempty"`
	ContactID               string  `json:"contact_id,omitempty"`
	PurchaseOrderNumber     string  `json:"purchase_order_number,omitempty"`
	PurchaseOrderLineItemID *string `json:"purchase_order_line_item_id,omitempty"`
	ColumnID                string  `json:"column_id,omitempty"`
	UnitCostInCents         int64   `json:"unit_cost_in_cents"`
	Quantity                int     `json:"quantity"`
}

func (CreateSaleFulfilment) EventType() string { return EventCreateSaleFulfilment }

// CreateServiceFulfilment seeds a SERVICE aggregate.
type CreateServiceFulfilment struct {
	FulfilmentID         string        `json:"fulfilment_id"`
	WorkspaceID          string        `json:"workspace_id"`
	SalesOrderID         string        `json:"sales_order_id"`
	SalesOrderLineItemID string        `json:"sales_order_line_item_id"`
	ProjectID            string        `json:"project_id,omitempty"`
	ContactID            string        `json:"contact_id,omitempty"`
	PurchaseOrderNumber  string        `json:"purchase_order_number,omitempty"`
	ColumnID             string        `json:"column_id,omitempty"`
	UnitCostInCents      int64         `json:"unit_cost_in_cents"`
	ServiceDate          *time.Time    `json:"service_date,omitempty"`
	Tasks                []ServiceTask `json:"tasks,omitempty"`
}

func (CreateServiceFulfilment) EventType() string { return EventCreateServiceFulfilment }

// UpdateColumn moves the fulfilment to another workflow column.
type UpdateColumn struct {
	ColumnID string `json:"column_id"`
}

func (UpdateColumn) EventType() string { return EventUpdateColumn }

// UpdateAssignee sets or clears the assignee. A nil AssignedToID unassigns.
type UpdateAssignee struct {
	AssignedToID *string `json:"assigned_to_id"`
}

func (UpdateAssignee) EventType() string { return EventUpdateAssignee }

// SetRentalStartDate sets the rental start date.
type SetRentalStartDate struct {
	RentalStartDate time.Time `json:"rental_start_date"`
}

func (SetRentalStartDate) EventType() string { return EventSetRentalStartDate }

// SetRentalEndDate sets the actual rental end date.
type SetRentalEndDate struct {
	RentalEndDate time.Time `json:"rental_end_date"`
}

func (SetRentalEndDate) EventType() string { return EventSetRentalEndDate }

// SetExpectedRentalEndDate sets the expected (off-rent) end date.
type SetExpectedRentalEndDate struct {
	ExpectedRentalEndDate time.Time `json:"expected_rental_end_date"`
}

func (SetExpectedRentalEndDate) EventType() string { return EventSetExpectedRentalEndDate }

// UpdateLastChargedAt records one completed billing period: it advances the
// last-charged bookkeeping and adds DaysCharged to the cumulative counter.
type UpdateLastChargedAt struct {
	LastChargedAt        time.Time `json:"last_charged_at"`
	LastBillingPeriodEnd time.Time `json:"last_billing_period_end"`
	DaysCharged          int       `json:"days_charged"`
}

func (UpdateLastChargedAt) EventType() string { return EventUpdateLastChargedAt }

// ResetLastChargedAt clears all billing bookkeeping and zeroes the cumulative
// days-charged counter.
type ResetLastChargedAt struct{}

func (ResetLastChargedAt) EventType() string { return EventResetLastChargedAt }

// AssignInventoryToFulfilment assigns an inventory unit to the rental.
type AssignInventoryToFulfilment struct {
	InventoryID string `json:"inventory_id"`
}

func (AssignInventoryToFulfilment) EventType() string { return EventAssignInventoryToFulfilment }

// UnassignInventoryFromFulfilment clears the assigned inventory unit.
type UnassignInventoryFromFulfilment struct{}

func (UnassignInventoryFromFulfilment) EventType() string { return EventUnassignInventory }

// SetPurchaseOrderLineItemID links or, with a nil id, unlinks the purchase
// order line item.
type SetPurchaseOrderLineItemID struct {
	PurchaseOrderLineItemID *string `json:"purchase_order_line_item_id"`
}

func (SetPurchaseOrderLineItemID) EventType() string { return EventSetPurchaseOrderLineItemID }

// DeleteFulfilment tombstones the aggregate.
type DeleteFulfilment struct{}

func (DeleteFulfilment) EventType() string { return EventDeleteFulfilment }

// DecodeEventPayload decodes a persisted payload by its type tag. Unknown
// tags are a ValidationError: the union is closed.
func DecodeEventPayload(eventType string, data []byte) (EventPayload, error) {
	var payload EventPayload
	switch eventType {
	case EventCreateRentalFulfilment:
		payload = &CreateRentalFulfilment{}
	case EventCreateSaleFulfilment:
		payload = &CreateSaleFulfilment{}
	case EventCreateServiceFulfilment:
		payload = &CreateServiceFulfilment{}
	case EventUpdateColumn:
		payload = &UpdateColumn{}
	case EventUpdateAssignee:
		payload = &UpdateAssignee{}
	case EventSetRentalStartDate:
		payload = &SetRentalStartDate{}
	case EventSetRentalEndDate:
		payload = &SetRentalEndDate{}
	case EventSetExpectedRentalEndDate:
		payload = &SetExpectedRentalEndDate{}
	case EventUpdateLastChargedAt:
		payload = &UpdateLastChargedAt{}
	case EventResetLastChargedAt:
		payload = &ResetLastChargedAt{}
	case EventAssignInventoryToFulfilment:
		payload = &AssignInventoryToFulfilment{}
	case EventUnassignInventory:
		payload = &UnassignInventoryFromFulfilment{}
	case EventSetPurchaseOrderLineItemID:
		payload = &SetPurchaseOrderLineItemID{}
	case EventDeleteFulfilment:
		payload = &DeleteFulfilment{}
	default:
		return nil, NewValidationError(fmt.Sprintf("unknown event type %q", eventType), nil)
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, NewValidationError(fmt.Sprintf("malformed %s payload", eventType), err)
	}
	return payload, nil
}

// IsCreateEvent reports whether the payload is one of the CREATE_* events.
func IsCreateEvent(p EventPayload) bool {
	switch p.EventType() {
	case EventCreateRentalFulfilment, EventCreateSaleFulfilment, EventCreateServiceFulfilment:
		return true
	}
	return false
}
