package eventstore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"fulfilment-backend/internal/domain"
)

// Per-event-type payload schemas. The union is closed: payloads with an
// unlisted tag are rejected before anything is written.
var payloadSchemas = map[string]string{
	domain.EventCreateRentalFulfilment: `{
		"type": "object",
		"required": ["fulfilment_id", "workspace_id", "sales_order_id", "sales_order_line_item_id", "day_rate_in_cents", "week_rate_in_cents", "month_rate_in_cents"],
		"properties": {
			"fulfilment_id": {"type": "string", "minLength": 1},
			"workspace_id": {"type": "string", "minLength": 1},
			"sales_order_id": {"type": "string", "minLength": 1},
			"sales_order_line_item_id": {"type": "string", "minLength": 1},
			"project_id": {"type": "string"},
			"contact_id": {"type": "string"},
			"purchase_order_number": {"type": "string"},
			"purchase_order_line_item_id": {"type": ["string", "null"]},
			"column_id": {"type": "string"},
			"day_rate_in_cents": {"type": "integer", "minimum": 0},
			"week_rate_in_cents": {"type": "integer", "minimum": 0},
			"month_rate_in_cents": {"type": "integer", "minimum": 0},
			"rental_start_date": {"type": "string", "format": "date-time"},
			"expected_rental_end_date": {"type": "string", "format": "date-time"}
		}
	}`,
	domain.EventCreateSaleFulfilment: `{
		"type": "object",
		"required": ["fulfilment_id", "workspace_id", "sales_order_id", "sales_order_line_item_id", "unit_cost_in_cents", "quantity"],
		"properties": {
			"fulfilment_id": {"type": "string", "minLength": 1},
			"workspace_id": {"type": "string", "minLength": 1},
			"sales_order_id": {"type": "string", "minLength": 1},
			"sales_order_line_item_id": {"type": "string", "minLength": 1},
			"project_id": {"type": "string"},
			"contact_id": {"type": "string"},
			"purchase_order_number": {"type": "string"},
			"purchase_order_line_item_id": {"type": ["string", "null"]},
			"column_id": {"type": "string"},
			"unit_cost_in_cents": {"type": "integer", "minimum": 0},
			"quantity": {"type": "integer", "minimum": 1}
		}
	}`,
	domain.EventCreateServiceFulfilment: `{
		"type": "object",
		"required": ["fulfilment_id", "workspace_id", "sales_order_id", "sales_order_line_item_id", "unit_cost_in_cents"],
		"properties": {
			"fulfilment_id": {"type": "string", "minLength": 1},
			"workspace_id": {"type": "string", "minLength": 1},
			"sales_order_id": {"type": "string", "minLength": 1},
			"sales_order_line_item_id": {"type": "string", "minLength": 1},
			"project_id": {"type": "string"},
			"contact_id": {"type": "string"},
			"purchase_order_number": {"type": "string"},
			"column_id": {"type": "string"},
			"unit_cost_in_cents": {"type": "integer", "minimum": 0},
			"service_date": {"type": "string", "format": "date-time"},
			"tasks": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["title"],
					"properties": {
						"title": {"type": "string", "minLength": 1},
						"done": {"type": "boolean"}
					}
				}
			}
		}
	}`,
	domain.EventUpdateColumn: `{
		"type": "object",
		"required": ["column_id"],
		"properties": {"column_id": {"type": "string", "minLength": 1}}
	}`,
	domain.EventUpdateAssignee: `{
		"type": "object",
		"required": ["assigned_to_id"],
		"properties": {"assigned_to_id": {"type": ["string", "null"]}}
	}`,
	domain.EventSetRentalStartDate: `{
		"type": "object",
		"required": ["rental_start_date"],
		"properties": {"rental_start_date": {"type": "string", "format": "date-time"}}
	}`,
	domain.EventSetRentalEndDate: `{
		"type": "object",
		"required": ["rental_end_date"],
		"properties": {"rental_end_date": {"type": "string", "format": "date-time"}}
	}`,
	domain.EventSetExpectedRentalEndDate: `{
		"type": "object",
		"required": ["expected_rental_end_date"],
		"properties": {"expected_rental_end_date": {"type": "string", "format": "date-time"}}
	}`,
	domain.EventUpdateLastChargedAt: `{
		"type": "object",
		"required": ["last_charged_at", "last_billing_period_end", "days_charged"],
		"properties": {
			"last_charged_at": {"type": "string", "format": "date-time"},
			"last_billing_period_end": {"type": "string", "format": "date-time"},
			"days_charged": {"type": "integer", "minimum": 0}
		}
	}`,
	domain.EventResetLastChargedAt:  `{"type": "object"}`,
	domain.EventAssignInventoryToFulfilment: `{
		"type": "object",
		"required": ["inventory_id"],
		"properties": {"inventory_id": {"type": "string", "minLength": 1}}
	}`,
	domain.EventUnassignInventory: `{"type": "object"}`,
	domain.EventSetPurchaseOrderLineItemID: `{
		"type": "object",
		"required": ["purchase_order_line_item_id"],
		"properties": {"purchase_order_line_item_id": {"type": ["string", "null"]}}
	}`,
	domain.EventDeleteFulfilment: `{"type": "object"}`,
}

var compiledSchemas = compileSchemas()

func compileSchemas() map[string]*jsonschema.Schema {
	compiled := make(map[string]*jsonschema.Schema, len(payloadSchemas))
	for eventType, source := range payloadSchemas {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("mem://events/%s.schema.json", eventType)
		if err := c.AddResource(url, bytes.NewReader([]byte(source))); err != nil {
			panic(fmt.Sprintf("event schema %s failed to load: %v", eventType, err))
		}
		schema, err := c.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("event schema %s failed to compile: %v", eventType, err))
		}
		compiled[eventType] = schema
	}
	return compiled
}

// validatePayload checks the payload's JSON form against the schema declared
// for its type tag.
func validatePayload(payload domain.EventPayload) error {
	schema, ok := compiledSchemas[payload.EventType()]
	if !ok {
		return domain.NewValidationError(fmt.Sprintf("unknown event type %q", payload.EventType()), nil)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.NewValidationError("payload is not serializable", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.NewValidationError("payload is not valid JSON", err)
	}
	if err := schema.Validate(doc); err != nil {
		return domain.NewValidationError(fmt.Sprintf("%s payload rejected by schema", payload.EventType()), err)
	}
	return nil
}
