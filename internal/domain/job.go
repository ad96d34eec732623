package domain

import (
	"encoding/json"
	"time"
)

// Scheduled job names.
const (
	JobDeliveryCharge = "delivery-charge"
	JobRentalCharges  = "rental-charges"
)

// ScheduledJob is one entry in the one-shot job queue. Jobs are delivered
// at-least-once by the poller, so handlers must be idempotent.
type ScheduledJob struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	FulfilmentID string          `json:"fulfilment_id"`
	Data         json.RawMessage `json:"data,omitempty"`
	RunAt        time.Time       `json:"run_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
