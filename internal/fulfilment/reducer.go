// Package fulfilment holds the pure reducer for the fulfilment aggregate.
// The aggregate's current state is always the fold of its event history;
// every state transition in the system goes through Reduce, which keeps the
// full billing and rental-window history auditable and replayable.
package fulfilment

import (
	"time"

	"fulfilment-backend/internal/domain"
)

// Reduce applies one event to the current aggregate state and returns the
// next state. A nil current state means the aggregate is uninitialized: only
// CREATE_* events are applicable. A nil returned state (with nil error) is a
// tombstone. Reduce never mutates its input.
func Reduce(current *domain.Fulfilment, event domain.Event) (*domain.Fulfilment, error) {
	eventType := event.Payload.EventType()

	if current == nil {
		if !domain.IsCreateEvent(event.Payload) {
			return nil, domain.NewStateTransitionError(eventType, "fulfilment does not exist")
		}
		return create(event)
	}
	if domain.IsCreateEvent(event.Payload) {
		return nil, domain.NewStateTransitionError(eventType, "fulfilment "+current.ID+" already exists")
	}

	next := *current
	next.UpdatedAt = event.Timestamp
	next.UpdatedBy = event.PrincipalID

	switch p := event.Payload.(type) {
	case *domain.UpdateColumn:
		next.ColumnID = p.ColumnID

	case *domain.UpdateAssignee:
		next.AssignedToID = p.AssignedToID

	case *domain.SetRentalStartDate:
		if err := requireRental(&next, eventType); err != nil {
			return nil, err
		}
		if err := checkDateOrdering(p.RentalStartDate, next.RentalEndDate, next.ExpectedRentalEndDate); err != nil {
			return nil, err
		}
		d := p.RentalStartDate
		next.RentalStartDate = &d

	case *domain.SetRentalEndDate:
		if err := requireRental(&next, eventType); err != nil {
			return nil, err
		}
		if next.RentalStartDate != nil && !p.RentalEndDate.After(*next.RentalStartDate) {
			return nil, domain.NewInvariantViolationError("rental end date must be strictly after the start date")
		}
		d := p.RentalEndDate
		next.RentalEndDate = &d

	case *domain.SetExpectedRentalEndDate:
		if err := requireRental(&next, eventType); err != nil {
			return nil, err
		}
		if next.RentalStartDate != nil && !p.ExpectedRentalEndDate.After(*next.RentalStartDate) {
			return nil, domain.NewInvariantViolationError("expected rental end date must be strictly after the start date")
		}
		d := p.ExpectedRentalEndDate
		next.ExpectedRentalEndDate = &d

	case *domain.UpdateLastChargedAt:
		if err := requireRental(&next, eventType); err != nil {
			return nil, err
		}
		chargedAt := p.LastChargedAt
		periodEnd := p.LastBillingPeriodEnd
		next.LastChargedAt = &chargedAt
		next.LastBillingPeriodEnd = &periodEnd
		next.DaysCharged += p.DaysCharged

	case *domain.ResetLastChargedAt:
		if err := requireRental(&next, eventType); err != nil {
			return nil, err
		}
		next.LastChargedAt = nil
		next.LastBillingPeriodEnd = nil
		next.DaysCharged = 0

	case *domain.AssignInventoryToFulfilment:
		if err := requireRental(&next, eventType); err != nil {
			return nil, err
		}
		id := p.InventoryID
		next.InventoryID = &id

	case *domain.UnassignInventoryFromFulfilment:
		if err := requireRental(&next, eventType); err != nil {
			return nil, err
		}
		next.InventoryID = nil

	case *domain.SetPurchaseOrderLineItemID:
		next.PurchaseOrderLineItemID = p.PurchaseOrderLineItemID

	case *domain.DeleteFulfilment:
		return nil, nil

	default:
		return nil, domain.NewStateTransitionError(eventType, "event is not applicable to a live fulfilment")
	}

	return &next, nil
}

func create(event domain.Event) (*domain.Fulfilment, error) {
	var f domain.Fulfilment

	switch p := event.Payload.(type) {
	case *domain.CreateRentalFulfilment:
		if err := checkDatePair(p.RentalStartDate, p.ExpectedRentalEndDate); err != nil {
			return nil, err
		}
		f = domain.Fulfilment{
			ID:                      p.FulfilmentID,
			WorkspaceID:             p.WorkspaceID,
			SalesOrderID:            p.SalesOrderID,
			SalesOrderLineItemID:    p.SalesOrderLineItemID,
			Type:                    domain.SalesOrderTypeRental,
			ProjectID:               p.ProjectID,
			ContactID:               p.ContactID,
			PurchaseOrderNumber:     p.PurchaseOrderNumber,
			PurchaseOrderLineItemID: p.PurchaseOrderLineItemID,
			ColumnID:                p.ColumnID,
			DayRateInCents:          p.DayRateInCents,
			WeekRateInCents:         p.WeekRateInCents,
			MonthRateInCents:        p.MonthRateInCents,
			RentalStartDate:         p.RentalStartDate,
			ExpectedRentalEndDate:   p.ExpectedRentalEndDate,
		}
	case *domain.CreateSaleFulfilment:
		f = domain.Fulfilment{
			ID:                      p.FulfilmentID,
			WorkspaceID:             p.WorkspaceID,
			SalesOrderID:            p.SalesOrderID,
			SalesOrderLineItemID:    p.SalesOrderLineItemID,
			Type:                    domain.SalesOrderTypeSale,
			ProjectID:               p.ProjectID,
			ContactID:               p.ContactID,
			PurchaseOrderNumber:     p.PurchaseOrderNumber,
			PurchaseOrderLineItemID: p.PurchaseOrderLineItemID,
			ColumnID:                p.ColumnID,
			UnitCostInCents:         p.UnitCostInCents,
			Quantity:                p.Quantity,
		}
	case *domain.CreateServiceFulfilment:
		f = domain.Fulfilment{
			ID:                   p.FulfilmentID,
			WorkspaceID:          p.WorkspaceID,
			SalesOrderID:         p.SalesOrderID,
			SalesOrderLineItemID: p.SalesOrderLineItemID,
			Type:                 domain.SalesOrderTypeService,
			ProjectID:            p.ProjectID,
			ContactID:            p.ContactID,
			PurchaseOrderNumber:  p.PurchaseOrderNumber,
			ColumnID:             p.ColumnID,
			UnitCostInCents:      p.UnitCostInCents,
			ServiceDate:          p.ServiceDate,
			Tasks:                append([]domain.ServiceTask(nil), p.Tasks...),
		}
	}

	f.CreatedAt = event.Timestamp
	f.CreatedBy = event.PrincipalID
	f.UpdatedAt = event.Timestamp
	f.UpdatedBy = event.PrincipalID
	return &f, nil
}

func requireRental(f *domain.Fulfilment, eventType string) error {
	if !f.IsRental() {
		return domain.NewStateTransitionError(eventType, "fulfilment "+f.ID+" is not a rental")
	}
	return nil
}

// checkDateOrdering enforces that a new start date stays strictly before any
// already-set end dates.
func checkDateOrdering(start time.Time, end, expectedEnd *time.Time) error {
	if end != nil && !end.After(start) {
		return domain.NewInvariantViolationError("rental start date must be strictly before the end date")
	}
	if expectedEnd != nil && !expectedEnd.After(start) {
		return domain.NewInvariantViolationError("rental start date must be strictly before the expected end date")
	}
	return nil
}

// checkDatePair validates the seeded dates on a rental creation payload.
func checkDatePair(start, expectedEnd *time.Time) error {
	if start != nil && expectedEnd != nil && !expectedEnd.After(*start) {
		return domain.NewInvariantViolationError("expected rental end date must be strictly after the start date")
	}
	return nil
}
