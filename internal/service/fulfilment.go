package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"fulfilment-backend/internal/authz"
	"fulfilment-backend/internal/domain"
	"fulfilment-backend/internal/logger"
	"fulfilment-backend/internal/pricing"
	"fulfilment-backend/internal/repository"
)

// systemPrincipal is the actor recorded on events produced by background
// jobs.
var systemPrincipal = &domain.Principal{ID: "system", Roles: []string{authz.RoleERPAdmin}}

// TxRunner starts a transaction and runs fn inside it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type fulfilmentService struct {
	events        EventApplier
	snapshots     repository.SnapshotRepository
	charges       repository.ChargeRepository
	orders        repository.SalesOrderRepository
	prices        repository.PriceRepository
	inventory     repository.InventoryRepository
	jobs          repository.ScheduledJobRepository
	authorizer    authz.Authorizer
	txRunner      TxRunner
	validate      *validator.Validate
	thresholdDays int
	now           func() time.Time
}

func NewFulfilmentService(
	events EventApplier,
	snapshots repository.SnapshotRepository,
	charges repository.ChargeRepository,
	orders repository.SalesOrderRepository,
	prices repository.PriceRepository,
	inventory repository.InventoryRepository,
	jobs repository.ScheduledJobRepository,
	authorizer authz.Authorizer,
	txRunner TxRunner,
	thresholdDays int,
) FulfilmentService {
	return &fulfilmentService{
		events:        events,
		snapshots:     snapshots,
		charges:       charges,
		orders:        orders,
		prices:        prices,
		inventory:     inventory,
		jobs:          jobs,
		authorizer:    authorizer,
		txRunner:      txRunner,
		validate:      validator.New(),
		thresholdDays: thresholdDays,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateFulfilment seeds a new fulfilment under an existing sales order. The
// workspace, project, contact and PO number are denormalized from the order,
// never taken from the caller. The create event and the ownership relations
// commit in one transaction.
func (s *fulfilmentService) CreateFulfilment(ctx context.Context, principal *domain.Principal, input CreateFulfilmentInput) (*domain.Fulfilment, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, domain.NewValidationError("invalid create fulfilment input", err)
	}
	order, err := s.orders.GetByID(ctx, input.SalesOrderID)
	if err != nil {
		return nil, err
	}
	if order.WorkspaceID == "" {
		return nil, domain.NewNotFoundError("workspace for sales order", input.SalesOrderID)
	}
	if err := s.authorizer.RequireWorkspaceMember(ctx, principal, order.WorkspaceID); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	var payload domain.EventPayload
	switch input.Type {
	case domain.SalesOrderTypeRental:
		payload = &domain.CreateRentalFulfilment{
			FulfilmentID:          id,
			WorkspaceID:           order.WorkspaceID,
			SalesOrderID:          order.ID,
			SalesOrderLineItemID:  input.SalesOrderLineItemID,
			ProjectID:             order.ProjectID,
			ContactID:             order.ContactID,
			PurchaseOrderNumber:   order.PurchaseOrderNumber,
			ColumnID:              input.ColumnID,
			DayRateInCents:        input.DayRateInCents,
			WeekRateInCents:       input.WeekRateInCents,
			MonthRateInCents:      input.MonthRateInCents,
			RentalStartDate:       input.RentalStartDate,
			ExpectedRentalEndDate: input.ExpectedRentalEndDate,
		}
	case domain.SalesOrderTypeSale:
		quantity := input.Quantity
		if quantity == 0 {
			quantity = 1
		}
		payload = &domain.CreateSaleFulfilment{
			FulfilmentID:         id,
			WorkspaceID:          order.WorkspaceID,
			SalesOrderID:         order.ID,
			SalesOrderLineItemID: input.SalesOrderLineItemID,
			ProjectID:            order.ProjectID,
			ContactID:            order.ContactID,
			PurchaseOrderNumber:  order.PurchaseOrderNumber,
			ColumnID:             input.ColumnID,
			UnitCostInCents:      input.UnitCostInCents,
			Quantity:             quantity,
		}
	case domain.SalesOrderTypeService:
		payload = &domain.CreateServiceFulfilment{
			FulfilmentID:         id,
			WorkspaceID:          order.WorkspaceID,
			SalesOrderID:         order.ID,
			SalesOrderLineItemID: input.SalesOrderLineItemID,
			ProjectID:            order.ProjectID,
			ContactID:            order.ContactID,
			PurchaseOrderNumber:  order.PurchaseOrderNumber,
			ColumnID:             input.ColumnID,
			UnitCostInCents:      input.UnitCostInCents,
			ServiceDate:          input.ServiceDate,
			Tasks:                input.Tasks,
		}
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("unsupported fulfilment type %q", input.Type), nil)
	}

	var state *domain.Fulfilment
	err = s.txRunner.WithTx(ctx, func(tx *sql.Tx) error {
		state, err = s.events.Apply(ctx, tx, id, payload, principal)
		if err != nil {
			return err
		}
		return s.authorizer.RegisterFulfilmentOwnership(ctx, tx, id, order.WorkspaceID, order.ID)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// CreateFulfilmentFromSalesOrderItem derives a fulfilment from a confirmed
// sales order line item. The create event, any immediate charge and any
// future delivery-charge schedule commit in one transaction.
func (s *fulfilmentService) CreateFulfilmentFromSalesOrderItem(ctx context.Context, principal *domain.Principal, salesOrderID, lineItemID string) (*domain.Fulfilment, error) {
	order, err := s.orders.GetByID(ctx, salesOrderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.RequireWorkspaceMember(ctx, principal, order.WorkspaceID); err != nil {
		return nil, err
	}
	lineItem, err := s.orders.GetLineItem(ctx, salesOrderID, lineItemID)
	if err != nil {
		return nil, err
	}
	price, err := s.prices.GetByID(ctx, lineItem.PriceID)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	var state *domain.Fulfilment
	err = s.txRunner.WithTx(ctx, func(tx *sql.Tx) error {
		switch lineItem.Type {
		case domain.LineItemTypeRental:
			if price.Type != domain.PriceTypeRental {
				return domain.NewInvariantViolationError(
					fmt.Sprintf("rental line item %s references %s price %s", lineItem.ID, price.Type, price.ID))
			}
			if lineItem.Quantity != 1 {
				return domain.NewInvariantViolationError(
					fmt.Sprintf("rental line item %s has quantity %d, rentals fulfil exactly one unit", lineItem.ID, lineItem.Quantity))
			}
			state, err = s.events.Apply(ctx, tx, id, &domain.CreateRentalFulfilment{
				FulfilmentID:          id,
				WorkspaceID:           order.WorkspaceID,
				SalesOrderID:          order.ID,
				SalesOrderLineItemID:  lineItem.ID,
				ProjectID:             order.ProjectID,
				ContactID:             order.ContactID,
				PurchaseOrderNumber:   order.PurchaseOrderNumber,
				DayRateInCents:        price.DayRateInCents,
				WeekRateInCents:       price.WeekRateInCents,
				MonthRateInCents:      price.MonthRateInCents,
				RentalStartDate:       lineItem.DeliveryDate,
				ExpectedRentalEndDate: lineItem.OffRentDate,
			}, principal)
			if err != nil {
				return err
			}
			// A backdated start date is billed right away rather than
			// waiting for the nightly sweep.
			state, err = s.billBackdatedRental(ctx, tx, state, principal)
			if err != nil {
				return err
			}

		case domain.LineItemTypeSale:
			if price.Type != domain.PriceTypeSale {
				return domain.NewInvariantViolationError(
					fmt.Sprintf("sale line item %s references %s price %s", lineItem.ID, price.Type, price.ID))
			}
			state, err = s.events.Apply(ctx, tx, id, &domain.CreateSaleFulfilment{
				FulfilmentID:         id,
				WorkspaceID:          order.WorkspaceID,
				SalesOrderID:         order.ID,
				SalesOrderLineItemID: lineItem.ID,
				ProjectID:            order.ProjectID,
				ContactID:            order.ContactID,
				PurchaseOrderNumber:  order.PurchaseOrderNumber,
				UnitCostInCents:      price.UnitCostInCents,
				Quantity:             lineItem.Quantity,
			}, principal)
			if err != nil {
				return err
			}
			if price.UnitCostInCents > 0 {
				saleCharge := &domain.Charge{
					ID:            uuid.NewString(),
					WorkspaceID:   state.WorkspaceID,
					FulfilmentID:  state.ID,
					SalesOrderID:  state.SalesOrderID,
					Type:          domain.ChargeTypeSale,
					AmountInCents: price.UnitCostInCents * int64(lineItem.Quantity),
					Description:   fmt.Sprintf("%d x Unit Cost", lineItem.Quantity),
					CreatedAt:     s.now(),
					CreatedBy:     principal.ID,
				}
				if err := s.charges.Create(ctx, tx, saleCharge); err != nil {
					return err
				}
			}

		default:
			return domain.NewValidationError(fmt.Sprintf("unsupported line item type %q", lineItem.Type), nil)
		}

		if err := s.authorizer.RegisterFulfilmentOwnership(ctx, tx, id, order.WorkspaceID, order.ID); err != nil {
			return err
		}
		return s.bookDeliveryCharge(ctx, tx, state, lineItem.DeliveryChargeInCents, lineItem.DeliveryDate, principal)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// bookDeliveryCharge either writes the delivery charge now or schedules a
// one-shot job for a future delivery date. A zero charge books nothing.
func (s *fulfilmentService) bookDeliveryCharge(ctx context.Context, tx *sql.Tx, state *domain.Fulfilment, amountInCents int64, deliveryDate *time.Time, principal *domain.Principal) error {
	if amountInCents <= 0 {
		return nil
	}
	if deliveryDate != nil && deliveryDate.After(s.now()) {
		data, err := json.Marshal(DeliveryChargeData{AmountInCents: amountInCents})
		if err != nil {
			return fmt.Errorf("failed to encode delivery charge data: %w", err)
		}
		return s.jobs.Schedule(ctx, tx, &domain.ScheduledJob{
			ID:           uuid.NewString(),
			Name:         domain.JobDeliveryCharge,
			FulfilmentID: state.ID,
			Data:         data,
			RunAt:        *deliveryDate,
			CreatedAt:    s.now(),
		})
	}
	return s.charges.Create(ctx, tx, &domain.Charge{
		ID:            uuid.NewString(),
		WorkspaceID:   state.WorkspaceID,
		FulfilmentID:  state.ID,
		SalesOrderID:  state.SalesOrderID,
		Type:          domain.ChargeTypeDelivery,
		AmountInCents: amountInCents,
		Description:   "Delivery",
		CreatedAt:     s.now(),
		CreatedBy:     principal.ID,
	})
}

func (s *fulfilmentService) GetFulfilment(ctx context.Context, principal *domain.Principal, id string) (*domain.Fulfilment, error) {
	snapshot, err := s.snapshots.Get(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if snapshot == nil || snapshot.Deleted {
		return nil, domain.NewNotFoundError("fulfilment", id)
	}
	if err := s.authorizer.RequireWorkspaceMember(ctx, principal, snapshot.State.WorkspaceID); err != nil {
		return nil, err
	}
	return snapshot.State, nil
}

func (s *fulfilmentService) UpdateColumn(ctx context.Context, principal *domain.Principal, id, columnID string) (*domain.Fulfilment, error) {
	if columnID == "" {
		return nil, domain.NewValidationError("column id is required", nil)
	}
	return s.applyAuthorized(ctx, principal, id, &domain.UpdateColumn{ColumnID: columnID})
}

func (s *fulfilmentService) UpdateAssignee(ctx context.Context, principal *domain.Principal, id string, assignedToID *string) (*domain.Fulfilment, error) {
	return s.applyAuthorized(ctx, principal, id, &domain.UpdateAssignee{AssignedToID: assignedToID})
}

func (s *fulfilmentService) SetPurchaseOrderLineItemID(ctx context.Context, principal *domain.Principal, id string, purchaseOrderLineItemID *string) (*domain.Fulfilment, error) {
	return s.applyAuthorized(ctx, principal, id, &domain.SetPurchaseOrderLineItemID{PurchaseOrderLineItemID: purchaseOrderLineItemID})
}

func (s *fulfilmentService) SetExpectedRentalEndDate(ctx context.Context, principal *domain.Principal, id string, expectedEndDate time.Time) (*domain.Fulfilment, error) {
	return s.applyAuthorized(ctx, principal, id, &domain.SetExpectedRentalEndDate{ExpectedRentalEndDate: expectedEndDate})
}

// applyAuthorized is the common path for single-event commands: load the
// aggregate under a row lock, check workspace membership, apply.
func (s *fulfilmentService) applyAuthorized(ctx context.Context, principal *domain.Principal, id string, payload domain.EventPayload) (*domain.Fulfilment, error) {
	var state *domain.Fulfilment
	err := s.txRunner.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := s.loadLive(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.authorizer.RequireWorkspaceMember(ctx, principal, current.WorkspaceID); err != nil {
			return err
		}
		state, err = s.events.Apply(ctx, tx, id, payload, principal)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// loadLive returns the live aggregate state or NotFoundError. Tombstones read
// as not found.
func (s *fulfilmentService) loadLive(ctx context.Context, tx *sql.Tx, id string) (*domain.Fulfilment, error) {
	snapshot, err := s.snapshots.Get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if snapshot == nil || snapshot.Deleted {
		return nil, domain.NewNotFoundError("fulfilment", id)
	}
	return snapshot.State, nil
}

// SetRentalStartDate moves the rental window's start. Billed history is
// rebuilt: all uninvoiced charges are dropped, billing bookkeeping resets,
// charges are recomputed from the new start date and any pending
// delivery-charge schedule is replaced. Once any charge has been invoiced the
// start date is immutable.
func (s *fulfilmentService) SetRentalStartDate(ctx context.Context, principal *domain.Principal, id string, startDate time.Time) (*domain.Fulfilment, error) {
	var state *domain.Fulfilment
	err := s.txRunner.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := s.loadLive(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.authorizer.RequireWorkspaceMember(ctx, principal, current.WorkspaceID); err != nil {
			return err
		}

		invoiced, err := s.charges.HasAnyInvoiced(ctx, tx, id)
		if err != nil {
			return err
		}
		if invoiced {
			return domain.NewInvariantViolationError(
				fmt.Sprintf("fulfilment %s has invoiced charges, the rental start date can no longer change", id))
		}

		state, err = s.events.Apply(ctx, tx, id, &domain.SetRentalStartDate{RentalStartDate: startDate}, principal)
		if err != nil {
			return err
		}
		if current.LastChargedAt != nil {
			state, err = s.events.Apply(ctx, tx, id, &domain.ResetLastChargedAt{}, principal)
			if err != nil {
				return err
			}
		}

		if err := s.charges.DeleteAllByFulfilmentID(ctx, tx, id); err != nil {
			return err
		}
		if err := s.jobs.CancelByFulfilment(ctx, tx, id, domain.JobDeliveryCharge); err != nil {
			return err
		}

		// Rebuild the billed history from the new start date so the ledger
		// never drifts from the rental window.
		state, err = s.billBackdatedRental(ctx, tx, state, principal)
		if err != nil {
			return err
		}

		lineItem, err := s.orders.GetLineItem(ctx, state.SalesOrderID, state.SalesOrderLineItemID)
		if err != nil {
			return err
		}
		return s.bookDeliveryCharge(ctx, tx, state, lineItem.DeliveryChargeInCents, &startDate, principal)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// SetRentalEndDate closes the rental window and runs or schedules the final
// billing pass.
func (s *fulfilmentService) SetRentalEndDate(ctx context.Context, principal *domain.Principal, id string, endDate time.Time) (*domain.Fulfilment, error) {
	var state *domain.Fulfilment
	err := s.txRunner.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := s.loadLive(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.authorizer.RequireWorkspaceMember(ctx, principal, current.WorkspaceID); err != nil {
			return err
		}

		state, err = s.events.Apply(ctx, tx, id, &domain.SetRentalEndDate{RentalEndDate: endDate}, principal)
		if err != nil {
			return err
		}

		if endDate.After(s.now()) {
			return s.jobs.Schedule(ctx, tx, &domain.ScheduledJob{
				ID:           uuid.NewString(),
				Name:         domain.JobRentalCharges,
				FulfilmentID: id,
				RunAt:        endDate,
				CreatedAt:    s.now(),
			})
		}
		_, state, err = s.createRentalCharges(ctx, tx, state, endDate, 1, principal)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// AssignInventoryToRentalFulfilmentWithReservation reserves the unit for the
// rental window, assigns it and propagates the unit's purchase order linkage,
// all in one transaction. A reservation conflict rolls everything back.
func (s *fulfilmentService) AssignInventoryToRentalFulfilmentWithReservation(ctx context.Context, principal *domain.Principal, id, inventoryID string, allowOverlap bool) (*domain.Fulfilment, error) {
	var state *domain.Fulfilment
	err := s.txRunner.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := s.loadLive(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.authorizer.RequireWorkspaceMember(ctx, principal, current.WorkspaceID); err != nil {
			return err
		}
		if !current.IsRental() {
			return domain.NewStateTransitionError(domain.EventAssignInventoryToFulfilment,
				"fulfilment "+id+" is not a rental")
		}
		if current.RentalStartDate == nil {
			return domain.NewInvariantViolationError("rental has no start date to reserve against")
		}
		reservationEnd := current.RentalEndDate
		if reservationEnd == nil {
			reservationEnd = current.ExpectedRentalEndDate
		}
		if reservationEnd == nil {
			return domain.NewInvariantViolationError("rental has no end date to reserve against")
		}

		unit, err := s.inventory.GetByID(ctx, inventoryID)
		if err != nil {
			return err
		}
		if unit.WorkspaceID != current.WorkspaceID {
			return domain.NewInvariantViolationError(
				fmt.Sprintf("inventory %s belongs to another workspace", inventoryID))
		}

		if err := s.inventory.CreateFulfilmentReservation(ctx, tx, &domain.FulfilmentReservation{
			ID:           uuid.NewString(),
			InventoryID:  inventoryID,
			FulfilmentID: id,
			StartDate:    *current.RentalStartDate,
			EndDate:      *reservationEnd,
			CreatedAt:    s.now(),
		}, allowOverlap); err != nil {
			return err
		}

		state, err = s.events.Apply(ctx, tx, id, &domain.AssignInventoryToFulfilment{InventoryID: inventoryID}, principal)
		if err != nil {
			return err
		}
		if unit.PurchaseOrderLineItemID != nil && current.PurchaseOrderLineItemID == nil {
			state, err = s.events.Apply(ctx, tx, id,
				&domain.SetPurchaseOrderLineItemID{PurchaseOrderLineItemID: unit.PurchaseOrderLineItemID}, principal)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// CreateRentalCharges bills the rental up to the given date in billing
// periods no longer than the configured threshold. Already-billed days are
// never billed again: the next period always starts the day after the last
// recorded billing period end.
func (s *fulfilmentService) CreateRentalCharges(ctx context.Context, principal *domain.Principal, id string, until time.Time, minimumDays int) ([]domain.Charge, error) {
	var created []domain.Charge
	err := s.txRunner.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := s.loadLive(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.authorizer.RequireWorkspaceMember(ctx, principal, current.WorkspaceID); err != nil {
			return err
		}
		created, _, err = s.createRentalCharges(ctx, tx, current, until, minimumDays, principal)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// billBackdatedRental runs an immediate billing pass when the rental start
// date is already at least the billing threshold in the past. More recent
// start dates are left to the nightly sweep.
func (s *fulfilmentService) billBackdatedRental(ctx context.Context, tx *sql.Tx, state *domain.Fulfilment, principal *domain.Principal) (*domain.Fulfilment, error) {
	if state.RentalStartDate == nil {
		return state, nil
	}
	if state.RentalStartDate.After(s.now().AddDate(0, 0, -s.thresholdDays)) {
		return state, nil
	}
	_, next, err := s.createRentalCharges(ctx, tx, state, s.now(), 1, principal)
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *fulfilmentService) createRentalCharges(ctx context.Context, tx *sql.Tx, current *domain.Fulfilment, until time.Time, minimumDays int, principal *domain.Principal) ([]domain.Charge, *domain.Fulfilment, error) {
	if !current.IsRental() {
		return nil, nil, domain.NewStateTransitionError(domain.EventUpdateLastChargedAt,
			"fulfilment "+current.ID+" is not a rental")
	}
	if current.RentalStartDate == nil {
		return nil, nil, domain.NewInvariantViolationError("rental has no start date, nothing to bill")
	}
	if minimumDays < 1 {
		minimumDays = 1
	}

	chargeFrom := *current.RentalStartDate
	if current.LastBillingPeriodEnd != nil {
		chargeFrom = current.LastBillingPeriodEnd.AddDate(0, 0, 1)
	}
	chargeUntil := until
	if current.RentalEndDate != nil && current.RentalEndDate.Before(chargeUntil) {
		chargeUntil = *current.RentalEndDate
	}
	if chargeFrom.After(chargeUntil) {
		return nil, current, nil
	}

	rates := pricing.Rates{
		DayRateInCents:   current.DayRateInCents,
		WeekRateInCents:  current.WeekRateInCents,
		MonthRateInCents: current.MonthRateInCents,
	}

	var created []domain.Charge
	for _, period := range pricing.ChunkBillingPeriods(chargeFrom, chargeUntil, s.thresholdDays) {
		// A trailing partial period under the floor stays unbilled until it
		// grows past the floor or a final pass runs with no floor.
		if period.Days < minimumDays {
			continue
		}
		days := period.Days
		rentalPeriod, err := pricing.CalculateRentalPeriod(nil, nil, &days)
		if err != nil {
			return nil, nil, err
		}
		option := pricing.CalculateOptimalCost(rentalPeriod, rates)

		periodStart := period.From
		periodEnd := period.To
		charge := domain.Charge{
			ID:            uuid.NewString(),
			WorkspaceID:   current.WorkspaceID,
			FulfilmentID:  current.ID,
			SalesOrderID:  current.SalesOrderID,
			Type:          domain.ChargeTypeRental,
			AmountInCents: option.CostInCents,
			Description:   option.PlainText,
			PeriodStart:   &periodStart,
			PeriodEnd:     &periodEnd,
			CreatedAt:     s.now(),
			CreatedBy:     principal.ID,
		}
		if err := s.charges.Create(ctx, tx, &charge); err != nil {
			return nil, nil, err
		}

		next, err := s.events.Apply(ctx, tx, current.ID, &domain.UpdateLastChargedAt{
			LastChargedAt:        s.now(),
			LastBillingPeriodEnd: period.To,
			DaysCharged:          period.Days,
		}, principal)
		if err != nil {
			return nil, nil, err
		}
		current = next
		created = append(created, charge)
	}
	return created, current, nil
}

// NightlyRentalCharges scans for rentals whose last charge is older than the
// threshold and enqueues one billing job per rental on the one-shot queue;
// the queue poller executes them. Duplicate enqueues are harmless because
// billing never re-bills past the recorded period end. One failing rental
// never blocks the rest of the batch. Returns the number of jobs enqueued.
func (s *fulfilmentService) NightlyRentalCharges(ctx context.Context, principal *domain.Principal, asOf time.Time) (int, error) {
	if err := s.authorizer.RequireERPAdmin(principal); err != nil {
		return 0, err
	}

	due, err := s.snapshots.ListRentalsDueForBilling(ctx, asOf, s.thresholdDays)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, rental := range due {
		err := s.jobs.Schedule(ctx, nil, &domain.ScheduledJob{
			ID:           uuid.NewString(),
			Name:         domain.JobRentalCharges,
			FulfilmentID: rental.ID,
			RunAt:        asOf,
			CreatedAt:    s.now(),
		})
		if err != nil {
			logger.Error("failed to enqueue rental billing job",
				"fulfilment_id", rental.ID, "error", err)
			continue
		}
		enqueued++
	}
	logger.Info("nightly rental billing scan completed",
		"due", len(due), "jobs_enqueued", enqueued, "as_of", asOf)
	return enqueued, nil
}

// RunScheduledJob executes one due entry from the one-shot job queue. Jobs
// are delivered at least once, so every branch checks before it writes.
func (s *fulfilmentService) RunScheduledJob(ctx context.Context, job domain.ScheduledJob) error {
	switch job.Name {
	case domain.JobDeliveryCharge:
		var data DeliveryChargeData
		if err := json.Unmarshal(job.Data, &data); err != nil {
			return domain.NewValidationError("malformed delivery charge job data", err)
		}
		return s.txRunner.WithTx(ctx, func(tx *sql.Tx) error {
			current, err := s.loadLive(ctx, tx, job.FulfilmentID)
			if err != nil {
				return err
			}
			existing, err := s.charges.List(ctx, tx, domain.ChargeFilter{
				FulfilmentID: job.FulfilmentID,
				Type:         domain.ChargeTypeDelivery,
			})
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return nil
			}
			return s.charges.Create(ctx, tx, &domain.Charge{
				ID:            uuid.NewString(),
				WorkspaceID:   current.WorkspaceID,
				FulfilmentID:  current.ID,
				SalesOrderID:  current.SalesOrderID,
				Type:          domain.ChargeTypeDelivery,
				AmountInCents: data.AmountInCents,
				Description:   "Delivery",
				CreatedAt:     s.now(),
				CreatedBy:     systemPrincipal.ID,
			})
		})

	case domain.JobRentalCharges:
		_, err := s.CreateRentalCharges(ctx, systemPrincipal, job.FulfilmentID, s.now(), 1)
		return err

	default:
		return domain.NewValidationError(fmt.Sprintf("unknown scheduled job %q", job.Name), nil)
	}
}

// ForecastFulfilmentPricing projects the rental's daily cost over the given
// horizon using the aggregate's rates.
func (s *fulfilmentService) ForecastFulfilmentPricing(ctx context.Context, principal *domain.Principal, id string, numberOfDays int) (*pricing.Forecast, error) {
	current, err := s.GetFulfilment(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if !current.IsRental() {
		return nil, domain.NewStateTransitionError(domain.EventUpdateLastChargedAt,
			"fulfilment "+id+" is not a rental")
	}
	if current.RentalStartDate == nil {
		return nil, domain.NewInvariantViolationError("rental has no start date to forecast from")
	}

	forecast, err := pricing.ForecastPricing(*current.RentalStartDate, numberOfDays, pricing.Rates{
		DayRateInCents:   current.DayRateInCents,
		WeekRateInCents:  current.WeekRateInCents,
		MonthRateInCents: current.MonthRateInCents,
	}, current.RentalEndDate)
	if err != nil {
		return nil, err
	}
	return &forecast, nil
}

// DeleteFulfilment tombstones the aggregate, drops its uninvoiced charges and
// cancels any pending schedules. Fulfilments with invoiced charges cannot be
// deleted.
func (s *fulfilmentService) DeleteFulfilment(ctx context.Context, principal *domain.Principal, id string) error {
	return s.txRunner.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := s.loadLive(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.authorizer.RequireWorkspaceMember(ctx, principal, current.WorkspaceID); err != nil {
			return err
		}

		invoiced, err := s.charges.HasAnyInvoiced(ctx, tx, id)
		if err != nil {
			return err
		}
		if invoiced {
			return domain.NewInvariantViolationError(
				fmt.Sprintf("fulfilment %s has invoiced charges and cannot be deleted", id))
		}

		if err := s.charges.DeleteAllByFulfilmentID(ctx, tx, id); err != nil {
			return err
		}
		for _, name := range []string{domain.JobDeliveryCharge, domain.JobRentalCharges} {
			if err := s.jobs.CancelByFulfilment(ctx, tx, id, name); err != nil {
				return err
			}
		}
		_, err = s.events.Apply(ctx, tx, id, &domain.DeleteFulfilment{}, principal)
		return err
	})
}
