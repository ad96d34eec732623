package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"fulfilment-backend/internal/domain"
	"fulfilment-backend/internal/repository"
)

type eventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) repository.EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Append(ctx context.Context, tx *sql.Tx, event *domain.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	query := `INSERT INTO fulfilment_events (id, aggregate_id, event_type, payload, principal_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = pick(r.db, tx).ExecContext(ctx, query,
		event.ID, event.AggregateID, event.Payload.EventType(), payload, event.PrincipalID, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *eventRepository) ListByAggregate(ctx context.Context, tx *sql.Tx, aggregateID string) ([]domain.Event, error) {
	query := `SELECT id, aggregate_id, event_type, payload, principal_id, created_at
	          FROM fulfilment_events WHERE aggregate_id = $1 ORDER BY seq`
	rows, err := pick(r.db, tx).QueryContext(ctx, query, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			ev        domain.Event
			eventType string
			payload   []byte
		)
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &eventType, &payload, &ev.PrincipalID, &ev.Timestamp); err != nil {
			return nil, err
		}
		decoded, err := domain.DecodeEventPayload(eventType, payload)
		if err != nil {
			return nil, err
		}
		ev.Payload = decoded
		events = append(events, ev)
	}
	return events, rows.Err()
}
