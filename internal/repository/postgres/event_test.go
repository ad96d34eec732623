package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfilment-backend/internal/domain"
)

func TestEventAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	event := &domain.Event{
		ID:          "evt-1",
		AggregateID: "f-1",
		Timestamp:   at,
		PrincipalID: "alice",
		Payload:     &domain.UpdateColumn{ColumnID: "col-2"},
	}

	mock.ExpectExec("INSERT INTO fulfilment_events").
		WithArgs("evt-1", "f-1", domain.EventUpdateColumn, []byte(`{"column_id":"col-2"}`), "alice", at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, NewEventRepository(db).Append(context.Background(), nil, event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventListByAggregate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "aggregate_id", "event_type", "payload", "principal_id", "created_at"}).
		AddRow("evt-1", "f-1", domain.EventCreateRentalFulfilment,
			[]byte(`{"fulfilment_id":"f-1","workspace_id":"ws-1","sales_order_id":"so-1","sales_order_line_item_id":"li-1"}`),
			"alice", at).
		AddRow("evt-2", "f-1", domain.EventUpdateColumn, []byte(`{"column_id":"col-2"}`), "bob", at.Add(time.Hour))

	mock.ExpectQuery("FROM fulfilment_events WHERE aggregate_id").
		WithArgs("f-1").
		WillReturnRows(rows)

	events, err := NewEventRepository(db).ListByAggregate(context.Background(), nil, "f-1")
	require.NoError(t, err)
	require.Len(t, events, 2)

	create, ok := events[0].Payload.(*domain.CreateRentalFulfilment)
	require.True(t, ok)
	assert.Equal(t, "ws-1", create.WorkspaceID)

	update, ok := events[1].Payload.(*domain.UpdateColumn)
	require.True(t, ok)
	assert.Equal(t, "col-2", update.ColumnID)
	assert.Equal(t, "bob", events[1].PrincipalID)
}

func TestEventListByAggregate_UnknownTypeFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "aggregate_id", "event_type", "payload", "principal_id", "created_at"}).
		AddRow("evt-1", "f-1", "NOT_A_REAL_EVENT", []byte(`{}`), "alice", time.Now())

	mock.ExpectQuery("FROM fulfilment_events WHERE aggregate_id").
		WithArgs("f-1").
		WillReturnRows(rows)

	_, err = NewEventRepository(db).ListByAggregate(context.Background(), nil, "f-1")
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestWithTx(t *testing.T) {
	t.Run("CommitsOnSuccess", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO fulfilment_events").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		store := NewStore(db)
		err = store.WithTx(context.Background(), func(tx *sql.Tx) error {
			return store.Append(context.Background(), tx, &domain.Event{
				ID: "evt-1", AggregateID: "f-1", PrincipalID: "alice",
				Payload: &domain.UpdateColumn{ColumnID: "col-1"},
			})
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollsBackOnError", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := domain.NewInvariantViolationError("boom")
		err = NewStore(db).WithTx(context.Background(), func(tx *sql.Tx) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
