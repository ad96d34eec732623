package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfilment-backend/internal/domain"
	"fulfilment-backend/internal/repository"
)

func TestSnapshotGet(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingAggregate", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT state, deleted, updated_at FROM fulfilment_snapshots").
			WithArgs("f-1").
			WillReturnRows(sqlmock.NewRows([]string{"state", "deleted", "updated_at"}))

		snapshot, err := NewSnapshotRepository(db).Get(ctx, nil, "f-1")
		require.NoError(t, err)
		assert.Nil(t, snapshot)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DecodesState", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		state, err := json.Marshal(&domain.Fulfilment{ID: "f-1", WorkspaceID: "ws-1", Type: domain.SalesOrderTypeRental})
		require.NoError(t, err)
		updatedAt := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

		mock.ExpectQuery("SELECT state, deleted, updated_at FROM fulfilment_snapshots").
			WithArgs("f-1").
			WillReturnRows(sqlmock.NewRows([]string{"state", "deleted", "updated_at"}).
				AddRow(state, false, updatedAt))

		snapshot, err := NewSnapshotRepository(db).Get(ctx, nil, "f-1")
		require.NoError(t, err)
		require.NotNil(t, snapshot.State)
		assert.Equal(t, "ws-1", snapshot.State.WorkspaceID)
		assert.False(t, snapshot.Deleted)
		assert.Equal(t, updatedAt, snapshot.UpdatedAt)
	})

	t.Run("LocksRowInsideTransaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WithArgs("f-1").
			WillReturnRows(sqlmock.NewRows([]string{"state", "deleted", "updated_at"}))

		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)

		_, err = NewSnapshotRepository(db).Get(ctx, tx, "f-1")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSnapshotUpsert(t *testing.T) {
	ctx := context.Background()

	t.Run("LiveState", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
		updatedAt := time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC)
		snapshot := &repository.Snapshot{
			AggregateID: "f-1",
			State: &domain.Fulfilment{
				ID: "f-1", Type: domain.SalesOrderTypeRental, RentalStartDate: &start,
			},
			UpdatedAt: updatedAt,
		}

		mock.ExpectExec("INSERT INTO fulfilment_snapshots").
			WithArgs("f-1", sqlmock.AnyArg(), "RENTAL", start, nil, nil, false, updatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewSnapshotRepository(db).Upsert(ctx, nil, snapshot))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Tombstone", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		updatedAt := time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC)
		mock.ExpectExec("INSERT INTO fulfilment_snapshots").
			WithArgs("f-1", []byte(nil), nil, nil, nil, nil, true, updatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = NewSnapshotRepository(db).Upsert(ctx, nil, &repository.Snapshot{
			AggregateID: "f-1", Deleted: true, UpdatedAt: updatedAt,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListRentalsDueForBilling(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	asOf := time.Date(2025, time.April, 29, 2, 0, 0, 0, time.UTC)
	cutoff := asOf.AddDate(0, 0, -28)

	state, err := json.Marshal(&domain.Fulfilment{ID: "f-1", Type: domain.SalesOrderTypeRental})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT state FROM fulfilment_snapshots").
		WithArgs("RENTAL", cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(state))

	due, err := NewSnapshotRepository(db).ListRentalsDueForBilling(context.Background(), asOf, 28)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "f-1", due[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
