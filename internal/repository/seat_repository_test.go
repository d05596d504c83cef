package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/cinebook/internal/model"
)

func TestCreateBulkTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSeatRepo(db)

	t.Run("Builds Full Grid", func(t *testing.T) {
		mock.ExpectBegin()
		// 2 rows x 3 seats = 6 value tuples of 4 args each.
		mock.ExpectExec("INSERT INTO seats").
			WithArgs(
				uint64(9), uint32(1), uint32(1), model.SeatAvailable,
				uint64(9), uint32(1), uint32(2), model.SeatAvailable,
				uint64(9), uint32(1), uint32(3), model.SeatAvailable,
				uint64(9), uint32(2), uint32(1), model.SeatAvailable,
				uint64(9), uint32(2), uint32(2), model.SeatAvailable,
				uint64(9), uint32(2), uint32(3), model.SeatAvailable,
			).
			WillReturnResult(sqlmock.NewResult(1, 6))
		mock.ExpectCommit()

		tx, err := db.BeginTx(context.Background(), nil)
		require.NoError(t, err)
		require.NoError(t, repo.CreateBulkTx(context.Background(), tx, 9, 2, 3))
		require.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Empty Grid Is NoOp", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectCommit()

		tx, err := db.BeginTx(context.Background(), nil)
		require.NoError(t, err)
		require.NoError(t, repo.CreateBulkTx(context.Background(), tx, 9, 0, 3))
		require.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLockForClaimTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSeatRepo(db)

	t.Run("Missing Seats Absent From Result", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, showtime_id, row_num").
			WithArgs(uint64(9), uint64(11), uint64(999)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "showtime_id", "row_num", "seat_number", "status", "reservation_id"}).
				AddRow(11, 9, 1, 1, model.SeatAvailable, nil))
		mock.ExpectRollback()

		tx, err := db.BeginTx(context.Background(), nil)
		require.NoError(t, err)
		seats, err := repo.LockForClaimTx(context.Background(), tx, 9, []uint64{11, 999})
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())

		assert.Len(t, seats, 1)
		assert.Equal(t, uint64(11), seats[0].ID)
		assert.Nil(t, seats[0].ReservationID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Carries Owning Reservation", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, showtime_id, row_num").
			WithArgs(uint64(9), uint64(11)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "showtime_id", "row_num", "seat_number", "status", "reservation_id"}).
				AddRow(11, 9, 1, 1, model.SeatReserved, 42))
		mock.ExpectRollback()

		tx, err := db.BeginTx(context.Background(), nil)
		require.NoError(t, err)
		seats, err := repo.LockForClaimTx(context.Background(), tx, 9, []uint64{11})
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())

		require.Len(t, seats, 1)
		assert.False(t, seats[0].Available())
		require.NotNil(t, seats[0].ReservationID)
		assert.Equal(t, uint64(42), *seats[0].ReservationID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCancelBulkTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewReservationRepo(db)

	t.Run("Single Statement For Batch", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE reservations SET status").
			WithArgs(uint64(5), uint64(6), uint64(7)).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectCommit()

		tx, err := db.BeginTx(context.Background(), nil)
		require.NoError(t, err)
		require.NoError(t, repo.CancelBulkTx(context.Background(), tx, []uint64{5, 6, 7}))
		require.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Empty Batch Is NoOp", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectCommit()

		tx, err := db.BeginTx(context.Background(), nil)
		require.NoError(t, err)
		require.NoError(t, repo.CancelBulkTx(context.Background(), tx, nil))
		require.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
