package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flash-sale/internal/model"
)

func TestOrderRepo_CreateTx(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO purchase_orders`)).
		WithArgs("sess", uint64(1), 2, "25200.00", "COMPLETED", "2026-03-01 12:00:00").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	o := &model.Order{
		SessionID:  "sess",
		ProductID:  1,
		Quantity:   2,
		TotalPrice: decimal.NewFromInt(25200),
		Status:     model.OrderCompleted,
		OrderedAt:  at,
	}
	require.NoError(t, NewOrderRepo(db).CreateTx(context.Background(), tx, o))
	require.NoError(t, tx.Commit())

	assert.Equal(t, uint64(42), o.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_CancelTx(t *testing.T) {
	t.Run("cancels completed order", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`FROM purchase_orders WHERE id = ? FOR UPDATE`)).
			WithArgs(uint64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity", "status"}).AddRow(1, 2, "COMPLETED"))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE purchase_orders SET status = ?`)).
			WithArgs("CANCELLED", uint64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := db.Begin()
		require.NoError(t, err)
		pid, qty, err := NewOrderRepo(db).CancelTx(context.Background(), tx, 7)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		assert.Equal(t, uint64(1), pid)
		assert.Equal(t, 2, qty)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already cancelled conflicts", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`FROM purchase_orders WHERE id = ? FOR UPDATE`)).
			WithArgs(uint64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity", "status"}).AddRow(1, 2, "CANCELLED"))
		mock.ExpectRollback()

		tx, err := db.Begin()
		require.NoError(t, err)
		_, _, err = NewOrderRepo(db).CancelTx(context.Background(), tx, 7)
		assert.ErrorIs(t, err, ErrConflict)
		require.NoError(t, tx.Rollback())
	})

	t.Run("missing order", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`FROM purchase_orders WHERE id = ? FOR UPDATE`)).
			WithArgs(uint64(8)).
			WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity", "status"}))

		tx, err := db.Begin()
		require.NoError(t, err)
		_, _, err = NewOrderRepo(db).CancelTx(context.Background(), tx, 8)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}
