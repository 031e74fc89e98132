package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flash-sale/internal/model"
)

var productCols = []string{"id", "name", "description", "original_price", "discount_rate", "stock", "image_url", "category", "created_at", "updated_at"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestProductRepo_GetByID(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE id = ?`)).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(1, "tint", "glitter tint", []byte("18000.00"), 30, 100, "", "lip", now, now))

	p, err := NewProductRepo(db).GetByID(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, "tint", p.Name)
	assert.True(t, p.OriginalPrice.Equal(decimal.NewFromInt(18000)))
	assert.Equal(t, 30, p.DiscountRate)
	assert.Equal(t, 100, p.Stock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_GetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE id = ?`)).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(productCols))

	_, err := NewProductRepo(db).GetByID(context.Background(), 9)

	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductRepo_GetForUpdateTxLocksRow(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = ? FOR UPDATE`)).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(1, "tint", "", "18000.00", 30, 5, "", "lip", now, now))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	p, err := NewProductRepo(db).GetForUpdateTx(context.Background(), tx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_DecreaseStockTx(t *testing.T) {
	t.Run("decrements", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE products SET stock = stock - ?`)).
			WithArgs(2, uint64(1), 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := db.Begin()
		require.NoError(t, err)
		require.NoError(t, NewProductRepo(db).DecreaseStockTx(context.Background(), tx, 1, 2))
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("guard rejects oversell", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE products SET stock = stock - ?`)).
			WithArgs(5, uint64(1), 5).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		tx, err := db.Begin()
		require.NoError(t, err)
		err = NewProductRepo(db).DecreaseStockTx(context.Background(), tx, 1, 5)
		assert.ErrorIs(t, err, ErrInsufficientStock)
		require.NoError(t, tx.Rollback())
	})
}

func TestProductRepo_CreateBulk(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO products`)).
		WithArgs("a", "", "100.00", 10, 3, "", "c", "b", "", "200.50", 0, 4, "", "c").
		WillReturnResult(sqlmock.NewResult(2, 2))

	err := NewProductRepo(db).CreateBulk(context.Background(), []model.Product{
		{Name: "a", OriginalPrice: decimal.NewFromInt(100), DiscountRate: 10, Stock: 3, Category: "c"},
		{Name: "b", OriginalPrice: decimal.RequireFromString("200.5"), Stock: 4, Category: "c"},
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, NewProductRepo(db).CreateBulk(context.Background(), nil))
}
