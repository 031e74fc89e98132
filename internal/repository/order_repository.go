package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/flash-sale/internal/model"
)

// ErrOrderNotFound is returned when no order row matches the id.
var ErrOrderNotFound = errors.New("order not found")

// OrderRepo persists purchase orders.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// CreateTx inserts a new order within the scope of an existing transaction
// and populates the generated ID.  OrderedAt is set to the current UTC
// time when zero.  The caller must commit or rollback the transaction.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	if o.OrderedAt.IsZero() {
		o.OrderedAt = time.Now().UTC()
	}
	const q = `INSERT INTO purchase_orders (session_id, product_id, quantity, total_price, status, ordered_at) VALUES (?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, o.SessionID, o.ProductID, o.Quantity,
		o.TotalPrice.StringFixed(2), string(o.Status), o.OrderedAt.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

// GetByID returns a single order.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	const q = `SELECT id, session_id, product_id, quantity, total_price, status, ordered_at FROM purchase_orders WHERE id = ?`
	var o model.Order
	var status string
	err := r.db.QueryRowContext(ctx, q, id).Scan(&o.ID, &o.SessionID, &o.ProductID, &o.Quantity, &o.TotalPrice, &status, &o.OrderedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	return &o, nil
}

// CancelTx marks a COMPLETED or PENDING order as CANCELLED and returns the
// product id and quantity so the caller can restock inside the same
// transaction.  Cancelling an order twice returns ErrConflict.
func (r *OrderRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64) (productID uint64, quantity int, err error) {
	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT product_id, quantity, status FROM purchase_orders WHERE id = ? FOR UPDATE`, id,
	).Scan(&productID, &quantity, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrOrderNotFound
	}
	if err != nil {
		return 0, 0, err
	}
	if model.OrderStatus(status) == model.OrderCancelled {
		return 0, 0, ErrConflict
	}
	if _, err = tx.ExecContext(ctx, `UPDATE purchase_orders SET status = ? WHERE id = ?`, string(model.OrderCancelled), id); err != nil {
		return 0, 0, err
	}
	return productID, quantity, nil
}
