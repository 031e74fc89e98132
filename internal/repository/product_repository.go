package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/flash-sale/internal/model"
)

// ErrProductNotFound is returned when no product row matches the id.
var ErrProductNotFound = errors.New("product not found")

// ProductRepo provides access to the products table.  Stock is only ever
// mutated through the Tx methods so that the decrement happens under the
// row lock taken by GetForUpdateTx.
type ProductRepo struct {
	db *sql.DB
}

// NewProductRepo returns a new ProductRepo bound to the provided database.
func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

// DB exposes the underlying handle so services can open transactions.
func (r *ProductRepo) DB() *sql.DB { return r.db }

const productColumns = `id, name, description, original_price, discount_rate, stock, COALESCE(image_url, ''), category, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*model.Product, error) {
	var p model.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.OriginalPrice, &p.DiscountRate,
		&p.Stock, &p.ImageURL, &p.Category, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns all products ordered by id.
func (r *ProductRepo) List(ctx context.Context) ([]model.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := make([]model.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// GetByID loads a product without locking.  Returns ErrProductNotFound when
// the id does not exist.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (*model.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	return p, err
}

// GetForUpdateTx loads a product and takes an exclusive row lock that is
// held until the surrounding transaction commits or rolls back.  Concurrent
// purchasers of the same product serialize here.
func (r *ProductRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Product, error) {
	p, err := scanProduct(tx.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	return p, err
}

// DecreaseStockTx subtracts quantity from the product stock.  The WHERE
// clause re-asserts stock >= quantity so the row can never go negative even
// if a caller skipped the locked read; zero affected rows is reported as
// ErrInsufficientStock.
func (r *ProductRepo) DecreaseStockTx(ctx context.Context, tx *sql.Tx, id uint64, quantity int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock - ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND stock >= ?`,
		quantity, id, quantity)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// IncreaseStockTx returns quantity units to the product, used when an
// order is cancelled.
func (r *ProductRepo) IncreaseStockTx(ctx context.Context, tx *sql.Tx, id uint64, quantity int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock + ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, quantity, id)
	return err
}

// Count returns the number of products.
func (r *ProductRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	return n, err
}

// CreateBulk inserts multiple products in one statement.  Passing an empty
// slice has no effect and returns nil.
func (r *ProductRepo) CreateBulk(ctx context.Context, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}
	query := `INSERT INTO products (name, description, original_price, discount_rate, stock, image_url, category) VALUES `
	args := make([]any, 0, len(products)*7)
	for i, p := range products {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?)"
		args = append(args, p.Name, p.Description, p.OriginalPrice.StringFixed(2), p.DiscountRate, p.Stock, p.ImageURL, p.Category)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}
