package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/flash-sale/internal/model"
)

// ProductSearchQuery defines filters and pagination for catalog search.
type ProductSearchQuery struct {
	Name        string
	Category    string
	InStockOnly bool
	Page        int
	PageSize    int
}

// Search returns one page of products matching q, ordered by id, together
// with the total number of matches.
func (r *ProductRepo) Search(ctx context.Context, q ProductSearchQuery) ([]model.Product, int64, error) {
	where := []string{}
	args := []any{}

	if q.Name != "" {
		where = append(where, "LOWER(name) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Name)+"%")
	}
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, q.Category)
	}
	if q.InStockOnly {
		where = append(where, "stock > 0")
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}
	limit := q.PageSize
	offset := (q.Page - 1) * q.PageSize

	dataSQL := `SELECT ` + productColumns + ` FROM products WHERE ` + cond + ` ORDER BY id LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, dataSQL, append(append([]any{}, args...), limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
