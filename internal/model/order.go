package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus enumerates the lifecycle of a purchase order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Order records a completed flash-sale purchase.  It is written in the same
// transaction that decrements the product stock and is immutable once
// COMPLETED except for an explicit cancel.
//
// Fields:
//
//	ID         – primary key identifier.
//	SessionID  – buyer session that owned the queue token.
//	ProductID  – purchased product.
//	Quantity   – units bought.
//	TotalPrice – unit price at purchase time multiplied by quantity.
//	Status     – PENDING, COMPLETED or CANCELLED.
//	OrderedAt  – creation timestamp (UTC).
type Order struct {
	ID         uint64          `json:"id"`
	SessionID  string          `json:"session_id"`
	ProductID  uint64          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     OrderStatus     `json:"status"`
	OrderedAt  time.Time       `json:"ordered_at"`
}
