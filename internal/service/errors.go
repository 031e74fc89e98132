// Package service holds the flash-sale use cases: admission into the
// waiting room, queue status, promotion, and the reservation transaction.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull rejects an admission when the waiting room is at capacity.
	ErrQueueFull = errors.New("queue is full")
	// ErrNotEligible is matched by *NotEligibleError.
	ErrNotEligible = errors.New("token is not eligible to purchase")
	// ErrInsufficientStock means the product sold out for this request.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrResourceNotFound means the product id does not exist.
	ErrResourceNotFound = errors.New("product not found")
	// ErrInvalidQuantity rejects purchases of less than one unit.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrStoreUnavailable means the waiting room itself could not be reached.
	ErrStoreUnavailable = errors.New("admission store unavailable")
	// ErrInvalidInput covers empty session ids, tokens and zero product ids.
	ErrInvalidInput = errors.New("invalid input")

	// errBufferUnavailable marks a failed buffer publish.  It is absorbed by
	// the admission fallback and never returned to callers.
	errBufferUnavailable = errors.New("ingestion buffer unavailable")
)

// NotEligibleError reports a purchase attempt by a token that has not been
// promoted.  Position is the current waiting room position, or 0 when the
// token is no longer waiting.
type NotEligibleError struct {
	Position int64
	Expired  bool
}

func (e *NotEligibleError) Error() string {
	if e.Expired {
		return "token is not eligible to purchase: expired or unknown"
	}
	return fmt.Sprintf("token is not eligible to purchase: queue position %d", e.Position)
}

func (e *NotEligibleError) Is(target error) bool { return target == ErrNotEligible }
