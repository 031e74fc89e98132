// Package repository defines the MySQL data access layer and the sentinel
// errors it shares with the service layer.  These values allow higher
// layers to distinguish between failure scenarios without inspecting
// driver errors: ErrInsufficientStock signals that a guarded stock
// decrement matched no row, while ErrConflict signals that an operation
// cannot proceed because of the current state of the row (for example
// cancelling an order that is already cancelled).
package repository

import "errors"

// ErrInsufficientStock is returned when a product does not have enough
// units left for the requested quantity.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state.  Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")
