package payment

import "errors"

var (
	// ErrOrderNotFound is returned when a payment order does not exist
	ErrOrderNotFound = errors.New("payment order not found")

	// ErrConflict is returned when a terminal order is asked to transition
	// again, for example cancelling an approved order
	ErrConflict = errors.New("payment order already in a terminal status")

	// ErrInvalidQuantity is returned when the credit quantity is not positive
	ErrInvalidQuantity = errors.New("credit quantity must be at least 1")

	ErrInternal = errors.New("internal error")
)
