package storage

import "errors"

// Common client storage errors
var (
	// ErrItemNotFound indicates that inventory item was not found
	ErrItemNotFound = errors.New("inventory item not found")

	// ErrTicketNotFound indicates that ticket was not found
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrBatchNotFound indicates that no in-flight batch is stored
	ErrBatchNotFound = errors.New("in-flight batch not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
