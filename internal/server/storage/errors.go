package storage

import "errors"

// Common storage errors
var (
	// ErrMutationNotFound indicates that no ledger entry exists for a clientMutationId
	ErrMutationNotFound = errors.New("mutation not found")

	// ErrItemNotFound indicates that inventory item was not found
	ErrItemNotFound = errors.New("inventory item not found")

	// ErrTicketNotFound indicates that ticket was not found
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrUnknownEventType indicates an event type the projection layer cannot apply
	ErrUnknownEventType = errors.New("unknown event type")
)
