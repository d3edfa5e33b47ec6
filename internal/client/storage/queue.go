package storage

import (
	"context"

	"github.com/buehnenwerk/stagesync/internal/models"
)

// PendingBatch представляет зафиксированный перед отправкой батч.
// Батч сохраняется до отправки и переживает падение процесса: повторная
// отправка идет с тем же ClientMutationID, и сервер распознает ретрай.
type PendingBatch struct {
	Scope              models.Scope        `json:"scope"`
	ClientMutationID   string              `json:"clientMutationId"`
	Events             []*models.SyncEvent `json:"events"`
	LastKnownServerSeq int64               `json:"lastKnownServerSeq"`
}

// QueueStorage defines interface for the outbound event queue on client
type QueueStorage interface {
	// EnqueueEvent appends a locally produced event to the queue.
	// Queue order is insertion order within a scope.
	EnqueueEvent(ctx context.Context, scope models.Scope, event *models.SyncEvent) error

	// PendingEvents returns queued events for scope in insertion order
	PendingEvents(ctx context.Context, scope models.Scope) ([]*models.SyncEvent, error)

	// PendingCount returns the number of queued events for scope
	PendingCount(ctx context.Context, scope models.Scope) (int, error)

	// RemovePending removes queued events by their IDs after a successful push
	RemovePending(ctx context.Context, scope models.Scope, eventIDs []string) error

	// SaveInFlightBatch persists the batch snapshot before sending it
	SaveInFlightBatch(ctx context.Context, batch *PendingBatch) error

	// GetInFlightBatch returns the stored batch for scope
	// Returns ErrBatchNotFound if no batch is in flight
	GetInFlightBatch(ctx context.Context, scope models.Scope) (*PendingBatch, error)

	// ClearInFlightBatch removes the stored batch after the server confirmed it
	ClearInFlightBatch(ctx context.Context, scope models.Scope) error
}
