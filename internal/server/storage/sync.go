package storage

import (
	"context"

	"github.com/buehnenwerk/stagesync/internal/models"
)

// PushBatch представляет батч клиентских событий, принятый push-эндпоинтом.
// События идут в порядке отправки клиента; ServerSeq у них ещё не присвоен.
type PushBatch struct {
	Scope              models.Scope
	ClientID           string
	ClientMutationID   string
	Events             []*models.SyncEvent
	LastKnownServerSeq int64
}

// SkipReasonDuplicateDedupeKey единственная причина пропуска события
const SkipReasonDuplicateDedupeKey = "duplicate-dedupe-key"

// SkippedEvent представляет событие батча, не попавшее в журнал
type SkippedEvent struct {
	ID        string
	DedupeKey string
	Reason    string
}

// PushOutcome представляет результат применения батча.
// Replayed=true означает, что clientMutationId уже был записан в леджер
// и возвращён сохранённый результат без повторного применения.
type PushOutcome struct {
	Mutation *models.SyncMutation
	Applied  []*models.SyncEvent
	Skipped  []SkippedEvent
	Replayed bool
}

// SyncStorage defines interface for the scoped append-only event log
// and the idempotency ledger behind the push/pull endpoints
type SyncStorage interface {
	// ApplyPush atomically applies a client batch: ledger short-circuit on a
	// known clientMutationId, per-event dedupe against the full scope history,
	// sequence assignment, projection update and ledger record — all in one
	// transaction. A mid-batch failure rolls back the whole batch.
	ApplyPush(ctx context.Context, batch *PushBatch) (*PushOutcome, error)

	// ListEventsSince returns events with serverSeq > afterSeq in ascending
	// serverSeq order, capped at limit, plus a flag whether more remain.
	// Pure read, no side effects.
	ListEventsSince(ctx context.Context, scope models.Scope, afterSeq int64, limit int) ([]*models.SyncEvent, bool, error)

	// CurrentSeq returns the scope's log watermark (0 for an empty log)
	CurrentSeq(ctx context.Context, scope models.Scope) (int64, error)

	// FindMutation retrieves a ledger entry by clientMutationId
	// Returns ErrMutationNotFound if the batch was never recorded
	FindMutation(ctx context.Context, clientMutationID string) (*models.SyncMutation, error)
}
