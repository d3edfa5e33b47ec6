package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/buehnenwerk/stagesync/internal/models"
	"github.com/buehnenwerk/stagesync/internal/server/storage"
)

const eventColumns = `id, scope, client_id, client_mutation_id, dedupe_key,
       type, payload, occurred_at, server_seq, created_at`

// ListEventsSince returns events with serverSeq > afterSeq in ascending order,
// capped at limit, plus a flag whether more events remain.
// Чистое чтение: повторный вызов с тем же afterSeq безопасен и идемпотентен.
func (s *Storage) ListEventsSince(ctx context.Context, scope models.Scope, afterSeq int64, limit int) ([]*models.SyncEvent, bool, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM sync_events
		WHERE scope = ? AND server_seq > ?
		ORDER BY server_seq ASC
		LIMIT ?
	`

	// Запрашиваем на одну строку больше, чтобы узнать hasMore без COUNT
	rows, err := s.db.QueryContext(ctx, query, string(scope), afterSeq, limit+1)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query events since seq: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, false, err
	}

	hasMore := false
	if len(events) > limit {
		hasMore = true
		events = events[:limit]
	}

	return events, hasMore, nil
}

// CurrentSeq returns the scope's log watermark (0 for an empty log)
func (s *Storage) CurrentSeq(ctx context.Context, scope models.Scope) (int64, error) {
	return currentSeqQ(ctx, s.db, scope)
}

// currentSeqQ читает watermark партиции через произвольный queryer.
// Внутри push-транзакции следующее событие получит seq+1:
// нумерация строго возрастающая и без дыр.
func currentSeqQ(ctx context.Context, q queryer, scope models.Scope) (int64, error) {
	var seq int64
	query := `SELECT COALESCE(MAX(server_seq), 0) FROM sync_events WHERE scope = ?`

	if err := q.QueryRowContext(ctx, query, string(scope)).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to get current seq: %w", err)
	}

	return seq, nil
}

// FindMutation retrieves a ledger entry by clientMutationId
// Returns ErrMutationNotFound if the batch was never recorded
func (s *Storage) FindMutation(ctx context.Context, clientMutationID string) (*models.SyncMutation, error) {
	return findMutation(ctx, s.db, clientMutationID)
}

// queryer абстрагирует *sql.DB и *sql.Tx для запросов,
// выполняемых и снаружи, и внутри push-транзакции
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// findMutation читает запись леджера через произвольный queryer
func findMutation(ctx context.Context, q queryer, clientMutationID string) (*models.SyncMutation, error) {
	query := `
		SELECT client_mutation_id, client_id, scope, event_count,
		       first_server_seq, last_server_seq, acknowledged_seq, created_at
		FROM sync_mutations
		WHERE client_mutation_id = ?
	`

	m := &models.SyncMutation{}
	var scope string
	var createdAt int64

	err := q.QueryRowContext(ctx, query, clientMutationID).Scan(
		&m.ClientMutationID,
		&m.ClientID,
		&scope,
		&m.EventCount,
		&m.FirstServerSeq,
		&m.LastServerSeq,
		&m.AcknowledgedSeq,
		&createdAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrMutationNotFound
		}
		return nil, fmt.Errorf("failed to get mutation: %w", err)
	}

	m.Scope = models.Scope(scope)
	m.CreatedAt = unixToTime(createdAt)

	return m, nil
}

// listEventsByMutation возвращает события, добавленные в журнал данным батчем.
// Используется для восстановления результата при повторном push.
func listEventsByMutation(ctx context.Context, q queryer, clientMutationID string) ([]*models.SyncEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM sync_events
		WHERE client_mutation_id = ?
		ORDER BY server_seq ASC
	`

	rows, err := q.QueryContext(ctx, query, clientMutationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by mutation: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanEvents(rows)
}

// scanEvents is a helper function to scan multiple events from rows
func scanEvents(rows *sql.Rows) ([]*models.SyncEvent, error) {
	var events []*models.SyncEvent

	for rows.Next() {
		event := &models.SyncEvent{}
		var scope string
		var occurredAt, createdAt int64

		err := rows.Scan(
			&event.ID,
			&scope,
			&event.ClientID,
			&event.ClientMutationID,
			&event.DedupeKey,
			&event.Type,
			&event.Payload,
			&occurredAt,
			&event.ServerSeq,
			&createdAt,
		)

		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.Scope = models.Scope(scope)
		event.OccurredAt = unixToTime(occurredAt)
		event.CreatedAt = unixToTime(createdAt)

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return events, nil
}

func unixToTime(timestamp int64) time.Time {
	return time.Unix(timestamp, 0).UTC()
}
