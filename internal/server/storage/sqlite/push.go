package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/buehnenwerk/stagesync/internal/models"
	"github.com/buehnenwerk/stagesync/internal/server/storage"
)

// ApplyPush атомарно применяет батч клиентских событий.
// Весь алгоритм выполняется в одной транзакции:
//  1. Если clientMutationId уже в леджере — возвращается сохранённый результат,
//     новые события не добавляются (идемпотентность повтора).
//  2. Иначе события применяются по порядку: совпадение dedupeKey с любым
//     уже записанным событием партиции даёт skip, остальные получают
//     очередной server_seq и обновляют проекцию.
//  3. Записывается леджер с количеством и диапазоном seq добавленных событий.
//
// Любая ошибка персистентности откатывает батч целиком, так что повторный
// push с тем же clientMutationId увидит чистое состояние.
func (s *Storage) ApplyPush(ctx context.Context, batch *storage.PushBatch) (*storage.PushOutcome, error) {
	outcome, err := s.applyPushTx(ctx, batch)
	if err == nil {
		return outcome, nil
	}

	// Уникальное нарушение на леджере означает по-настоящему конкурентный
	// повтор того же батча: транзакция откатилась, возвращаем записанный
	// другим запросом результат.
	if isUniqueViolation(err, "sync_mutations") {
		return s.replayOutcome(ctx, s.db, batch)
	}

	return nil, err
}

func (s *Storage) applyPushTx(ctx context.Context, batch *storage.PushBatch) (outcome *storage.PushOutcome, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin push transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Проверка леджера до каких-либо изменений
	if _, ferr := findMutation(ctx, tx, batch.ClientMutationID); ferr == nil {
		outcome, err = s.replayOutcome(ctx, tx, batch)
		if err != nil {
			return nil, err
		}
		if cerr := tx.Commit(); cerr != nil {
			return nil, fmt.Errorf("failed to commit replay read: %w", cerr)
		}
		return outcome, nil
	} else if ferr != storage.ErrMutationNotFound {
		return nil, ferr
	}

	seq, err := currentSeqQ(ctx, tx, batch.Scope)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	applied := make([]*models.SyncEvent, 0, len(batch.Events))
	skipped := make([]storage.SkippedEvent, 0)

	for _, event := range batch.Events {
		// dedupe-проверка идёт по всей истории партиции, включая события,
		// добавленные ранее в этом же батче
		if event.DedupeKey != "" {
			exists, derr := dedupeKeyExistsTx(ctx, tx, batch.Scope, event.DedupeKey)
			if derr != nil {
				return nil, derr
			}
			if exists {
				skipped = append(skipped, storage.SkippedEvent{
					ID:        event.ID,
					DedupeKey: event.DedupeKey,
					Reason:    storage.SkipReasonDuplicateDedupeKey,
				})
				continue
			}
		}

		seq++
		stored := &models.SyncEvent{
			ID:               event.ID,
			Scope:            batch.Scope,
			ClientID:         batch.ClientID,
			ClientMutationID: batch.ClientMutationID,
			DedupeKey:        event.DedupeKey,
			Type:             event.Type,
			Payload:          event.Payload,
			OccurredAt:       event.OccurredAt,
			ServerSeq:        seq,
			CreatedAt:        now,
		}

		if ierr := insertEventTx(ctx, tx, stored); ierr != nil {
			// Индекс (scope, dedupe_key) может сработать, даже когда
			// предварительная проверка ключа не нашла — конкурентная запись
			// между проверкой и вставкой. Исход тот же, что при проверке:
			// событие пропускается как дубликат. ABORT откатывает только
			// неудавшийся INSERT, транзакция продолжается.
			if event.DedupeKey != "" && isDedupeKeyViolation(ierr) {
				seq--
				skipped = append(skipped, storage.SkippedEvent{
					ID:        event.ID,
					DedupeKey: event.DedupeKey,
					Reason:    storage.SkipReasonDuplicateDedupeKey,
				})
				continue
			}
			return nil, ierr
		}

		// Проекция обновляется в той же транзакции, что и журнал:
		// они никогда не расходятся
		if perr := applyEventToProjectionTx(ctx, tx, stored); perr != nil {
			return nil, perr
		}

		applied = append(applied, stored)
	}

	mutation := &models.SyncMutation{
		ClientMutationID: batch.ClientMutationID,
		ClientID:         batch.ClientID,
		Scope:            batch.Scope,
		EventCount:       len(applied),
		AcknowledgedSeq:  batch.LastKnownServerSeq,
		CreatedAt:        now,
	}
	if len(applied) > 0 {
		mutation.FirstServerSeq = applied[0].ServerSeq
		mutation.LastServerSeq = applied[len(applied)-1].ServerSeq
		mutation.AcknowledgedSeq = mutation.LastServerSeq
	}

	if err = insertMutationTx(ctx, tx, mutation); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit push transaction: %w", err)
	}

	return &storage.PushOutcome{
		Mutation: mutation,
		Applied:  applied,
		Skipped:  skipped,
	}, nil
}

// replayOutcome восстанавливает результат ранее применённого батча: добавленные
// события читаются из журнала по clientMutationId, пропущенные вычисляются как
// разница с телом повторного запроса (причина пропуска всегда одна).
func (s *Storage) replayOutcome(ctx context.Context, q queryer, batch *storage.PushBatch) (*storage.PushOutcome, error) {
	mutation, err := findMutation(ctx, q, batch.ClientMutationID)
	if err != nil {
		return nil, err
	}

	applied, err := listEventsByMutation(ctx, q, batch.ClientMutationID)
	if err != nil {
		return nil, err
	}

	appliedIDs := make(map[string]struct{}, len(applied))
	for _, event := range applied {
		appliedIDs[event.ID] = struct{}{}
	}

	skipped := make([]storage.SkippedEvent, 0)
	for _, event := range batch.Events {
		if _, ok := appliedIDs[event.ID]; ok {
			continue
		}
		skipped = append(skipped, storage.SkippedEvent{
			ID:        event.ID,
			DedupeKey: event.DedupeKey,
			Reason:    storage.SkipReasonDuplicateDedupeKey,
		})
	}

	return &storage.PushOutcome{
		Mutation: mutation,
		Applied:  applied,
		Skipped:  skipped,
		Replayed: true,
	}, nil
}

func dedupeKeyExistsTx(ctx context.Context, tx *sql.Tx, scope models.Scope, key string) (bool, error) {
	var one int
	query := `SELECT 1 FROM sync_events WHERE scope = ? AND dedupe_key = ? LIMIT 1`

	err := tx.QueryRowContext(ctx, query, string(scope), key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check dedupe key: %w", err)
	}

	return true, nil
}

func insertEventTx(ctx context.Context, tx *sql.Tx, event *models.SyncEvent) error {
	query := `
		INSERT INTO sync_events (
			id, scope, client_id, client_mutation_id, dedupe_key,
			type, payload, occurred_at, server_seq, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.ExecContext(ctx, query,
		event.ID,
		string(event.Scope),
		event.ClientID,
		event.ClientMutationID,
		event.DedupeKey,
		event.Type,
		event.Payload,
		event.OccurredAt.Unix(),
		event.ServerSeq,
		event.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", event.ID, err)
	}

	return nil
}

func insertMutationTx(ctx context.Context, tx *sql.Tx, m *models.SyncMutation) error {
	query := `
		INSERT INTO sync_mutations (
			client_mutation_id, client_id, scope, event_count,
			first_server_seq, last_server_seq, acknowledged_seq, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.ExecContext(ctx, query,
		m.ClientMutationID,
		m.ClientID,
		string(m.Scope),
		m.EventCount,
		m.FirstServerSeq,
		m.LastServerSeq,
		m.AcknowledgedSeq,
		m.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert mutation %s: %w", m.ClientMutationID, err)
	}

	return nil
}

// applyEventToProjectionTx применяет payload события к проекции.
// Вызывается только для событий, реально попавших в журнал.
func applyEventToProjectionTx(ctx context.Context, tx *sql.Tx, event *models.SyncEvent) error {
	switch event.Type {
	case models.EventTypeInventoryAdjust:
		return applyInventoryAdjustTx(ctx, tx, event)
	case models.EventTypeTicketCheckin:
		return applyTicketStatusTx(ctx, tx, event, models.TicketStatusCheckedIn)
	case models.EventTypeTicketInvalidate:
		return applyTicketStatusTx(ctx, tx, event, models.TicketStatusInvalid)
	}
	return fmt.Errorf("%w: %s", storage.ErrUnknownEventType, event.Type)
}

type inventoryAdjustPayload struct {
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
	Delta    int64  `json:"delta"`
}

func applyInventoryAdjustTx(ctx context.Context, tx *sql.Tx, event *models.SyncEvent) error {
	var payload inventoryAdjustPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode inventory.adjust payload: %w", err)
	}

	now := event.CreatedAt.Unix()

	result, err := tx.ExecContext(ctx,
		`UPDATE inventory_items SET qty = qty + ?, updated_at = ? WHERE id = ?`,
		payload.Delta, now, payload.ItemID,
	)
	if err != nil {
		return fmt.Errorf("failed to adjust inventory qty: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Сканер может узнать о предмете раньше сервера — создаём его с qty = delta
	name := payload.ItemName
	if name == "" {
		name = payload.ItemID
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO inventory_items (id, name, qty, updated_at) VALUES (?, ?, ?, ?)`,
		payload.ItemID, name, payload.Delta, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create inventory item: %w", err)
	}

	return nil
}

type ticketPayload struct {
	Code     string `json:"code"`
	TicketID string `json:"ticketId"`
}

func applyTicketStatusTx(ctx context.Context, tx *sql.Tx, event *models.SyncEvent, status string) error {
	var payload ticketPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode ticket payload: %w", err)
	}

	now := event.CreatedAt.Unix()

	result, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status = ?, updated_at = ? WHERE code = ?`,
		status, now, payload.Code,
	)
	if err != nil {
		return fmt.Errorf("failed to update ticket status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Билет отсканирован до импорта из кассы: создаём строку-заглушку.
	// Check-in даёт статус pending до подтверждения импортом, invalidate
	// фиксируется сразу.
	if status == models.TicketStatusCheckedIn {
		status = models.TicketStatusPending
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tickets (id, code, status, updated_at) VALUES (?, ?, ?, ?)`,
		pendingTicketID(payload), payload.Code, status, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create pending ticket: %w", err)
	}

	return nil
}

// pendingTicketID выбирает идентификатор для строки-заглушки.
// Детерминированный UUIDv5 от кода гарантирует, что повторное применение
// журнала (RebuildProjections) даст те же строки.
func pendingTicketID(payload ticketPayload) string {
	if payload.TicketID != "" {
		return payload.TicketID
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("ticket:"+payload.Code)).String()
}

// isUniqueViolation распознаёт нарушение UNIQUE-ограничения на указанной таблице
func isUniqueViolation(err error, table string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, table)
}

// isDedupeKeyViolation выделяет срабатывание именно индекса
// (scope, dedupe_key), а не первичного ключа или server_seq
func isDedupeKeyViolation(err error) bool {
	return isUniqueViolation(err, "sync_events") && strings.Contains(err.Error(), "dedupe_key")
}
