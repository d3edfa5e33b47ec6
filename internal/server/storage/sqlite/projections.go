package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/buehnenwerk/stagesync/internal/models"
	"github.com/buehnenwerk/stagesync/internal/server/storage"
)

// BaselineInventory returns a baseline page of inventory items together with
// the inventory scope's log watermark.
// Страница и watermark читаются в одной read-транзакции: клиент, применивший
// снимок и догнавший журнал с этого watermark, получает то же состояние,
// что и прямое чтение проекции.
func (s *Storage) BaselineInventory(ctx context.Context, cursor string, limit int) (page *storage.InventoryPage, err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin baseline read: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		SELECT id, name, qty, updated_at
		FROM inventory_items
		WHERE id > ?
		ORDER BY id ASC
		LIMIT ?
	`

	rows, err := tx.QueryContext(ctx, query, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory page: %w", err)
	}

	var items []*models.InventoryItem
	for rows.Next() {
		item := &models.InventoryItem{}
		var updatedAt int64

		if err = rows.Scan(&item.ID, &item.Name, &item.Qty, &updatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan inventory item: %w", err)
		}

		item.UpdatedAt = unixToTime(updatedAt)
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	_ = rows.Close()

	seq, err := currentSeqQ(ctx, tx, models.ScopeInventory)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit baseline read: %w", err)
	}

	page = &storage.InventoryPage{Items: items, ServerSeq: seq}
	if len(page.Items) > limit {
		page.HasMore = true
		page.Items = page.Items[:limit]
	}

	return page, nil
}

// BaselineTickets returns a baseline page of tickets together with
// the tickets scope's log watermark
func (s *Storage) BaselineTickets(ctx context.Context, cursor string, limit int) (page *storage.TicketPage, err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin baseline read: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		SELECT id, code, event_id, holder_name, status, updated_at
		FROM tickets
		WHERE id > ?
		ORDER BY id ASC
		LIMIT ?
	`

	rows, err := tx.QueryContext(ctx, query, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticket page: %w", err)
	}

	var tickets []*models.Ticket
	for rows.Next() {
		var ticket *models.Ticket
		ticket, err = scanTicket(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err = rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	_ = rows.Close()

	seq, err := currentSeqQ(ctx, tx, models.ScopeTickets)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit baseline read: %w", err)
	}

	page = &storage.TicketPage{Tickets: tickets, ServerSeq: seq}
	if len(page.Tickets) > limit {
		page.HasMore = true
		page.Tickets = page.Tickets[:limit]
	}

	return page, nil
}

// GetInventoryItem retrieves a single item by id
// Returns ErrItemNotFound if the item doesn't exist
func (s *Storage) GetInventoryItem(ctx context.Context, id string) (*models.InventoryItem, error) {
	query := `SELECT id, name, qty, updated_at FROM inventory_items WHERE id = ?`

	item := &models.InventoryItem{}
	var updatedAt int64

	err := s.db.QueryRowContext(ctx, query, id).Scan(&item.ID, &item.Name, &item.Qty, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get inventory item: %w", err)
	}

	item.UpdatedAt = unixToTime(updatedAt)

	return item, nil
}

// GetTicketByCode retrieves a single ticket by its scan code
// Returns ErrTicketNotFound if the ticket doesn't exist
func (s *Storage) GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	query := `SELECT id, code, event_id, holder_name, status, updated_at FROM tickets WHERE code = ?`

	row := s.db.QueryRowContext(ctx, query, code)

	ticket := &models.Ticket{}
	var updatedAt int64

	err := row.Scan(&ticket.ID, &ticket.Code, &ticket.EventID, &ticket.HolderName, &ticket.Status, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	ticket.UpdatedAt = unixToTime(updatedAt)

	return ticket, nil
}

// UpsertTicket inserts or replaces a ticket row.
// Путь импорта из кассы: проекция засевается напрямую, мимо журнала.
// Статус заглушки pending при импорте становится checked_in:
// билет уже отсканирован, импорт лишь дополняет его данными.
func (s *Storage) UpsertTicket(ctx context.Context, ticket *models.Ticket) error {
	existing, err := s.GetTicketByCode(ctx, ticket.Code)
	if err != nil && !errors.Is(err, storage.ErrTicketNotFound) {
		return err
	}

	status := ticket.Status
	if existing != nil {
		switch existing.Status {
		case models.TicketStatusPending:
			status = models.TicketStatusCheckedIn
		case models.TicketStatusCheckedIn, models.TicketStatusInvalid:
			status = existing.Status
		}
	}

	query := `
		INSERT INTO tickets (id, code, event_id, holder_name, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			event_id = excluded.event_id,
			holder_name = excluded.holder_name,
			status = excluded.status,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		ticket.ID,
		ticket.Code,
		ticket.EventID,
		ticket.HolderName,
		status,
		ticket.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert ticket: %w", err)
	}

	return nil
}

// RebuildProjections replays the full event log into the projection tables.
// Проекции — производное состояние: результат обязан совпадать со строками,
// накопленными при обычном применении событий.
func (s *Storage) RebuildProjections(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rebuild transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Инвентарь целиком производен от журнала
	if _, err = tx.ExecContext(ctx, "DELETE FROM inventory_items"); err != nil {
		return fmt.Errorf("failed to clear inventory items: %w", err)
	}

	// Строки-заглушки (созданные применением событий) удаляются и будут
	// воссозданы; импортированные из кассы строки всегда несут event_id,
	// их достаточно вернуть в unused
	if _, err = tx.ExecContext(ctx,
		"DELETE FROM tickets WHERE event_id = '' AND holder_name = ''"); err != nil {
		return fmt.Errorf("failed to clear stub tickets: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		"UPDATE tickets SET status = ?", models.TicketStatusUnused); err != nil {
		return fmt.Errorf("failed to reset ticket statuses: %w", err)
	}

	query := `SELECT ` + eventColumns + ` FROM sync_events ORDER BY scope ASC, server_seq ASC`

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query full log: %w", err)
	}

	events, err := scanEvents(rows)
	_ = rows.Close()
	if err != nil {
		return err
	}

	for _, event := range events {
		if err = applyEventToProjectionTx(ctx, tx, event); err != nil {
			return fmt.Errorf("failed to replay event %s: %w", event.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rebuild: %w", err)
	}

	return nil
}

func scanTicket(rows *sql.Rows) (*models.Ticket, error) {
	ticket := &models.Ticket{}
	var updatedAt int64

	err := rows.Scan(&ticket.ID, &ticket.Code, &ticket.EventID, &ticket.HolderName, &ticket.Status, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan ticket: %w", err)
	}

	ticket.UpdatedAt = unixToTime(updatedAt)

	return ticket, nil
}
