package storage

import (
	"context"

	"github.com/buehnenwerk/stagesync/internal/models"
)

// InventoryPage представляет страницу baseline-снимка инвентаря.
// ServerSeq — watermark журнала партиции на момент чтения страницы,
// прочитанный в том же снапшоте, что и строки.
type InventoryPage struct {
	Items     []*models.InventoryItem
	ServerSeq int64
	HasMore   bool
}

// TicketPage представляет страницу baseline-снимка билетов
type TicketPage struct {
	Tickets   []*models.Ticket
	ServerSeq int64
	HasMore   bool
}

// ProjectionStorage defines interface for the derived read models
// (inventory quantities, ticket statuses) kept consistent with the event log
type ProjectionStorage interface {
	// BaselineInventory returns a baseline page of inventory items with
	// id > cursor, ordered by id ascending, capped at limit, together with
	// the scope's log watermark from the same snapshot
	BaselineInventory(ctx context.Context, cursor string, limit int) (*InventoryPage, error)

	// BaselineTickets returns a baseline page of tickets with id > cursor,
	// ordered by id ascending, capped at limit, together with the scope's
	// log watermark from the same snapshot
	BaselineTickets(ctx context.Context, cursor string, limit int) (*TicketPage, error)

	// GetInventoryItem retrieves a single item by id
	// Returns ErrItemNotFound if the item doesn't exist
	GetInventoryItem(ctx context.Context, id string) (*models.InventoryItem, error)

	// GetTicketByCode retrieves a single ticket by its scan code
	// Returns ErrTicketNotFound if the ticket doesn't exist
	GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error)

	// UpsertTicket inserts or replaces a ticket row. Used by the box-office
	// import path, not by event application.
	UpsertTicket(ctx context.Context, ticket *models.Ticket) error

	// RebuildProjections replays the full event log into the projection
	// tables. Projections are derived state and must converge to the same
	// rows this produces.
	RebuildProjections(ctx context.Context) error
}
