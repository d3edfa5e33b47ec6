package storage

import (
	"context"

	"github.com/buehnenwerk/stagesync/internal/models"
)

// ProjectionStorage defines interface for the client-side base projections.
// Базовые проекции отражают ПОДТВЕРЖДЕННОЕ состояние сервера: их меняют
// только события из pull и baseline-импорт, но не локальные операции.
// Локальные несинхронизированные события лежат в очереди поверх базы.
type ProjectionStorage interface {
	// SaveInventoryItem stores or updates an inventory item
	SaveInventoryItem(ctx context.Context, item *models.InventoryItem) error

	// GetInventoryItem retrieves an inventory item by ID
	// Returns ErrItemNotFound if item doesn't exist
	GetInventoryItem(ctx context.Context, id string) (*models.InventoryItem, error)

	// ListInventory returns all inventory items
	ListInventory(ctx context.Context) ([]*models.InventoryItem, error)

	// SaveTicket stores or updates a ticket
	SaveTicket(ctx context.Context, ticket *models.Ticket) error

	// GetTicketByCode retrieves a ticket by its printed code
	// Returns ErrTicketNotFound if ticket doesn't exist
	GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error)

	// ListTickets returns all tickets
	ListTickets(ctx context.Context) ([]*models.Ticket, error)

	// ResetScope removes the whole projection for scope.
	// Used before importing a fresh baseline snapshot.
	ResetScope(ctx context.Context, scope models.Scope) error
}
