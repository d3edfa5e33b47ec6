package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/buehnenwerk/stagesync/internal/models"
	"github.com/buehnenwerk/stagesync/pkg/api"
)

// scopesFromArgs возвращает партиции для команды.
// Без аргумента команда работает с обеими партициями.
func scopesFromArgs(args []string) ([]models.Scope, error) {
	if len(args) == 0 {
		return []models.Scope{models.ScopeInventory, models.ScopeTickets}, nil
	}
	scope, err := models.ParseScope(args[0])
	if err != nil {
		return nil, err
	}
	return []models.Scope{scope}, nil
}

// queuedTicketOverlay описывает локальные несинхронизированные события билета
type queuedTicketOverlay struct {
	Checkin    bool
	Invalidate bool
}

// ticketOverlay собирает из очереди ещё не отправленные события билета.
// Базовая проекция отражает только подтверждённое сервером состояние,
// поэтому для ответа "можно ли пускать" очередь обязана учитываться.
func (c *Cli) ticketOverlay(ctx context.Context, code string) (queuedTicketOverlay, error) {
	var overlay queuedTicketOverlay

	pending, err := c.queue.PendingEvents(ctx, models.ScopeTickets)
	if err != nil {
		return overlay, fmt.Errorf("failed to read pending events: %w", err)
	}

	for _, event := range pending {
		var payload api.TicketCheckinPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			continue
		}
		if payload.Code != code {
			continue
		}
		switch event.Type {
		case models.EventTypeTicketCheckin:
			overlay.Checkin = true
		case models.EventTypeTicketInvalidate:
			overlay.Invalidate = true
		}
	}

	return overlay, nil
}

// queuedInventoryDelta суммирует ещё не отправленные изменения количества
func (c *Cli) queuedInventoryDelta(ctx context.Context, itemID string) (int64, error) {
	pending, err := c.queue.PendingEvents(ctx, models.ScopeInventory)
	if err != nil {
		return 0, fmt.Errorf("failed to read pending events: %w", err)
	}

	var total int64
	for _, event := range pending {
		if event.Type != models.EventTypeInventoryAdjust {
			continue
		}
		var payload api.InventoryAdjustPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			continue
		}
		if payload.ItemID == itemID {
			total += payload.Delta
		}
	}

	return total, nil
}
