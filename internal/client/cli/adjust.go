package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/buehnenwerk/stagesync/internal/client/storage"
	"github.com/buehnenwerk/stagesync/internal/models"
	"github.com/buehnenwerk/stagesync/pkg/api"
)

func (c *Cli) runAdjust(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("missing arguments. Usage: scanner adjust <itemId> <delta> [name]")
	}

	itemID := args[0]
	if itemID == "" {
		return fmt.Errorf("item id cannot be empty")
	}

	delta, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("delta must be an integer: %w", err)
	}
	if delta == 0 {
		return fmt.Errorf("delta cannot be zero")
	}

	var name string
	if len(args) > 2 {
		name = args[2]
	}

	item, err := c.projections.GetInventoryItem(ctx, itemID)
	if err != nil && !errors.Is(err, storage.ErrItemNotFound) {
		return fmt.Errorf("failed to look up item: %w", err)
	}

	payload := api.InventoryAdjustPayload{ItemID: itemID, Delta: delta}
	if item == nil {
		// Предмет ещё не известен серверу: имя поедет в событие,
		// чтобы сервер завёл его не только по идентификатору
		payload.ItemName = name
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal adjust payload: %w", err)
	}

	event := &models.SyncEvent{
		ID:         uuid.NewString(),
		Scope:      models.ScopeInventory,
		Type:       models.EventTypeInventoryAdjust,
		Payload:    raw,
		OccurredAt: time.Now().UTC(),
	}
	if err := c.queue.EnqueueEvent(ctx, models.ScopeInventory, event); err != nil {
		return fmt.Errorf("failed to enqueue adjustment: %w", err)
	}

	// Эффективное количество: подтверждённая база + вся очередь
	var base int64
	displayName := itemID
	if item != nil {
		base = item.Qty
		displayName = item.Name
	} else if name != "" {
		displayName = name
	}
	queued, err := c.queuedInventoryDelta(ctx, itemID)
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Printf("✓ OK: %s %+d\n", displayName, delta)
	c.io.Printf("  Effective qty: %d (confirmed %d, queued %+d)\n", base+queued, base, queued)

	return nil
}
