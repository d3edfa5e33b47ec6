package cli

import (
	"context"
	"fmt"

	"github.com/buehnenwerk/stagesync/internal/models"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Scanner Status ===")
	c.io.Println()

	clientID, err := c.metadata.ClientID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get client id: %w", err)
	}
	c.io.Printf("Client ID: %s\n", clientID)

	for _, scope := range []models.Scope{models.ScopeInventory, models.ScopeTickets} {
		c.io.Println()
		c.io.Printf("Scope %s:\n", scope)

		seq, err := c.metadata.GetLastServerSeq(ctx, scope)
		if err != nil {
			return fmt.Errorf("failed to get watermark for %s: %w", scope, err)
		}
		if seq == 0 {
			c.io.Println("  Last server seq: — (never synced, run 'scanner bootstrap')")
		} else {
			c.io.Printf("  Last server seq: %d\n", seq)
		}

		count, err := c.queue.PendingCount(ctx, scope)
		if err != nil {
			return fmt.Errorf("failed to count pending events for %s: %w", scope, err)
		}
		c.io.Printf("  Pending sync:    %d event(s)\n", count)
	}

	items, err := c.projections.ListInventory(ctx)
	if err != nil {
		return fmt.Errorf("failed to list inventory: %w", err)
	}
	tickets, err := c.projections.ListTickets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tickets: %w", err)
	}

	c.io.Println()
	c.io.Printf("Local snapshot: %d inventory item(s), %d ticket(s)\n", len(items), len(tickets))

	return nil
}
