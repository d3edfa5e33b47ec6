package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runSync(ctx context.Context, args []string) error {
	scopes, err := scopesFromArgs(args)
	if err != nil {
		return err
	}

	c.io.Println("=== Synchronization ===")

	for _, scope := range scopes {
		c.io.Println()
		c.io.Printf("Scope %s:\n", scope)

		result, err := c.syncService.Sync(ctx, scope)
		if err != nil {
			return fmt.Errorf("synchronization of %s failed: %w", scope, err)
		}

		c.io.Printf("  Pushed to server:   %d event(s)\n", result.PushedEvents)
		if result.SkippedEvents > 0 {
			c.io.Printf("  Skipped duplicates: %d event(s)\n", result.SkippedEvents)
		}
		if result.Replayed {
			c.io.Println("  Server recognized a retried batch")
		}
		c.io.Printf("  Pulled from server: %d event(s)\n", result.PulledEvents)
	}

	c.io.Println()
	c.io.Println("✓ Synchronization completed successfully!")

	return nil
}
