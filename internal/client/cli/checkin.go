package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/buehnenwerk/stagesync/internal/client/storage"
	"github.com/buehnenwerk/stagesync/internal/models"
	"github.com/buehnenwerk/stagesync/internal/validation"
	"github.com/buehnenwerk/stagesync/pkg/api"
)

func (c *Cli) runCheckin(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing ticket code. Usage: scanner checkin <code>")
	}
	code := args[0]

	if err := validation.ValidateTicketCode(code); err != nil {
		return fmt.Errorf("invalid ticket code: %w", err)
	}

	ticket, err := c.projections.GetTicketByCode(ctx, code)
	if err != nil && !errors.Is(err, storage.ErrTicketNotFound) {
		return fmt.Errorf("failed to look up ticket: %w", err)
	}

	overlay, err := c.ticketOverlay(ctx, code)
	if err != nil {
		return err
	}

	// Недействительный билет не пускаем независимо от того,
	// подтверждена ли отметка сервером
	if overlay.Invalidate || (ticket != nil && ticket.Status == models.TicketStatusInvalid) {
		c.io.Println()
		c.io.Printf("✗ DENIED: ticket %s is invalid\n", code)
		return fmt.Errorf("ticket %s is invalid", code)
	}

	// Повторный скан того же билета: событие не ставим в очередь,
	// dedupe-ключ на сервере всё равно отбросил бы дубликат
	alreadyIn := overlay.Checkin ||
		(ticket != nil && ticket.Status == models.TicketStatusCheckedIn) ||
		(ticket != nil && ticket.Status == models.TicketStatusPending)
	if alreadyIn {
		c.io.Println()
		c.io.Printf("! ALREADY CHECKED IN: ticket %s\n", code)
		if ticket != nil && ticket.HolderName != "" {
			c.io.Printf("  Holder: %s\n", ticket.HolderName)
		}
		return nil
	}

	payload := api.TicketCheckinPayload{Code: code}
	if ticket != nil {
		payload.TicketID = ticket.ID
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal checkin payload: %w", err)
	}

	event := &models.SyncEvent{
		ID:         uuid.NewString(),
		Scope:      models.ScopeTickets,
		Type:       models.EventTypeTicketCheckin,
		DedupeKey:  "checkin:" + code,
		Payload:    raw,
		OccurredAt: time.Now().UTC(),
	}
	if err := c.queue.EnqueueEvent(ctx, models.ScopeTickets, event); err != nil {
		return fmt.Errorf("failed to enqueue checkin: %w", err)
	}

	c.io.Println()
	if ticket == nil {
		c.io.Printf("✓ OK (offline): ticket %s not in local snapshot, check-in queued\n", code)
	} else {
		c.io.Printf("✓ OK: ticket %s checked in\n", code)
		if ticket.HolderName != "" {
			c.io.Printf("  Holder: %s\n", ticket.HolderName)
		}
	}

	count, err := c.queue.PendingCount(ctx, models.ScopeTickets)
	if err == nil {
		c.io.Printf("  Pending sync: %d event(s)\n", count)
	}

	return nil
}
