package cli

import (
	"context"
	"fmt"

	"github.com/buehnenwerk/stagesync/internal/client/iocli"
	"github.com/buehnenwerk/stagesync/internal/client/storage"
	"github.com/buehnenwerk/stagesync/internal/client/sync"
)

// Cli связывает команды сканера с хранилищем и сервисом синхронизации
type Cli struct {
	io          iocli.IO
	queue       storage.QueueStorage
	projections storage.ProjectionStorage
	metadata    storage.MetadataStorage
	syncService sync.Service
}

func New(
	io iocli.IO,
	queue storage.QueueStorage,
	projections storage.ProjectionStorage,
	metadata storage.MetadataStorage,
	syncService sync.Service,
) *Cli {
	return &Cli{
		io:          io,
		queue:       queue,
		projections: projections,
		metadata:    metadata,
		syncService: syncService,
	}
}

// Run диспетчеризует команду сканера
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "checkin":
		return c.runCheckin(ctx, args)
	case "adjust":
		return c.runAdjust(ctx, args)
	case "sync":
		return c.runSync(ctx, args)
	case "status":
		return c.runStatus(ctx)
	case "bootstrap":
		return c.runBootstrap(ctx, args)
	default:
		c.PrintUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (c *Cli) PrintUsage() {
	c.io.Println("StageSync Scanner")
	c.io.Println()
	c.io.Println("Usage:")
	c.io.Println("  scanner [OPTIONS] COMMAND")
	c.io.Println()
	c.io.Println("Options:")
	c.io.Println("  --version            Show version information")
	c.io.Println("  --server URL         Server URL (default: http://localhost:8080)")
	c.io.Println("  --db PATH            Path to local database (default: stagesync-scanner.db)")
	c.io.Println()
	c.io.Println("Environment:")
	c.io.Println("  STAGESYNC_SERVER_URL  Server URL (overridden by --server)")
	c.io.Println("  STAGESYNC_TOKEN       Device token (prompted if not set)")
	c.io.Println("  STAGESYNC_DB_PATH     Path to local database")
	c.io.Println()
	c.io.Println("Commands:")
	c.io.Println("  checkin <code>               Check in a ticket by its printed code")
	c.io.Println("  adjust <itemId> <delta> [name]  Record an inventory quantity change")
	c.io.Println("  sync [scope]                 Push queued events and pull server changes")
	c.io.Println("  status                       Show queue and sync state")
	c.io.Println("  bootstrap [scope]            Import a fresh baseline snapshot")
	c.io.Println()
	c.io.Println("Scopes: inventory, tickets (default: both)")
	c.io.Println()
	c.io.Println("Examples:")
	c.io.Println("  scanner bootstrap")
	c.io.Println("  scanner checkin T-2026-0815-042")
	c.io.Println("  scanner adjust prop-sword-01 -1")
	c.io.Println("  scanner sync")
}
