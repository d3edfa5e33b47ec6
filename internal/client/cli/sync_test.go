package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buehnenwerk/stagesync/internal/client/sync"
	"github.com/buehnenwerk/stagesync/internal/models"
)

func TestRunSync_BothScopesByDefault(t *testing.T) {
	cli, io, _, _, _, syncService := newTestCli()
	syncService.syncResult = &sync.SyncResult{PushedEvents: 3, PulledEvents: 5}

	err := cli.runSync(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t,
		[]models.Scope{models.ScopeInventory, models.ScopeTickets},
		syncService.syncedScopes)

	out := io.output()
	assert.Contains(t, out, "Pushed to server:   3 event(s)")
	assert.Contains(t, out, "Pulled from server: 5 event(s)")
	assert.Contains(t, out, "✓ Synchronization completed successfully!")
}

func TestRunSync_SingleScope(t *testing.T) {
	cli, _, _, _, _, syncService := newTestCli()

	err := cli.runSync(context.Background(), []string{"tickets"})
	require.NoError(t, err)
	assert.Equal(t, []models.Scope{models.ScopeTickets}, syncService.syncedScopes)
}

func TestRunSync_UnknownScope(t *testing.T) {
	cli, _, _, _, _, syncService := newTestCli()

	err := cli.runSync(context.Background(), []string{"costumes"})
	require.Error(t, err)
	assert.Empty(t, syncService.syncedScopes)
}

func TestRunSync_ReportsSkippedAndReplayed(t *testing.T) {
	cli, io, _, _, _, syncService := newTestCli()
	syncService.syncResult = &sync.SyncResult{SkippedEvents: 2, Replayed: true}

	err := cli.runSync(context.Background(), []string{"tickets"})
	require.NoError(t, err)

	out := io.output()
	assert.Contains(t, out, "Skipped duplicates: 2 event(s)")
	assert.Contains(t, out, "Server recognized a retried batch")
}

func TestRunSync_ServiceError(t *testing.T) {
	cli, _, _, _, _, syncService := newTestCli()
	syncService.syncErr = errors.New("connection refused")

	err := cli.runSync(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "synchronization of inventory failed")
}

func TestRunBootstrap(t *testing.T) {
	cli, io, _, _, _, syncService := newTestCli()
	syncService.bootstrapResult = &sync.BootstrapResult{ImportedRecords: 120, ServerSeq: 44}

	err := cli.runBootstrap(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t,
		[]models.Scope{models.ScopeInventory, models.ScopeTickets},
		syncService.bootstrapped)

	out := io.output()
	assert.Contains(t, out, "Imported:   120 record(s)")
	assert.Contains(t, out, "Server seq: 44")
	assert.Contains(t, out, "Queued events were kept")
}
