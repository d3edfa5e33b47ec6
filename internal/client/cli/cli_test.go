package cli

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buehnenwerk/stagesync/internal/client/storage"
	"github.com/buehnenwerk/stagesync/internal/client/sync"
	"github.com/buehnenwerk/stagesync/internal/models"
)

// recorderIO захватывает весь вывод команд для проверок
type recorderIO struct {
	lines []string
}

func (r *recorderIO) Println(a ...any) {
	r.lines = append(r.lines, fmt.Sprintln(a...))
}

func (r *recorderIO) Printf(format string, a ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, a...))
}

func (r *recorderIO) ReadInput(string) (string, error)  { return "", nil }
func (r *recorderIO) ReadSecret(string) (string, error) { return "", nil }

func (r *recorderIO) Write(p []byte) (int, error) {
	r.lines = append(r.lines, string(p))
	return len(p), nil
}

func (r *recorderIO) output() string {
	return strings.Join(r.lines, "")
}

// fakeQueue минимальная очередь в памяти для тестов команд
type fakeQueue struct {
	events map[models.Scope][]*models.SyncEvent
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{events: make(map[models.Scope][]*models.SyncEvent)}
}

func (f *fakeQueue) EnqueueEvent(_ context.Context, scope models.Scope, event *models.SyncEvent) error {
	f.events[scope] = append(f.events[scope], event)
	return nil
}

func (f *fakeQueue) PendingEvents(_ context.Context, scope models.Scope) ([]*models.SyncEvent, error) {
	return f.events[scope], nil
}

func (f *fakeQueue) PendingCount(_ context.Context, scope models.Scope) (int, error) {
	return len(f.events[scope]), nil
}

func (f *fakeQueue) RemovePending(_ context.Context, scope models.Scope, eventIDs []string) error {
	remove := make(map[string]bool, len(eventIDs))
	for _, id := range eventIDs {
		remove[id] = true
	}
	kept := f.events[scope][:0]
	for _, e := range f.events[scope] {
		if !remove[e.ID] {
			kept = append(kept, e)
		}
	}
	f.events[scope] = kept
	return nil
}

func (f *fakeQueue) SaveInFlightBatch(_ context.Context, _ *storage.PendingBatch) error {
	return nil
}

func (f *fakeQueue) GetInFlightBatch(_ context.Context, _ models.Scope) (*storage.PendingBatch, error) {
	return nil, storage.ErrBatchNotFound
}

func (f *fakeQueue) ClearInFlightBatch(_ context.Context, _ models.Scope) error {
	return nil
}

// fakeProjections проекции в памяти, билеты по коду
type fakeProjections struct {
	items   map[string]*models.InventoryItem
	tickets map[string]*models.Ticket
}

func newFakeProjections() *fakeProjections {
	return &fakeProjections{
		items:   make(map[string]*models.InventoryItem),
		tickets: make(map[string]*models.Ticket),
	}
}

func (f *fakeProjections) SaveInventoryItem(_ context.Context, item *models.InventoryItem) error {
	f.items[item.ID] = item
	return nil
}

func (f *fakeProjections) GetInventoryItem(_ context.Context, id string) (*models.InventoryItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, storage.ErrItemNotFound
	}
	return item, nil
}

func (f *fakeProjections) ListInventory(_ context.Context) ([]*models.InventoryItem, error) {
	items := make([]*models.InventoryItem, 0, len(f.items))
	for _, item := range f.items {
		items = append(items, item)
	}
	return items, nil
}

func (f *fakeProjections) SaveTicket(_ context.Context, ticket *models.Ticket) error {
	f.tickets[ticket.Code] = ticket
	return nil
}

func (f *fakeProjections) GetTicketByCode(_ context.Context, code string) (*models.Ticket, error) {
	ticket, ok := f.tickets[code]
	if !ok {
		return nil, storage.ErrTicketNotFound
	}
	return ticket, nil
}

func (f *fakeProjections) ListTickets(_ context.Context) ([]*models.Ticket, error) {
	tickets := make([]*models.Ticket, 0, len(f.tickets))
	for _, t := range f.tickets {
		tickets = append(tickets, t)
	}
	return tickets, nil
}

func (f *fakeProjections) ResetScope(_ context.Context, _ models.Scope) error {
	return nil
}

// fakeMetadata метаданные в памяти
type fakeMetadata struct {
	clientID   string
	watermarks map[models.Scope]int64
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{
		clientID:   "scanner-test",
		watermarks: make(map[models.Scope]int64),
	}
}

func (f *fakeMetadata) ClientID(_ context.Context) (string, error) {
	return f.clientID, nil
}

func (f *fakeMetadata) SaveLastServerSeq(_ context.Context, scope models.Scope, seq int64) error {
	f.watermarks[scope] = seq
	return nil
}

func (f *fakeMetadata) GetLastServerSeq(_ context.Context, scope models.Scope) (int64, error) {
	return f.watermarks[scope], nil
}

// fakeSyncService записывает вызовы и возвращает подготовленные результаты
type fakeSyncService struct {
	syncResult      *sync.SyncResult
	syncErr         error
	syncedScopes    []models.Scope
	bootstrapResult *sync.BootstrapResult
	bootstrapped    []models.Scope
	pendingCount    int
}

func (f *fakeSyncService) Sync(_ context.Context, scope models.Scope) (*sync.SyncResult, error) {
	f.syncedScopes = append(f.syncedScopes, scope)
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	if f.syncResult == nil {
		return &sync.SyncResult{}, nil
	}
	return f.syncResult, nil
}

func (f *fakeSyncService) Bootstrap(_ context.Context, scope models.Scope) (*sync.BootstrapResult, error) {
	f.bootstrapped = append(f.bootstrapped, scope)
	if f.bootstrapResult == nil {
		return &sync.BootstrapResult{}, nil
	}
	return f.bootstrapResult, nil
}

func (f *fakeSyncService) GetPendingSyncCount(_ context.Context, _ models.Scope) (int, error) {
	return f.pendingCount, nil
}

func newTestCli() (*Cli, *recorderIO, *fakeQueue, *fakeProjections, *fakeMetadata, *fakeSyncService) {
	io := &recorderIO{}
	queue := newFakeQueue()
	projections := newFakeProjections()
	metadata := newFakeMetadata()
	syncService := &fakeSyncService{}
	return New(io, queue, projections, metadata, syncService), io, queue, projections, metadata, syncService
}

func TestRun_UnknownCommand(t *testing.T) {
	cli, io, _, _, _, _ := newTestCli()

	err := cli.Run(context.Background(), "selfdestruct", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
	assert.Contains(t, io.output(), "Usage:")
}

func TestRun_DispatchesCommands(t *testing.T) {
	cli, _, _, _, _, syncService := newTestCli()

	err := cli.Run(context.Background(), "sync", []string{"inventory"})
	require.NoError(t, err)
	assert.Equal(t, []models.Scope{models.ScopeInventory}, syncService.syncedScopes)
}

func TestRunStatus(t *testing.T) {
	cli, io, queue, projections, metadata, _ := newTestCli()

	metadata.watermarks[models.ScopeTickets] = 57
	projections.items["prop-1"] = &models.InventoryItem{ID: "prop-1"}
	projections.tickets["T-2026-0901-001"] = &models.Ticket{Code: "T-2026-0901-001"}

	ev := &models.SyncEvent{ID: "ev-1", Type: models.EventTypeTicketCheckin, Payload: []byte(`{}`)}
	require.NoError(t, queue.EnqueueEvent(context.Background(), models.ScopeTickets, ev))

	err := cli.Run(context.Background(), "status", nil)
	require.NoError(t, err)

	out := io.output()
	assert.Contains(t, out, "Client ID: scanner-test")
	assert.Contains(t, out, "Last server seq: 57")
	assert.Contains(t, out, "never synced")
	assert.Contains(t, out, "1 inventory item(s), 1 ticket(s)")
}
