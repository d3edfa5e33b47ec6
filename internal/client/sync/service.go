package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	httpClient "github.com/buehnenwerk/stagesync/internal/client/api"
	"github.com/buehnenwerk/stagesync/internal/client/storage"
	"github.com/buehnenwerk/stagesync/internal/models"
	"github.com/buehnenwerk/stagesync/pkg/api"
)

// pageLimit размер страницы pull и baseline-запросов
const pageLimit = 100

// Service определяет интерфейс для sync.Service
type Service interface {
	// Sync выполняет полный цикл синхронизации партиции:
	// сначала отправляет локальную очередь, затем забирает события сервера
	Sync(ctx context.Context, scope models.Scope) (*SyncResult, error)

	// Bootstrap импортирует baseline-снимок партиции с нуля.
	// Локальная очередь неотправленных событий при этом сохраняется.
	Bootstrap(ctx context.Context, scope models.Scope) (*BootstrapResult, error)

	// GetPendingSyncCount возвращает количество событий, ожидающих отправки
	GetPendingSyncCount(ctx context.Context, scope models.Scope) (int, error)
}

type service struct {
	apiClient   httpClient.ClientAPI
	queue       storage.QueueStorage
	projections storage.ProjectionStorage
	metadata    storage.MetadataStorage
	logger      *slog.Logger
}

// NewService creates a new sync service
func NewService(
	apiClient httpClient.ClientAPI,
	queue storage.QueueStorage,
	projections storage.ProjectionStorage,
	metadata storage.MetadataStorage,
	logger *slog.Logger,
) Service {
	return &service{
		apiClient:   apiClient,
		queue:       queue,
		projections: projections,
		metadata:    metadata,
		logger:      logger,
	}
}

// SyncResult contains sync operation results
type SyncResult struct {
	PushedEvents  int  // количество отправленных на сервер событий
	SkippedEvents int  // количество событий, отклонённых сервером как дубликаты
	PulledEvents  int  // количество полученных с сервера событий
	Replayed      bool // сервер распознал повтор батча и вернул сохранённый результат
}

// BootstrapResult contains baseline import results
type BootstrapResult struct {
	ImportedRecords int   // количество импортированных записей снимка
	ServerSeq       int64 // watermark журнала на момент снимка
}

// Sync performs full synchronization of one scope:
// 1. Pushes the local event queue in idempotent batches
// 2. Pulls server events and applies them to the base projections
func (s *service) Sync(ctx context.Context, scope models.Scope) (*SyncResult, error) {
	s.logger.Info("Starting synchronization", "scope", scope)

	result := &SyncResult{}

	if err := s.pushQueue(ctx, scope, result); err != nil {
		return nil, fmt.Errorf("push phase failed: %w", err)
	}

	if err := s.pullEvents(ctx, scope, result); err != nil {
		return nil, fmt.Errorf("pull phase failed: %w", err)
	}

	s.logger.Info("Synchronization complete",
		"scope", scope,
		"pushed", result.PushedEvents,
		"skipped", result.SkippedEvents,
		"pulled", result.PulledEvents)

	return result, nil
}

// pushQueue отправляет очередь событий батчами, пока она не опустеет.
// Каждый батч фиксируется в хранилище до отправки: после падения процесса
// ретрай уходит с тем же clientMutationId, и сервер не применит его дважды.
func (s *service) pushQueue(ctx context.Context, scope models.Scope, result *SyncResult) error {
	clientID, err := s.metadata.ClientID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get client id: %w", err)
	}

	for {
		batch, err := s.nextBatch(ctx, scope)
		if err != nil {
			return err
		}
		if batch == nil {
			return nil
		}

		events := make([]api.SyncEvent, 0, len(batch.Events))
		for _, e := range batch.Events {
			events = append(events, api.SyncEvent{
				ID:         e.ID,
				DedupeKey:  e.DedupeKey,
				Type:       e.Type,
				Payload:    json.RawMessage(e.Payload),
				OccurredAt: e.OccurredAt,
			})
		}

		resp, replayed, err := s.apiClient.Push(ctx, api.PushRequest{
			Scope:              string(scope),
			ClientID:           clientID,
			ClientMutationID:   batch.ClientMutationID,
			Events:             events,
			LastKnownServerSeq: batch.LastKnownServerSeq,
		})
		if err != nil {
			return fmt.Errorf("failed to push batch %s: %w", batch.ClientMutationID, err)
		}

		if replayed {
			s.logger.Info("Server replayed previous batch result",
				"scope", scope, "client_mutation_id", batch.ClientMutationID)
			result.Replayed = true
		}

		result.PushedEvents += len(resp.Events)
		result.SkippedEvents += len(resp.Skipped)

		// Батч подтверждён: убираем события из очереди и снимаем фиксацию
		eventIDs := make([]string, 0, len(batch.Events))
		for _, e := range batch.Events {
			eventIDs = append(eventIDs, e.ID)
		}
		if err := s.queue.RemovePending(ctx, scope, eventIDs); err != nil {
			return fmt.Errorf("failed to remove pushed events from queue: %w", err)
		}
		if err := s.queue.ClearInFlightBatch(ctx, scope); err != nil {
			return fmt.Errorf("failed to clear in-flight batch: %w", err)
		}
	}
}

// nextBatch возвращает батч к отправке: сначала ранее зафиксированный,
// затем новый из головы очереди. nil означает, что отправлять нечего.
func (s *service) nextBatch(ctx context.Context, scope models.Scope) (*storage.PendingBatch, error) {
	batch, err := s.queue.GetInFlightBatch(ctx, scope)
	if err == nil {
		s.logger.Info("Resuming in-flight batch",
			"scope", scope, "client_mutation_id", batch.ClientMutationID)
		return batch, nil
	}
	if !errors.Is(err, storage.ErrBatchNotFound) {
		return nil, fmt.Errorf("failed to load in-flight batch: %w", err)
	}

	pending, err := s.queue.PendingEvents(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending events: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}
	if len(pending) > pageLimit {
		pending = pending[:pageLimit]
	}

	lastSeq, err := s.metadata.GetLastServerSeq(ctx, scope)
	if err != nil {
		s.logger.Warn("Failed to get last server seq, using 0", "error", err)
		lastSeq = 0
	}

	batch = &storage.PendingBatch{
		Scope:              scope,
		ClientMutationID:   uuid.NewString(),
		Events:             pending,
		LastKnownServerSeq: lastSeq,
	}
	if err := s.queue.SaveInFlightBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to save in-flight batch: %w", err)
	}
	return batch, nil
}

// pullEvents забирает события после watermark и применяет их к проекциям
func (s *service) pullEvents(ctx context.Context, scope models.Scope, result *SyncResult) error {
	for {
		lastSeq, err := s.metadata.GetLastServerSeq(ctx, scope)
		if err != nil {
			return fmt.Errorf("failed to get last server seq: %w", err)
		}

		resp, err := s.apiClient.Pull(ctx, api.PullRequest{
			Scope:         string(scope),
			LastServerSeq: lastSeq,
			Limit:         pageLimit,
		})
		if err != nil {
			return fmt.Errorf("pull request failed: %w", err)
		}

		for i := range resp.Events {
			if err := s.applyEvent(ctx, scope, &resp.Events[i]); err != nil {
				return fmt.Errorf("failed to apply event %s: %w", resp.Events[i].ID, err)
			}
		}
		result.PulledEvents += len(resp.Events)

		if err := s.metadata.SaveLastServerSeq(ctx, scope, resp.NextCursor); err != nil {
			return fmt.Errorf("failed to save last server seq: %w", err)
		}

		if !resp.HasMore {
			return nil
		}
	}
}

// applyEvent применяет событие журнала к базовой проекции.
// Семантика повторяет серверную: проекция клиента после применения
// всех событий совпадает с серверной на том же serverSeq.
func (s *service) applyEvent(ctx context.Context, scope models.Scope, event *api.SyncEvent) error {
	switch event.Type {
	case api.EventInventoryAdjust:
		return s.applyInventoryAdjust(ctx, event)
	case api.EventTicketCheckin:
		return s.applyTicketStatus(ctx, event, models.TicketStatusCheckedIn)
	case api.EventTicketInvalidate:
		return s.applyTicketStatus(ctx, event, models.TicketStatusInvalid)
	}

	// Сервер валидирует типы при push, но старый клиент может встретить
	// тип, добавленный после его сборки. Пропускаем, не теряя watermark.
	s.logger.Warn("Skipping event of unknown type",
		"scope", scope, "event_id", event.ID, "type", event.Type)
	return nil
}

func (s *service) applyInventoryAdjust(ctx context.Context, event *api.SyncEvent) error {
	var payload api.InventoryAdjustPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode inventory.adjust payload: %w", err)
	}

	item, err := s.projections.GetInventoryItem(ctx, payload.ItemID)
	switch {
	case err == nil:
		item.Qty += payload.Delta
		item.UpdatedAt = event.OccurredAt
	case errors.Is(err, storage.ErrItemNotFound):
		name := payload.ItemName
		if name == "" {
			name = payload.ItemID
		}
		item = &models.InventoryItem{
			ID:        payload.ItemID,
			Name:      name,
			Qty:       payload.Delta,
			UpdatedAt: event.OccurredAt,
		}
	default:
		return fmt.Errorf("failed to get inventory item: %w", err)
	}

	return s.projections.SaveInventoryItem(ctx, item)
}

func (s *service) applyTicketStatus(ctx context.Context, event *api.SyncEvent, status string) error {
	var payload api.TicketCheckinPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode ticket payload: %w", err)
	}

	ticket, err := s.projections.GetTicketByCode(ctx, payload.Code)
	switch {
	case err == nil:
		ticket.Status = status
		ticket.UpdatedAt = event.OccurredAt
	case errors.Is(err, storage.ErrTicketNotFound):
		// Билет отсканирован до импорта из кассы: строка-заглушка,
		// check-in остаётся pending до подтверждения импортом
		if status == models.TicketStatusCheckedIn {
			status = models.TicketStatusPending
		}
		ticket = &models.Ticket{
			ID:        pendingTicketID(payload),
			Code:      payload.Code,
			Status:    status,
			UpdatedAt: event.OccurredAt,
		}
	default:
		return fmt.Errorf("failed to get ticket: %w", err)
	}

	return s.projections.SaveTicket(ctx, ticket)
}

// pendingTicketID выбирает идентификатор для строки-заглушки.
// Детерминированный UUIDv5 от кода даёт те же идентификаторы, что и сервер.
func pendingTicketID(payload api.TicketCheckinPayload) string {
	if payload.TicketID != "" {
		return payload.TicketID
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("ticket:"+payload.Code)).String()
}

// Bootstrap imports a fresh baseline snapshot for scope.
// Проекция партиции сбрасывается и заполняется постранично; watermark
// устанавливается в serverSeq снимка, чтобы pull продолжил ровно с него.
func (s *service) Bootstrap(ctx context.Context, scope models.Scope) (*BootstrapResult, error) {
	s.logger.Info("Starting baseline import", "scope", scope)

	result, err := s.importBaseline(ctx, scope)
	if err != nil {
		// Частичный снимок уже отражает события вплоть до watermark сервера;
		// со старым watermark следующий pull применил бы их поверх второй раз.
		// Откатываемся к пустой проекции с нулевым watermark: повторный pull
		// с нуля сходится к серверному состоянию.
		if rerr := s.projections.ResetScope(ctx, scope); rerr != nil {
			s.logger.Error("Failed to discard partial snapshot", "scope", scope, "error", rerr)
		} else if werr := s.metadata.SaveLastServerSeq(ctx, scope, 0); werr != nil {
			s.logger.Error("Failed to reset watermark", "scope", scope, "error", werr)
		}
		return nil, err
	}

	s.logger.Info("Baseline import complete",
		"scope", scope,
		"records", result.ImportedRecords,
		"server_seq", result.ServerSeq)

	return result, nil
}

func (s *service) importBaseline(ctx context.Context, scope models.Scope) (*BootstrapResult, error) {
	if err := s.projections.ResetScope(ctx, scope); err != nil {
		return nil, fmt.Errorf("failed to reset projection: %w", err)
	}

	result := &BootstrapResult{}
	cursor := ""

	for {
		resp, err := s.apiClient.Initial(ctx, string(scope), cursor, pageLimit)
		if err != nil {
			return nil, fmt.Errorf("initial request failed: %w", err)
		}

		for _, raw := range resp.Records {
			if err := s.importRecord(ctx, scope, raw); err != nil {
				return nil, err
			}
		}
		result.ImportedRecords += len(resp.Records)
		result.ServerSeq = resp.ServerSeq

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	if err := s.metadata.SaveLastServerSeq(ctx, scope, result.ServerSeq); err != nil {
		return nil, fmt.Errorf("failed to save last server seq: %w", err)
	}

	return result, nil
}

func (s *service) importRecord(ctx context.Context, scope models.Scope, raw json.RawMessage) error {
	switch scope {
	case models.ScopeInventory:
		var rec api.InventoryRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("failed to decode inventory record: %w", err)
		}
		return s.projections.SaveInventoryItem(ctx, &models.InventoryItem{
			ID:   rec.ID,
			Name: rec.Name,
			Qty:  rec.Qty,
		})
	case models.ScopeTickets:
		var rec api.TicketRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("failed to decode ticket record: %w", err)
		}
		return s.projections.SaveTicket(ctx, &models.Ticket{
			ID:         rec.ID,
			Code:       rec.Code,
			EventID:    rec.EventID,
			HolderName: rec.HolderName,
			Status:     rec.Status,
			UpdatedAt:  rec.UpdatedAt,
		})
	}
	return fmt.Errorf("unknown scope %q", scope)
}

// GetPendingSyncCount returns the number of events waiting to be pushed
func (s *service) GetPendingSyncCount(ctx context.Context, scope models.Scope) (int, error) {
	count, err := s.queue.PendingCount(ctx, scope)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending events: %w", err)
	}
	return count, nil
}
