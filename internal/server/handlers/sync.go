package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/buehnenwerk/stagesync/internal/models"
	"github.com/buehnenwerk/stagesync/internal/server/storage"
	"github.com/buehnenwerk/stagesync/internal/validation"
	"github.com/buehnenwerk/stagesync/pkg/api"
)

// contextKey тип для ключей контекста
type contextKey string

const (
	// DeviceIDKey ключ для хранения device_id в контексте
	DeviceIDKey contextKey = "device_id"
	// DeviceClaimsKey ключ для хранения claims устройства в контексте
	DeviceClaimsKey contextKey = "device_claims"
)

// GetDeviceID извлекает device_id из контекста запроса
func GetDeviceID(ctx context.Context) (string, bool) {
	deviceID, ok := ctx.Value(DeviceIDKey).(string)
	return deviceID, ok
}

// GetDeviceClaims извлекает claims устройства из контекста запроса
func GetDeviceClaims(ctx context.Context) (*DeviceClaims, bool) {
	claims, ok := ctx.Value(DeviceClaimsKey).(*DeviceClaims)
	return claims, ok
}

// SyncStatusHeader индикатор исхода push: applied либо replayed
const SyncStatusHeader = "X-Sync-Status"

// SyncStorage определяет интерфейс хранилища, нужный sync-эндпоинтам
type SyncStorage interface {
	// ApplyPush атомарно применяет батч клиентских событий
	ApplyPush(ctx context.Context, batch *storage.PushBatch) (*storage.PushOutcome, error)

	// ListEventsSince возвращает события с serverSeq > afterSeq по возрастанию
	ListEventsSince(ctx context.Context, scope models.Scope, afterSeq int64, limit int) ([]*models.SyncEvent, bool, error)

	// BaselineInventory возвращает страницу снимка инвентаря с watermark журнала
	BaselineInventory(ctx context.Context, cursor string, limit int) (*storage.InventoryPage, error)

	// BaselineTickets возвращает страницу снимка билетов с watermark журнала
	BaselineTickets(ctx context.Context, cursor string, limit int) (*storage.TicketPage, error)
}

// SyncHandler handles the initial/pull/push synchronization endpoints
type SyncHandler struct {
	logger  *slog.Logger
	storage SyncStorage
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(logger *slog.Logger, storage SyncStorage) *SyncHandler {
	return &SyncHandler{
		logger:  logger,
		storage: storage,
	}
}

// requireScope проверяет формат scope и допуск устройства к партиции.
// Возвращает "" и пишет ответ, если запрос отклонён.
func (h *SyncHandler) requireScope(w http.ResponseWriter, r *http.Request, raw string) (models.Scope, bool) {
	scope, err := models.ParseScope(raw)
	if err != nil {
		h.logger.Warn("Invalid scope", "scope", raw)
		writeError(w, h.logger, http.StatusBadRequest, "invalid_scope", err.Error())
		return "", false
	}

	claims, ok := GetDeviceClaims(r.Context())
	if !ok {
		h.logger.Error("Device claims not found in context")
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "missing device claims")
		return "", false
	}

	if !claims.AllowsScope(string(scope)) {
		h.logger.Warn("Scope not allowed for device", "device_id", claims.DeviceID, "scope", scope)
		writeError(w, h.logger, http.StatusForbidden, "scope_forbidden",
			fmt.Sprintf("device is not allowed to sync scope %q", scope))
		return "", false
	}

	return scope, true
}

// HandleInitial обрабатывает GET /api/v1/sync/initial?scope=&cursor=&limit=
// Отдаёт страницу baseline-снимка проекции для холодного старта клиента
func (h *SyncHandler) HandleInitial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	scope, ok := h.requireScope(w, r, r.URL.Query().Get("scope"))
	if !ok {
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limit := validation.ClampPageLimit(parseIntParam(r.URL.Query().Get("limit")))

	resp := &api.InitialResponse{Scope: string(scope)}

	switch scope {
	case models.ScopeInventory:
		page, err := h.storage.BaselineInventory(ctx, cursor, limit)
		if err != nil {
			h.logger.Error("Failed to read inventory baseline", "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "internal", "failed to read baseline")
			return
		}

		resp.ServerSeq = page.ServerSeq
		resp.HasMore = page.HasMore
		for _, item := range page.Items {
			record, merr := json.Marshal(api.InventoryRecord{
				ID:   item.ID,
				Name: item.Name,
				Qty:  item.Qty,
			})
			if merr != nil {
				h.logger.Error("Failed to encode inventory record", "error", merr)
				writeError(w, h.logger, http.StatusInternalServerError, "internal", "failed to encode baseline")
				return
			}
			resp.Records = append(resp.Records, record)
			resp.NextCursor = item.ID
		}

	case models.ScopeTickets:
		page, err := h.storage.BaselineTickets(ctx, cursor, limit)
		if err != nil {
			h.logger.Error("Failed to read ticket baseline", "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "internal", "failed to read baseline")
			return
		}

		resp.ServerSeq = page.ServerSeq
		resp.HasMore = page.HasMore
		for _, ticket := range page.Tickets {
			record, merr := json.Marshal(api.TicketRecord{
				ID:         ticket.ID,
				Code:       ticket.Code,
				EventID:    ticket.EventID,
				HolderName: ticket.HolderName,
				Status:     ticket.Status,
				UpdatedAt:  ticket.UpdatedAt,
			})
			if merr != nil {
				h.logger.Error("Failed to encode ticket record", "error", merr)
				writeError(w, h.logger, http.StatusInternalServerError, "internal", "failed to encode baseline")
				return
			}
			resp.Records = append(resp.Records, record)
			resp.NextCursor = ticket.ID
		}
	}

	if resp.Records == nil {
		resp.Records = []json.RawMessage{}
	}
	if !resp.HasMore {
		resp.NextCursor = ""
	}

	h.logger.Info("Initial snapshot served",
		"scope", scope,
		"records", len(resp.Records),
		"server_seq", resp.ServerSeq,
		"has_more", resp.HasMore)

	writeJSONWithETag(w, r, h.logger, resp)
}

// HandlePull обрабатывает POST /api/v1/sync/pull
// Возвращает события после клиентского watermark; чистое чтение без побочных эффектов
func (h *SyncHandler) HandlePull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var req api.PullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode pull request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	scope, ok := h.requireScope(w, r, req.Scope)
	if !ok {
		return
	}

	if req.LastServerSeq < 0 {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_cursor", "lastServerSeq cannot be negative")
		return
	}

	limit := validation.ClampPageLimit(req.Limit)

	events, hasMore, err := h.storage.ListEventsSince(ctx, scope, req.LastServerSeq, limit)
	if err != nil {
		h.logger.Error("Failed to list events", "error", err, "scope", scope)
		writeError(w, h.logger, http.StatusInternalServerError, "internal", "failed to read events")
		return
	}

	// Watermark ответа: последний отданный seq, либо неизменный клиентский
	serverSeq := req.LastServerSeq
	if len(events) > 0 {
		serverSeq = events[len(events)-1].ServerSeq
	}

	resp := &api.PullResponse{
		Scope:      string(scope),
		Events:     toAPIEvents(events),
		ServerSeq:  serverSeq,
		NextCursor: serverSeq,
		HasMore:    hasMore,
	}

	h.logger.Info("Pull served",
		"scope", scope,
		"after_seq", req.LastServerSeq,
		"events", len(resp.Events),
		"server_seq", serverSeq,
		"has_more", hasMore)

	writeJSONWithETag(w, r, h.logger, resp)
}

// HandlePush обрабатывает POST /api/v1/sync/push
// Применяет батч клиентских событий с идемпотентностью по clientMutationId
func (h *SyncHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var req api.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode push request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	scope, ok := h.requireScope(w, r, req.Scope)
	if !ok {
		return
	}

	// Валидация до каких-либо обращений к хранилищу
	if err := validatePushRequest(&req); err != nil {
		h.logger.Warn("Invalid push request", "error", err, "client_id", req.ClientID)
		writeError(w, h.logger, http.StatusBadRequest, "invalid_push", err.Error())
		return
	}

	batch := &storage.PushBatch{
		Scope:              scope,
		ClientID:           req.ClientID,
		ClientMutationID:   req.ClientMutationID,
		LastKnownServerSeq: req.LastKnownServerSeq,
		Events:             make([]*models.SyncEvent, 0, len(req.Events)),
	}
	for _, event := range req.Events {
		batch.Events = append(batch.Events, &models.SyncEvent{
			ID:         event.ID,
			DedupeKey:  event.DedupeKey,
			Type:       event.Type,
			Payload:    event.Payload,
			OccurredAt: event.OccurredAt,
		})
	}

	outcome, err := h.storage.ApplyPush(ctx, batch)
	if err != nil {
		h.logger.Error("Failed to apply push", "error", err,
			"client_id", req.ClientID,
			"client_mutation_id", req.ClientMutationID)
		writeError(w, h.logger, http.StatusInternalServerError, "internal", "failed to apply batch")
		return
	}

	status := "applied"
	if outcome.Replayed {
		status = "replayed"
	}
	w.Header().Set(SyncStatusHeader, status)

	resp := &api.PushResponse{
		Status:  api.PushStatusApplied,
		Events:  toAPIEvents(outcome.Applied),
		Skipped: make([]api.SkippedEvent, 0, len(outcome.Skipped)),
	}
	for _, skip := range outcome.Skipped {
		resp.Skipped = append(resp.Skipped, api.SkippedEvent{
			ID:        skip.ID,
			DedupeKey: skip.DedupeKey,
			Reason:    skip.Reason,
		})
	}

	h.logger.Info("Push applied",
		"scope", scope,
		"client_id", req.ClientID,
		"client_mutation_id", req.ClientMutationID,
		"applied", len(resp.Events),
		"skipped", len(resp.Skipped),
		"replayed", outcome.Replayed)

	writeJSON(w, h.logger, http.StatusOK, resp)
}

// validatePushRequest проверяет push-запрос целиком: при любой ошибке
// батч отклоняется до записи чего-либо
func validatePushRequest(req *api.PushRequest) error {
	if req.ClientID == "" {
		return fmt.Errorf("clientId cannot be empty")
	}
	if err := validation.ValidateClientMutationID(req.ClientMutationID); err != nil {
		return err
	}
	if req.LastKnownServerSeq < 0 {
		return fmt.Errorf("lastKnownServerSeq cannot be negative")
	}
	if len(req.Events) > validation.MaxBatchSize {
		return fmt.Errorf("batch exceeds %d events", validation.MaxBatchSize)
	}

	seen := make(map[string]struct{}, len(req.Events))
	for i, event := range req.Events {
		if err := validation.ValidateEventID(event.ID); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		if _, dup := seen[event.ID]; dup {
			return fmt.Errorf("event %d: duplicate event id %s within batch", i, event.ID)
		}
		seen[event.ID] = struct{}{}

		if err := validation.ValidateDedupeKey(event.DedupeKey); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		if !models.KnownEventType(event.Type) {
			return fmt.Errorf("event %d: unknown event type %q", i, event.Type)
		}
		if len(event.Payload) == 0 {
			return fmt.Errorf("event %d: payload cannot be empty", i)
		}
	}

	return nil
}

// toAPIEvents конвертирует события журнала в wire-формат
func toAPIEvents(events []*models.SyncEvent) []api.SyncEvent {
	out := make([]api.SyncEvent, 0, len(events))
	for _, event := range events {
		out = append(out, api.SyncEvent{
			ID:         event.ID,
			DedupeKey:  event.DedupeKey,
			Type:       event.Type,
			Payload:    event.Payload,
			OccurredAt: event.OccurredAt,
			ServerSeq:  event.ServerSeq,
		})
	}
	return out
}

// parseIntParam парсит числовой query-параметр; пустая строка и мусор дают 0
func parseIntParam(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
