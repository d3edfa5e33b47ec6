package api

import (
	"encoding/json"
	"time"
)

// Scope значения партиций синхронизации
const (
	ScopeInventory = "inventory"
	ScopeTickets   = "tickets"
)

// Типы событий, известные серверу
const (
	EventInventoryAdjust  = "inventory.adjust"
	EventTicketCheckin    = "ticket.checkin"
	EventTicketInvalidate = "ticket.invalidate"
)

// SyncEvent представляет одно событие журнала в wire-формате.
// ServerSeq заполняется сервером; при отправке с клиента поле равно нулю.
type SyncEvent struct {
	OccurredAt time.Time       `json:"occurredAt"`
	ID         string          `json:"id"`
	DedupeKey  string          `json:"dedupeKey,omitempty"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	ServerSeq  int64           `json:"serverSeq,omitempty"`
}

// PullRequest представляет запрос инкрементальной выборки событий
type PullRequest struct {
	Scope         string `json:"scope"`
	LastServerSeq int64  `json:"lastServerSeq"`
	Limit         int    `json:"limit,omitempty"`
}

// PullResponse представляет ответ сервера на pull.
// NextCursor равен ServerSeq и используется как lastServerSeq следующего запроса.
type PullResponse struct {
	Scope      string      `json:"scope"`
	Events     []SyncEvent `json:"events"`
	ServerSeq  int64       `json:"serverSeq"`
	NextCursor int64       `json:"nextCursor"`
	HasMore    bool        `json:"hasMore"`
}

// PushRequest представляет пакет клиентских событий
// с идемпотентным идентификатором батча ClientMutationID
type PushRequest struct {
	Scope              string      `json:"scope"`
	ClientID           string      `json:"clientId"`
	ClientMutationID   string      `json:"clientMutationId"`
	Events             []SyncEvent `json:"events"`
	LastKnownServerSeq int64       `json:"lastKnownServerSeq"`
}

// SkippedEvent представляет событие, пропущенное при применении батча
type SkippedEvent struct {
	ID        string `json:"id"`
	DedupeKey string `json:"dedupeKey,omitempty"`
	Reason    string `json:"reason"`
}

// SkipReasonDuplicateDedupeKey единственная причина пропуска события:
// событие с таким же dedupeKey уже есть в журнале этой партиции
const SkipReasonDuplicateDedupeKey = "duplicate-dedupe-key"

// PushStatusApplied значение Status успешного push (в том числе повторного)
const PushStatusApplied = "applied"

// PushResponse представляет результат применения батча.
// Events содержит только реально добавленные события (с присвоенными serverSeq).
type PushResponse struct {
	Status  string         `json:"status"`
	Events  []SyncEvent    `json:"events"`
	Skipped []SkippedEvent `json:"skipped"`
}

// InitialResponse представляет страницу baseline-снимка текущего состояния.
// Records декодируются по значению Scope: InventoryRecord либо TicketRecord.
// ServerSeq — актуальный watermark журнала, стартовая точка для pull.
type InitialResponse struct {
	Scope      string            `json:"scope"`
	Records    []json.RawMessage `json:"records"`
	NextCursor string            `json:"nextCursor,omitempty"`
	ServerSeq  int64             `json:"serverSeq"`
	HasMore    bool              `json:"hasMore"`
}

// InventoryRecord представляет запись baseline для scope=inventory
type InventoryRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Qty  int64  `json:"qty"`
}

// TicketRecord представляет запись baseline для scope=tickets
type TicketRecord struct {
	UpdatedAt  time.Time `json:"updatedAt"`
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	EventID    string    `json:"eventId"`
	HolderName string    `json:"holderName"`
	Status     string    `json:"status"`
}

// InventoryAdjustPayload полезная нагрузка события inventory.adjust.
// ItemName используется только при создании ещё не известного серверу предмета.
type InventoryAdjustPayload struct {
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName,omitempty"`
	Delta    int64  `json:"delta"`
}

// TicketCheckinPayload полезная нагрузка событий ticket.checkin и ticket.invalidate
type TicketCheckinPayload struct {
	Code     string `json:"code"`
	TicketID string `json:"ticketId,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
