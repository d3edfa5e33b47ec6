package models

import (
	"fmt"
	"time"
)

// Scope определяет партицию домена синхронизации.
// Все события, курсоры и dedupe-ключи локальны внутри своей партиции.
type Scope string

const (
	// ScopeInventory инвентарь реквизита и костюмов
	ScopeInventory Scope = "inventory"
	// ScopeTickets билеты и их статусы
	ScopeTickets Scope = "tickets"
)

// ParseScope валидирует строковое значение scope.
// Возвращает ошибку для неизвестных партиций.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeInventory, ScopeTickets:
		return Scope(s), nil
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// Типы событий журнала
const (
	EventTypeInventoryAdjust  = "inventory.adjust"
	EventTypeTicketCheckin    = "ticket.checkin"
	EventTypeTicketInvalidate = "ticket.invalidate"
)

// KnownEventType сообщает, умеет ли сервер применять события данного типа.
// События неизвестных типов отклоняются до записи в журнал.
func KnownEventType(t string) bool {
	switch t {
	case EventTypeInventoryAdjust, EventTypeTicketCheckin, EventTypeTicketInvalidate:
		return true
	}
	return false
}

// SyncEvent представляет атомарную единицу изменения в журнале синхронизации.
// Журнал append-only: записанное событие никогда не изменяется и не удаляется.
type SyncEvent struct {
	OccurredAt time.Time `json:"occurred_at"` // OccurredAt клиентское время события (только для отображения)
	CreatedAt  time.Time `json:"created_at"`  // CreatedAt серверное время записи в журнал

	ID               string `json:"id"`                 // ID уникален внутри партиции, присваивается клиентом (UUID)
	Scope            Scope  `json:"scope"`              // Scope партиция события
	ClientID         string `json:"client_id"`          // ClientID устройство/сессия, породившая событие
	ClientMutationID string `json:"client_mutation_id"` // ClientMutationID батч, в составе которого событие пришло
	DedupeKey        string `json:"dedupe_key"`         // DedupeKey необязательный ключ идемпотентности отдельного события
	Type             string `json:"type"`               // Type семантический тип события
	Payload          []byte `json:"payload"`            // Payload JSON-описание изменения
	ServerSeq        int64  `json:"server_seq"`         // ServerSeq строго возрастающий номер внутри партиции
}

// SyncMutation представляет запись леджера идемпотентности: одна на clientMutationId.
// EventCount и диапазон seq неизменяемы после первой записи;
// повторный push того же батча возвращает сохранённый результат.
type SyncMutation struct {
	CreatedAt time.Time `json:"created_at"`

	ClientMutationID string `json:"client_mutation_id"`
	ClientID         string `json:"client_id"`
	Scope            Scope  `json:"scope"`
	EventCount       int    `json:"event_count"`     // количество реально добавленных событий (после dedupe)
	FirstServerSeq   int64  `json:"first_server_seq"` // 0, если все события батча оказались дубликатами
	LastServerSeq    int64  `json:"last_server_seq"`  // 0, если все события батча оказались дубликатами
	AcknowledgedSeq  int64  `json:"acknowledged_seq"` // audit-only watermark клиента на момент push
}
