package models

import "time"

// TicketStatus статусы билета в проекции
const (
	TicketStatusUnused    = "unused"
	TicketStatusCheckedIn = "checked_in"
	TicketStatusInvalid   = "invalid"
	// TicketStatusPending билет, отсканированный до импорта из кассы:
	// сервер ещё не знает такого кода, но check-in уже записан в журнал
	TicketStatusPending = "pending"
)

// InventoryItem представляет проекцию текущего количества предмета инвентаря.
// Qty изменяется только применением событий inventory.adjust, никогда напрямую.
type InventoryItem struct {
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Qty       int64     `json:"qty"`
}

// Ticket представляет проекцию текущего состояния билета
type Ticket struct {
	UpdatedAt  time.Time `json:"updated_at"`
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	EventID    string    `json:"event_id"` // спектакль/показ, к которому относится билет
	HolderName string    `json:"holder_name"`
	Status     string    `json:"status"`
}
