package validation

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// TicketCodePattern определяет допустимый формат кода билета
// Латинские буквы, цифры и дефис, длина 4-64 символа (например "T-2026-0815-042")
var TicketCodePattern = regexp.MustCompile(`^[a-zA-Z0-9-]{4,64}$`)

const (
	// MaxDedupeKeyLen максимальная длина dedupe-ключа события
	MaxDedupeKeyLen = 128
	// MaxBatchSize максимальное количество событий в одном push-батче
	MaxBatchSize = 500
	// DefaultPageLimit размер страницы pull/baseline по умолчанию
	DefaultPageLimit = 100
	// MaxPageLimit верхняя граница размера страницы
	MaxPageLimit = 500
)

// ValidateTicketCode проверяет, что код билета соответствует формату сканера
func ValidateTicketCode(code string) error {
	if code == "" {
		return fmt.Errorf("ticket code cannot be empty")
	}

	if !TicketCodePattern.MatchString(code) {
		return fmt.Errorf("ticket code can only contain letters, numbers and dashes (4-64 characters)")
	}

	return nil
}

// ValidateEventID проверяет клиентский идентификатор события (UUID)
func ValidateEventID(id string) error {
	if id == "" {
		return fmt.Errorf("event id cannot be empty")
	}

	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("event id must be a valid UUID: %w", err)
	}

	return nil
}

// ValidateClientMutationID проверяет идентификатор батча (UUID)
func ValidateClientMutationID(id string) error {
	if id == "" {
		return fmt.Errorf("client mutation id cannot be empty")
	}

	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("client mutation id must be a valid UUID: %w", err)
	}

	return nil
}

// ValidateDedupeKey проверяет необязательный dedupe-ключ события
func ValidateDedupeKey(key string) error {
	if len(key) > MaxDedupeKeyLen {
		return fmt.Errorf("dedupe key must not exceed %d characters", MaxDedupeKeyLen)
	}

	return nil
}

// ClampPageLimit приводит запрошенный размер страницы к допустимому диапазону.
// Ноль и отрицательные значения заменяются на значение по умолчанию.
func ClampPageLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}
