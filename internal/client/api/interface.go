package api

import (
	"context"

	"github.com/buehnenwerk/stagesync/pkg/api"
)

// ClientAPI определяет интерфейс HTTP клиента sync-сервера
type ClientAPI interface {
	// SetToken устанавливает токен устройства для последующих запросов
	SetToken(token string)

	// Initial запрашивает страницу baseline-снимка для холодного старта
	Initial(ctx context.Context, scope, cursor string, limit int) (*api.InitialResponse, error)

	// Pull запрашивает события после известного клиенту watermark
	Pull(ctx context.Context, req api.PullRequest) (*api.PullResponse, error)

	// Push отправляет батч локальных событий.
	// Второе возвращаемое значение true, если сервер уже видел этот
	// clientMutationId и вернул записанный ранее результат.
	Push(ctx context.Context, req api.PushRequest) (*api.PushResponse, bool, error)
}
