package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/buehnenwerk/stagesync/pkg/api"
)

// SyncStatusHeader индикатор исхода push на стороне сервера
const SyncStatusHeader = "X-Sync-Status"

// Client представляет HTTP клиент для взаимодействия с sync-сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// SetToken устанавливает токен устройства для последующих запросов
func (c *Client) SetToken(token string) {
	c.token = token
}

// Initial запрашивает страницу baseline-снимка для холодного старта
func (c *Client) Initial(ctx context.Context, scope, cursor string, limit int) (*api.InitialResponse, error) {
	q := url.Values{}
	q.Set("scope", scope)
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp api.InitialResponse
	_, err := c.doRequest(ctx, "GET", "/api/v1/sync/initial?"+q.Encode(), nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("initial request failed: %w", err)
	}
	return &resp, nil
}

// Pull запрашивает события после известного клиенту watermark
func (c *Client) Pull(ctx context.Context, req api.PullRequest) (*api.PullResponse, error) {
	var resp api.PullResponse
	_, err := c.doRequest(ctx, "POST", "/api/v1/sync/pull", req, &resp)
	if err != nil {
		return nil, fmt.Errorf("pull request failed: %w", err)
	}
	return &resp, nil
}

// Push отправляет батч локальных событий.
// Второе возвращаемое значение true, если сервер уже видел этот
// clientMutationId и вернул записанный ранее результат.
func (c *Client) Push(ctx context.Context, req api.PushRequest) (*api.PushResponse, bool, error) {
	var resp api.PushResponse
	header, err := c.doRequest(ctx, "POST", "/api/v1/sync/push", req, &resp)
	if err != nil {
		return nil, false, fmt.Errorf("push request failed: %w", err)
	}
	replayed := header.Get(SyncStatusHeader) == "replayed"
	return &resp, replayed, nil
}

// doRequest выполняет HTTP запрос и возвращает заголовки ответа
func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) (http.Header, error) {
	reqURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("server error (%d): %s: %s", resp.StatusCode, errResp.Error, errResp.Message)
		}
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	// Декодируем успешный ответ
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.Header, nil
}
