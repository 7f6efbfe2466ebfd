// Package api HTTP клиент эталонного сервера: сессии и CRUD сущностей.
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
	"strings"
	"sync"
	"time"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/pkg/api"
)

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	mu         sync.RWMutex
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
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

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken задает access token для последующих запросов
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current access token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// AuthHeader заголовки для websocket рукопожатия
func (c *Client) AuthHeader() http.Header {
	header := http.Header{}
	if token := c.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return header
}

// CreateSession получает токен новой сессии (или присоединяется к существующей, если
// указан SessionID) и сохраняет его в клиенте
func (c *Client) CreateSession(ctx context.Context, req api.CreateSessionRequest) (*api.SessionResponse, error) {
	var resp api.SessionResponse
	if err := c.doRequest(ctx, http.MethodPost, api.PathSessions, req, &resp); err != nil {
		return nil, fmt.Errorf("create session request failed: %w", err)
	}
	c.SetToken(resp.AccessToken)
	return &resp, nil
}

// RevokeSession отзывает текущую сессию
func (c *Client) RevokeSession(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodDelete, api.PathSessionCurrent, nil, nil); err != nil {
		return fmt.Errorf("revoke session request failed: %w", err)
	}
	c.SetToken("")
	return nil
}

// GetEntity получает сущность
func (c *Client) GetEntity(ctx context.Context, key models.EntityKey) (*api.Entity, error) {
	var resp api.Entity
	if err := c.doRequest(ctx, http.MethodGet, EntityPath(key), nil, &resp); err != nil {
		return nil, fmt.Errorf("get entity %s failed: %w", key, err)
	}
	return &resp, nil
}

// ListEntities получает все сущности типа
func (c *Client) ListEntities(ctx context.Context, entityType string) ([]api.Entity, error) {
	var resp api.ListEntitiesResponse
	if err := c.doRequest(ctx, http.MethodGet, api.PathEntities+"/"+url.PathEscape(entityType), nil, &resp); err != nil {
		return nil, fmt.Errorf("list %s entities failed: %w", entityType, err)
	}
	return resp.Entities, nil
}

// PutEntity создает или заменяет сущность. expectedVersion 0 = без проверки версии.
func (c *Client) PutEntity(ctx context.Context, key models.EntityKey, value models.Value, expectedVersion uint64) (*api.Entity, error) {
	payload, err := models.EncodeValue(value)
	if err != nil {
		return nil, err
	}

	var resp api.Entity
	req := api.PutEntityRequest{Payload: payload, ExpectedVersion: expectedVersion}
	if err := c.doRequest(ctx, http.MethodPut, EntityPath(key), req, &resp); err != nil {
		return nil, fmt.Errorf("put entity %s failed: %w", key, err)
	}
	return &resp, nil
}

// DeleteEntity удаляет сущность
func (c *Client) DeleteEntity(ctx context.Context, key models.EntityKey, expectedVersion uint64) (*api.Entity, error) {
	path := EntityPath(key)
	if expectedVersion > 0 {
		path += "?expected_version=" + strconv.FormatUint(expectedVersion, 10)
	}

	var resp api.Entity
	if err := c.doRequest(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("delete entity %s failed: %w", key, err)
	}
	return &resp, nil
}

// EntityPath путь сущности на сервере
func EntityPath(key models.EntityKey) string {
	return api.PathEntities + "/" + url.PathEscape(key.Type) + "/" + url.PathEscape(key.ID)
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func decodeError(statusCode int, body []byte) error {
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &ServerError{
			Code:           errResp.Error,
			Message:        errResp.Message,
			StatusCode:     statusCode,
			CurrentVersion: errResp.CurrentVersion,
		}
	}

	// ответ не от нашего API (прокси, паника до middleware): код по статусу
	code := api.ErrCodeInternal
	switch statusCode {
	case http.StatusConflict:
		code = api.ErrCodeVersionConflict
	case http.StatusNotFound:
		code = api.ErrCodeNotFound
	case http.StatusUnauthorized:
		code = api.ErrCodeUnauthorized
	case http.StatusBadRequest:
		code = api.ErrCodeInvalidRequest
	}
	return &ServerError{Code: code, Message: strings.TrimSpace(string(body)), StatusCode: statusCode}
}
