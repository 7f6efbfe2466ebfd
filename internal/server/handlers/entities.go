package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/gophsync/internal/metrics"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/server/storage"
	"github.com/iudanet/gophsync/pkg/api"
)

//go:generate moq -out publisher_mock.go . Publisher

// Publisher рассылает зафиксированные изменения подписчикам пользователя
type Publisher interface {
	Publish(userID string, event api.PushEvent)
}

// EntityHandler обрабатывает CRUD запросы к сущностям
type EntityHandler struct {
	logger    *slog.Logger
	storage   storage.EntityStorage
	publisher Publisher
	now       func() time.Time
}

// NewEntityHandler создает новый handler для сущностей.
// publisher может быть nil: изменения тогда не рассылаются.
func NewEntityHandler(logger *slog.Logger, entityStorage storage.EntityStorage, publisher Publisher) *EntityHandler {
	return &EntityHandler{
		logger:    logger,
		storage:   entityStorage,
		publisher: publisher,
		now:       time.Now,
	}
}

// Get обрабатывает GET /api/v1/entities/{type}/{id}
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, key, ok := h.requestKey(w, r)
	if !ok {
		return
	}

	record, err := h.storage.GetEntity(ctx, userID, key)
	if err != nil {
		h.sendStorageError(w, r, key, err)
		return
	}

	SendJSON(h.logger, w, ToAPIEntity(record), http.StatusOK)
}

// List обрабатывает GET /api/v1/entities/{type}
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		SendError(h.logger, w, api.ErrCodeUnauthorized, "unauthorized", http.StatusUnauthorized)
		return
	}
	entityType := chi.URLParam(r, "type")
	if !models.KnownEntityType(entityType) {
		SendError(h.logger, w, api.ErrCodeInvalidRequest, "unknown entity type", http.StatusBadRequest)
		return
	}

	records, err := h.storage.ListEntities(ctx, userID, entityType)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list entities", slog.String("type", entityType), slog.Any("error", err))
		SendError(h.logger, w, api.ErrCodeInternal, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.ListEntitiesResponse{Entities: make([]api.Entity, 0, len(records))}
	for _, record := range records {
		resp.Entities = append(resp.Entities, ToAPIEntity(record))
	}
	SendJSON(h.logger, w, resp, http.StatusOK)
}

// Put обрабатывает PUT /api/v1/entities/{type}/{id}
// Создаёт или заменяет сущность. Payload должен иметь форму, известную для типа.
func (h *EntityHandler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, key, ok := h.requestKey(w, r)
	if !ok {
		return
	}

	var req api.PutEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendError(h.logger, w, api.ErrCodeInvalidRequest, "invalid request body", http.StatusBadRequest)
		return
	}

	value, err := models.DecodeValue(key.Type, req.Payload)
	if err != nil {
		h.logger.WarnContext(ctx, "rejected payload", slog.String("key", key.String()), slog.Any("error", err))
		SendError(h.logger, w, api.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)
		return
	}
	payload, err := models.EncodeValue(value)
	if err != nil {
		SendError(h.logger, w, api.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := h.storage.PutEntity(ctx, userID, key, payload, req.ExpectedVersion, h.now())
	if err != nil {
		h.sendStorageError(w, r, key, err)
		return
	}

	operation := models.OperationUpdate
	status := http.StatusOK
	if record.Created {
		operation = models.OperationCreate
		status = http.StatusCreated
	}
	h.committed(r, userID, record, operation)

	SendJSON(h.logger, w, ToAPIEntity(record), status)
}

// Delete обрабатывает DELETE /api/v1/entities/{type}/{id}?expected_version=N
func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, key, ok := h.requestKey(w, r)
	if !ok {
		return
	}

	var expected uint64
	if raw := r.URL.Query().Get("expected_version"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			SendError(h.logger, w, api.ErrCodeInvalidRequest, "invalid expected_version", http.StatusBadRequest)
			return
		}
		expected = v
	}

	record, err := h.storage.DeleteEntity(ctx, userID, key, expected, h.now())
	if err != nil {
		h.sendStorageError(w, r, key, err)
		return
	}
	h.committed(r, userID, record, models.OperationDelete)

	SendJSON(h.logger, w, ToAPIEntity(record), http.StatusOK)
}

func (h *EntityHandler) committed(r *http.Request, userID string, record *models.EntityRecord, operation models.Operation) {
	metrics.ServerCommits.WithLabelValues(record.Key.Type, string(operation)).Inc()

	sessionID, _ := GetSessionID(r.Context())
	h.logger.DebugContext(r.Context(), "entity committed",
		slog.String("key", record.Key.String()),
		slog.String("operation", string(operation)),
		slog.Uint64("version", record.Version))

	if h.publisher != nil {
		h.publisher.Publish(userID, api.PushEvent{Entity: ToAPIEntity(record), Origin: sessionID})
	}
}

func (h *EntityHandler) requestKey(w http.ResponseWriter, r *http.Request) (string, models.EntityKey, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		SendError(h.logger, w, api.ErrCodeUnauthorized, "unauthorized", http.StatusUnauthorized)
		return "", models.EntityKey{}, false
	}

	key := models.NewEntityKey(chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err := key.Validate(); err != nil {
		SendError(h.logger, w, api.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)
		return "", models.EntityKey{}, false
	}
	if !models.KnownEntityType(key.Type) {
		SendError(h.logger, w, api.ErrCodeInvalidRequest, "unknown entity type", http.StatusBadRequest)
		return "", models.EntityKey{}, false
	}
	return userID, key, true
}

func (h *EntityHandler) sendStorageError(w http.ResponseWriter, r *http.Request, key models.EntityKey, err error) {
	var conflict *storage.VersionConflictError
	switch {
	case errors.As(err, &conflict):
		SendJSON(h.logger, w, api.ErrorResponse{
			Error:          api.ErrCodeVersionConflict,
			Message:        conflict.Error(),
			CurrentVersion: conflict.Current,
		}, http.StatusConflict)
	case errors.Is(err, storage.ErrEntityNotFound):
		SendError(h.logger, w, api.ErrCodeNotFound, "entity not found", http.StatusNotFound)
	default:
		h.logger.ErrorContext(r.Context(), "entity storage failed", slog.String("key", key.String()), slog.Any("error", err))
		SendError(h.logger, w, api.ErrCodeInternal, "internal server error", http.StatusInternalServerError)
	}
}

// ToAPIEntity конвертирует запись хранилища в DTO
func ToAPIEntity(record *models.EntityRecord) api.Entity {
	return api.Entity{
		UpdatedAt: record.UpdatedAt,
		Type:      record.Key.Type,
		ID:        record.Key.ID,
		Payload:   record.Payload,
		Version:   record.Version,
		Deleted:   record.Deleted,
	}
}
