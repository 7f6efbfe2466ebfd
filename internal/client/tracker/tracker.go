// Package tracker отслеживает мутации сущностей в процессе выполнения,
// обнаруживает конфликты между ними и решает, какие push-обновления
// и локальные ответы применять.
package tracker

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/iudanet/gophsync/internal/conflict"
	"github.com/iudanet/gophsync/internal/metrics"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/schedule"
)

// Config параметры трекера.
type Config struct {
	// LoopThreshold сколько незавершённых запросов одного ключа допускается в LoopWindow
	LoopThreshold int
	LoopWindow    time.Duration
	// HistoryLimit размер истории завершённых запросов на ключ
	HistoryLimit int
	// PushLookback окно, в котором push-обновление делает более старый локальный ответ устаревшим
	PushLookback   time.Duration
	CoalesceWindow time.Duration
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		LoopThreshold:  10,
		LoopWindow:     2 * time.Second,
		HistoryLimit:   50,
		PushLookback:   5 * time.Second,
		CoalesceWindow: conflict.DefaultCoalesceWindow,
	}
}

// Store доступ к кэшу, нужный трекеру.
//
//go:generate moq -out store_mock.go . Store
type Store interface {
	Get(key models.EntityKey) (models.CacheEntry, bool)
	Advance(key models.EntityKey, cause string, hint uint64) uint64
}

// ConflictHandler получает каждое разрешение конфликта. Вызывается без удержания блокировок.
type ConflictHandler func(res models.ConflictResolution)

// Result результат регистрации запроса.
type Result struct {
	// Conflict заполнен, если запрос конфликтует с активными запросами того же ключа
	Conflict   *models.ConflictResolution
	ID         models.RequestID
	Registered bool
}

// Tracker реестр запросов в процессе выполнения.
type Tracker struct {
	clock      schedule.Clock
	store      Store
	logger     *slog.Logger
	detector   *conflict.Detector
	resolvers  *conflict.Registry
	onConflict ConflictHandler
	active     map[models.RequestID]models.RequestRecord
	history    map[models.EntityKey][]models.RequestRecord
	pending    map[models.EntityKey]models.ConflictResolution
	cfg        Config
	mu         sync.Mutex
}

// New creates a tracker. resolvers may be nil, in which case the default strategies apply.
func New(cfg Config, clock schedule.Clock, store Store, resolvers *conflict.Registry, logger *slog.Logger) *Tracker {
	if resolvers == nil {
		resolvers = conflict.NewRegistry()
	}
	return &Tracker{
		cfg:       cfg,
		clock:     clock,
		store:     store,
		logger:    logger,
		detector:  conflict.NewDetector(cfg.CoalesceWindow),
		resolvers: resolvers,
		active:    make(map[models.RequestID]models.RequestRecord),
		history:   make(map[models.EntityKey][]models.RequestRecord),
		pending:   make(map[models.EntityKey]models.ConflictResolution),
	}
}

// OnConflict устанавливает обработчик разрешённых конфликтов.
func (t *Tracker) OnConflict(h ConflictHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onConflict = h
}

// Track регистрирует запрос и возвращает его идентификатор.
// Второе значение false, если сработала защита от циклов: запрос не зарегистрирован,
// мутация при этом не отклоняется.
func (t *Tracker) Track(key models.EntityKey, op models.Operation, source models.Source) (models.RequestID, bool) {
	res := t.TrackValue(key, op, source, nil)
	return res.ID, res.Registered
}

// TrackValue как Track, но учитывает входящее значение при разрешении конфликта
// (VersionBased сравнивает его версию с кэшем).
func (t *Tracker) TrackValue(key models.EntityKey, op models.Operation, source models.Source, incoming models.Value) Result {
	now := t.clock.Now()
	record := models.RequestRecord{
		ID:        models.NewRequestID(),
		Key:       key,
		Operation: op,
		Source:    source,
		Timestamp: now,
	}

	t.mu.Lock()

	active := t.activeLocked(key)
	recent := 0
	for _, r := range active {
		if now.Sub(r.Timestamp) < t.cfg.LoopWindow {
			recent++
		}
	}
	if recent >= t.cfg.LoopThreshold {
		t.mu.Unlock()
		metrics.RequestsDropped.WithLabelValues(key.Type, "tracker").Inc()
		t.logger.Warn("Loop guard: request not tracked",
			"entity", key.String(),
			"operation", op,
			"source", source,
			"active", recent,
			"window", t.cfg.LoopWindow,
		)
		return Result{ID: record.ID}
	}

	t.active[record.ID] = record
	metrics.RequestsTracked.WithLabelValues(key.Type, string(source)).Inc()

	result := Result{ID: record.ID, Registered: true}
	conflicts := t.detector.Detect(record, active)
	if len(conflicts) == 0 {
		t.mu.Unlock()
		return result
	}

	res := t.resolveLocked(record, conflicts, incoming, now)
	handler := t.onConflict
	t.mu.Unlock()

	result.Conflict = &res
	if handler != nil {
		handler(res)
	}
	return result
}

// Complete помечает запрос завершённым и переносит его в историю.
// Успешное завершение продвигает версию ключа в кэше.
// Неизвестный или уже завершённый id игнорируется.
func (t *Tracker) Complete(id models.RequestID, success bool) bool {
	record, ok := t.finish(id, success)
	if !ok {
		return false
	}
	if success && t.store != nil {
		t.store.Advance(record.Key, string(id), 0)
	}
	return true
}

// Supersede завершает запрос, ответ которого устарел: запись уходит в историю,
// версия ключа не меняется.
func (t *Tracker) Supersede(id models.RequestID) bool {
	_, ok := t.finish(id, false)
	return ok
}

func (t *Tracker) finish(id models.RequestID, success bool) (models.RequestRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.active[id]
	if !ok {
		return models.RequestRecord{}, false
	}

	delete(t.active, id)
	record.Completed = true
	record.Success = success
	t.appendHistoryLocked(record)

	if len(t.activeLocked(record.Key)) == 0 {
		delete(t.pending, record.Key)
	}
	return record, true
}

// ShouldProcessPushUpdate сообщает, применять ли push-обновление с временем pushTime.
// Обновление отклоняется, если для ключа есть активный локальный запрос, начатый позже.
func (t *Tracker) ShouldProcessPushUpdate(key models.EntityKey, pushTime time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, r := range t.activeLocked(key) {
		if r.Source == models.SourceLocal && r.Timestamp.After(pushTime) {
			t.rejected(key, "push", "Push update older than in-flight local request", "push_time", pushTime, "request", r.ID)
			return false
		}
	}
	return true
}

// ShouldProcessLocalResponse сообщает, применять ли локальный ответ, полученный для запроса,
// начатого в responseTime. Ответ отклоняется, если за последние PushLookback пришло более новое push-обновление.
func (t *Tracker) ShouldProcessLocalResponse(key models.EntityKey, responseTime time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	horizon := t.clock.Now().Add(-t.cfg.PushLookback)
	for _, r := range t.history[key] {
		if r.Source != models.SourceRemote || r.Timestamp.Before(horizon) {
			continue
		}
		if r.Timestamp.After(responseTime) {
			t.rejected(key, "local", "Local response older than recent push", "response_time", responseTime, "push_time", r.Timestamp)
			return false
		}
	}
	return true
}

func (t *Tracker) rejected(key models.EntityKey, channel, msg string, args ...any) {
	metrics.ArbitrationRejected.WithLabelValues(key.Type, channel).Inc()
	t.logger.Debug(msg, append([]any{"entity", key.String()}, args...)...)
}

// AcceptPush разрешает push-обновление против активных запросов и кэша.
// Принятое обновление попадает в историю как завершённый удалённый запрос.
// Возвращает разрешение, если оно понадобилось (конфликт или сравнение версий).
func (t *Tracker) AcceptPush(key models.EntityKey, pushTime time.Time, incoming models.Value) (bool, *models.ConflictResolution) {
	op := models.OperationUpdate
	if incoming == nil {
		op = models.OperationDelete
	}
	record := models.RequestRecord{
		ID:        models.NewRequestID(),
		Key:       key,
		Operation: op,
		Source:    models.SourceRemote,
		Timestamp: pushTime,
	}

	t.mu.Lock()
	now := t.clock.Now()
	conflicts := t.detector.Detect(record, t.activeLocked(key))
	_, versioned := models.VersionOf(incoming)

	if len(conflicts) == 0 && !versioned {
		record.Completed, record.Success = true, true
		t.appendHistoryLocked(record)
		t.mu.Unlock()
		return true, nil
	}

	var res models.ConflictResolution
	var handler ConflictHandler
	if len(conflicts) > 0 {
		res = t.resolveLocked(record, conflicts, incoming, now)
		handler = t.onConflict
	} else {
		res = t.resolvers.Resolve(t.inputLocked(record, nil, incoming, now))
	}

	accepted := conflict.CandidateWins(res, record.ID)
	if accepted {
		record.Completed, record.Success = true, true
		t.appendHistoryLocked(record)
	}
	t.mu.Unlock()

	if handler != nil {
		handler(res)
	}
	return accepted, &res
}

// Active возвращает активные запросы ключа.
func (t *Tracker) Active(key models.EntityKey) []models.RequestRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeLocked(key)
}

// History возвращает копию истории завершённых запросов ключа, старые первыми.
func (t *Tracker) History(key models.EntityKey) []models.RequestRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	history := make([]models.RequestRecord, len(t.history[key]))
	copy(history, t.history[key])
	return history
}

// PendingResolution возвращает последнее неснятое разрешение конфликта ключа.
func (t *Tracker) PendingResolution(key models.EntityKey) (models.ConflictResolution, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	res, ok := t.pending[key]
	return res, ok
}

// ClearResolution снимает разрешение конфликта ключа (например, после ручного разрешения).
func (t *Tracker) ClearResolution(key models.EntityKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.pending[key]
	delete(t.pending, key)
	return ok
}

func (t *Tracker) resolveLocked(record models.RequestRecord, conflicts []models.RequestRecord, incoming models.Value, now time.Time) models.ConflictResolution {
	res := t.resolvers.Resolve(t.inputLocked(record, conflicts, incoming, now))
	t.pending[record.Key] = res
	metrics.Conflicts.WithLabelValues(record.Key.Type, string(res.Strategy)).Inc()

	if res.NeedsManual() {
		t.logger.Warn("Conflict requires manual resolution",
			"entity", record.Key.String(),
			"request", record.ID,
			"conflicts", len(conflicts),
			"reason", res.Reason,
		)
	} else {
		t.logger.Info("Conflict resolved",
			"entity", record.Key.String(),
			"strategy", res.Strategy,
			"winner", res.Winner.ID,
			"reason", res.Reason,
		)
	}
	return res
}

func (t *Tracker) inputLocked(record models.RequestRecord, conflicts []models.RequestRecord, incoming models.Value, now time.Time) conflict.Input {
	in := conflict.Input{
		Now:       now,
		Candidate: record,
		Conflicts: conflicts,
		Incoming:  incoming,
	}
	if t.store != nil {
		if entry, ok := t.store.Get(record.Key); ok {
			in.Cached = &entry
		}
	}
	return in
}

// activeLocked возвращает активные записи ключа, упорядоченные по времени начала.
func (t *Tracker) activeLocked(key models.EntityKey) []models.RequestRecord {
	var out []models.RequestRecord
	for _, r := range t.active {
		if r.Key == key {
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out
}

func (t *Tracker) appendHistoryLocked(record models.RequestRecord) {
	history := append(t.history[record.Key], record)
	if limit := t.cfg.HistoryLimit; limit > 0 && len(history) > limit {
		history = append(history[:0:0], history[len(history)-limit:]...)
	}
	t.history[record.Key] = history
}

func sortRecords(records []models.RequestRecord) {
	slices.SortFunc(records, func(a, b models.RequestRecord) int {
		switch {
		case a.IsNewerThan(b):
			return 1
		case b.IsNewerThan(a):
			return -1
		}
		return 0
	})
}
