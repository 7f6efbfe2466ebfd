package conflict

import (
	"fmt"
	"sync"
	"time"

	"github.com/iudanet/gophsync/internal/models"
)

// Input данные для разрешения конфликта по одному ключу.
type Input struct {
	Now time.Time
	// Incoming входящее значение кандидата (может быть nil, например для delete)
	Incoming models.Value
	// Cached текущая запись кэша (nil, если значения нет)
	Cached    *models.CacheEntry
	Candidate models.RequestRecord
	Conflicts []models.RequestRecord
}

// Resolver выбирает победителя среди конфликтующих записей.
type Resolver interface {
	Resolve(in Input) models.ConflictResolution
}

// ResolverFunc адаптер функции к Resolver.
type ResolverFunc func(in Input) models.ConflictResolution

// Resolve calls f(in).
func (f ResolverFunc) Resolve(in Input) models.ConflictResolution {
	return f(in)
}

// LastWriteWins побеждает запись с наибольшим временем начала.
// Если две лучшие записи начались одновременно и пришли из разных источников,
// победителя нет и результат требует ручного разрешения.
type LastWriteWins struct{}

// Resolve implements Resolver.
func (LastWriteWins) Resolve(in Input) models.ConflictResolution {
	return pick(in, models.StrategyLastWriteWins, func(a, b models.RequestRecord) bool {
		return a.IsNewerThan(b)
	})
}

// FirstWriteWins побеждает запись с наименьшим временем начала.
type FirstWriteWins struct{}

// Resolve implements Resolver.
func (FirstWriteWins) Resolve(in Input) models.ConflictResolution {
	return pick(in, models.StrategyFirstWriteWins, func(a, b models.RequestRecord) bool {
		return b.IsNewerThan(a)
	})
}

// VersionBased сравнивает версию входящего значения с версией кэша:
// входящее значение побеждает только при строго большей версии.
// Если у входящего значения нет версии, используется LastWriteWins.
type VersionBased struct{}

// Resolve implements Resolver.
func (VersionBased) Resolve(in Input) models.ConflictResolution {
	incoming, ok := models.VersionOf(in.Incoming)
	if !ok {
		return LastWriteWins{}.Resolve(in)
	}

	res := models.ConflictResolution{
		DecidedAt: in.Now,
		Key:       in.Candidate.Key,
		Strategy:  models.StrategyVersionBased,
	}

	// Нечего сравнивать: входящее значение побеждает
	if in.Cached == nil || in.Cached.Value == nil {
		res.IncomingWins = true
		res.WinningValue = in.Incoming
		res.Winner = in.Candidate
		res.Losing = in.Conflicts
		res.Reason = fmt.Sprintf("no cached value, incoming version %d", incoming)
		return res
	}

	cached, ok := models.VersionOf(in.Cached.Value)
	if !ok {
		cached = in.Cached.Version
	}

	if incoming > cached {
		res.IncomingWins = true
		res.WinningValue = in.Incoming
		res.Winner = in.Candidate
		res.Losing = in.Conflicts
		res.Reason = fmt.Sprintf("incoming version %d > cached %d", incoming, cached)
		return res
	}

	res.WinningValue = in.Cached.Value
	res.Losing = []models.RequestRecord{in.Candidate}
	if len(in.Conflicts) > 0 {
		res.Winner = newest(in.Conflicts)
	}
	res.Reason = fmt.Sprintf("incoming version %d <= cached %d", incoming, cached)
	return res
}

// Manual всегда откладывает решение вызывающему.
type Manual struct{}

// Resolve implements Resolver.
func (Manual) Resolve(in Input) models.ConflictResolution {
	return models.ConflictResolution{
		DecidedAt: in.Now,
		Key:       in.Candidate.Key,
		Strategy:  models.StrategyManual,
		Losing:    all(in),
		Reason:    "manual resolution required",
	}
}

// Default стратегия по умолчанию: VersionBased, если входящее значение несёт версию,
// иначе LastWriteWins.
type Default struct{}

// Resolve implements Resolver.
func (Default) Resolve(in Input) models.ConflictResolution {
	if _, ok := models.VersionOf(in.Incoming); ok {
		return VersionBased{}.Resolve(in)
	}
	return LastWriteWins{}.Resolve(in)
}

// Registry хранит резолверы по типу сущности.
type Registry struct {
	byType   map[string]Resolver
	fallback Resolver
	mu       sync.RWMutex
}

// NewRegistry creates a registry that falls back to Default for unregistered types.
func NewRegistry() *Registry {
	return &Registry{
		byType:   make(map[string]Resolver),
		fallback: Default{},
	}
}

// Register устанавливает резолвер для типа сущности. nil удаляет регистрацию.
func (r *Registry) Register(entityType string, resolver Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if resolver == nil {
		delete(r.byType, entityType)
		return
	}
	r.byType[entityType] = resolver
}

// Resolver returns the resolver used for entityType.
func (r *Registry) Resolver(entityType string) Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if resolver, ok := r.byType[entityType]; ok {
		return resolver
	}
	return r.fallback
}

// Resolve разрешает конфликт резолвером типа кандидата.
func (r *Registry) Resolve(in Input) models.ConflictResolution {
	return r.Resolver(in.Candidate.Key.Type).Resolve(in)
}

// CandidateWins сообщает, побеждает ли кандидат в результате res.
func CandidateWins(res models.ConflictResolution, candidate models.RequestID) bool {
	switch res.Strategy {
	case models.StrategyManual:
		return false
	case models.StrategyVersionBased:
		return res.IncomingWins
	default:
		return res.Winner.ID == candidate
	}
}

// pick выбирает лучшую запись по better. Ничья по времени между разными источниками
// даёт StrategyManual: ULID разных экземпляров не упорядочивает их осмысленно.
func pick(in Input, strategy models.Strategy, better func(a, b models.RequestRecord) bool) models.ConflictResolution {
	records := all(in)
	res := models.ConflictResolution{
		DecidedAt: in.Now,
		Key:       in.Candidate.Key,
		Strategy:  strategy,
	}

	best := 0
	for i := 1; i < len(records); i++ {
		if better(records[i], records[best]) {
			best = i
		}
	}

	for i, r := range records {
		if i == best {
			continue
		}
		if r.Timestamp.Equal(records[best].Timestamp) && r.Source != records[best].Source {
			res.Strategy = models.StrategyManual
			res.Losing = records
			res.Reason = fmt.Sprintf("%s and %s requests started at the same instant", records[best].Source, r.Source)
			return res
		}
	}

	res.Winner = records[best]
	res.Losing = make([]models.RequestRecord, 0, len(records)-1)
	for i, r := range records {
		if i != best {
			res.Losing = append(res.Losing, r)
		}
	}
	res.Reason = fmt.Sprintf("%s request %s wins", res.Winner.Source, res.Winner.ID)
	if in.Candidate.ID == res.Winner.ID {
		res.WinningValue = in.Incoming
	}
	return res
}

func all(in Input) []models.RequestRecord {
	records := make([]models.RequestRecord, 0, len(in.Conflicts)+1)
	records = append(records, in.Candidate)
	records = append(records, in.Conflicts...)
	return records
}

func newest(records []models.RequestRecord) models.RequestRecord {
	best := records[0]
	for _, r := range records[1:] {
		if r.IsNewerThan(best) {
			best = r
		}
	}
	return best
}
