// Package cache реализует TTL кэш последних известных авторитетных значений сущностей
// вместе с монотонным счётчиком версий на ключ.
package cache

import (
	"sync"
	"time"

	"github.com/iudanet/gophsync/internal/metrics"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/schedule"
)

// Record элемент снимка кэша. Entry.Value == nil означает, что значения нет,
// но версия ключа сохраняется (монотонность переживает вытеснение).
type Record struct {
	Key   models.EntityKey
	Entry models.CacheEntry
}

// Cache TTL кэш с версиями.
// Версия ключа хранится отдельно от значения: вытеснение по TTL или инвалидация
// удаляют значение, но версия никогда не уменьшается.
type Cache struct {
	entries  map[models.EntityKey]models.CacheEntry
	versions map[models.EntityKey]uint64
	causes   map[models.EntityKey]string // последний cause, продвинувший версию (см. Advance)
	clock    schedule.Clock
	ttl      time.Duration
	mu       sync.RWMutex
}

// New creates a cache whose entries expire ttl after their last write.
func New(clock schedule.Clock, ttl time.Duration) *Cache {
	return &Cache{
		entries:  make(map[models.EntityKey]models.CacheEntry),
		versions: make(map[models.EntityKey]uint64),
		causes:   make(map[models.EntityKey]string),
		clock:    clock,
		ttl:      ttl,
	}
}

// Get возвращает запись, если она есть и не истекла.
// Истёкшая запись считается устаревшей и не возвращается, даже если sweep ещё не прошёл.
func (c *Cache) Get(key models.EntityKey) (models.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || entry.Expired(c.clock.Now()) {
		return models.CacheEntry{}, false
	}
	entry.Version = c.versions[key]
	return entry, true
}

// Value returns the cached value for key, if fresh.
func (c *Cache) Value(key models.EntityKey) (models.Value, bool) {
	entry, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// Version возвращает текущую версию ключа (0, если ключ ни разу не записывался).
func (c *Cache) Version(key models.EntityKey) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions[key]
}

// Set записывает значение, не меняя версию. Используется для спекулятивных записей
// и восстановления prior значения при откате. nil удаляет значение.
func (c *Cache) Set(key models.EntityKey, value models.Value) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if value == nil {
		c.deleteLocked(key, "rollback")
		return c.versions[key]
	}
	c.writeLocked(key, value)
	return c.versions[key]
}

// Put записывает авторитетное значение с версией.
// Запись принимается только если version >= текущей версии ключа; версия становится max(текущая, version).
// Возвращает false, если значение отклонено как устаревшее.
func (c *Cache) Put(key models.EntityKey, value models.Value, version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.versions[key]
	if version < current {
		return false
	}
	c.versions[key] = version

	if value == nil {
		c.deleteLocked(key, "remote_delete")
		return true
	}
	c.writeLocked(key, value)
	return true
}

// Advance продвигает версию ключа и возвращает новую версию.
// hint версия, назначенная авторитетом (0 = неизвестна). Известная версия авторитета
// принимается как есть (версия = max(текущая, hint)), локального шага нет.
// Без hint версия растёт на единицу, но повторный вызов с тем же cause подряд её не меняет:
// подтверждение запроса трекером и подтверждение связанного оптимистичного обновления
// дают ровно один шаг версии.
func (c *Cache) Advance(key models.EntityKey, cause string, hint uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advanceLocked(key, cause, hint)
}

// Commit атомарно продвигает версию (как Advance) и записывает значение. nil удаляет значение.
func (c *Cache) Commit(key models.EntityKey, value models.Value, cause string, hint uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	version := c.advanceLocked(key, cause, hint)
	if value == nil {
		c.deleteLocked(key, "remote_delete")
	} else {
		c.writeLocked(key, value)
	}
	return version
}

func (c *Cache) advanceLocked(key models.EntityKey, cause string, hint uint64) uint64 {
	current := c.versions[key]
	next := current + 1
	switch {
	case hint > 0:
		next = max(current, hint)
	case cause != "" && c.causes[key] == cause:
		next = current
	}
	c.versions[key] = next
	c.causes[key] = cause
	return next
}

// Delete удаляет значение ключа; версия сохраняется.
func (c *Cache) Delete(key models.EntityKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteLocked(key, "invalidate")
}

// InvalidateType удаляет все значения заданного типа сущности.
func (c *Cache) InvalidateType(entityType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if key.Type == entityType && c.deleteLocked(key, "invalidate") {
			removed++
		}
	}
	return removed
}

// Sweep удаляет все истёкшие записи и возвращает их количество.
// Может вызываться с любой задержкой: истёкшие записи просто удаляются при следующем запуске.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for key, entry := range c.entries {
		if entry.Expired(now) && c.deleteLocked(key, "expired") {
			removed++
		}
	}
	return removed
}

// Len returns the number of stored values, including expired ones not yet swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys возвращает ключи свежих записей заданного типа ("" = все типы).
func (c *Cache) Keys(entityType string) []models.EntityKey {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock.Now()
	keys := make([]models.EntityKey, 0, len(c.entries))
	for key, entry := range c.entries {
		if entityType != "" && key.Type != entityType {
			continue
		}
		if entry.Expired(now) {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// Snapshot возвращает все свежие записи и версии ключей без значений.
func (c *Cache) Snapshot() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock.Now()
	records := make([]Record, 0, len(c.versions))
	for key, version := range c.versions {
		entry, ok := c.entries[key]
		if !ok || entry.Expired(now) {
			records = append(records, Record{Key: key, Entry: models.CacheEntry{Version: version}})
			continue
		}
		entry.Version = version
		records = append(records, Record{Key: key, Entry: entry})
	}
	return records
}

// Restore загружает записи из снимка. Версии объединяются по максимуму,
// существующие более новые значения не перезаписываются.
func (c *Cache) Restore(records []Record) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	restored := 0
	for _, r := range records {
		current := c.versions[r.Key]
		_, exists := c.entries[r.Key]
		if r.Entry.Version < current || (r.Entry.Version == current && exists) {
			continue
		}
		c.versions[r.Key] = r.Entry.Version
		if r.Entry.Value == nil || r.Entry.Expired(now) {
			continue
		}
		if !exists {
			metrics.CacheEntries.Inc()
		}
		c.entries[r.Key] = r.Entry
		restored++
	}
	return restored
}

func (c *Cache) writeLocked(key models.EntityKey, value models.Value) {
	if _, exists := c.entries[key]; !exists {
		metrics.CacheEntries.Inc()
	}
	c.entries[key] = models.CacheEntry{
		Value:     value,
		WrittenAt: c.clock.Now(),
		TTL:       c.ttl,
	}
}

func (c *Cache) deleteLocked(key models.EntityKey, reason string) bool {
	if _, exists := c.entries[key]; !exists {
		return false
	}
	delete(c.entries, key)
	metrics.CacheEntries.Dec()
	metrics.CacheEvictions.WithLabelValues(reason).Inc()
	return true
}
