package gate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/iudanet/gophsync/internal/metrics"
	"github.com/iudanet/gophsync/internal/schedule"
)

// DefaultDedupTTL время, в течение которого завершённый результат переиспользуется.
const DefaultDedupTTL = 5 * time.Second

type completed struct {
	at    time.Time
	value any
}

// Deduplicator разделяет выполнение между вызовами с одинаковой сигнатурой:
// выполняющийся вызов разделяется через singleflight, успешно завершённый
// переиспользуется в течение ttl. Ошибки не кэшируются.
type Deduplicator struct {
	clock  schedule.Clock
	group  singleflight.Group
	recent *expirable.LRU[string, completed]
	ttl    time.Duration
}

// NewDeduplicator creates a deduplicator keeping up to size recent results.
// ttl is the default and the upper bound for per-call ttl values.
func NewDeduplicator(clock schedule.Clock, ttl time.Duration, size int) *Deduplicator {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &Deduplicator{
		clock:  clock,
		recent: expirable.NewLRU[string, completed](size, nil, ttl),
		ttl:    ttl,
	}
}

// Forget удаляет завершённый результат сигнатуры.
func (d *Deduplicator) Forget(signature string) {
	d.recent.Remove(signature)
	d.group.Forget(signature)
}

// Len returns the number of remembered results, expired ones included until purged.
func (d *Deduplicator) Len() int {
	return d.recent.Len()
}

func (d *Deduplicator) do(ctx context.Context, signature string, ttl time.Duration, produce func(context.Context) (any, error)) (any, bool, error) {
	if ttl <= 0 || ttl > d.ttl {
		ttl = d.ttl
	}

	if c, ok := d.recent.Get(signature); ok {
		if d.clock.Now().Sub(c.at) < ttl {
			metrics.DedupHits.Inc()
			return c.value, true, nil
		}
		d.recent.Remove(signature)
	}

	value, err, shared := d.group.Do(signature, func() (any, error) {
		v, err := produce(ctx)
		if err != nil {
			return nil, err
		}
		d.recent.Add(signature, completed{at: d.clock.Now(), value: v})
		return v, nil
	})
	if shared {
		metrics.DedupHits.Inc()
	}
	return value, shared, err
}

// Deduplicate выполняет produce или возвращает разделённый результат вызова с той же сигнатурой.
// Выполняющийся вызов получает ctx первого вызывающего.
// Второе значение true, если результат получен без нового выполнения.
func Deduplicate[T any](ctx context.Context, d *Deduplicator, signature string, ttl time.Duration, produce func(context.Context) (T, error)) (T, bool, error) {
	value, shared, err := d.do(ctx, signature, ttl, func(ctx context.Context) (any, error) {
		return produce(ctx)
	})
	var zero T
	if err != nil || value == nil {
		return zero, shared, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, shared, fmt.Errorf("dedup signature %s: result has type %T", signature, value)
	}
	return typed, shared, nil
}

// Signature строит сигнатуру запроса из метода, цели и тела.
func Signature(method, target string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(target))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
