package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/client/cache"
	"github.com/iudanet/gophsync/internal/client/subscribers"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/schedule"
)

var (
	t0     = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	keyABC = models.NewEntityKey(models.EntityTypeDomain, "abc")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingStore считает записи в кэш
type countingStore struct {
	*cache.Cache
	writes int
}

func (s *countingStore) Put(key models.EntityKey, value models.Value, version uint64) bool {
	s.writes++
	return s.Cache.Put(key, value, version)
}

func (s *countingStore) Set(key models.EntityKey, value models.Value) uint64 {
	s.writes++
	return s.Cache.Set(key, value)
}

func (s *countingStore) Delete(key models.EntityKey) bool {
	s.writes++
	return s.Cache.Delete(key)
}

func (s *countingStore) InvalidateType(entityType string) int {
	s.writes++
	return s.Cache.InvalidateType(entityType)
}

type instance struct {
	broadcaster *Broadcaster
	store       *countingStore
	registry    *subscribers.Registry
}

func newInstance(t *testing.T, origin string, transport Transport, clock *schedule.Manual) *instance {
	t.Helper()

	logger := discardLogger()
	inst := &instance{
		broadcaster: NewWithOrigin(origin, transport, clock, logger),
		store:       &countingStore{Cache: cache.New(clock, time.Minute)},
		registry:    subscribers.New(logger),
	}
	applier := NewApplier(inst.store, inst.registry, nil, logger)
	inst.broadcaster.OnMessage(applier.Handle)
	inst.broadcaster.Start()
	t.Cleanup(inst.broadcaster.Stop)
	return inst
}

func TestBroadcaster_SelfEchoIgnored(t *testing.T) {
	clock := schedule.NewManual(t0)
	bus := NewBus()
	inst := newInstance(t, "origin-a", bus, clock)

	for i := 0; i < 5; i++ {
		msg := models.SyncMessage{
			Kind:       models.MessageUpdate,
			EntityType: models.EntityTypeDomain,
			EntityID:   "abc",
			Payload:    models.DomainState{Status: "validated"},
			OriginID:   "origin-a",
			Timestamp:  t0.UnixMilli(),
		}
		data, err := json.Marshal(msg)
		require.NoError(t, err)
		require.NoError(t, bus.Send(context.Background(), data))
	}
	// Публикация через сам broadcaster тоже возвращается эхом по шине
	require.NoError(t, inst.broadcaster.Publish(context.Background(), models.SyncMessage{
		Kind:       models.MessageInvalidate,
		EntityType: models.EntityTypeDomain,
	}))

	assert.Equal(t, 0, inst.store.writes)
	_, ok := inst.store.Value(keyABC)
	assert.False(t, ok)
}

func TestBroadcaster_CrossInstance(t *testing.T) {
	clock := schedule.NewManual(t0)
	bus := NewBus()
	a := newInstance(t, "origin-a", bus, clock)
	b := newInstance(t, "origin-b", bus, clock)

	var seen []models.Value
	b.registry.Subscribe(models.EntityTypeDomain, func(_ models.EntityKey, v models.Value) {
		seen = append(seen, v)
	})

	require.NoError(t, a.broadcaster.Publish(context.Background(), models.SyncMessage{
		Kind:       models.MessageUpdate,
		EntityType: models.EntityTypeDomain,
		EntityID:   "abc",
		Payload:    models.DomainState{Status: "validated"},
		Version:    2,
	}))

	entry, ok := b.store.Get(keyABC)
	require.True(t, ok)
	assert.Equal(t, models.DomainState{Status: "validated"}, entry.Value)
	assert.Equal(t, uint64(2), entry.Version)
	assert.Equal(t, []models.Value{models.DomainState{Status: "validated"}}, seen)
	assert.Equal(t, 0, a.store.writes, "sender ignores its own echo")

	// Устаревшая версия отклоняется
	require.NoError(t, a.broadcaster.Publish(context.Background(), models.SyncMessage{
		Kind:       models.MessageRollback,
		EntityType: models.EntityTypeDomain,
		EntityID:   "abc",
		Payload:    models.DomainState{Status: "pending"},
		Version:    1,
	}))
	value, _ := b.store.Value(keyABC)
	assert.Equal(t, models.DomainState{Status: "validated"}, value)
	assert.Len(t, seen, 1)
}

func TestApplier_Kinds(t *testing.T) {
	clock := schedule.NewManual(t0)
	store := cache.New(clock, time.Minute)
	registry := subscribers.New(discardLogger())
	applier := NewApplier(store, registry, nil, discardLogger())

	var notified []models.Value
	registry.Subscribe(models.EntityTypeDomain, func(_ models.EntityKey, v models.Value) {
		notified = append(notified, v)
	})

	other := models.NewEntityKey(models.EntityTypeDomain, "other")
	store.Put(other, models.DomainState{Status: "pending"}, 1)

	assert.True(t, applier.Apply(models.SyncMessage{
		Kind: models.MessageUpdate, EntityType: models.EntityTypeDomain, EntityID: "abc",
		Payload: models.DomainState{Status: "validated"},
	}))
	value, ok := store.Value(keyABC)
	require.True(t, ok)
	assert.Equal(t, models.DomainState{Status: "validated"}, value)

	// Rollback без значения удаляет сущность
	assert.True(t, applier.Apply(models.SyncMessage{
		Kind: models.MessageRollback, EntityType: models.EntityTypeDomain, EntityID: "abc",
	}))
	_, ok = store.Value(keyABC)
	assert.False(t, ok)

	assert.True(t, applier.Apply(models.SyncMessage{
		Kind: models.MessageInvalidate, EntityType: models.EntityTypeDomain, EntityID: "other",
	}))
	_, ok = store.Value(other)
	assert.False(t, ok)
	assert.False(t, applier.Apply(models.SyncMessage{
		Kind: models.MessageInvalidate, EntityType: models.EntityTypeDomain, EntityID: "other",
	}), "nothing left to invalidate")

	store.Put(keyABC, models.DomainState{Status: "a"}, 5)
	store.Put(other, models.DomainState{Status: "b"}, 5)
	assert.True(t, applier.Apply(models.SyncMessage{Kind: models.MessageInvalidate, EntityType: models.EntityTypeDomain}))
	assert.Empty(t, store.Keys(models.EntityTypeDomain))
	assert.Equal(t, uint64(5), store.Version(keyABC), "invalidation keeps versions")

	assert.Equal(t, []models.Value{models.DomainState{Status: "validated"}, nil, nil}, notified)
}

type arbiterFunc func(models.EntityKey, time.Time) bool

func (f arbiterFunc) ShouldProcessPushUpdate(key models.EntityKey, ts time.Time) bool { return f(key, ts) }

func TestApplier_ArbitratesUpdates(t *testing.T) {
	clock := schedule.NewManual(t0)
	store := cache.New(clock, time.Minute)
	var gotTime time.Time
	applier := NewApplier(store, subscribers.New(discardLogger()), arbiterFunc(func(_ models.EntityKey, ts time.Time) bool {
		gotTime = ts
		return false
	}), discardLogger())

	assert.False(t, applier.Apply(models.SyncMessage{
		Kind: models.MessageUpdate, EntityType: models.EntityTypeDomain, EntityID: "abc",
		Payload: models.DomainState{Status: "error"}, Timestamp: t0.UnixMilli(),
	}))
	assert.True(t, gotTime.Equal(t0))
	_, ok := store.Value(keyABC)
	assert.False(t, ok)
}

func TestBroadcaster_InvalidMessageDropped(t *testing.T) {
	clock := schedule.NewManual(t0)
	bus := NewBus()
	inst := newInstance(t, "origin-a", bus, clock)

	called := false
	inst.broadcaster.OnMessage(func(context.Context, models.SyncMessage) { called = true })

	for _, raw := range []string{
		`not json`,
		`{"kind":"update","entityType":"spaceship","entityId":"x","payload":{},"timestamp":1,"originId":"b"}`,
		`{"kind":"update","entityType":"domain","entityId":"abc","payload":{"status":"ok","extra":1},"timestamp":1,"originId":"b"}`,
		`{"kind":"explode","entityType":"domain","timestamp":1,"originId":"b"}`,
	} {
		require.NoError(t, bus.Send(context.Background(), []byte(raw)))
	}

	assert.False(t, called)
	assert.Equal(t, 0, inst.store.writes)
}

func TestBroadcaster_PublishErrors(t *testing.T) {
	clock := schedule.NewManual(t0)
	transport := &TransportMock{
		SendFunc:      func(context.Context, []byte) error { return errors.New("relay down") },
		SubscribeFunc: func(func([]byte)) func() { return func() {} },
	}
	b := NewWithOrigin("origin-a", transport, clock, discardLogger())

	err := b.Publish(context.Background(), models.SyncMessage{Kind: models.MessageInvalidate, EntityType: models.EntityTypeDomain})
	assert.ErrorContains(t, err, "relay down")

	err = b.Publish(context.Background(), models.SyncMessage{Kind: models.MessageUpdate, EntityType: models.EntityTypeDomain, EntityID: "abc"})
	assert.ErrorIs(t, err, models.ErrInvalidMessage, "update without payload is rejected before sending")
	assert.Len(t, transport.SendCalls(), 1)

	require.Len(t, transport.SendCalls(), 1)
	var sent map[string]any
	require.NoError(t, json.Unmarshal(transport.SendCalls()[0].Data, &sent))
	assert.Equal(t, "origin-a", sent["originId"])
	assert.EqualValues(t, t0.UnixMilli(), sent["timestamp"])
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	unsubscribe := bus.Subscribe(func([]byte) { calls++ })

	require.NoError(t, bus.Send(context.Background(), []byte("x")))
	unsubscribe()
	unsubscribe()
	require.NoError(t, bus.Send(context.Background(), []byte("x")))
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bus.Send(ctx, []byte("x")), context.Canceled)
}
