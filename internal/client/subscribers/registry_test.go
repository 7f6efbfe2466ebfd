package subscribers

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/gophsync/internal/models"
)

func newTestRegistry() *Registry {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegistry_NotifyByType(t *testing.T) {
	r := newTestRegistry()
	key := models.NewEntityKey(models.EntityTypeDomain, "abc")

	var domains, campaigns []models.Value
	r.Subscribe(models.EntityTypeDomain, func(k models.EntityKey, v models.Value) {
		assert.Equal(t, key, k)
		domains = append(domains, v)
	})
	r.Subscribe(models.EntityTypeCampaign, func(_ models.EntityKey, v models.Value) {
		campaigns = append(campaigns, v)
	})

	r.Notify(key, models.DomainState{Status: "validated"})
	r.Notify(key, nil)

	assert.Equal(t, []models.Value{models.DomainState{Status: "validated"}, nil}, domains)
	assert.Empty(t, campaigns)
}

func TestRegistry_PanicIsolated(t *testing.T) {
	r := newTestRegistry()
	key := models.NewEntityKey(models.EntityTypeDomain, "abc")

	var order []string
	r.Subscribe(models.EntityTypeDomain, func(models.EntityKey, models.Value) {
		order = append(order, "first")
		panic("boom")
	})
	r.Subscribe(models.EntityTypeDomain, func(models.EntityKey, models.Value) {
		order = append(order, "second")
	})

	assert.NotPanics(t, func() { r.Notify(key, models.DomainState{Status: "x"}) })
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestRegistry_Unsubscribe(t *testing.T) {
	r := newTestRegistry()
	key := models.NewEntityKey(models.EntityTypeDomain, "abc")

	calls := 0
	unsubscribe := r.Subscribe(models.EntityTypeDomain, func(models.EntityKey, models.Value) { calls++ })
	keep := r.Subscribe(models.EntityTypeDomain, func(models.EntityKey, models.Value) {})
	defer keep()

	r.Notify(key, nil)
	unsubscribe()
	unsubscribe()
	r.Notify(key, nil)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, r.Count(models.EntityTypeDomain))
}

func TestRegistry_UnsubscribeDuringNotify(t *testing.T) {
	r := newTestRegistry()
	key := models.NewEntityKey(models.EntityTypeDomain, "abc")

	var unsubscribe func()
	calls := 0
	unsubscribe = r.Subscribe(models.EntityTypeDomain, func(models.EntityKey, models.Value) {
		calls++
		unsubscribe()
	})

	r.Notify(key, nil)
	r.Notify(key, nil)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, r.Count(models.EntityTypeDomain))
}
