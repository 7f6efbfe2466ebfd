package broadcast

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Bus in-process транспорт: все подписчики получают каждое сообщение, включая отправителя.
// Доставка синхронная, в порядке подписки.
type Bus struct {
	subs   map[uint64]func([]byte)
	nextID uint64
	mu     sync.RWMutex
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]func([]byte))}
}

// Send delivers data to every subscriber.
func (b *Bus) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	handlers := maps.Clone(b.subs)
	b.mu.RUnlock()

	for _, id := range slices.Sorted(maps.Keys(handlers)) {
		// Копия: получатели не должны видеть изменения буфера друг друга
		msg := make([]byte, len(data))
		copy(msg, data)
		handlers[id](msg)
	}
	return nil
}

// Subscribe implements Transport.
func (b *Bus) Subscribe(handler func(data []byte)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
		})
	}
}
