// Package schedule предоставляет источник времени и отменяемые отложенные задачи.
// Все таймеры движка (debounce, TTL sweep, истечение pending обновлений) создаются через Scheduler,
// поэтому в тестах их можно выполнять детерминированно (см. Manual).
package schedule

import (
	"sync"
	"time"
)

// Clock источник текущего времени.
type Clock interface {
	Now() time.Time
}

// Task отложенная задача. Stop отменяет её и возвращает false, если задача уже выполнена или отменена.
type Task interface {
	Stop() bool
}

// Scheduler планирует отложенные задачи.
type Scheduler interface {
	Clock
	AfterFunc(d time.Duration, fn func()) Task
}

// System реальный Scheduler на основе time.AfterFunc.
type System struct{}

// Now returns the wall clock time.
func (System) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules fn on its own goroutine after d.
func (System) AfterFunc(d time.Duration, fn func()) Task {
	return time.AfterFunc(d, fn)
}

// periodic перепланирует себя после каждого запуска, пока не будет остановлена.
type periodic struct {
	s        Scheduler
	fn       func()
	current  Task
	interval time.Duration
	mu       sync.Mutex
	stopped  bool
}

// Every запускает fn каждые interval, пока возвращённая задача не будет остановлена.
// Запуски не перекрываются: следующий планируется только после завершения fn.
func Every(s Scheduler, interval time.Duration, fn func()) Task {
	p := &periodic{s: s, fn: fn, interval: interval}
	p.mu.Lock()
	p.current = s.AfterFunc(interval, p.run)
	p.mu.Unlock()
	return p
}

func (p *periodic) run() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.fn()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.current = p.s.AfterFunc(p.interval, p.run)
	}
}

// Stop cancels the periodic task.
func (p *periodic) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return false
	}
	p.stopped = true
	if p.current != nil {
		p.current.Stop()
	}
	return true
}
