// Package gate схлопывает всплески одинаковых операций: debounce откладывает вызов
// до паузы, дедупликация разделяет один результат между вызовами с одинаковой сигнатурой.
package gate

import (
	"sync"
	"time"

	"github.com/iudanet/gophsync/internal/schedule"
)

type debounced struct {
	task schedule.Task
	gen  uint64
}

// Debouncer вызывает только последнее действие для ключа, если за delay не было новых вызовов.
type Debouncer struct {
	sched schedule.Scheduler
	tasks map[string]debounced
	gen   uint64
	mu    sync.Mutex
}

// NewDebouncer creates a debouncer on the given scheduler.
func NewDebouncer(sched schedule.Scheduler) *Debouncer {
	return &Debouncer{
		sched: sched,
		tasks: make(map[string]debounced),
	}
}

// Debounce отменяет запланированный вызов для key и планирует action через delay.
func (d *Debouncer) Debounce(key string, delay time.Duration, action func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.tasks[key]; ok {
		prev.task.Stop()
	}

	d.gen++
	gen := d.gen
	task := d.sched.AfterFunc(delay, func() {
		d.mu.Lock()
		current, ok := d.tasks[key]
		// Задача могла быть заменена после срабатывания таймера
		if !ok || current.gen != gen {
			d.mu.Unlock()
			return
		}
		delete(d.tasks, key)
		d.mu.Unlock()

		action()
	})
	d.tasks[key] = debounced{task: task, gen: gen}
}

// Cancel отменяет запланированный вызов для key.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.tasks[key]
	if !ok {
		return false
	}
	t.task.Stop()
	delete(d.tasks, key)
	return true
}

// Pending returns the number of scheduled invocations.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

// Stop отменяет все запланированные вызовы.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, t := range d.tasks {
		t.task.Stop()
		delete(d.tasks, key)
	}
}
