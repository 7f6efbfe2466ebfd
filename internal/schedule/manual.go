package schedule

import (
	"sync"
	"time"
)

// Manual Scheduler для тестов: время двигается только через Advance,
// задачи выполняются синхронно в вызывающей горутине в порядке срабатывания.
type Manual struct {
	now   time.Time
	tasks []*manualTask
	seq   int
	mu    sync.Mutex
}

type manualTask struct {
	at      time.Time
	m       *Manual
	fn      func()
	seq     int
	stopped bool
	fired   bool
}

// NewManual creates a manual scheduler starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc registers fn to run once the clock has advanced by d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTask{at: m.now.Add(d), m: m, fn: fn, seq: m.seq}
	m.tasks = append(m.tasks, t)
	return t
}

// Advance двигает время вперёд на d, выполняя все задачи, которые становятся due.
// Задачи, запланированные во время выполнения других задач, тоже выполняются, если попадают в окно.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDueLocked(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		if next.at.After(m.now) {
			m.now = next.at
		}
		next.fired = true
		m.removeLocked(next)
		m.mu.Unlock()

		next.fn()
	}
}

// Set перемещает часы на t без выполнения задач. Используется для симуляции "заснувшей" вкладки.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Pending returns the number of scheduled, not yet fired tasks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *Manual) nextDueLocked(target time.Time) *manualTask {
	var next *manualTask
	for _, t := range m.tasks {
		if t.at.After(target) {
			continue
		}
		if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

func (m *Manual) removeLocked(task *manualTask) {
	for i, t := range m.tasks {
		if t == task {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return
		}
	}
}

// Stop cancels the task if it has not fired yet.
func (t *manualTask) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	t.m.removeLocked(t)
	return true
}
