package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_AdvanceFiresInOrder(t *testing.T) {
	m := NewManual(time.UnixMilli(0))

	var order []string
	m.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	m.AfterFunc(time.Second, func() { order = append(order, "a") })
	m.AfterFunc(5*time.Second, func() { order = append(order, "c") })

	m.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 1, m.Pending())
	assert.Equal(t, time.UnixMilli(3000), m.Now())

	m.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 0, m.Pending())
}

func TestManual_ClockDuringTask(t *testing.T) {
	m := NewManual(time.UnixMilli(0))

	var seen time.Time
	m.AfterFunc(time.Second, func() { seen = m.Now() })
	m.Advance(10 * time.Second)

	assert.Equal(t, time.UnixMilli(1000), seen, "task observes its own due time")
}

func TestManual_Stop(t *testing.T) {
	m := NewManual(time.UnixMilli(0))

	fired := false
	task := m.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, task.Stop())
	assert.False(t, task.Stop(), "second stop reports nothing to cancel")

	m.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestManual_TaskSchedulesTask(t *testing.T) {
	m := NewManual(time.UnixMilli(0))

	count := 0
	var rearm func()
	rearm = func() {
		count++
		m.AfterFunc(time.Second, rearm)
	}
	m.AfterFunc(time.Second, rearm)

	m.Advance(3500 * time.Millisecond)
	assert.Equal(t, 3, count)
}

func TestEvery_Manual(t *testing.T) {
	m := NewManual(time.UnixMilli(0))

	count := 0
	task := Every(m, time.Minute, func() { count++ })

	m.Advance(3 * time.Minute)
	assert.Equal(t, 3, count)

	require.True(t, task.Stop())
	m.Advance(3 * time.Minute)
	assert.Equal(t, 3, count)
	assert.Equal(t, 0, m.Pending())
}

func TestEvery_System(t *testing.T) {
	var count atomic.Int32
	task := Every(System{}, 5*time.Millisecond, func() { count.Add(1) })
	defer task.Stop()

	assert.Eventually(t, func() bool { return count.Load() >= 2 }, time.Second, time.Millisecond)
}
