package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/schedule"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestDebouncer_LastCallWins(t *testing.T) {
	clock := schedule.NewManual(t0)
	d := NewDebouncer(clock)

	var fired []int
	for i := 1; i <= 3; i++ {
		v := i
		d.Debounce("domain:abc", 300*time.Millisecond, func() { fired = append(fired, v) })
		clock.Advance(100 * time.Millisecond)
	}
	assert.Empty(t, fired)
	assert.Equal(t, 1, d.Pending())

	clock.Advance(200 * time.Millisecond)
	assert.Equal(t, []int{3}, fired)
	assert.Equal(t, 0, d.Pending())
}

func TestDebouncer_KeysIndependent(t *testing.T) {
	clock := schedule.NewManual(t0)
	d := NewDebouncer(clock)

	var fired []string
	d.Debounce("a", time.Second, func() { fired = append(fired, "a") })
	d.Debounce("b", 2*time.Second, func() { fired = append(fired, "b") })

	clock.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
}

func TestDebouncer_CancelAndStop(t *testing.T) {
	clock := schedule.NewManual(t0)
	d := NewDebouncer(clock)

	fired := 0
	d.Debounce("a", time.Second, func() { fired++ })
	d.Debounce("b", time.Second, func() { fired++ })
	d.Debounce("c", time.Second, func() { fired++ })

	assert.True(t, d.Cancel("a"))
	assert.False(t, d.Cancel("a"))
	d.Stop()

	clock.Advance(5 * time.Second)
	assert.Equal(t, 0, fired)
	assert.Equal(t, 0, clock.Pending(), "no scheduled task leaks")
}

func TestDeduplicate_TTL(t *testing.T) {
	clock := schedule.NewManual(t0)
	d := NewDeduplicator(clock, 5*time.Second, 16)
	sig := Signature("GET", "/api/v1/entities/domain/abc", nil)

	executions := 0
	produce := func(context.Context) (string, error) {
		executions++
		return "result", nil
	}

	v, shared, err := Deduplicate(context.Background(), d, sig, 0, produce)
	require.NoError(t, err)
	assert.Equal(t, "result", v)
	assert.False(t, shared)

	clock.Advance(4 * time.Second)
	v, shared, err = Deduplicate(context.Background(), d, sig, 0, produce)
	require.NoError(t, err)
	assert.Equal(t, "result", v)
	assert.True(t, shared)
	assert.Equal(t, 1, executions, "second call within ttl shares the execution")

	clock.Advance(2 * time.Second)
	_, shared, err = Deduplicate(context.Background(), d, sig, 0, produce)
	require.NoError(t, err)
	assert.False(t, shared)
	assert.Equal(t, 2, executions, "call after ttl issues a new execution")
}

func TestDeduplicate_PerCallTTL(t *testing.T) {
	clock := schedule.NewManual(t0)
	d := NewDeduplicator(clock, 5*time.Second, 16)

	executions := 0
	produce := func(context.Context) (int, error) {
		executions++
		return executions, nil
	}

	_, _, _ = Deduplicate(context.Background(), d, "sig", time.Second, produce)
	clock.Advance(1500 * time.Millisecond)
	v, _, _ := Deduplicate(context.Background(), d, "sig", time.Second, produce)
	assert.Equal(t, 2, v)

	d.Forget("sig")
	v, _, _ = Deduplicate(context.Background(), d, "sig", 0, produce)
	assert.Equal(t, 3, v)
}

func TestDeduplicate_ErrorsNotCached(t *testing.T) {
	clock := schedule.NewManual(t0)
	d := NewDeduplicator(clock, 5*time.Second, 16)

	executions := 0
	_, _, err := Deduplicate(context.Background(), d, "sig", 0, func(context.Context) (int, error) {
		executions++
		return 0, errors.New("boom")
	})
	require.Error(t, err)

	v, shared, err := Deduplicate(context.Background(), d, "sig", 0, func(context.Context) (int, error) {
		executions++
		return 7, nil
	})
	require.NoError(t, err)
	assert.False(t, shared)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, executions)
}

func TestDeduplicate_InFlightShared(t *testing.T) {
	d := NewDeduplicator(schedule.System{}, 5*time.Second, 16)

	release := make(chan struct{})
	started := make(chan struct{})
	var executions atomic.Int32

	produce := func(context.Context) (string, error) {
		if executions.Add(1) == 1 {
			close(started)
		}
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _, _ = Deduplicate(context.Background(), d, "sig", 0, produce)
	}()
	<-started
	for i := 1; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, _ = Deduplicate(context.Background(), d, "sig", 0, produce)
		}(i)
	}
	// Даём горутинам встать в ожидание singleflight
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), executions.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestSignature(t *testing.T) {
	a := Signature("PUT", "/api/v1/entities/domain/abc", []byte(`{"status":"x"}`))
	assert.Equal(t, a, Signature("PUT", "/api/v1/entities/domain/abc", []byte(`{"status":"x"}`)))
	assert.NotEqual(t, a, Signature("PUT", "/api/v1/entities/domain/abc", []byte(`{"status":"y"}`)))
	assert.NotEqual(t, a, Signature("PATCH", "/api/v1/entities/domain/abc", []byte(`{"status":"x"}`)))
	assert.NotEqual(t, Signature("GET", "ab", []byte("c")), Signature("GET", "a", []byte("bc")))
	assert.Len(t, a, 64)
}
