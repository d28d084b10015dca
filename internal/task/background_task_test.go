package task

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

func TestTaskRunsEveryInterval(t *testing.T) {
	fakeClock := testingclock.NewFakeClock(time.Now())
	var runs atomic.Int32
	task := New("test", fakeClock, time.Second, false, func() { runs.Add(1) })
	task.Start()

	require.Eventually(t, fakeClock.HasWaiters, time.Second, time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())

	fakeClock.Step(time.Second)
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)

	fakeClock.Step(time.Second)
	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, time.Millisecond)

	task.Stop()
	assert.False(t, task.Wait(time.Second))
}

func TestTaskImmediate(t *testing.T) {
	fakeClock := testingclock.NewFakeClock(time.Now())
	var runs atomic.Int32
	task := New("test", fakeClock, time.Minute, true, func() { runs.Add(1) })
	task.Start()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
	task.Stop()
	assert.False(t, task.Wait(time.Second))
	assert.Equal(t, int32(1), runs.Load())
}

func TestTaskZeroIntervalRunsOnce(t *testing.T) {
	fakeClock := testingclock.NewFakeClock(time.Now())
	var runs atomic.Int32
	task := New("once", fakeClock, 0, true, func() { runs.Add(1) })
	task.Start()

	assert.False(t, task.Wait(time.Second))
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, fakeClock.HasWaiters())
}

func TestTaskStopIsIdempotent(t *testing.T) {
	task := New("test", testingclock.NewFakeClock(time.Now()), time.Second, false, func() {})
	task.Stop()
	task.Stop()
	assert.False(t, task.Wait(time.Millisecond), "never started")
}

func TestManagerStopAll(t *testing.T) {
	fakeClock := testingclock.NewFakeClock(time.Now())
	var runs atomic.Int32
	m := NewManager()
	m.Register(New("a", fakeClock, time.Second, false, func() { runs.Add(1) }))
	m.Register(New("b", fakeClock, time.Second, false, func() { runs.Add(1) }))

	require.Eventually(t, fakeClock.HasWaiters, time.Second, time.Millisecond)
	assert.False(t, m.StopAll(time.Second))

	fakeClock.Step(time.Second)
	assert.Equal(t, int32(0), runs.Load())
}
