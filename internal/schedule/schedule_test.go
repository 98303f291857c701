package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryRunsRepeatedly(t *testing.T) {
	var calls atomic.Int32
	task := Every(5*time.Millisecond, func() bool {
		calls.Add(1)
		return true
	})
	defer task.Cancel()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestEveryStopsWhenFnReturnsFalse(t *testing.T) {
	var calls atomic.Int32
	task := Every(5*time.Millisecond, func() bool {
		return calls.Add(1) < 2
	})

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not stop")
	}
	assert.Equal(t, int32(2), calls.Load())
	task.Cancel()
}

func TestCancelPreventsFurtherCalls(t *testing.T) {
	var calls atomic.Int32
	task := Every(time.Millisecond, func() bool {
		calls.Add(1)
		return true
	})
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)

	task.Cancel()
	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load())

	// Idempotent.
	task.Cancel()
}

func TestCancelWaitsForRunningCall(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	task := Every(time.Millisecond, func() bool {
		select {
		case <-started:
		default:
			close(started)
		}
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return true
	})

	<-started
	task.Cancel()
	assert.True(t, finished.Load())
}

func TestCancelNil(t *testing.T) {
	var task *Task
	assert.NotPanics(t, task.Cancel)
}
