// Package schedule runs a function on a fixed period in its own goroutine
// until it is cancelled or asks to stop.
package schedule

import (
	"sync"
	"time"
)

// Task is a running periodic schedule.
type Task struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Every calls fn every interval, first after one interval has elapsed. The
// task ends when fn returns false or Cancel is called. Calls never overlap.
// fn must not call Cancel on its own task.
func Every(interval time.Duration, fn func() bool) *Task {
	if interval <= 0 {
		panic("schedule: non-positive interval")
	}

	t := &Task{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go t.run(interval, fn)
	return t
}

func (t *Task) run(interval time.Duration, fn func() bool) {
	defer close(t.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			// A tick and a cancel can be ready together; cancel wins.
			select {
			case <-t.stop:
				return
			default:
			}
			if !fn() {
				return
			}
		}
	}
}

// Cancel stops the task and waits for an in-progress call to return. No
// call starts after Cancel returns. It is safe to call more than once and
// on a nil Task.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}

// Done is closed once the task has ended.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
