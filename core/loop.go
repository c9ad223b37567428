package core

import (
	"context"
	"sync"
)

// Scheduler runs tasks later.  A Tree uses a Scheduler for
// asynchronous commits.
//
// Tasks must run on the goroutine that owns the Tree.
type Scheduler interface {
	// Schedule queues the task and returns a function that
	// cancels it.
	Schedule(task func()) (cancel func())
}

// Loop is a cooperative task queue: a host's event loop.
//
// Other goroutines can Post to a Loop.  Tasks run in the goroutine
// that calls Run or RunPending, one at a time, in the order they were
// queued.
type Loop struct {
	sync.Mutex
	queue []*task
	wake  chan struct{}
}

type task struct {
	fn        func()
	cancelled bool
}

func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
	}
}

// Schedule implements Scheduler.
func (l *Loop) Schedule(fn func()) func() {
	t := &task{fn: fn}
	l.Lock()
	l.queue = append(l.queue, t)
	l.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	return func() {
		l.Lock()
		t.cancelled = true
		l.Unlock()
	}
}

// Post queues the task.
func (l *Loop) Post(fn func()) {
	l.Schedule(fn)
}

// Do runs the task on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Pending returns the number of queued tasks (including cancelled
// ones that haven't been dropped yet).
func (l *Loop) Pending() int {
	l.Lock()
	defer l.Unlock()
	return len(l.queue)
}

// RunPending runs queued tasks until the queue is empty.  Tasks
// queued by those tasks run too.
func (l *Loop) RunPending() int {
	n := 0
	for {
		l.Lock()
		if len(l.queue) == 0 {
			l.Unlock()
			return n
		}
		t := l.queue[0]
		l.queue = l.queue[1:]
		cancelled := t.cancelled
		l.Unlock()

		if cancelled {
			continue
		}
		t.fn()
		n++
	}
}

// Run runs tasks as they arrive until the context is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.RunPending()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}
