package bridge

import (
	"log/slog"
	"sync"
)

// WorkQueue defers work to the driving goroutine. Enqueue is safe from any
// goroutine; Drain must only be called by the driver.
type WorkQueue struct {
	logger *slog.Logger

	mu     sync.Mutex
	items  []func()
	spare  []func()
	closed bool
}

// Enqueue appends fn and reports whether it was accepted. A nil fn is
// ignored, and nothing is accepted once the queue is closed.
func (q *WorkQueue) Enqueue(fn func()) bool {
	if fn == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, fn)
	return true
}

// Len returns the number of items waiting for the next drain.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain runs every item queued before the call, in FIFO order, and returns
// how many ran. Items enqueued while draining are left for the next call.
// A panicking item is logged and does not prevent the rest from running.
func (q *WorkQueue) Drain() int {
	q.mu.Lock()
	batch := q.items
	q.items = q.spare[:0]
	q.spare = nil
	q.mu.Unlock()

	for i, fn := range batch {
		batch[i] = nil
		if err := protect(func() error { fn(); return nil }); err != nil {
			q.log().Error("queued work panicked", "error", err)
		}
	}

	q.mu.Lock()
	if q.spare == nil {
		q.spare = batch[:0]
	}
	q.mu.Unlock()

	return len(batch)
}

// close stops the queue accepting work, drops everything queued and returns
// the count.
func (q *WorkQueue) close() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	n := len(q.items)
	clear(q.items)
	q.items = q.items[:0]
	return n
}

func (q *WorkQueue) log() *slog.Logger {
	if q.logger != nil {
		return q.logger
	}
	return slog.Default()
}
