package bridge

import (
	"log/slog"
	"sync"
)

// Subscription is the handle returned by every subscribe-style call.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func newSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Cancel removes the registration. Calling it more than once is harmless.
func (s *Subscription) Cancel() {
	if s == nil || s.cancel == nil {
		return
	}
	s.once.Do(s.cancel)
}

// Event is a multicast notification without replay. The zero value is ready
// to use and logs recovered panics to slog.Default.
type Event[T any] struct {
	name   string
	logger *slog.Logger

	mu     sync.Mutex
	nextID uint64
	subs   []eventSub[T]
}

type eventSub[T any] struct {
	id uint64
	fn func(T)
}

func (e *Event[T]) init(name string, logger *slog.Logger) {
	e.name = name
	e.logger = logger
}

// Subscribe registers fn for future emissions.
func (e *Event[T]) Subscribe(fn func(T)) *Subscription {
	if fn == nil {
		return newSubscription(nil)
	}
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, eventSub[T]{id: id, fn: fn})
	e.mu.Unlock()
	return newSubscription(func() { e.remove(id) })
}

func (e *Event[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.subs {
		if s.id == id {
			e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
			return
		}
	}
}

// Len returns the current subscriber count.
func (e *Event[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// Emit calls every subscriber in registration order with v. Subscribers
// added or removed during an emission take effect from the next one.
func (e *Event[T]) Emit(v T) {
	e.mu.Lock()
	subs := e.subs
	e.mu.Unlock()

	for _, s := range subs {
		fn := s.fn
		if err := protect(func() error { fn(v); return nil }); err != nil {
			e.log().Error("event subscriber panicked", "event", e.name, "error", err)
		}
	}
}

func (e *Event[T]) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}
