package bridge

import (
	"log/slog"
	"sync"
)

// Callbacks maps tokens to single-use completions. Tokens start at 0 and are
// never reused. A token whose completion never arrives stays pending for the
// lifetime of the table.
type Callbacks struct {
	logger *slog.Logger

	mu      sync.Mutex
	next    int
	pending map[int]func()
}

// Register stores fn and returns its token.
func (c *Callbacks) Register(fn func()) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		c.pending = make(map[int]func())
	}
	token := c.next
	c.next++
	c.pending[token] = fn
	return token
}

// Complete removes the callback for token and runs it. It reports whether a
// callback was found; redelivery of a consumed token is a no-op.
func (c *Callbacks) Complete(token int) bool {
	fn, ok := c.take(token)
	if !ok {
		return false
	}
	if fn != nil {
		if err := protect(func() error { fn(); return nil }); err != nil {
			c.log().Error("content update callback panicked", "token", token, "error", err)
		}
	}
	return true
}

// Cancel forgets token without running it.
func (c *Callbacks) Cancel(token int) bool {
	_, ok := c.take(token)
	return ok
}

// Pending returns the number of outstanding tokens.
func (c *Callbacks) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Callbacks) take(token int) (func(), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn, ok := c.pending[token]
	if ok {
		delete(c.pending, token)
	}
	return fn, ok
}

func (c *Callbacks) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}
