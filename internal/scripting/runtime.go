package scripting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"

	"github.com/joeycumines/sdk-bridge/internal/goroutineid"
)

// DefaultSyncTimeout bounds RunOnLoopSync.
const DefaultSyncTimeout = 5 * time.Second

// ErrNotRunning is returned when work is submitted to a stopped runtime.
var ErrNotRunning = errors.New("event loop not running")

// Runtime owns a goja runtime and the event loop that serialises access to
// it. goja.Runtime is not goroutine-safe: every use goes through RunOnLoop,
// RunOnLoopSync or TryRunOnLoopSync.
type Runtime struct {
	loop     *eventloop.EventLoop
	registry *require.Registry
	timeout  time.Duration

	// loopID is the goroutine id of the loop, read once at startup.
	loopID atomic.Int64

	mu      sync.RWMutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
}

// RuntimeOption configures NewRuntime.
type RuntimeOption func(*Runtime)

// WithRegistry shares a module registry. Modules must be registered before
// the script that requires them runs.
func WithRegistry(registry *require.Registry) RuntimeOption {
	return func(rt *Runtime) { rt.registry = registry }
}

// WithSyncTimeout overrides DefaultSyncTimeout. Zero waits indefinitely.
func WithSyncTimeout(d time.Duration) RuntimeOption {
	return func(rt *Runtime) { rt.timeout = d }
}

// NewRuntime starts an event loop. It stops when Close is called or ctx is
// done.
func NewRuntime(ctx context.Context, opts ...RuntimeOption) (*Runtime, error) {
	rt := &Runtime{timeout: DefaultSyncTimeout}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.registry == nil {
		rt.registry = require.NewRegistry()
	}
	rt.ctx, rt.cancel = context.WithCancel(context.Background())

	rt.loop = eventloop.NewEventLoop(
		eventloop.WithRegistry(rt.registry),
		eventloop.EnableConsole(true),
	)
	rt.loop.Start()

	ready := make(chan struct{})
	if !rt.loop.RunOnLoop(func(*goja.Runtime) {
		rt.loopID.Store(goroutineid.Get())
		close(ready)
	}) {
		rt.cancel()
		return nil, fmt.Errorf("scripting: start runtime: %w", ErrNotRunning)
	}
	<-ready

	context.AfterFunc(ctx, func() { _ = rt.Close() })
	return rt, nil
}

func (rt *Runtime) Registry() *require.Registry { return rt.registry }

// EventLoop exposes the loop for timers. Prefer the RunOnLoop family for
// everything else.
func (rt *Runtime) EventLoop() *eventloop.EventLoop { return rt.loop }

// Close stops the loop and closes Done. It is safe to call more than once.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	if rt.stopped {
		rt.mu.Unlock()
		return nil
	}
	rt.stopped = true
	rt.mu.Unlock()

	// waiters unblock before the loop drains
	rt.cancel()
	rt.loop.Stop()
	return nil
}

// Done is closed once the runtime stops.
func (rt *Runtime) Done() <-chan struct{} { return rt.ctx.Done() }

func (rt *Runtime) IsRunning() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return !rt.stopped
}

// OnLoop reports whether the caller is the loop goroutine.
func (rt *Runtime) OnLoop() bool {
	id := rt.loopID.Load()
	return id > 0 && id == goroutineid.Get()
}

// RunOnLoop schedules fn and reports whether it was accepted. The
// *goja.Runtime must not escape fn.
func (rt *Runtime) RunOnLoop(fn func(*goja.Runtime)) bool {
	if !rt.IsRunning() {
		return false
	}
	return rt.loop.RunOnLoop(fn)
}

// RunOnLoopSync runs fn on the loop and waits for its result, the sync
// timeout, or shutdown. Calling it from the loop goroutine deadlocks until
// the timeout; use TryRunOnLoopSync where that can happen.
func (rt *Runtime) RunOnLoopSync(fn func(*goja.Runtime) error) error {
	errCh := make(chan error, 1)
	if !rt.RunOnLoop(func(vm *goja.Runtime) { errCh <- fn(vm) }) {
		return ErrNotRunning
	}

	var timeout <-chan time.Time
	if rt.timeout > 0 {
		timer := time.NewTimer(rt.timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case err := <-errCh:
		return err
	case <-rt.Done():
		return errors.New("runtime stopped before completion")
	case <-timeout:
		return fmt.Errorf("operation timed out after %v", rt.timeout)
	}
}

// TryRunOnLoopSync runs fn directly with vm when already on the loop, and
// behaves like RunOnLoopSync otherwise.
func (rt *Runtime) TryRunOnLoopSync(vm *goja.Runtime, fn func(*goja.Runtime) error) error {
	if !rt.IsRunning() {
		return ErrNotRunning
	}
	if vm != nil && rt.OnLoop() {
		return fn(vm)
	}
	return rt.RunOnLoopSync(fn)
}

// LoadScript compiles and runs code as a strict-mode script.
func (rt *Runtime) LoadScript(name, code string) error {
	return rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		prg, err := goja.Compile(name, code, true)
		if err != nil {
			return fmt.Errorf("failed to compile %s: %w", name, err)
		}
		if _, err := vm.RunProgram(prg); err != nil {
			return fmt.Errorf("failed to run %s: %w", name, err)
		}
		return nil
	})
}

func (rt *Runtime) SetGlobal(name string, value any) error {
	return rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		return vm.Set(name, value)
	})
}

// GetGlobal exports a global, returning nil for undefined and null.
func (rt *Runtime) GetGlobal(name string) (any, error) {
	var result any
	err := rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		v := vm.Get(name)
		if v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			result = v.Export()
		}
		return nil
	})
	return result, err
}
