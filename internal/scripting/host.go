package scripting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"

	"github.com/joeycumines/sdk-bridge/internal/bridge"
	"github.com/joeycumines/sdk-bridge/internal/builtin"
	"github.com/joeycumines/sdk-bridge/internal/transport"
)

// DefaultTickInterval is how often the host drains the bridge work queue.
const DefaultTickInterval = 16 * time.Millisecond

// ErrStopped is returned by Wait when the runtime stops before the script
// exits.
var ErrStopped = errors.New("runtime stopped")

// HostConfig configures NewHost. Zero values select defaults.
type HostConfig struct {
	TickInterval time.Duration
	SyncTimeout  time.Duration
	Executor     *transport.Executor
	Logs         *RingLogger
}

// Host runs scripts against a bridge. The event loop goroutine is the
// bridge's driving goroutine: an interval on the loop ticks the bridge, so
// every delivery and every script callback happens there.
type Host struct {
	rt       *Runtime
	bridge   *bridge.Bridge
	logs     *RingLogger
	interval *eventloop.Interval

	exitOnce sync.Once
	exited   chan struct{}
	code     atomic.Int64
}

// NewHost starts a runtime with the "bridge:sdk" and "bridge:http" modules,
// a `log` global, and console output routed to the log.
func NewHost(ctx context.Context, b *bridge.Bridge, cfg HostConfig) (*Host, error) {
	if b == nil {
		return nil, errors.New("scripting: nil bridge")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Executor == nil {
		cfg.Executor = transport.NewExecutor(transport.WithLogger(b.Logger()))
	}
	if cfg.Logs == nil {
		cfg.Logs = NewRingLogger(0, slog.LevelInfo, nil)
	}

	h := &Host{bridge: b, logs: cfg.Logs, exited: make(chan struct{})}

	registry := require.NewRegistry()
	builtin.Register(ctx, registry, builtin.Modules{Bridge: b, Executor: cfg.Executor, Exit: h.Exit})
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(consolePrinter{cfg.Logs.Logger()}))

	opts := []RuntimeOption{WithRegistry(registry)}
	if cfg.SyncTimeout > 0 {
		opts = append(opts, WithSyncTimeout(cfg.SyncTimeout))
	}
	rt, err := NewRuntime(ctx, opts...)
	if err != nil {
		return nil, err
	}
	h.rt = rt

	if err := rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		return vm.Set("log", newLogObject(vm, cfg.Logs))
	}); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("scripting: install log: %w", err)
	}

	h.interval = rt.EventLoop().SetInterval(func(*goja.Runtime) { b.Tick() }, cfg.TickInterval)
	return h, nil
}

func (h *Host) Runtime() *Runtime      { return h.rt }
func (h *Host) Bridge() *bridge.Bridge { return h.bridge }
func (h *Host) Logs() *RingLogger      { return h.logs }

// RunScript evaluates code on the loop. Callbacks it registers keep running
// until Exit or Close.
func (h *Host) RunScript(name, code string) error {
	return h.rt.LoadScript(name, code)
}

func (h *Host) RunFile(path string) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	return h.RunScript(path, string(code))
}

// Exit records code and releases Wait. Only the first call counts.
func (h *Host) Exit(code int) {
	h.exitOnce.Do(func() {
		h.code.Store(int64(code))
		close(h.exited)
	})
}

// Wait blocks until the script calls exit, the runtime stops, or ctx is
// done.
func (h *Host) Wait(ctx context.Context) (int, error) {
	select {
	case <-h.exited:
		return int(h.code.Load()), nil
	case <-h.rt.Done():
		return 1, ErrStopped
	case <-ctx.Done():
		return 1, ctx.Err()
	}
}

// Close stops ticking and shuts down the runtime. The bridge is left open.
func (h *Host) Close() error {
	if h.rt.IsRunning() {
		h.rt.EventLoop().ClearInterval(h.interval)
	}
	return h.rt.Close()
}

// consolePrinter sends console.log/warn/error to the host log.
type consolePrinter struct{ logger *slog.Logger }

func (p consolePrinter) Log(s string)   { p.logger.Info(s, "source", "console") }
func (p consolePrinter) Warn(s string)  { p.logger.Warn(s, "source", "console") }
func (p consolePrinter) Error(s string) { p.logger.Error(s, "source", "console") }
