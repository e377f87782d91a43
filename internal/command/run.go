package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/joeycumines/sdk-bridge/internal/bridge"
	"github.com/joeycumines/sdk-bridge/internal/config"
	"github.com/joeycumines/sdk-bridge/internal/platform/devsocket"
	"github.com/joeycumines/sdk-bridge/internal/platform/simulator"
	"github.com/joeycumines/sdk-bridge/internal/scripting"
	"github.com/joeycumines/sdk-bridge/internal/transport"
)

// RunCommand executes a script against the simulated SDK until the script
// calls exit.
type RunCommand struct {
	*BaseCommand
	config *config.Config

	fixture   string
	devSocket string
	timeout   time.Duration
	latency   optionalDuration
	logLevel  string
	logFile   string
}

func NewRunCommand(cfg *config.Config) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Run a script against the simulated SDK",
			"run [options] <script.js>",
		),
		config: cfg,
	}
}

func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.fixture, "fixture", "", "YAML fixture for the simulator (overrides [simulator] fixture)")
	fs.StringVar(&c.devSocket, "dev-socket", "", "Accept notification lines over a websocket on this address (overrides devsocket.addr)")
	fs.DurationVar(&c.timeout, "timeout", 0, "Fail if the script has not exited after this long (0 waits forever)")
	fs.Var(&c.latency, "latency", "Delay before simulated notifications (overrides [simulator] latency)")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides log.level)")
	fs.StringVar(&c.logFile, "log-file", "", "Write JSON logs to this file instead of stderr (overrides log.file)")
}

func (c *RunCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		return usageError(c, "expected exactly one script")
	}
	script := args[0]

	lc, err := resolveLogConfig(c.logFile, c.logLevel, c.config)
	if err != nil {
		return err
	}
	defer lc.close()
	logs := lc.newLogs(stderr)
	logger := logs.Logger()

	sim, err := c.newSimulator(logger)
	if err != nil {
		return err
	}
	defer sim.Close()

	b, err := bridge.New(sim, bridge.WithLogger(logger))
	if err != nil {
		return err
	}
	defer b.Close()

	exec := transport.NewExecutor(
		transport.WithTimeouts(c.config.Duration(config.KeyNetTimeout), c.config.Duration(config.KeyDownloadTimeout)),
		transport.WithLogger(logger),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	host, err := scripting.NewHost(ctx, b, scripting.HostConfig{
		TickInterval: c.config.Duration(config.KeyTickInterval),
		SyncTimeout:  c.config.Duration(config.KeySyncTimeout),
		Executor:     exec,
		Logs:         logs,
	})
	if err != nil {
		return err
	}
	defer host.Close()

	socketErr := make(chan error, 1)
	if addr := c.socketAddr(); addr != "" {
		ready := func(a net.Addr) {
			_, _ = fmt.Fprintf(stdout, "devsocket listening on ws://%s/\n", a)
		}
		go func() { socketErr <- devsocket.NewServer(b, devsocket.WithLogger(logger)).ListenAndServe(ctx, addr, ready) }()
	}

	if err := host.RunFile(script); err != nil {
		return err
	}

	waitCtx := ctx
	if c.timeout > 0 {
		var waitCancel context.CancelFunc
		waitCtx, waitCancel = context.WithTimeout(ctx, c.timeout)
		defer waitCancel()
	}

	code, err := c.wait(waitCtx, host, socketErr)
	stats := b.Stats()
	logger.Debug("run: finished",
		"script", script,
		"code", code,
		"routed", stats.Routed,
		"variables", stats.Variables,
		"contexts", stats.Contexts,
		"pending_callbacks", stats.PendingCallbacks,
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && c.timeout > 0 {
			return fmt.Errorf("script %s did not exit within %s", script, c.timeout)
		}
		return err
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// wait returns when the script exits, or fails early if the dev socket
// could not be served.
func (c *RunCommand) wait(ctx context.Context, host *scripting.Host, socketErr <-chan error) (int, error) {
	waitCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case err := <-socketErr:
			if err != nil {
				cancel(err)
			}
		case <-waitCtx.Done():
		}
	}()
	code, err := host.Wait(waitCtx)
	if err != nil {
		if cause := context.Cause(waitCtx); cause != nil && !errors.Is(cause, context.Canceled) && !errors.Is(cause, context.DeadlineExceeded) {
			return code, cause
		}
	}
	return code, err
}

func (c *RunCommand) socketAddr() string {
	if c.devSocket != "" {
		return c.devSocket
	}
	return c.config.String(config.KeyDevSocketAddr)
}

// newSimulator builds the simulator from the fixture flag or the
// [simulator] section. The fixture's own start_success wins over the
// section.
func (c *RunCommand) newSimulator(logger *slog.Logger) (*simulator.Simulator, error) {
	sc := c.config.Simulator
	path := c.fixture
	if path == "" {
		path = sc.Fixture
	}
	f := &simulator.Fixture{}
	if path != "" {
		var err error
		if f, err = simulator.LoadFixture(path); err != nil {
			return nil, err
		}
	}
	if f.StartSuccess == nil && !sc.StartSuccess {
		no := false
		f.StartSuccess = &no
	}
	latency := sc.Latency
	if c.latency.set {
		latency = c.latency.d
	}
	return simulator.New(
		simulator.WithFixture(f),
		simulator.WithLatency(latency),
		simulator.WithLogger(logger),
	), nil
}

// optionalDuration is a duration flag that records whether it was given.
type optionalDuration struct {
	d   time.Duration
	set bool
}

func (o *optionalDuration) String() string {
	if o == nil || !o.set {
		return ""
	}
	return o.d.String()
}

func (o *optionalDuration) Set(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	o.d, o.set = d, true
	return nil
}
