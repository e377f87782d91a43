package command

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joeycumines/sdk-bridge/internal/platform/devsocket"
)

// SendCommand delivers notification lines to a script started with
// `run -dev-socket`.
type SendCommand struct {
	*BaseCommand
	stdin   io.Reader
	timeout time.Duration
}

func NewSendCommand() *SendCommand {
	return &SendCommand{
		BaseCommand: NewBaseCommand(
			"send",
			"Send notification lines to a running script's dev socket",
			"send [options] <addr> [line...]",
		),
		stdin: os.Stdin,
	}
}

func (c *SendCommand) SetupFlags(fs *flag.FlagSet) {
	fs.DurationVar(&c.timeout, "timeout", 10*time.Second, "Give up after this long")
}

// Execute sends the line arguments, or each line of stdin when there are
// none, as a single frame.
func (c *SendCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return usageError(c, "missing address")
	}
	url := socketURL(args[0])

	lines := args[1:]
	if len(lines) == 0 {
		sc := bufio.NewScanner(c.stdin)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}
	if len(lines) == 0 {
		return usageError(c, "nothing to send")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	n, err := devsocket.Send(ctx, url, lines)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "accepted %d line(s)\n", n)
	return nil
}

// socketURL accepts a bare host:port as well as a ws:// URL.
func socketURL(addr string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	return "ws://" + addr + "/"
}
