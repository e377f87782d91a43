// Package command implements the sdkbridge subcommands.
package command

import (
	"context"
	"flag"
	"fmt"
	"io"
)

// Command is a subcommand of the sdkbridge binary.
type Command interface {
	Name() string
	Description() string
	Usage() string

	// SetupFlags registers command-specific flags on fs before parsing.
	SetupFlags(fs *flag.FlagSet)

	// Execute runs the command with the arguments left after flag parsing.
	Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

// BaseCommand implements the descriptive half of Command.
type BaseCommand struct {
	name        string
	description string
	usage       string
}

func NewBaseCommand(name, description, usage string) *BaseCommand {
	return &BaseCommand{
		name:        name,
		description: description,
		usage:       usage,
	}
}

func (c *BaseCommand) Name() string        { return c.name }
func (c *BaseCommand) Description() string { return c.description }
func (c *BaseCommand) Usage() string       { return c.usage }

// SetupFlags registers nothing.
func (c *BaseCommand) SetupFlags(*flag.FlagSet) {}

// ExitError carries a non-zero script exit code out of a command, so main
// can exit with it instead of the generic failure status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("script exited with code %d", e.Code)
}

// usageError reports bad arguments with the command's usage line.
func usageError(c Command, format string, args ...any) error {
	return fmt.Errorf("%s (usage: %s)", fmt.Sprintf(format, args...), c.Usage())
}
