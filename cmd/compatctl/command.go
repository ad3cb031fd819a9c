package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// IO carries the command's output streams.
type IO struct {
	Out io.Writer
	Err io.Writer
}

func (o *IO) Printf(format string, args ...any) {
	fmt.Fprintf(o.Out, format, args...) //nolint:errcheck // Terminal output
}

func (o *IO) Println(args ...any) {
	fmt.Fprintln(o.Out, args...) //nolint:errcheck // Terminal output
}

func (o *IO) ErrPrintln(args ...any) {
	fmt.Fprintln(o.Err, args...) //nolint:errcheck // Terminal output
}

// Command is one compatctl subcommand.
type Command struct {
	// Flags holds the subcommand's flags.
	Flags *flag.FlagSet

	// Usage is shown after "compatctl" in help, starting with the name.
	Usage string

	// Short is the one-line description in the command listing.
	Short string

	// Long is shown by "compatctl <cmd> --help". Short is used when empty.
	Long string

	// Exec runs the command with the positional arguments left after
	// flag parsing.
	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// HelpLine returns the command's line in the global usage listing.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-30s %s", c.Usage, c.Short)
}

// PrintHelp prints the full help for the command.
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: compatctl", c.Usage)
	o.Println()

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}
	o.Println(desc)

	if c.Flags != nil && c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		o.Printf("%s", buf.String())
	}
}

// Run parses flags and executes the command, returning the exit code.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(io.Discard)

	if err := c.Flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)
			return 0
		}
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.PrintHelp(o)
		return 1
	}

	if err := c.Exec(ctx, o, c.Flags.Args()); err != nil {
		o.ErrPrintln("error:", err)
		return 1
	}
	return 0
}
