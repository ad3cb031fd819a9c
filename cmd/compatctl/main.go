// compatctl queries, exports and imports device compatibility catalogues
// from the command line, without a running compatd.
//
// Every command loads the catalogue itself from --source (or the
// COMPAT_CATALOG_SOURCE environment variable): an http(s) URL, a JSON file
// or a sqlite:// catalogue database.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], &IO{Out: os.Stdout, Err: os.Stderr})
	cancel()
	os.Exit(code)
}

func commands() []*Command {
	return []*Command{
		queryCmd(),
		distinctCmd(),
		exportCmd(),
		importCmd(),
		migrateCmd(),
		shellCmd(),
		tokenCmd(),
	}
}

// run dispatches args to a subcommand and returns the exit code.
func run(ctx context.Context, args []string, o *IO) int {
	cmds := commands()

	if len(args) == 0 {
		printUsage(o, cmds)
		return 1
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage(o, cmds)
		return 0
	case "-v", "--version", "version":
		o.Println("compatctl", version)
		return 0
	}

	for _, c := range cmds {
		if c.Name() == args[0] {
			return c.Run(ctx, o, args[1:])
		}
	}

	o.ErrPrintln("error: unknown command", args[0])
	o.ErrPrintln()
	printUsage(o, cmds)
	return 1
}

func printUsage(o *IO, cmds []*Command) {
	o.Println("Usage: compatctl <command> [flags]")
	o.Println()
	o.Println("Commands:")
	for _, c := range cmds {
		o.Println(c.HelpLine())
	}
	o.Println()
	o.Println(`Run "compatctl <command> --help" for command flags.`)
}
