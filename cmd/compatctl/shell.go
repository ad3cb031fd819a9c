package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
	"github.com/nerrad567/gray-logic-compat/internal/engine"
)

const shellHelp = `Commands:
  q <text>                 search (no text clears the search)
  filter <col>=<v>[,<v>]   add filter values for a column
  unfilter <col>           drop a column's filter
  sort [<col> [desc]]      sort by a column (no column clears sorting)
  page <n> | next | prev   move between pages
  size <n>                 rows per page
  columns <c1>,<c2>...     columns to print
  facets [<col>...]        facet options under the current search and filters
  show                     print the current page
  stats                    what is loaded
  reload                   fetch the catalogue again
  clear                    reset search, filters, sorting and page
  help                     this text
  quit                     leave the shell`

var shellCommands = []string{
	"q", "filter", "unfilter", "sort", "page", "next", "prev", "size",
	"columns", "facets", "show", "stats", "reload", "clear", "help", "quit", "exit",
}

func shellCmd() *Command {
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)
	var lf loadFlags
	lf.register(fs)

	return &Command{
		Flags: fs,
		Usage: "shell [flags]",
		Short: "Browse the catalogue interactively",
		Long:  "Load the catalogue and explore it with search, filters, sorting and facets.\n\n" + shellHelp,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			eng, res, err := lf.load(ctx, o)
			if err != nil {
				return err
			}
			sh, err := newShell(eng, &lf, o)
			if err != nil {
				return err
			}
			o.Printf("loaded %d rows from %d devices (%s)\n", res.Count, res.Devices, res.Source)
			o.Println(`Type "help" for commands.`)
			return sh.repl(ctx)
		},
	}
}

// shell holds the state of an interactive session.
type shell struct {
	eng  *engine.Engine
	load *loadFlags
	o    *IO
	in   engine.QueryInput
	cols []catalog.ColumnDef
}

func newShell(eng *engine.Engine, lf *loadFlags, o *IO) (*shell, error) {
	cols, err := tableColumns(defaultTableColumns)
	if err != nil {
		return nil, err
	}
	return &shell{
		eng:  eng,
		load: lf,
		o:    o,
		in:   engine.QueryInput{Page: 1, PageSize: 10},
		cols: cols,
	}, nil
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".compatctl_history")
}

func (s *shell) repl(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(s.complete)

	if f, err := os.Open(historyFile()); err == nil {
		line.ReadHistory(f) //nolint:errcheck // A corrupt history file is not fatal
		f.Close()
	}
	defer s.saveHistory(line)

	for {
		input, err := line.Prompt("compat> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				s.o.Println()
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		quit, err := s.exec(ctx, input)
		if err != nil {
			s.o.Println("error:", err)
		}
		if quit {
			return nil
		}
	}
}

func (s *shell) saveHistory(line *liner.State) {
	path := historyFile()
	if path == "" {
		return
	}
	var buf bytes.Buffer
	if _, err := line.WriteHistory(&buf); err != nil {
		return
	}
	atomic.WriteFile(path, &buf) //nolint:errcheck // History is best-effort
}

// complete offers command names for the first word and column IDs after.
func (s *shell) complete(line string) []string {
	fields := strings.Fields(line)
	var candidates []string
	prefix := ""
	head := ""
	if len(fields) == 0 || (len(fields) == 1 && !strings.HasSuffix(line, " ")) {
		candidates = shellCommands
		if len(fields) == 1 {
			prefix = fields[0]
		}
	} else {
		for _, def := range catalog.Columns() {
			candidates = append(candidates, string(def.ID))
		}
		if !strings.HasSuffix(line, " ") {
			prefix = fields[len(fields)-1]
			head = strings.TrimSuffix(line, prefix)
		} else {
			head = line
		}
	}

	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(c, prefix) {
			out = append(out, head+c)
		}
	}
	return out
}

// exec runs one shell command. quit is true when the session should end.
func (s *shell) exec(ctx context.Context, input string) (quit bool, err error) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(input), " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch strings.ToLower(cmd) {
	case "quit", "exit":
		return true, nil

	case "help", "?":
		s.o.Println(shellHelp)
		return false, nil

	case "q", "search":
		s.in.Q = rest
		s.in.Page = 1

	case "filter":
		if len(args) != 1 {
			return false, errors.New("usage: filter <col>=<v>[,<v>]")
		}
		f, err := parseFilters(args)
		if err != nil {
			return false, err
		}
		next := s.in.Enums.Clone()
		if next == nil {
			next = engine.Filters{}
		}
		for col, values := range f {
			next[col] = append(next[col], values...)
		}
		if _, err := engine.CompileFilters(next); err != nil {
			return false, err
		}
		s.in.Enums = next
		s.in.Page = 1

	case "unfilter":
		if len(args) != 1 {
			return false, errors.New("usage: unfilter <col>")
		}
		s.in.Enums = s.in.Enums.Without(catalog.Column(args[0]))
		s.in.Page = 1

	case "sort":
		switch len(args) {
		case 0:
			s.in.Sort = nil
		case 1, 2:
			spec := args[0]
			if len(args) == 2 {
				spec += ":" + args[1]
			}
			sorts, err := parseSorts([]string{spec})
			if err != nil {
				return false, err
			}
			s.in.Sort = sorts
		default:
			return false, errors.New("usage: sort [<col> [desc]]")
		}

	case "page":
		n, err := intArg(args)
		if err != nil {
			return false, err
		}
		s.in.Page = n

	case "next":
		s.in.Page++

	case "prev":
		if s.in.Page > 1 {
			s.in.Page--
		}

	case "size":
		n, err := intArg(args)
		if err != nil {
			return false, err
		}
		s.in.PageSize = n
		s.in.Page = 1

	case "columns":
		cols, err := tableColumns(strings.Split(strings.ReplaceAll(rest, " ", ""), ","))
		if err != nil {
			return false, err
		}
		s.cols = cols

	case "facets":
		opts, err := s.eng.Distinct(engine.DistinctInput{
			Q:       s.in.Q,
			Enums:   s.in.Enums,
			Columns: toColumns(args),
		})
		if err != nil {
			return false, err
		}
		printOptions(s.o.Out, opts)
		return false, nil

	case "stats":
		st := s.eng.Stats()
		s.o.Printf("%d rows, %d devices, updateTime %d, source %s\n", st.Rows, st.Devices, st.UpdateTime, st.Source)
		s.o.Printf("search fields: %v\n", st.SearchFields)
		return false, nil

	case "reload":
		res, err := s.eng.Load(ctx, s.load.source, nil)
		if err != nil {
			return false, err
		}
		s.o.Printf("reloaded %d rows from %d devices\n", res.Count, res.Devices)
		return false, nil

	case "clear":
		s.in = engine.QueryInput{Page: 1, PageSize: s.in.PageSize}

	case "show":

	default:
		return false, fmt.Errorf("unknown command %q (try help)", cmd)
	}

	return false, s.show()
}

func (s *shell) show() error {
	res, err := s.eng.Query(s.in)
	if err != nil {
		return err
	}
	// The engine clamps out-of-range pages.
	s.in.Page = res.Page
	s.in.PageSize = res.PageSize

	printRows(s.o.Out, s.cols, res.Rows)
	pages := (res.Total + res.PageSize - 1) / res.PageSize
	s.o.Printf("\n%d rows, page %d of %d\n", res.Total, res.Page, max(pages, 1))
	return nil
}

func intArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid number %q", args[0])
	}
	return n, nil
}
