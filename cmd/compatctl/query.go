package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
	"github.com/nerrad567/gray-logic-compat/internal/engine"
)

// defaultTableColumns are printed when --columns is not given.
var defaultTableColumns = []string{
	string(catalog.ColumnDeviceBrand),
	string(catalog.ColumnDeviceModel),
	string(catalog.ColumnDeviceCategory),
	string(catalog.ColumnMatterSupported),
	string(catalog.ColumnMatterDeviceType),
}

func queryCmd() *Command {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	var (
		lf       loadFlags
		sf       selectFlags
		page     int
		pageSize int
		columns  []string
		asJSON   bool
	)
	lf.register(fs)
	sf.register(fs)
	fs.IntVarP(&page, "page", "p", 1, "page number, starting at 1")
	fs.IntVarP(&pageSize, "page-size", "n", 20, "rows per page")
	fs.StringSliceVarP(&columns, "columns", "c", defaultTableColumns, "columns to print")
	fs.BoolVar(&asJSON, "json", false, "print the raw query result as JSON")

	return &Command{
		Flags: fs,
		Usage: "query [flags]",
		Short: "Search, filter and page through the catalogue",
		Long: "Load the catalogue and print one page of matching rows.\n\n" +
			"Example:\n  compatctl query -s devices.json -q plug -f matterSupported=true --sort deviceModel",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			sel, err := sf.input()
			if err != nil {
				return err
			}
			cols, err := tableColumns(columns)
			if err != nil {
				return err
			}
			eng, _, err := lf.load(ctx, o)
			if err != nil {
				return err
			}

			res, err := eng.Query(engine.QueryInput{
				Q:             sel.Q,
				Enums:         sel.Enums,
				Sort:          sel.Sort,
				GroupByDevice: sel.GroupByDevice,
				Page:          page,
				PageSize:      pageSize,
			})
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(o.Out, res)
			}
			printRows(o.Out, cols, res.Rows)
			first := (res.Page-1)*res.PageSize + 1
			last := first + len(res.Rows) - 1
			if len(res.Rows) == 0 {
				first, last = 0, 0
			}
			o.Printf("\nrows %d-%d of %d (page %d)\n", first, last, res.Total, res.Page)
			return nil
		},
	}
}

func distinctCmd() *Command {
	fs := flag.NewFlagSet("distinct", flag.ContinueOnError)
	var (
		lf      loadFlags
		sf      selectFlags
		columns []string
		limit   int
		asJSON  bool
	)
	lf.register(fs)
	sf.register(fs)
	fs.StringSliceVarP(&columns, "columns", "c", nil, "facet columns (default: every facet column)")
	fs.IntVarP(&limit, "limit", "l", 0, "maximum options per column (0 for all)")
	fs.BoolVar(&asJSON, "json", false, "print the option map as JSON")

	return &Command{
		Flags: fs,
		Usage: "distinct [flags]",
		Short: "List facet options with row counts",
		Long: "Load the catalogue and print, for each facet column, the distinct values\n" +
			"among the rows matching the search and every other column's filters.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			sel, err := sf.input()
			if err != nil {
				return err
			}
			eng, _, err := lf.load(ctx, o)
			if err != nil {
				return err
			}

			opts, err := eng.Distinct(engine.DistinctInput{
				Q:       sel.Q,
				Enums:   sel.Enums,
				Columns: toColumns(columns),
				Limit:   limit,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(o.Out, opts)
			}
			printOptions(o.Out, opts)
			return nil
		},
	}
}

func tableColumns(names []string) ([]catalog.ColumnDef, error) {
	defs := make([]catalog.ColumnDef, 0, len(names))
	for _, n := range toColumns(names) {
		def, ok := catalog.Lookup(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", catalog.ErrUnknownColumn, n)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func printRows(w io.Writer, cols []catalog.ColumnDef, rows []catalog.FlatRow) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(tw, "\t") //nolint:errcheck // Terminal output
		}
		fmt.Fprint(tw, columnHeading(c)) //nolint:errcheck // Terminal output
	}
	fmt.Fprintln(tw) //nolint:errcheck // Terminal output

	for i := range rows {
		for j, c := range cols {
			if j > 0 {
				fmt.Fprint(tw, "\t") //nolint:errcheck // Terminal output
			}
			fmt.Fprint(tw, c.Value(&rows[i]).String()) //nolint:errcheck // Terminal output
		}
		fmt.Fprintln(tw) //nolint:errcheck // Terminal output
	}
	tw.Flush() //nolint:errcheck // Terminal output
}

func columnHeading(c catalog.ColumnDef) string {
	if c.Title != "" {
		return c.Title
	}
	return string(c.ID)
}

// printOptions prints facet columns in registry order.
func printOptions(w io.Writer, opts engine.OptionMap) {
	cols := make([]catalog.Column, 0, len(opts))
	for col := range opts {
		cols = append(cols, col)
	}
	order := make(map[catalog.Column]int)
	for i, def := range catalog.Columns() {
		order[def.ID] = i
	}
	slices.SortFunc(cols, func(a, b catalog.Column) int { return order[a] - order[b] })

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, col := range cols {
		fmt.Fprintf(tw, "%s\n", col) //nolint:errcheck // Terminal output
		for _, opt := range opts[col] {
			fmt.Fprintf(tw, "  %s\t%d\n", opt.Value, opt.Count) //nolint:errcheck // Terminal output
		}
	}
	tw.Flush() //nolint:errcheck // Terminal output
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
