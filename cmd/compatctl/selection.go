package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
	"github.com/nerrad567/gray-logic-compat/internal/engine"
	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-compat/internal/source"
)

var errNoSource = errors.New("no catalogue source: pass --source or set COMPAT_CATALOG_SOURCE")

// loadFlags locates and indexes the catalogue.
type loadFlags struct {
	source  string
	fields  []string
	timeout time.Duration
	verbose bool
}

func (l *loadFlags) register(fs *flag.FlagSet) {
	fs.StringVarP(&l.source, "source", "s", os.Getenv("COMPAT_CATALOG_SOURCE"), "catalogue location (URL, file or sqlite://path)")
	fs.StringSliceVar(&l.fields, "search-fields", nil, "columns to index for --q (default: registry defaults)")
	fs.DurationVar(&l.timeout, "timeout", 30*time.Second, "download timeout for HTTP sources")
	fs.BoolVar(&l.verbose, "verbose", false, "log engine activity to stderr")
}

// logger returns a debug logger on o.Err when --verbose is set.
func (l *loadFlags) logger(o *IO) *logging.Logger {
	if !l.verbose {
		return logging.Discard()
	}
	return logging.NewWithWriter(o.Err, config.LoggingConfig{Level: "debug", Format: "text"}, version)
}

// load fetches the catalogue into a fresh engine.
func (l *loadFlags) load(ctx context.Context, o *IO) (*engine.Engine, engine.LoadResult, error) {
	if strings.TrimSpace(l.source) == "" {
		return nil, engine.LoadResult{}, errNoSource
	}
	eng := engine.New(source.NewFetcher(source.Config{Timeout: l.timeout}))
	eng.SetLogger(l.logger(o))
	res, err := eng.Load(ctx, l.source, toColumns(l.fields))
	if err != nil {
		return nil, engine.LoadResult{}, err
	}
	return eng, res, nil
}

// selectFlags narrow and order the rows.
type selectFlags struct {
	q       string
	filters []string
	sorts   []string
	grouped bool
}

func (s *selectFlags) register(fs *flag.FlagSet) {
	fs.StringVarP(&s.q, "q", "q", "", "full-text search over the search fields")
	fs.StringArrayVarP(&s.filters, "filter", "f", nil, "column filter as column=value[,value...] (repeatable)")
	fs.StringArrayVar(&s.sorts, "sort", nil, "sort key as column or column:desc (repeatable, first wins)")
	fs.BoolVar(&s.grouped, "group-by-device", false, "keep each device's rows together when sorting")
}

func (s *selectFlags) input() (engine.SelectInput, error) {
	filters, err := parseFilters(s.filters)
	if err != nil {
		return engine.SelectInput{}, err
	}
	sorts, err := parseSorts(s.sorts)
	if err != nil {
		return engine.SelectInput{}, err
	}
	return engine.SelectInput{
		Q:             s.q,
		Enums:         filters,
		Sort:          sorts,
		GroupByDevice: s.grouped,
	}, nil
}

// parseFilters turns column=v1,v2 arguments into engine filters. Repeated
// columns accumulate values.
func parseFilters(args []string) (engine.Filters, error) {
	if len(args) == 0 {
		return nil, nil
	}
	filters := make(engine.Filters, len(args))
	for _, arg := range args {
		col, values, ok := strings.Cut(arg, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid filter %q: want column=value[,value...]", arg)
		}
		for _, v := range strings.Split(values, ",") {
			filters[catalog.Column(col)] = append(filters[catalog.Column(col)], strings.TrimSpace(v))
		}
	}
	return filters, nil
}

func parseSorts(args []string) ([]engine.SortSpec, error) {
	var sorts []engine.SortSpec
	for _, arg := range args {
		col, dir, _ := strings.Cut(arg, ":")
		spec := engine.SortSpec{ID: catalog.Column(strings.TrimSpace(col))}
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
		case "desc":
			spec.Desc = true
		default:
			return nil, fmt.Errorf("invalid sort direction %q in %q", dir, arg)
		}
		sorts = append(sorts, spec)
	}
	return sorts, nil
}

func toColumns(names []string) []catalog.Column {
	if len(names) == 0 {
		return nil
	}
	cols := make([]catalog.Column, len(names))
	for i, n := range names {
		cols[i] = catalog.Column(strings.TrimSpace(n))
	}
	return cols
}
