package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
)

// DefaultPageSize is used when a query does not ask for a positive page size.
const DefaultPageSize = 10

// Logger defines the logging interface used by the Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Fetcher retrieves a raw catalogue document from a location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// snapshot is one immutable loaded state. It is never modified after it
// has been published.
type snapshot struct {
	rows       []catalog.FlatRow
	devices    int
	updateTime int64
	index      *Index
	source     string
	loadedAt   time.Time
}

// Engine owns the loaded catalogue and answers queries against it.
//
// Reads are lock-free: each request loads the current snapshot once.
// Load and SetSearchFields are serialised and publish a complete new
// snapshot. All public methods are safe for concurrent use.
type Engine struct {
	fetcher  Fetcher
	current  atomic.Pointer[snapshot]
	writeMu  sync.Mutex
	fields   []catalog.Column // search fields for the next load; guarded by writeMu
	spans    SpanPolicy
	defPage  int
	maxPage  int
	logger   Logger
	loadedAt func() time.Time
}

// New creates an engine that loads catalogues through fetcher.
// fetcher may be nil when only LoadPayload is used.
func New(fetcher Fetcher) *Engine {
	return &Engine{
		fetcher:  fetcher,
		fields:   catalog.DefaultSearchFields(),
		spans:    DefaultSpanPolicy(),
		defPage:  DefaultPageSize,
		logger:   noopLogger{},
		loadedAt: time.Now,
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// SetDefaultPageSize sets the page size used when a query asks for none.
// Non-positive values restore DefaultPageSize.
func (e *Engine) SetDefaultPageSize(n int) {
	if n <= 0 {
		n = DefaultPageSize
	}
	e.defPage = n
}

// SetMaxPageSize caps the page size a query may request. 0 disables the cap.
func (e *Engine) SetMaxPageSize(n int) {
	e.maxPage = n
}

// SetSpanPolicy replaces the merge columns used for row spans.
func (e *Engine) SetSpanPolicy(p SpanPolicy) error {
	if _, err := mergeKeyer(p.MergeColumns); err != nil {
		return err
	}
	e.spans = SpanPolicy{MergeColumns: slices.Clone(p.MergeColumns)}
	return nil
}

// LoadResult summarises a successful load.
type LoadResult struct {
	Count      int           `json:"count"`
	Devices    int           `json:"devices"`
	UpdateTime int64         `json:"updateTime"`
	Source     string        `json:"source"`
	Duration   time.Duration `json:"-"`
}

// Load fetches, parses and flattens the catalogue at location and rebuilds
// the search index.
//
// The new snapshot is published only after it is complete; on failure the
// previous snapshot stays in place. Fetch errors are not retried.
//
// Parameters:
//   - ctx: Context for the fetch
//   - location: URL or path understood by the engine's Fetcher
//   - fields: Search fields; empty keeps the current ones
//
// Returns:
//   - LoadResult: Row and device counts of the new snapshot
//   - error: ErrLoadFailed or ErrUnknownColumn (wrapped) on failure
func (e *Engine) Load(ctx context.Context, location string, fields []catalog.Column) (LoadResult, error) {
	if e.fetcher == nil {
		return LoadResult{}, fmt.Errorf("%w: no fetcher configured", ErrLoadFailed)
	}

	// Validate fields before spending time on the fetch.
	if len(fields) > 0 {
		if _, err := searchDefs(fields); err != nil {
			return LoadResult{}, err
		}
	}

	start := time.Now()
	data, err := e.fetcher.Fetch(ctx, location)
	if err != nil {
		e.logger.Warn("catalogue fetch failed", "source", location, "error", err)
		return LoadResult{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	payload, err := catalog.DecodePayload(data)
	if err != nil {
		e.logger.Warn("catalogue decode failed", "source", location, "error", err)
		return LoadResult{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	res, err := e.LoadPayload(payload, location, fields)
	res.Duration = time.Since(start)
	return res, err
}

// LoadPayload replaces the catalogue with an already decoded payload.
func (e *Engine) LoadPayload(payload catalog.Payload, source string, fields []catalog.Column) (LoadResult, error) {
	start := time.Now()
	if err := catalog.Validate(payload.SupportDevices); err != nil {
		return LoadResult{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if len(fields) == 0 {
		fields = e.fields
	}

	rows := catalog.FlattenAll(payload.SupportDevices)
	index, err := BuildIndex(rows, fields)
	if err != nil {
		return LoadResult{}, err
	}

	snap := &snapshot{
		rows:       rows,
		devices:    len(payload.SupportDevices),
		updateTime: payload.UpdateTime,
		index:      index,
		source:     source,
		loadedAt:   e.loadedAt(),
	}
	e.fields = index.Fields()
	e.current.Store(snap)

	e.logger.Info("catalogue loaded",
		"source", source,
		"devices", snap.devices,
		"rows", len(rows),
		"update_time", snap.updateTime,
	)

	return LoadResult{
		Count:      len(rows),
		Devices:    snap.devices,
		UpdateTime: snap.updateTime,
		Source:     source,
		Duration:   time.Since(start),
	}, nil
}

// SetSearchFields rebuilds the search index over the current rows with new
// fields. Before the first load it only records the fields for that load.
func (e *Engine) SetSearchFields(fields []catalog.Column) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: at least one search field is required", ErrInvalidInput)
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	cur := e.current.Load()
	if cur == nil {
		if _, err := searchDefs(fields); err != nil {
			return err
		}
		e.fields = slices.Clone(fields)
		return nil
	}

	index, err := BuildIndex(cur.rows, fields)
	if err != nil {
		return err
	}
	next := *cur
	next.index = index
	e.fields = index.Fields()
	e.current.Store(&next)

	e.logger.Info("search fields updated", "fields", fields)
	return nil
}

// SearchFields returns the fields the index is (or will be) built over.
func (e *Engine) SearchFields() []catalog.Column {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return slices.Clone(e.fields)
}

func (e *Engine) snapshot() (*snapshot, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	return snap, nil
}

// QueryInput describes one table request.
type QueryInput struct {
	Q        string     `json:"q,omitempty"`
	Enums    Filters    `json:"enums,omitempty"`
	Sort     []SortSpec `json:"sort,omitempty"`
	Page     int        `json:"page,omitempty"`
	PageSize int        `json:"pageSize,omitempty"`

	// Spans requests row spans for the returned page.
	Spans bool `json:"spans,omitempty"`
	// VisibleColumns feeds the span policy; empty means all columns.
	VisibleColumns []catalog.Column `json:"visibleColumns,omitempty"`
	// GroupByDevice orders rows by device identity when no sort is given.
	GroupByDevice bool `json:"groupByDevice,omitempty"`
}

// Clone returns a copy of in that shares no memory with it.
func (in QueryInput) Clone() QueryInput {
	out := in
	out.Enums = in.Enums.Clone()
	out.Sort = slices.Clone(in.Sort)
	out.VisibleColumns = slices.Clone(in.VisibleColumns)
	return out
}

// QueryResult is one page of rows.
type QueryResult struct {
	Rows       []catalog.FlatRow `json:"rows"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	UpdateTime int64             `json:"updateTime"`
	Spans      []int             `json:"spans,omitempty"`
}

// Query runs search, filter, sort and pagination.
//
// Non-positive page sizes fall back to the default page size and the page is
// clamped to [1, max(1, ceil(total/pageSize))].
//
// Returns:
//   - QueryResult: The requested page; rows are copies
//   - error: ErrNotLoaded, ErrUnknownColumn or ErrInvalidInput (wrapped)
func (e *Engine) Query(in QueryInput) (QueryResult, error) {
	snap, err := e.snapshot()
	if err != nil {
		return QueryResult{}, err
	}

	positions, err := e.selectPositions(snap, in.Q, in.Enums, in.Sort, in.GroupByDevice)
	if err != nil {
		return QueryResult{}, err
	}
	for _, col := range in.VisibleColumns {
		if _, ok := catalog.Lookup(col); !ok {
			return QueryResult{}, wrapUnknown("visible", fmt.Errorf("%w: %q", catalog.ErrUnknownColumn, col))
		}
	}

	total := len(positions)
	pageSize := in.PageSize
	if pageSize <= 0 {
		pageSize = e.defPage
	}
	if e.maxPage > 0 && pageSize > e.maxPage {
		pageSize = e.maxPage
	}
	maxPage := max(1, (total+pageSize-1)/pageSize)
	page := min(max(1, in.Page), maxPage)

	from := (page - 1) * pageSize
	to := min(from+pageSize, total)

	res := QueryResult{
		Rows:       gather(snap.rows, positions[from:to]),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		UpdateTime: snap.updateTime,
	}

	if in.Spans {
		spans, err := e.spans.Spans(res.Rows, in.VisibleColumns)
		if err != nil {
			return QueryResult{}, err
		}
		res.Spans = spans
	}

	return res, nil
}

// SelectInput narrows the full row set without paginating.
type SelectInput struct {
	Q             string     `json:"q,omitempty"`
	Enums         Filters    `json:"enums,omitempty"`
	Sort          []SortSpec `json:"sort,omitempty"`
	GroupByDevice bool       `json:"groupByDevice,omitempty"`
}

// Select returns every row matching in, in query order, plus the
// snapshot's updateTime.
func (e *Engine) Select(in SelectInput) ([]catalog.FlatRow, int64, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, 0, err
	}
	positions, err := e.selectPositions(snap, in.Q, in.Enums, in.Sort, in.GroupByDevice)
	if err != nil {
		return nil, 0, err
	}
	return gather(snap.rows, positions), snap.updateTime, nil
}

func (e *Engine) selectPositions(snap *snapshot, q string, f Filters, specs []SortSpec, groupByDevice bool) ([]int, error) {
	pred, err := CompileFilters(f)
	if err != nil {
		return nil, err
	}
	keys, err := compileSort(specs)
	if err != nil {
		return nil, err
	}

	positions := snap.index.Search(q)
	if !pred.Empty() {
		kept := positions[:0]
		for _, pos := range positions {
			if pred.Passes(&snap.rows[pos]) {
				kept = append(kept, pos)
			}
		}
		positions = kept
	}

	switch {
	case len(keys) > 0:
		sortPositions(snap.rows, positions, keys)
	case groupByDevice:
		sortPositionsByDeviceGroup(snap.rows, positions)
	}
	return positions, nil
}

// DistinctInput selects the search and filter context for facets.
type DistinctInput struct {
	Q     string  `json:"q,omitempty"`
	Enums Filters `json:"enums,omitempty"`
	// Columns limits the facets computed; empty means every facet column.
	Columns []catalog.Column `json:"columns,omitempty"`
	// Limit truncates each option list after computation; 0 keeps all.
	Limit int `json:"limit,omitempty"`
}

// Distinct computes facet options under the given search and filters.
// The search narrows every facet; each column ignores its own filter.
func (e *Engine) Distinct(in DistinctInput) (OptionMap, error) {
	snap, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	pred, err := CompileFilters(in.Enums)
	if err != nil {
		return nil, err
	}

	cols := catalog.ColumnsWith(catalog.TraitFacet)
	if len(in.Columns) > 0 {
		cols = cols[:0:0]
		for _, col := range in.Columns {
			def, err := catalog.Require(col, catalog.TraitFacet)
			if err != nil {
				return nil, wrapUnknown("facet", err)
			}
			cols = append(cols, def)
		}
	}

	positions := snap.index.Search(in.Q)
	opts := facets(snap.rows, positions, pred, cols)
	if in.Limit > 0 {
		opts = opts.Limit(in.Limit)
	}
	return opts, nil
}

// Stats describes the current snapshot.
type Stats struct {
	Loaded          bool             `json:"loaded"`
	Rows            int              `json:"rows"`
	Devices         int              `json:"devices"`
	UpdateTime      int64            `json:"updateTime"`
	LoadedAt        *time.Time       `json:"loadedAt,omitempty"`
	Source          string           `json:"source,omitempty"`
	SearchFields    []catalog.Column `json:"searchFields"`
	RegistryVersion int              `json:"registryVersion"`
}

// Stats returns a summary of the loaded catalogue.
func (e *Engine) Stats() Stats {
	st := Stats{
		SearchFields:    e.SearchFields(),
		RegistryVersion: catalog.RegistryVersion,
	}
	snap := e.current.Load()
	if snap == nil {
		return st
	}
	loadedAt := snap.loadedAt
	st.Loaded = true
	st.Rows = len(snap.rows)
	st.Devices = snap.devices
	st.UpdateTime = snap.updateTime
	st.LoadedAt = &loadedAt
	st.Source = snap.source
	st.SearchFields = snap.index.Fields()
	return st
}
