package worker

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
	"github.com/nerrad567/gray-logic-compat/internal/engine"
	"github.com/nerrad567/gray-logic-compat/internal/export"
)

// Client sends requests to a Worker.
//
// Every input is copied before it is sent and every result is a copy, so
// callers may reuse or modify their values freely. A caller whose context
// ends stops waiting; the request itself still runs to completion.
type Client struct {
	w *Worker
}

// call sends req and waits for its reply.
func (c *Client) call(ctx context.Context, req *request) (any, error) {
	req.id = uuid.NewString()
	req.reply = make(chan response, 1)

	select {
	case c.w.requests <- req:
	case <-c.w.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-req.reply:
		return resp.value, resp.err
	case <-c.w.done:
		// The worker may have answered just before stopping.
		select {
		case resp := <-req.reply:
			return resp.value, resp.err
		default:
			return nil, ErrStopped
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Load fetches and indexes the catalogue at source. An empty source uses
// the worker's configured one; empty fields keep the current search fields.
//
// Returns:
//   - engine.LoadResult: Counts of the new snapshot
//   - error: ErrNoSource, engine.ErrLoadFailed or engine.ErrUnknownColumn
//     (wrapped), or ErrStopped
func (c *Client) Load(ctx context.Context, source string, fields []catalog.Column) (engine.LoadResult, error) {
	if source == "" {
		source = c.w.source
	}
	if source == "" {
		return engine.LoadResult{}, ErrNoSource
	}
	fields = slices.Clone(fields)

	req := &request{op: OpLoad}
	req.run = func(ctx context.Context) (any, int, error) {
		start := time.Now()
		res, err := c.w.eng.Load(ctx, source, fields)
		c.w.emitLoad(LoadEvent{
			RequestID: req.id,
			Source:    source,
			Result:    res,
			Err:       err,
			Duration:  time.Since(start),
			At:        start,
		})
		return res, res.Count, err
	}

	v, err := c.call(ctx, req)
	if err != nil {
		return engine.LoadResult{}, err
	}
	return v.(engine.LoadResult), nil //nolint:forcetypeassert // set by the closure above
}

// Query returns one page of rows.
func (c *Client) Query(ctx context.Context, in engine.QueryInput) (engine.QueryResult, error) {
	in = in.Clone()
	req := &request{op: OpQuery, hasQuery: in.Q != "", filters: countFilters(in.Enums)}
	req.run = func(context.Context) (any, int, error) {
		res, err := c.w.eng.Query(in)
		return res, res.Total, err
	}

	v, err := c.call(ctx, req)
	if err != nil {
		return engine.QueryResult{}, err
	}
	return v.(engine.QueryResult), nil //nolint:forcetypeassert // set by the closure above
}

// Distinct returns facet options for every facet column, or for the columns
// named in in.Columns.
func (c *Client) Distinct(ctx context.Context, in engine.DistinctInput) (engine.OptionMap, error) {
	in.Enums = in.Enums.Clone()
	in.Columns = slices.Clone(in.Columns)
	req := &request{op: OpDistinct, hasQuery: in.Q != "", filters: countFilters(in.Enums)}
	req.run = func(context.Context) (any, int, error) {
		opts, err := c.w.eng.Distinct(in)
		return opts, 0, err
	}

	v, err := c.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return v.(engine.OptionMap), nil //nolint:forcetypeassert // set by the closure above
}

// BuildExport renders every row selected by spec as an xlsx workbook.
func (c *Client) BuildExport(ctx context.Context, spec export.Spec) ([]byte, error) {
	spec = spec.Clone()
	req := &request{op: OpExport, hasQuery: spec.Q != "", filters: countFilters(spec.Enums)}
	req.run = func(context.Context) (any, int, error) {
		rows, _, err := c.w.eng.Select(spec.SelectInput)
		if err != nil {
			return nil, 0, err
		}
		data, err := export.Build(rows, spec, c.w.exportTitle)
		if err != nil {
			return nil, len(rows), fmt.Errorf("building export: %w", err)
		}
		return data, len(rows), nil
	}

	v, err := c.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil //nolint:forcetypeassert // set by the closure above
}

// SetSearchFields rebuilds the search index over the given fields.
func (c *Client) SetSearchFields(ctx context.Context, fields []catalog.Column) error {
	fields = slices.Clone(fields)
	req := &request{op: OpSearchFields}
	req.run = func(context.Context) (any, int, error) {
		return nil, 0, c.w.eng.SetSearchFields(fields)
	}
	_, err := c.call(ctx, req)
	return err
}

// Stats describes the loaded catalogue. It reads the engine's current
// snapshot directly and never waits for the worker.
func (c *Client) Stats() engine.Stats {
	return c.w.eng.Stats()
}

func countFilters(f engine.Filters) int {
	n := 0
	for _, values := range f {
		if len(values) > 0 {
			n++
		}
	}
	return n
}
