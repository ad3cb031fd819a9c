package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-compat/internal/engine"
)

// Default queue size for pending requests.
const defaultQueueSize = 64

// Request operations, as reported in RequestEvent.Op.
const (
	OpLoad         = "load"
	OpQuery        = "query"
	OpDistinct     = "distinct"
	OpExport       = "export"
	OpSearchFields = "search_fields"
)

// Logger defines the logging interface used by the Worker.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config configures a Worker.
type Config struct {
	// Source is loaded when a load request names none.
	Source string

	// ExportTitle heads exported workbooks whose spec has no title.
	ExportTitle string

	// QueueSize bounds the number of requests waiting for the worker.
	QueueSize int
}

// LoadEvent describes one finished load attempt.
type LoadEvent struct {
	RequestID string
	Source    string
	Result    engine.LoadResult
	Err       error
	Duration  time.Duration
	At        time.Time
}

// RequestEvent describes one finished request of any kind.
type RequestEvent struct {
	RequestID string
	Op        string
	Duration  time.Duration
	Err       error
	// Total is the number of matching rows for queries and exports.
	Total int
	// HasQuery reports a non-empty search string.
	HasQuery bool
	// Filters is the number of filtered columns.
	Filters int
}

// Metrics are cumulative worker counters.
type Metrics struct {
	Requests   uint64 `json:"requests"`
	Failures   uint64 `json:"failures"`
	Loads      uint64 `json:"loads"`
	QueueDepth int    `json:"queue_depth"`
	Running    bool   `json:"running"`
}

// request is one envelope sent to the worker goroutine.
type request struct {
	id       string
	op       string
	hasQuery bool
	filters  int
	run      func(ctx context.Context) (any, int, error)
	reply    chan response
}

type response struct {
	value any
	err   error
}

// Worker serialises all engine work onto one goroutine.
//
// Callers reach it through a Client; requests are answered in arrival
// order. Work that has started is never interrupted: a caller that stops
// waiting simply never reads its reply.
type Worker struct {
	eng         *engine.Engine
	source      string
	exportTitle string
	requests    chan *request
	done        chan struct{}
	started     atomic.Bool
	running     atomic.Bool
	logger      Logger

	obsMu     sync.RWMutex
	onLoad    []func(LoadEvent)
	onRequest []func(RequestEvent)

	requestCount atomic.Uint64
	failureCount atomic.Uint64
	loadCount    atomic.Uint64
}

// New creates a worker that owns eng. Call Run to start serving.
func New(eng *engine.Engine, cfg Config) *Worker {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Worker{
		eng:         eng,
		source:      cfg.Source,
		exportTitle: cfg.ExportTitle,
		requests:    make(chan *request, size),
		done:        make(chan struct{}),
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the worker. Call before Run.
func (w *Worker) SetLogger(logger Logger) {
	w.logger = logger
}

// OnLoad registers fn to be called on the worker goroutine after every
// load attempt, successful or not. fn must not block for long.
func (w *Worker) OnLoad(fn func(LoadEvent)) {
	w.obsMu.Lock()
	w.onLoad = append(w.onLoad, fn)
	w.obsMu.Unlock()
}

// OnRequest registers fn to be called on the worker goroutine after every
// request. fn must not block for long.
func (w *Worker) OnRequest(fn func(RequestEvent)) {
	w.obsMu.Lock()
	w.onRequest = append(w.onRequest, fn)
	w.obsMu.Unlock()
}

// Client returns a handle for sending requests to the worker.
func (w *Worker) Client() *Client {
	return &Client{w: w}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Metrics returns the worker's counters.
func (w *Worker) Metrics() Metrics {
	return Metrics{
		Requests:   w.requestCount.Load(),
		Failures:   w.failureCount.Load(),
		Loads:      w.loadCount.Load(),
		QueueDepth: len(w.requests),
		Running:    w.running.Load(),
	}
}

// Run serves requests until ctx is cancelled. It must be called once;
// later calls return immediately.
func (w *Worker) Run(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		w.logger.Warn("worker already running")
		return
	}
	w.running.Store(true)
	defer func() {
		w.running.Store(false)
		close(w.done)
	}()

	w.logger.Info("worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped", "pending", len(w.requests))
			return
		case req := <-w.requests:
			w.serve(ctx, req)
		}
	}
}

// serve runs one request and always replies, converting a panic into an
// error so one bad request cannot take the worker down.
func (w *Worker) serve(ctx context.Context, req *request) {
	start := time.Now()
	var (
		value any
		total int
		err   error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("worker request panic recovered",
					"request_id", req.id,
					"op", req.op,
					"panic", r,
				)
				err = fmt.Errorf("worker: %s panicked: %v", req.op, r)
			}
		}()
		value, total, err = req.run(ctx)
	}()

	w.requestCount.Add(1)
	if err != nil {
		w.failureCount.Add(1)
	}
	req.reply <- response{value: value, err: err}

	ev := RequestEvent{
		RequestID: req.id,
		Op:        req.op,
		Duration:  time.Since(start),
		Err:       err,
		Total:     total,
		HasQuery:  req.hasQuery,
		Filters:   req.filters,
	}
	w.logger.Debug("worker request served",
		"request_id", req.id,
		"op", req.op,
		"duration", ev.Duration,
		"error", err,
	)

	w.obsMu.RLock()
	observers := w.onRequest
	w.obsMu.RUnlock()
	for _, fn := range observers {
		fn(ev)
	}
}

func (w *Worker) emitLoad(ev LoadEvent) {
	w.loadCount.Add(1)
	if ev.Err != nil {
		w.logger.Warn("catalogue load failed",
			"request_id", ev.RequestID,
			"source", ev.Source,
			"error", ev.Err,
		)
	} else {
		w.logger.Info("catalogue loaded",
			"request_id", ev.RequestID,
			"source", ev.Source,
			"rows", ev.Result.Count,
			"devices", ev.Result.Devices,
			"duration", ev.Duration,
		)
	}

	w.obsMu.RLock()
	observers := w.onLoad
	w.obsMu.RUnlock()
	for _, fn := range observers {
		fn(ev)
	}
}
