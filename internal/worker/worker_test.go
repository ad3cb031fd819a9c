package worker

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
	"github.com/nerrad567/gray-logic-compat/internal/engine"
	"github.com/nerrad567/gray-logic-compat/internal/export"
)

const testSource = "mem://catalog"

// memFetcher serves fixed documents by location.
type memFetcher map[string][]byte

func (f memFetcher) Fetch(_ context.Context, location string) ([]byte, error) {
	data, ok := f[location]
	if !ok {
		return nil, errors.New("not found: " + location)
	}
	return data, nil
}

func testCatalog(t *testing.T) []byte {
	t.Helper()
	data, err := catalog.EncodePayload(catalog.Payload{
		UpdateTime: 42,
		SupportDevices: []catalog.RawDevice{
			{DeviceInfo: catalog.DeviceInfo{Model: "A", Brand: "SONOFF", Category: "switch"}},
			{
				DeviceInfo: catalog.DeviceInfo{Model: "B", Brand: "SONOFF", Category: "plug"},
				MatterBridge: &catalog.MatterBridge{IsSupported: true, Devices: []catalog.MatterDevice{
					{DeviceType: "On/Off Plug-in Unit", SupportedClusters: []string{"OnOff"}},
					{DeviceType: "Electrical Sensor"},
				}},
			},
			{
				DeviceInfo:   catalog.DeviceInfo{Model: "C", Brand: "Aqara", Category: "sensor"},
				MatterBridge: &catalog.MatterBridge{IsSupported: true},
			},
		},
	})
	if err != nil {
		t.Fatalf("EncodePayload() error = %v", err)
	}
	return data
}

// startWorker runs a worker until the test ends.
func startWorker(t *testing.T, cfg Config) (*Worker, context.CancelFunc) {
	t.Helper()
	eng := engine.New(memFetcher{
		testSource: testCatalog(t),
		"mem://bad": []byte("{not json"),
	})
	if cfg.Source == "" {
		cfg.Source = testSource
	}
	w := New(eng, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-w.Done()
	})
	return w, cancel
}

func TestClient_QueryBeforeLoad(t *testing.T) {
	w, _ := startWorker(t, Config{})
	_, err := w.Client().Query(context.Background(), engine.QueryInput{})
	if !errors.Is(err, engine.ErrNotLoaded) {
		t.Errorf("Query() error = %v, want ErrNotLoaded", err)
	}
}

func TestClient_LoadAndQuery(t *testing.T) {
	w, _ := startWorker(t, Config{})
	client := w.Client()
	ctx := context.Background()

	var events []LoadEvent
	w.OnLoad(func(ev LoadEvent) { events = append(events, ev) })

	res, err := client.Load(ctx, "", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if res.Count != 4 || res.Devices != 3 || res.UpdateTime != 42 {
		t.Errorf("Load() = %+v, want 4 rows, 3 devices, updateTime 42", res)
	}

	q, err := client.Query(ctx, engine.QueryInput{
		Enums:    engine.Filters{catalog.ColumnMatterSupported: {true}},
		PageSize: 2,
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if q.Total != 3 || len(q.Rows) != 2 || q.UpdateTime != 42 {
		t.Errorf("Query() total=%d rows=%d updateTime=%d", q.Total, len(q.Rows), q.UpdateTime)
	}

	// The observer ran on the worker goroutine before the next request was served.
	if len(events) != 1 || events[0].Err != nil || events[0].Source != testSource || events[0].RequestID == "" {
		t.Errorf("load events = %+v", events)
	}

	st := client.Stats()
	if !st.Loaded || st.Rows != 4 || st.Source != testSource {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestClient_LoadFailureKeepsSnapshot(t *testing.T) {
	w, _ := startWorker(t, Config{})
	client := w.Client()
	ctx := context.Background()

	var failed []LoadEvent
	w.OnLoad(func(ev LoadEvent) {
		if ev.Err != nil {
			failed = append(failed, ev)
		}
	})

	if _, err := client.Load(ctx, "", nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, src := range []string{"mem://bad", "mem://missing"} {
		if _, err := client.Load(ctx, src, nil); !errors.Is(err, engine.ErrLoadFailed) {
			t.Errorf("Load(%s) error = %v, want ErrLoadFailed", src, err)
		}
	}
	if len(failed) != 2 {
		t.Errorf("failed load events = %d, want 2", len(failed))
	}

	q, err := client.Query(ctx, engine.QueryInput{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if q.Total != 4 {
		t.Errorf("Total = %d after failed reload, want 4", q.Total)
	}
}

func TestClient_LoadWithoutSource(t *testing.T) {
	eng := engine.New(memFetcher{})
	w := New(eng, Config{})
	// The source check happens before the worker is involved.
	if _, err := w.Client().Load(context.Background(), "", nil); !errors.Is(err, ErrNoSource) {
		t.Errorf("Load() error = %v, want ErrNoSource", err)
	}
}

func TestClient_ResultsAreCopies(t *testing.T) {
	w, _ := startWorker(t, Config{})
	client := w.Client()
	ctx := context.Background()
	if _, err := client.Load(ctx, "", nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	first, err := client.Query(ctx, engine.QueryInput{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	first.Rows[0].DeviceModel = "mutated"
	first.Rows[1].MatterSupportedClusters = append(first.Rows[1].MatterSupportedClusters[:0], "mutated")

	second, err := client.Query(ctx, engine.QueryInput{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if second.Rows[0].DeviceModel != "A" {
		t.Errorf("DeviceModel = %q, mutation leaked into the engine", second.Rows[0].DeviceModel)
	}
	if got := second.Rows[1].MatterSupportedClusters; len(got) != 1 || got[0] != "OnOff" {
		t.Errorf("MatterSupportedClusters = %v, mutation leaked into the engine", got)
	}
}

func TestClient_Distinct(t *testing.T) {
	w, _ := startWorker(t, Config{})
	client := w.Client()
	ctx := context.Background()
	if _, err := client.Load(ctx, "", nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	opts, err := client.Distinct(ctx, engine.DistinctInput{
		Enums:   engine.Filters{catalog.ColumnDeviceBrand: {"Aqara"}},
		Columns: []catalog.Column{catalog.ColumnDeviceBrand, catalog.ColumnDeviceModel},
	})
	if err != nil {
		t.Fatalf("Distinct() error = %v", err)
	}
	if len(opts[catalog.ColumnDeviceBrand]) != 2 {
		t.Errorf("brand options = %v, want both brands", opts[catalog.ColumnDeviceBrand])
	}
	if models := opts[catalog.ColumnDeviceModel]; len(models) != 1 || models[0].Value != "C" {
		t.Errorf("model options = %v, want only C", models)
	}
}

func TestClient_BuildExport(t *testing.T) {
	w, _ := startWorker(t, Config{ExportTitle: "Export"})
	client := w.Client()
	ctx := context.Background()

	if _, err := client.BuildExport(ctx, export.Spec{}); !errors.Is(err, engine.ErrNotLoaded) {
		t.Errorf("BuildExport() before load error = %v, want ErrNotLoaded", err)
	}
	if _, err := client.Load(ctx, "", nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var events []RequestEvent
	w.OnRequest(func(ev RequestEvent) { events = append(events, ev) })

	data, err := client.BuildExport(ctx, export.Spec{
		SelectInput: engine.SelectInput{Enums: engine.Filters{catalog.ColumnDeviceBrand: {"SONOFF"}}},
	})
	if err != nil {
		t.Fatalf("BuildExport() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Error("BuildExport() did not return a zip container")
	}

	// Wait for the observer by issuing one more request.
	if _, err := client.Query(ctx, engine.QueryInput{}); err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(events) < 1 || events[0].Op != OpExport || events[0].Total != 3 || events[0].Filters != 1 {
		t.Errorf("request events = %+v", events)
	}

	_, err = client.BuildExport(ctx, export.Spec{Columns: []export.Column{{Title: "x", Key: "nope"}}})
	if !errors.Is(err, engine.ErrUnknownColumn) {
		t.Errorf("BuildExport() error = %v, want ErrUnknownColumn", err)
	}
}

func TestClient_SetSearchFields(t *testing.T) {
	w, _ := startWorker(t, Config{})
	client := w.Client()
	ctx := context.Background()
	if _, err := client.Load(ctx, "", nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := client.SetSearchFields(ctx, []catalog.Column{catalog.ColumnDeviceBrand}); err != nil {
		t.Fatalf("SetSearchFields() error = %v", err)
	}
	q, err := client.Query(ctx, engine.QueryInput{Q: "plug"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if q.Total != 0 {
		t.Errorf("Total = %d, category should no longer be searched", q.Total)
	}
	q, err = client.Query(ctx, engine.QueryInput{Q: "aqara"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if q.Total != 1 {
		t.Errorf("Total = %d, want 1", q.Total)
	}

	if err := client.SetSearchFields(ctx, []catalog.Column{"nope"}); !errors.Is(err, engine.ErrUnknownColumn) {
		t.Errorf("SetSearchFields() error = %v, want ErrUnknownColumn", err)
	}
}

func TestClient_ConcurrentCallers(t *testing.T) {
	w, _ := startWorker(t, Config{QueueSize: 4})
	client := w.Client()
	ctx := context.Background()
	if _, err := client.Load(ctx, "", nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			res, err := client.Query(ctx, engine.QueryInput{Page: page%3 + 1, PageSize: 2})
			if err == nil && res.Total != 4 {
				err = errors.New("unexpected total")
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Query() error = %v", err)
		}
	}

	m := w.Metrics()
	if m.Requests != callers+1 || m.Loads != 1 || !m.Running {
		t.Errorf("Metrics() = %+v", m)
	}
}

func TestClient_Stopped(t *testing.T) {
	w, cancel := startWorker(t, Config{})
	cancel()
	<-w.Done()

	_, err := w.Client().Query(context.Background(), engine.QueryInput{})
	if !errors.Is(err, ErrStopped) {
		t.Errorf("Query() after stop error = %v, want ErrStopped", err)
	}
	if w.Metrics().Running {
		t.Error("Metrics().Running = true after stop")
	}
}

func TestClient_CallerContextEnds(t *testing.T) {
	// A worker that never runs leaves callers waiting on their own context.
	w := New(engine.New(memFetcher{}), Config{QueueSize: 1})
	client := w.Client()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.Query(ctx, engine.QueryInput{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Query() error = %v, want DeadlineExceeded", err)
	}
}

func TestWorker_RunTwice(t *testing.T) {
	w, _ := startWorker(t, Config{})
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second Run() did not return")
	}
}
