package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
	"github.com/nerrad567/gray-logic-compat/internal/engine"
	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-compat/internal/worker"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, []string{"--config", "/nonexistent/path/config.yaml"}); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	if err := run(context.Background(), []string{"--bogus"}); err == nil {
		t.Fatal("run() should fail with an unknown flag")
	}
}

func TestRun_Version(t *testing.T) {
	if err := run(context.Background(), []string{"--version"}); err != nil {
		t.Fatalf("run(--version) error = %v", err)
	}
}

// TestRun_InvalidConfigValues verifies validation errors stop startup.
func TestRun_InvalidConfigValues(t *testing.T) {
	configPath := writeConfig(t, `
site:
  id: test-site
security:
  require_auth: true
  jwt:
    secret: "short"
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, []string{"-c", configPath}); err == nil {
		t.Fatal("run() should reject a short JWT secret")
	}
}

// TestRun_ServesCatalogue starts the daemon against a file catalogue and
// a temporary database, then shuts it down.
func TestRun_ServesCatalogue(t *testing.T) {
	dir := t.TempDir()

	catalogPath := filepath.Join(dir, "devices.json")
	data, err := catalog.EncodePayload(catalog.Payload{
		UpdateTime: 7,
		SupportDevices: []catalog.RawDevice{
			{DeviceInfo: catalog.DeviceInfo{Model: "S31", Brand: "SONOFF"}},
			{DeviceInfo: catalog.DeviceInfo{Model: "T1", Brand: "Aqara"}},
		},
	})
	if err != nil {
		t.Fatalf("EncodePayload() error = %v", err)
	}
	if err := os.WriteFile(catalogPath, data, 0600); err != nil {
		t.Fatalf("writing catalogue: %v", err)
	}

	port := freePort(t)
	configPath := writeConfig(t, fmt.Sprintf(`
site:
  id: test-site
catalog:
  source: %q
  load_on_start: true
database:
  enabled: true
  path: %q
api:
  host: "127.0.0.1"
  port: %d
logging:
  level: error
  format: text
  output: stderr
`, catalogPath, filepath.Join(dir, "compat.db"), port))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, []string{"--config", configPath}) }()

	base := fmt.Sprintf("http://127.0.0.1:%d/api/v1", port)
	waitFor(t, func() bool {
		var health struct {
			Loaded bool `json:"loaded"`
		}
		return getJSON(base+"/health", &health) == nil && health.Loaded
	})

	var loads struct {
		Total int `json:"total"`
		Loads []struct {
			Source   string `json:"source"`
			RowCount int    `json:"rowCount"`
		} `json:"loads"`
	}
	if err := getJSON(base+"/catalog/loads", &loads); err != nil {
		t.Fatalf("GET /catalog/loads: %v", err)
	}
	if loads.Total != 1 || loads.Loads[0].Source != catalogPath || loads.Loads[0].RowCount != 2 {
		t.Errorf("loads = %+v", loads)
	}

	var metrics struct {
		Worker worker.Metrics `json:"worker"`
	}
	if err := getJSON(base+"/metrics", &metrics); err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	if !metrics.Worker.Running || metrics.Worker.Loads != 1 {
		t.Errorf("worker metrics = %+v", metrics.Worker)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("COMPAT_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("COMPAT_CONFIG", "/etc/compat/config.yaml")
	if got := getConfigPath(); got != "/etc/compat/config.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}

func TestToColumns(t *testing.T) {
	if got := toColumns(nil); got != nil {
		t.Errorf("toColumns(nil) = %v, want nil", got)
	}
	want := []catalog.Column{catalog.ColumnDeviceModel, catalog.ColumnDeviceBrand}
	if diff := cmp.Diff(want, toColumns([]string{"deviceModel", "deviceBrand"})); diff != "" {
		t.Errorf("toColumns() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewEngine(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"defaults", func(*config.Config) {}, ""},
		{"unknown search field", func(c *config.Config) { c.Catalog.SearchFields = []string{"nope"} }, "catalog.search_fields"},
		{"unknown merge column", func(c *config.Config) { c.Catalog.MergeColumns = []string{"nope"} }, "catalog.merge_columns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			_, err := newEngine(cfg, logging.Discard())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("newEngine() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("newEngine() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewEngine_MergeColumns(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog.MergeColumns = []string{"deviceBrand"}
	eng, err := newEngine(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("newEngine() error = %v", err)
	}

	payload := catalog.Payload{SupportDevices: []catalog.RawDevice{
		{DeviceInfo: catalog.DeviceInfo{Model: "A", Brand: "SONOFF"}},
		{DeviceInfo: catalog.DeviceInfo{Model: "B", Brand: "SONOFF"}},
		{DeviceInfo: catalog.DeviceInfo{Model: "C", Brand: "Aqara"}},
	}}
	if _, err := eng.LoadPayload(payload, "test", nil); err != nil {
		t.Fatalf("LoadPayload() error = %v", err)
	}
	res, err := eng.Query(engine.QueryInput{Spans: true})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if diff := cmp.Diff([]int{2, 0, 1}, res.Spans); diff != "" {
		t.Errorf("spans mismatch (-want +got):\n%s", diff)
	}
}

func TestHealthCheck_NothingEnabled(t *testing.T) {
	if err := healthCheck(context.Background(), nil, nil, nil); err != nil {
		t.Errorf("healthCheck() error = %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func getJSON(url string, v any) error {
	resp, err := http.Get(url) //nolint:gosec,noctx // Test helper against a local server
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
