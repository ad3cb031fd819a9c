package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "compat.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "test-site"
catalog:
  source: "https://example.com/devices.json"
  search_fields: ["deviceModel", "deviceBrand"]
  default_page_size: 25
  max_page_size: 100
database:
  enabled: true
  path: "/tmp/test.db"
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1883
  qos: 1
api:
  port: 9090
security:
  require_auth: true
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Catalog.Source != "https://example.com/devices.json" {
		t.Errorf("Catalog.Source = %q", cfg.Catalog.Source)
	}
	if !slices.Equal(cfg.Catalog.SearchFields, []string{"deviceModel", "deviceBrand"}) {
		t.Errorf("Catalog.SearchFields = %v", cfg.Catalog.SearchFields)
	}
	if cfg.Catalog.DefaultPageSize != 25 || cfg.Catalog.MaxPageSize != 100 {
		t.Errorf("page sizes = %d/%d, want 25/100", cfg.Catalog.DefaultPageSize, cfg.Catalog.MaxPageSize)
	}
	// Unset keys keep their defaults.
	if cfg.MQTT.TopicPrefix != "compat" {
		t.Errorf("MQTT.TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, "compat")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
site:
  id: ""
`)
	if _, err := Load(path); err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing site ID", func(c *Config) { c.Site.ID = "" }, true},
		{"zero page size", func(c *Config) { c.Catalog.DefaultPageSize = 0 }, true},
		{"negative max page size", func(c *Config) { c.Catalog.MaxPageSize = -1 }, true},
		{"negative facet limit", func(c *Config) { c.Catalog.FacetLimit = -1 }, true},
		{"database enabled without path", func(c *Config) {
			c.Database.Enabled = true
			c.Database.Path = ""
		}, true},
		{"database disabled without path", func(c *Config) { c.Database.Path = "" }, false},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"mqtt without prefix", func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.TopicPrefix = ""
		}, true},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, true},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, true},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true }, true},
		{"auth without secret", func(c *Config) { c.Security.RequireAuth = true }, true},
		{"auth with short secret", func(c *Config) {
			c.Security.RequireAuth = true
			c.Security.JWT.Secret = "short"
		}, true},
		{"auth with secret", func(c *Config) {
			c.Security.RequireAuth = true
			c.Security.JWT.Secret = validJWTSecret
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Catalog: CatalogConfig{FetchTimeout: 12},
	}

	if got := cfg.API.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.API.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.API.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetFetchTimeout().Seconds(); got != 12 {
		t.Errorf("GetFetchTimeout() = %v, want 12", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("COMPAT_CATALOG_SOURCE", "sqlite:///var/lib/compat.db")
	t.Setenv("COMPAT_CATALOG_SEARCH_FIELDS", "deviceModel, deviceBrand,")
	t.Setenv("COMPAT_DATABASE_PATH", "/custom/path.db")
	t.Setenv("COMPAT_MQTT_HOST", "mqtt.example.com")
	t.Setenv("COMPAT_MQTT_USERNAME", "testuser")
	t.Setenv("COMPAT_MQTT_PASSWORD", "testpass")
	t.Setenv("COMPAT_API_HOST", "192.168.1.1")
	t.Setenv("COMPAT_API_PORT", "9191")
	t.Setenv("COMPAT_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("COMPAT_LOG_LEVEL", "debug")
	t.Setenv("COMPAT_JWT_SECRET", "jwt-secret")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.Catalog.Source != "sqlite:///var/lib/compat.db" {
		t.Errorf("Catalog.Source = %q", cfg.Catalog.Source)
	}
	if !slices.Equal(cfg.Catalog.SearchFields, []string{"deviceModel", "deviceBrand"}) {
		t.Errorf("Catalog.SearchFields = %v", cfg.Catalog.SearchFields)
	}
	if cfg.Database.Path != "/custom/path.db" || !cfg.Database.Enabled {
		t.Errorf("Database = %+v, want enabled with custom path", cfg.Database)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" || cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth = %+v", cfg.MQTT.Auth)
	}
	if cfg.API.Host != "192.168.1.1" || cfg.API.Port != 9191 {
		t.Errorf("API = %s:%d", cfg.API.Host, cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestApplyEnvOverrides_BadPort(t *testing.T) {
	t.Setenv("COMPAT_API_PORT", "eighty")
	if err := applyEnvOverrides(defaultConfig()); err == nil {
		t.Error("applyEnvOverrides() expected error for non-numeric port")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Site.ID == "" {
		t.Error("Default() should have non-empty Site.ID")
	}
	if cfg.Catalog.DefaultPageSize != 10 {
		t.Errorf("Default() Catalog.DefaultPageSize = %d, want 10", cfg.Catalog.DefaultPageSize)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("Default() MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Default() API.Port = %d, want 8080", cfg.API.Port)
	}
}
