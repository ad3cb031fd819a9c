package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "compatd-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
		},
		TopicPrefix: "compat",
	}
}

// fakeMessage satisfies pahomqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestNewTopics(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "compat/command/reload"},
		{"   ", "compat/command/reload"},
		{"site-a", "site-a/command/reload"},
		{"/site-a/", "site-a/command/reload"},
		{"lab/compat", "lab/compat/command/reload"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			if got := NewTopics(tt.prefix).CommandReload(); got != tt.want {
				t.Errorf("CommandReload() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("site-a")
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"CommandReload", topics.CommandReload(), "site-a/command/reload"},
		{"EventLoaded", topics.EventLoaded(), "site-a/event/loaded"},
		{"SystemStatus", topics.SystemStatus(), "site-a/system/status"},
		{"ZeroValue", Topics{}.SystemStatus(), "compat/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "compat"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://localhost:1883" {
		t.Fatalf("Servers = %v, want [tcp://localhost:1883]", opts.Servers)
	}
	if opts.ClientID != "compatd-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "compat" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.CleanSession {
		t.Error("CleanSession should be set")
	}
	if !opts.AutoReconnect || !opts.ConnectRetry {
		t.Error("reconnect should be enabled")
	}
	if opts.ConnectRetryInterval != time.Second {
		t.Errorf("ConnectRetryInterval = %v, want 1s", opts.ConnectRetryInterval)
	}
	if opts.MaxReconnectInterval != time.Minute {
		t.Errorf("MaxReconnectInterval = %v, want 1m", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS should not be configured for a plain broker")
	}
}

func TestBuildClientOptions_TLSAndAnonymous(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if got := opts.Servers[0].String(); got != "ssl://localhost:8883" {
		t.Errorf("broker = %q, want ssl://localhost:8883", got)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("TLSConfig = %+v, want MinVersion TLS 1.2", opts.TLSConfig)
	}
	if opts.Username != "" {
		t.Errorf("Username = %q, want anonymous", opts.Username)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := pahomqtt.NewClientOptions()
	configureLWT(opts, NewTopics("site-a"), "compatd-test")

	if !opts.WillEnabled {
		t.Fatal("will should be enabled")
	}
	if opts.WillTopic != "site-a/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if opts.WillQos != 1 || !opts.WillRetained {
		t.Errorf("will qos/retained = %d/%v, want 1/true", opts.WillQos, opts.WillRetained)
	}

	var msg StatusMessage
	if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if msg.Status != StatusOffline || msg.Reason != "unexpected_disconnect" || msg.ClientID != "compatd-test" {
		t.Errorf("will payload = %+v", msg)
	}
}

func TestStatusPayloads(t *testing.T) {
	tests := []struct {
		name       string
		payload    []byte
		wantStatus string
		wantReason string
	}{
		{"online", buildOnlinePayload("c1"), StatusOnline, ""},
		{"offline", buildOfflinePayload("c1"), StatusOffline, "graceful_shutdown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg StatusMessage
			if err := json.Unmarshal(tt.payload, &msg); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if msg.Status != tt.wantStatus || msg.Reason != tt.wantReason || msg.ClientID != "c1" {
				t.Errorf("payload = %+v", msg)
			}
			if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
				t.Errorf("timestamp %q is not RFC3339", msg.Timestamp)
			}
		})
	}
}

func TestDecodeReloadRequest(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    ReloadRequest
		wantErr bool
	}{
		{name: "empty", payload: ""},
		{name: "blank", payload: " \n"},
		{name: "empty object", payload: "{}"},
		{
			name:    "source and fields",
			payload: `{"source":"https://example.com/devices.json","searchFields":["model","brand"]}`,
			want:    ReloadRequest{Source: "https://example.com/devices.json", SearchFields: []string{"model", "brand"}},
		},
		{name: "not json", payload: "reload", wantErr: true},
		{name: "wrong type", payload: `{"source":5}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeReloadRequest([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPayload) {
					t.Fatalf("error = %v, want ErrInvalidPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeReloadRequest() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("request mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReloadHandler(t *testing.T) {
	var got []ReloadRequest
	handler := ReloadHandler(func(req ReloadRequest) error {
		got = append(got, req)
		return nil
	})

	if err := handler("compat/command/reload", []byte(`{"source":"file:///tmp/devices.json"}`)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if err := handler("compat/command/reload", []byte("{")); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("handler error = %v, want ErrInvalidPayload", err)
	}

	if len(got) != 1 || got[0].Source != "file:///tmp/devices.json" {
		t.Errorf("reloads = %+v, want one for file:///tmp/devices.json", got)
	}
}

func TestReloadHandler_PropagatesError(t *testing.T) {
	boom := errors.New("load failed")
	handler := ReloadHandler(func(ReloadRequest) error { return boom })

	if err := handler("t", nil); !errors.Is(err, boom) {
		t.Errorf("handler error = %v, want %v", err, boom)
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"publish empty topic", func() error { return c.Publish("", nil, 1, false) }, ErrInvalidTopic},
		{"publish bad qos", func() error { return c.Publish("t", nil, 3, false) }, ErrInvalidQoS},
		{"publish too large", func() error { return c.Publish("t", make([]byte, maxPayloadSize+1), 1, false) }, ErrPublishFailed},
		{"publish disconnected", func() error { return c.Publish("t", []byte("x"), 1, false) }, ErrNotConnected},
		{"publish json unencodable", func() error { return c.PublishJSON("t", make(chan int), false) }, ErrPublishFailed},
		{"publish loaded", func() error { return c.PublishLoaded(LoadedEvent{OK: true}) }, ErrNotConnected},
		{"subscribe empty topic", func() error { return c.Subscribe("", 1, noop) }, ErrInvalidTopic},
		{"subscribe bad qos", func() error { return c.Subscribe("t", 3, noop) }, ErrInvalidQoS},
		{"subscribe nil handler", func() error { return c.Subscribe("t", 1, nil) }, ErrSubscribeFailed},
		{"subscribe disconnected", func() error { return c.Subscribe("t", 1, noop) }, ErrNotConnected},
		{"unsubscribe empty topic", func() error { return c.Unsubscribe("") }, ErrInvalidTopic},
		{"unsubscribe disconnected", func() error { return c.Unsubscribe("t") }, ErrNotConnected},
		{"health check", func() error { return c.HealthCheck(context.Background()) }, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	if c.SubscriptionCount() != 0 || c.HasSubscription("t") {
		t.Error("failed subscribe should not be tracked")
	}
	if c.IsConnected() {
		t.Error("IsConnected() should be false for an unconnected client")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	c := &Client{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestWrapHandler(t *testing.T) {
	logger := &recordingLogger{}
	c := &Client{}
	c.SetLogger(logger)

	var received string
	ok := c.wrapHandler(func(topic string, payload []byte) error {
		received = topic + "=" + string(payload)
		return nil
	})
	ok(nil, fakeMessage{topic: "compat/command/reload", payload: []byte("{}")})
	if received != "compat/command/reload={}" {
		t.Errorf("handler saw %q", received)
	}

	failing := c.wrapHandler(func(string, []byte) error { return errors.New("bad") })
	failing(nil, fakeMessage{topic: "t"})

	panicking := c.wrapHandler(func(string, []byte) error { panic("boom") })
	panicking(nil, fakeMessage{topic: "t"})

	if len(logger.warns) != 1 || !strings.Contains(logger.warns[0], "error") {
		t.Errorf("warns = %v, want one handler error", logger.warns)
	}
	if len(logger.errors) != 1 || !strings.Contains(logger.errors[0], "panic") {
		t.Errorf("errors = %v, want one recovered panic", logger.errors)
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	c := &Client{}
	h := c.wrapHandler(func(string, []byte) error { panic("boom") })

	// Must not propagate the panic.
	h(nil, fakeMessage{topic: "t"})
}

func TestCallbacks(t *testing.T) {
	c := &Client{}
	var disconnectErr error
	c.SetOnDisconnect(func(err error) { disconnectErr = err })

	lost := errors.New("network down")
	c.connected = true
	c.handleDisconnect(lost)

	if c.connected {
		t.Error("handleDisconnect should clear the connected flag")
	}
	if !errors.Is(disconnectErr, lost) {
		t.Errorf("disconnect callback error = %v, want %v", disconnectErr, lost)
	}
}
