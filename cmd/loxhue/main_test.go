package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/loxhue-core/internal/bridge"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/config"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/logging"
	"github.com/nerrad567/loxhue-core/internal/mapping"
	"github.com/nerrad567/loxhue-core/internal/status"
)

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

// TestRun_InvalidConfig verifies run fails when the config cannot be parsed.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("LOXHUE_CONFIG", writeConfig(t, "api: [not a map"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with unparsable config")
	}
}

// TestRun_ValidationFailure verifies run fails when validation rejects the config.
func TestRun_ValidationFailure(t *testing.T) {
	t.Setenv("LOXHUE_CONFIG", writeConfig(t, `
database:
  path: ""
`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("LOXHUE_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("LOXHUE_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestHealthSample(t *testing.T) {
	msg := bridge.HealthMessage{Stats: bridge.Stats{
		Stream:      bridge.StateStreaming.String(),
		Restarts:    3,
		InFlight:    2,
		CacheSize:   7,
		QueueDepths: map[string]int{"light": 1},
	}}

	s := healthSample(msg)
	if !s.Streaming || s.Restarts != 3 || s.InFlight != 2 || s.CacheSize != 7 || s.QueueDepths["light"] != 1 {
		t.Errorf("healthSample() = %+v", s)
	}

	msg.Stats.Stream = bridge.StateConnecting.String()
	if healthSample(msg).Streaming {
		t.Error("connecting stream reported as streaming")
	}
}

// categoryHandler collects the category attributes of every record,
// including those bound with With.
type categoryHandler struct {
	mu      *sync.Mutex
	records *[][]string
	bound   []string
}

func (h categoryHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h categoryHandler) Handle(_ context.Context, r slog.Record) error {
	cats := append([]string(nil), h.bound...)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == logging.CategoryKey {
			cats = append(cats, a.Value.String())
		}
		return true
	})
	h.mu.Lock()
	*h.records = append(*h.records, cats)
	h.mu.Unlock()
	return nil
}

func (h categoryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h
	clone.bound = append([]string(nil), h.bound...)
	for _, a := range attrs {
		if a.Key == logging.CategoryKey {
			clone.bound = append(clone.bound, a.Value.String())
		}
	}
	return clone
}

func (h categoryHandler) WithGroup(string) slog.Handler { return h }

// TestOpenUDPSink_SingleCategory verifies UDP log lines carry exactly the
// category of the entry they describe.
func TestOpenUDPSink_SingleCategory(t *testing.T) {
	listener, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	var mu sync.Mutex
	var records [][]string
	log := &logging.Logger{Logger: slog.New(categoryHandler{mu: &mu, records: &records})}

	sink, err := openUDPSink(config.LoxoneConfig{
		IP:        "127.0.0.1",
		UDPPort:   listener.LocalAddr().(*net.UDPAddr).Port,
		Namespace: "hue",
	}, log)
	if err != nil {
		t.Fatalf("openUDPSink() error = %v", err)
	}
	defer sink.Close()

	sink.Emit(status.Emission{
		Entry: mapping.Entry{Name: "kitchen", Type: mapping.KindLight, SyncTelemetry: true},
		Key:   status.KeyBrightness,
		Value: 40,
	})

	mu.Lock()
	defer mu.Unlock()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if got := records[0]; len(got) != 1 || got[0] != logging.CategoryLight {
		t.Errorf("categories = %v, want [%s]", got, logging.CategoryLight)
	}
}

// TestRun_StartupAndShutdown starts the bridge without a Hue bridge, MQTT or
// InfluxDB, checks the API answers and shuts down on cancellation.
func TestRun_StartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	port := freePort(t)

	t.Setenv("HUE_BRIDGE_IP", "")
	t.Setenv("HUE_APP_KEY", "")
	t.Setenv("LOXONE_IP", "")
	t.Setenv("HTTP_PORT", "")
	t.Setenv("LOXHUE_CONFIG", writeConfig(t, `
database:
  path: "`+filepath.Join(tmpDir, "loxhue.db")+`"
  wal_mode: true
  busy_timeout: 5
api:
  host: "127.0.0.1"
  port: `+strconv.Itoa(port)+`
logging:
  level: error
  format: text
  output: stdout
`))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/kitchen/1"
	deadline := time.Now().Add(5 * time.Second)
	var status int
	for time.Now().Before(deadline) {
		resp, err := http.Get(url) //nolint:noctx // test
		if err == nil {
			status = resp.StatusCode
			resp.Body.Close()
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if status != http.StatusServiceUnavailable {
		t.Errorf("command status = %d, want %d", status, http.StatusServiceUnavailable)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() = %v, want nil", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}
