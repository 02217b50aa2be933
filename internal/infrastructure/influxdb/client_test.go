package influxdb_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/loxhue-core/internal/infrastructure/config"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/influxdb"
)

// fakeInflux answers pings and captures line protocol writes.
func fakeInflux(t *testing.T) (*httptest.Server, <-chan string) {
	t.Helper()
	writes := make(chan string, 16)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/ping"):
			w.WriteHeader(http.StatusNoContent)
		case strings.HasSuffix(r.URL.Path, "/api/v2/write"):
			body, _ := io.ReadAll(r.Body)
			writes <- string(body)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	return srv, writes
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "loxhue",
		Bucket:        "loxhue",
		BatchSize:     1,
		FlushInterval: 1,
	}
}

func nextWrite(t *testing.T, writes <-chan string) string {
	t.Helper()
	select {
	case body := <-writes:
		return body
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for write")
		return ""
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	srv, _ := fakeInflux(t)

	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := influxdb.Connect(testConfig(url)); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var client *influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
	if client.IsConnected() {
		t.Error("nil client reports connected")
	}
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWriteStatus(t *testing.T) {
	srv, writes := fakeInflux(t)

	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.WriteStatus("porch", "sensor", "temp", 18.5)
	client.Flush()

	body := nextWrite(t, writes)
	for _, want := range []string{influxdb.MeasurementStatus, "key=temp", "kind=sensor", "name=porch", "service=loxhue", "value=18.5"} {
		if !strings.Contains(body, want) {
			t.Errorf("line %q missing %q", body, want)
		}
	}
}

func TestWriteHealth(t *testing.T) {
	srv, writes := fakeInflux(t)

	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.WriteHealth(influxdb.HealthSample{
		Streaming:   true,
		Restarts:    3,
		CacheSize:   7,
		QueueDepths: map[string]int{"light": 2},
	})
	client.Flush()

	body := nextWrite(t, writes)
	for _, want := range []string{influxdb.MeasurementHealth, "streaming=1i", "restarts=3i", "queue_light=2i"} {
		if !strings.Contains(body, want) {
			t.Errorf("line %q missing %q", body, want)
		}
	}
}

func TestWriteAfterCloseIsNoop(t *testing.T) {
	srv, writes := fakeInflux(t)

	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()

	client.WriteStatus("porch", "sensor", "temp", 1)
	client.Flush()

	select {
	case body := <-writes:
		t.Errorf("unexpected write after Close: %q", body)
	case <-time.After(200 * time.Millisecond):
	}
}
