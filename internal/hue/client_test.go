package hue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nerrad567/loxhue-core/internal/color"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{BaseURL: srv.URL, AppKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient_RequiresAddressAndKey(t *testing.T) {
	if _, err := NewClient(Options{AppKey: "k"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("missing address: error = %v, want ErrNotConfigured", err)
	}
	if _, err := NewClient(Options{BridgeIP: "10.0.0.2"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("missing key: error = %v, want ErrNotConfigured", err)
	}
	if _, err := NewClient(Options{BridgeIP: "10.0.0.2", AppKey: "k"}); err != nil {
		t.Errorf("valid options: error = %v", err)
	}
}

func TestUpdateLight_SendsBodyAndKey(t *testing.T) {
	var gotPath, gotKey, gotMethod string
	var gotBody map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotKey, gotMethod = r.URL.Path, r.Header.Get("hue-application-key"), r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})

	mirek := 300
	update := LightUpdate{
		On:               &On{On: true},
		Dimming:          &Dimming{Brightness: 40},
		ColorTemperature: &ColorTemperature{Mirek: &mirek},
		Dynamics:         &Dynamics{Duration: 400},
	}
	if err := c.UpdateLight(context.Background(), TypeGroupedLight, "abc", update); err != nil {
		t.Fatalf("UpdateLight() error = %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Errorf("method = %s, want PUT", gotMethod)
	}
	if gotPath != "/clip/v2/resource/grouped_light/abc" {
		t.Errorf("path = %s", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("app key header = %q", gotKey)
	}
	if _, ok := gotBody["color"]; ok {
		t.Error("body should omit absent color")
	}
	ct, _ := gotBody["color_temperature"].(map[string]any)
	if ct["mirek"] != float64(300) {
		t.Errorf("color_temperature = %v", gotBody["color_temperature"])
	}
}

func TestUpdateLight_RateLimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := c.UpdateLight(context.Background(), TypeLight, "abc", PowerOn())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests {
		t.Errorf("errors.As(*StatusError) failed: %v", err)
	}
}

func TestUpdateLight_OtherStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"errors":[{"description":"not found"}]}`, http.StatusNotFound)
	})

	err := c.UpdateLight(context.Background(), TypeLight, "abc", PowerOff())
	if !errors.Is(err, ErrUnexpectedStatus) || errors.Is(err, ErrRateLimited) {
		t.Fatalf("error = %v, want ErrUnexpectedStatus", err)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error should carry the body, got %v", err)
	}
}

func TestList_DecodesResources(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/clip/v2/resource/light" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"errors":[],"data":[{
			"id":"l1","type":"light",
			"owner":{"rid":"d1","rtype":"device"},
			"on":{"on":true},
			"dimming":{"brightness":56.3},
			"color":{"xy":{"x":0.3,"y":0.4}},
			"color_temperature":{"mirek":null,"mirek_schema":{"mirek_minimum":153,"mirek_maximum":454}}
		}]}`)
	})

	lights, err := c.List(context.Background(), TypeLight)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(lights) != 1 {
		t.Fatalf("len = %d, want 1", len(lights))
	}

	l := lights[0]
	if l.Owner == nil || l.Owner.RID != "d1" {
		t.Errorf("Owner = %+v", l.Owner)
	}
	if l.Dimming.Brightness != 56.3 {
		t.Errorf("Brightness = %v", l.Dimming.Brightness)
	}
	if *l.Color.XY != (color.XY{X: 0.3, Y: 0.4}) {
		t.Errorf("XY = %+v", l.Color.XY)
	}
	if l.ColorTemperature.Mirek != nil {
		t.Errorf("Mirek = %v, want nil", *l.ColorTemperature.Mirek)
	}
	if l.ColorTemperature.MirekSchema.MirekMaximum != 454 {
		t.Errorf("MirekSchema = %+v", l.ColorTemperature.MirekSchema)
	}
}

func TestOpenEventStream(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/eventstream/clip/v2" || r.Header.Get("Accept") != "text/event-stream" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, ": hi\n\n")
	})

	body, err := c.OpenEventStream(context.Background())
	if err != nil {
		t.Fatalf("OpenEventStream() error = %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if string(data) != ": hi\n\n" {
		t.Errorf("body = %q", data)
	}
}

// ===== Stream parsing =====

func TestParseLine(t *testing.T) {
	events, ok, err := ParseLine(`data: [{"type":"update","data":[{"id":"m1","motion":{"motion":true}}]}]`)
	if err != nil || !ok {
		t.Fatalf("ParseLine() ok=%v err=%v", ok, err)
	}
	if len(events) != 1 || events[0].Type != EventUpdate {
		t.Fatalf("events = %+v", events)
	}
	if m := events[0].Data[0].Motion; m == nil || m.Motion == nil || !*m.Motion {
		t.Errorf("motion delta not decoded: %+v", events[0].Data[0])
	}

	if _, ok, err := ParseLine(": hi"); ok || err != nil {
		t.Errorf("comment line: ok=%v err=%v, want ignored", ok, err)
	}

	if _, ok, err := ParseLine("data: [{broken"); !ok || !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("malformed line: ok=%v err=%v", ok, err)
	}
}

func TestRelativeRotaryDirection(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"rotary_report", `{"rotary_report":{"rotation":{"direction":"clock_wise"}}}`, "clock_wise"},
		{"last_event", `{"last_event":{"rotation":{"direction":"counter_clock_wise"}}}`, "counter_clock_wise"},
		{"top level", `{"rotation":{"direction":"clock_wise"}}`, "clock_wise"},
		{"empty", `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r RelativeRotary
			if err := json.Unmarshal([]byte(tt.raw), &r); err != nil {
				t.Fatal(err)
			}
			if got := r.Direction(); got != tt.want {
				t.Errorf("Direction() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLightUpdate_IsPowerOnOnly(t *testing.T) {
	if !PowerOn().IsPowerOnOnly() {
		t.Error("PowerOn() should be a pure on toggle")
	}
	if PowerOff().IsPowerOnOnly() {
		t.Error("PowerOff() is not an on toggle")
	}
	withBri := PowerOn()
	withBri.Dimming = &Dimming{Brightness: 10}
	if withBri.IsPowerOnOnly() {
		t.Error("on + dimming is not a pure toggle")
	}
}
