package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementStatus = "loxhue_status"
	MeasurementHealth = "loxhue_health"
)

// WriteStatus records one attribute value of a mapped device.
//
// Parameters:
//   - name: Controller name of the entry (e.g., "porch")
//   - kind: Entry type: light, group, sensor or button
//   - key: Attribute wire name (e.g., "temp", "bri")
//   - value: The numeric value
func (c *Client) WriteStatus(name, kind, key string, value float64) {
	c.writePoint(MeasurementStatus,
		map[string]string{"name": name, "kind": kind, "key": key},
		map[string]any{"value": value},
		time.Now(),
	)
}

// HealthSample is one snapshot of the bridge's runtime counters.
type HealthSample struct {
	Streaming   bool
	Restarts    int64
	InFlight    int
	CacheSize   int
	QueueDepths map[string]int
}

// WriteHealth records a bridge health sample.
func (c *Client) WriteHealth(s HealthSample) {
	streaming := 0
	if s.Streaming {
		streaming = 1
	}

	fields := map[string]any{
		"streaming":  streaming,
		"restarts":   s.Restarts,
		"in_flight":  s.InFlight,
		"cache_size": s.CacheSize,
	}
	for category, depth := range s.QueueDepths {
		fields["queue_"+category] = depth
	}

	c.writePoint(MeasurementHealth, nil, fields, time.Now())
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
