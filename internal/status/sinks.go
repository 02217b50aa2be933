package status

import (
	"fmt"
	"net"

	"github.com/nerrad567/loxhue-core/internal/infrastructure/logging"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/loxhue-core/internal/mapping"
)

// Logger is the logging interface used by the sinks.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

// Category returns the log category for an entry kind.
func Category(kind mapping.Kind) string {
	switch kind {
	case mapping.KindLight, mapping.KindGroup:
		return logging.CategoryLight
	case mapping.KindSensor:
		return logging.CategorySensor
	case mapping.KindButton:
		return logging.CategoryButton
	default:
		return logging.CategorySystem
	}
}

// ForwardsTelemetry reports whether an entry's changes go to the
// controller over UDP: always for sensors and buttons, and for lights and
// groups only when telemetry sync is enabled.
func ForwardsTelemetry(e mapping.Entry) bool {
	switch e.Type {
	case mapping.KindSensor, mapping.KindButton:
		return true
	default:
		return e.SyncTelemetry
	}
}

// ===== UDP =====

// UDPSink sends "<namespace>.<name>.<key> <value>" datagrams to the
// controller's virtual UDP input.
type UDPSink struct {
	conn      net.Conn
	namespace string
	logger    Logger
}

// NewUDPSink opens a UDP socket towards addr ("host:port").
func NewUDPSink(addr, namespace string, logger Logger) (*UDPSink, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("status: dialing udp %s: %w", addr, err)
	}
	return &UDPSink{conn: conn, namespace: namespace, logger: logger}, nil
}

// Message formats the datagram for an emission.
func (s *UDPSink) Message(e Emission) string {
	return fmt.Sprintf("%s.%s.%s %s", s.namespace, e.Entry.Name, e.Key, FormatValue(e.Value))
}

// Emit sends the emission if the entry forwards telemetry.
func (s *UDPSink) Emit(e Emission) {
	if !ForwardsTelemetry(e.Entry) {
		return
	}

	msg := s.Message(e)
	if _, err := s.conn.Write([]byte(msg)); err != nil {
		if s.logger != nil {
			s.logger.Warn("udp send failed", logging.CategoryKey, Category(e.Entry.Type), "error", err)
		}
		return
	}
	if s.logger != nil {
		s.logger.Debug("udp out", logging.CategoryKey, Category(e.Entry.Type), "msg", msg)
	}
}

// Close closes the socket.
func (s *UDPSink) Close() error {
	return s.conn.Close()
}

// ===== MQTT =====

// Publisher is the part of the MQTT client the sink needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// MQTTSink mirrors every emission to a retained topic
// <prefix>/<kind>/<name>/<key>.
type MQTTSink struct {
	pub    Publisher
	topics mqtt.Topics
	qos    byte
	logger Logger
}

// NewMQTTSink creates a sink publishing under prefix.
func NewMQTTSink(pub Publisher, prefix string, qos byte, logger Logger) *MQTTSink {
	return &MQTTSink{pub: pub, topics: mqtt.NewTopics(prefix), qos: qos, logger: logger}
}

// TopicKind maps an entry kind onto its topic segment.
func TopicKind(kind mapping.Kind) string {
	switch kind {
	case mapping.KindLight:
		return mqtt.KindLight
	case mapping.KindGroup:
		return mqtt.KindGroup
	case mapping.KindSensor:
		return mqtt.KindSensor
	case mapping.KindButton:
		return mqtt.KindButton
	default:
		return mqtt.KindDevice
	}
}

// Emit publishes the value while the client is connected. Values are
// dropped, not queued, while it is not.
func (s *MQTTSink) Emit(e Emission) {
	if !s.pub.IsConnected() {
		return
	}

	topic := s.topics.Status(TopicKind(e.Entry.Type), e.Entry.Name, e.Key)
	if err := s.pub.Publish(topic, []byte(FormatValue(e.Value)), s.qos, true); err != nil && s.logger != nil {
		s.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
	}
}

// ===== InfluxDB =====

// HistoryWriter stores numeric values over time.
// *influxdb.Client satisfies it.
type HistoryWriter interface {
	WriteStatus(name, kind, key string, value float64)
}

// HistorySink records numeric emissions. Strings (hex, button, rotary)
// are skipped.
type HistorySink struct {
	w HistoryWriter
}

// NewHistorySink wraps w.
func NewHistorySink(w HistoryWriter) *HistorySink {
	return &HistorySink{w: w}
}

// Emit writes numeric values.
func (s *HistorySink) Emit(e Emission) {
	v, ok := Numeric(e.Value)
	if !ok {
		return
	}
	s.w.WriteStatus(e.Entry.Name, string(e.Entry.Type), e.Key, v)
}
