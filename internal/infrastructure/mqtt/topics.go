package mqtt

import (
	"fmt"
	"strings"
)

// DefaultPrefix is the topic root when none is configured.
const DefaultPrefix = "loxhue"

// Topic kinds below the prefix.
const (
	KindLight  = "light"
	KindGroup  = "group"
	KindSensor = "sensor"
	KindButton = "button"
	KindDevice = "device"
	KindSystem = "system"
)

// commandSuffix ends every command topic.
const commandSuffix = "set"

// Topics builds topic names under a prefix.
//
//	topics := mqtt.NewTopics("loxhue")
//	topics.Status("sensor", "porch", "motion")
//	// Returns: "loxhue/sensor/porch/motion"
type Topics struct {
	Prefix string
}

// NewTopics returns builders for prefix, or DefaultPrefix when empty.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{Prefix: prefix}
}

// Status returns the retained state topic for one attribute.
//
// Example: loxhue/light/kitchen/bri
func (t Topics) Status(kind, name, key string) string {
	return fmt.Sprintf("%s/%s/%s/%s", t.Prefix, kind, name, key)
}

// Command returns the topic a controller publishes to for a light or group.
//
// Example: loxhue/light/kitchen/set
func (t Topics) Command(kind, name string) string {
	return fmt.Sprintf("%s/%s/%s/%s", t.Prefix, kind, name, commandSuffix)
}

// AllCommands matches every command topic.
//
// Pattern: loxhue/+/+/set
func (t Topics) AllCommands() string {
	return fmt.Sprintf("%s/+/+/%s", t.Prefix, commandSuffix)
}

// Health returns the bridge health topic, also used for the LWT.
//
// Example: loxhue/system/health
func (t Topics) Health() string {
	return fmt.Sprintf("%s/%s/health", t.Prefix, KindSystem)
}

// ParseCommand splits a command topic into kind and name. ok is false for
// any topic that is not <prefix>/<kind>/<name>/set.
func (t Topics) ParseCommand(topic string) (kind, name string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix+"/")
	if !found {
		return "", "", false
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != commandSuffix || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
