package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/loxhue-core/internal/bridge"
	"github.com/nerrad567/loxhue-core/internal/logstore"
	"github.com/nerrad567/loxhue-core/internal/mapping"
)

// logTimeFormat is the short clock shown next to each log line.
const logTimeFormat = "15:04:05.000"

// LogLine is a log history entry with a preformatted local time.
type LogLine struct {
	logstore.Entry
	Time string `json:"time"`
}

// Settings is the read-only view of the running configuration.
// Secrets are reduced to whether they are set.
type Settings struct {
	BridgeIP       string `json:"bridge_ip"`
	KeyConfigured  bool   `json:"key_configured"`
	LoxoneIP       string `json:"loxone_ip"`
	LoxonePort     int    `json:"loxone_port"`
	HTTPPort       int    `json:"http_port"`
	Debug          bool   `json:"debug"`
	TransitionMs   int    `json:"transition_ms"`
	ThrottleMs     int    `json:"throttle_ms"`
	MQTTEnabled    bool   `json:"mqtt_enabled"`
	MQTTBroker     string `json:"mqtt_broker"`
	MQTTPort       int    `json:"mqtt_port"`
	MQTTUser       string `json:"mqtt_user"`
	MQTTPrefix     string `json:"mqtt_prefix"`
	MQTTConnected  bool   `json:"mqtt_connected"`
	DisableLogDisk bool   `json:"disable_log_disk"`
	Version        string `json:"version"`
}

// handleHealth reports engine health. Without a reporter only the
// configured flag and version are known.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.health != nil {
		writeJSON(w, http.StatusOK, s.health.Current())
		return
	}

	status := bridge.HealthHealthy
	if !s.bridge.Configured() {
		status = bridge.HealthDegraded
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"stats":   s.bridge.Stats(),
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, _ *http.Request) {
	cfg := s.cfg
	writeJSON(w, http.StatusOK, Settings{
		BridgeIP:       cfg.Hue.BridgeIP,
		KeyConfigured:  cfg.Hue.Configured(),
		LoxoneIP:       cfg.Loxone.IP,
		LoxonePort:     cfg.Loxone.UDPPort,
		HTTPPort:       cfg.API.Port,
		Debug:          cfg.Logging.Debug,
		TransitionMs:   cfg.Sync.TransitionMs,
		ThrottleMs:     cfg.Sync.ThrottleMs,
		MQTTEnabled:    cfg.MQTT.Enabled,
		MQTTBroker:     cfg.MQTT.Broker.Host,
		MQTTPort:       cfg.MQTT.Broker.Port,
		MQTTUser:       cfg.MQTT.Auth.Username,
		MQTTPrefix:     cfg.MQTT.Prefix,
		MQTTConnected:  s.mqtt != nil && s.mqtt.IsConnected(),
		DisableLogDisk: !s.logs.OnDisk(),
		Version:        s.version,
	})
}

// handleStatus returns the status cache: name -> key -> value.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Status())
}

// handleDetected returns unmapped items, newest first.
func (s *Server) handleDetected(w http.ResponseWriter, _ *http.Request) {
	items := s.bridge.Detected()
	if items == nil {
		items = []mapping.DetectedItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// handleTargets lists everything on the Hue bridge that can be mapped.
// Errors answer with an empty list so setup tooling can render it.
func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := s.bridge.Targets(r.Context())
	switch {
	case errors.Is(err, bridge.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, []bridge.Target{})
	case err != nil:
		s.logger.Error("listing targets failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, []bridge.Target{})
	case targets == nil:
		writeJSON(w, http.StatusOK, []bridge.Target{})
	default:
		writeJSON(w, http.StatusOK, targets)
	}
}

// handleLogs queries the log history.
//
// Query parameters:
//   - limit: maximum entries (default 100)
//   - category: SYSTEM, LIGHT, SENSOR, BUTTON or ALL
//   - search: case-insensitive substring of the message
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = logstore.DefaultLimit
	}

	entries, err := s.logs.Query(r.Context(), logstore.Filter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Limit:    limit,
	})
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}

	out := make([]LogLine, len(entries))
	for i, e := range entries {
		out[i] = LogLine{Entry: e, Time: time.UnixMilli(e.Timestamp).Format(logTimeFormat)}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetMapping(w http.ResponseWriter, _ *http.Request) {
	entries := s.bridge.Mapping()
	if entries == nil {
		entries = []mapping.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleSaveMapping replaces the whole mapping with the posted array.
func (s *Server) handleSaveMapping(w http.ResponseWriter, r *http.Request) {
	var entries []mapping.Entry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	saved, err := s.bridge.SaveMapping(r.Context(), entries)
	switch {
	case errors.Is(err, mapping.ErrInvalidEntry), errors.Is(err, mapping.ErrDuplicateName):
		writeValidationError(w, err.Error())
		return
	case err != nil:
		s.logger.Error("saving mapping failed", "error", err)
		writeInternalError(w, "failed to save mapping")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"mappings": saved,
	})
}
