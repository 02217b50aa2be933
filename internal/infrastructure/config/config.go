package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the bridge.
// Values come from YAML and can be overridden by environment variables.
type Config struct {
	Hue       HueConfig       `yaml:"hue"`
	Loxone    LoxoneConfig    `yaml:"loxone"`
	Sync      SyncConfig      `yaml:"sync"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HueConfig contains the connection details for the Hue bridge (CLIP v2).
type HueConfig struct {
	BridgeIP string `yaml:"bridge_ip"`
	AppKey   string `yaml:"app_key"`

	// InsecureSkipVerify disables TLS verification. The bridge ships a
	// self-signed certificate, so this defaults to true.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// RequestTimeout bounds REST calls in seconds. The event stream is exempt.
	RequestTimeout int `yaml:"request_timeout"`
}

// Configured reports whether enough is known to talk to the bridge.
func (h HueConfig) Configured() bool {
	return h.BridgeIP != "" && h.AppKey != ""
}

// Timeout returns the REST request timeout.
func (h HueConfig) Timeout() time.Duration {
	return time.Duration(h.RequestTimeout) * time.Second
}

// LoxoneConfig contains the UDP telemetry target.
type LoxoneConfig struct {
	IP        string `yaml:"ip"`
	UDPPort   int    `yaml:"udp_port"`
	Namespace string `yaml:"namespace"`
}

// SyncConfig contains command pacing settings, all in milliseconds.
type SyncConfig struct {
	TransitionMs      int `yaml:"transition_ms"`
	ThrottleMs        int `yaml:"throttle_ms"`
	SequenceSpacingMs int `yaml:"sequence_spacing_ms"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Prefix    string              `yaml:"prefix"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for status history.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains live status feed settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string         `yaml:"level"`
	Format string         `yaml:"format"`
	Output string         `yaml:"output"`
	Debug  bool           `yaml:"debug"`
	Store  LogStoreConfig `yaml:"store"`
}

// LogStoreConfig controls the queryable log history behind /api/logs.
type LogStoreConfig struct {
	// DisableDisk keeps history in memory only.
	DisableDisk bool `yaml:"disable_disk"`

	// RAMSize is the ring size used when history is memory-only.
	RAMSize int `yaml:"ram_size"`

	// RetentionDays prunes older rows on startup. 0 keeps everything.
	RetentionDays int `yaml:"retention_days"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values
//  2. YAML file values (a missing file is not an error)
//  3. Environment variables
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be parsed or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Container deployments often run from env alone.
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with the bridge defaults.
func defaultConfig() *Config {
	return &Config{
		Hue: HueConfig{
			InsecureSkipVerify: true,
			RequestTimeout:     10,
		},
		Loxone: LoxoneConfig{
			UDPPort:   7000,
			Namespace: "hue",
		},
		Sync: SyncConfig{
			TransitionMs:      400,
			ThrottleMs:        100,
			SequenceSpacingMs: 100,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "loxhue",
			},
			QoS:    0,
			Prefix: "loxhue",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/loxhue.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			Org:           "loxhue",
			Bucket:        "loxhue",
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8555,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			Store: LogStoreConfig{
				RAMSize:       500,
				RetentionDays: 14,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// The Hue and Loxone variables keep the names used by existing deployments.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HUE_BRIDGE_IP"); v != "" {
		cfg.Hue.BridgeIP = v
	}
	if v := os.Getenv("HUE_APP_KEY"); v != "" {
		cfg.Hue.AppKey = v
	}
	if v := os.Getenv("LOXONE_IP"); v != "" {
		cfg.Loxone.IP = v
	}
	if v := os.Getenv("LOXONE_UDP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Loxone.UDPPort = port
		}
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if os.Getenv("DEBUG") == "true" {
		cfg.Logging.Debug = true
	}

	if v := os.Getenv("LOXHUE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LOXHUE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LOXHUE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LOXHUE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("LOXHUE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Loxone.UDPPort < 1 || c.Loxone.UDPPort > 65535 {
		errs = append(errs, "loxone.udp_port must be between 1 and 65535")
	}
	if c.Loxone.Namespace == "" {
		errs = append(errs, "loxone.namespace is required")
	}

	if c.Sync.TransitionMs < 0 {
		errs = append(errs, "sync.transition_ms must not be negative")
	}
	if c.Sync.ThrottleMs < 0 {
		errs = append(errs, "sync.throttle_ms must not be negative")
	}
	if c.Sync.SequenceSpacingMs < 0 {
		errs = append(errs, "sync.sequence_spacing_ms must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}
	if c.MQTT.Prefix == "" {
		errs = append(errs, "mqtt.prefix is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Logging.Store.RAMSize < 1 {
		errs = append(errs, "logging.store.ram_size must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// Transition returns the default light transition.
func (s SyncConfig) Transition() time.Duration {
	return time.Duration(s.TransitionMs) * time.Millisecond
}

// Throttle returns the spacing between individual light requests.
func (s SyncConfig) Throttle() time.Duration {
	return time.Duration(s.ThrottleMs) * time.Millisecond
}

// SequenceSpacing returns the spacing between targets of a bulk sequence.
func (s SyncConfig) SequenceSpacing() time.Duration {
	return time.Duration(s.SequenceSpacingMs) * time.Millisecond
}
