// LoxHue - Hue to Loxone bridge
//
// This is the main entry point. The bridge keeps a Philips Hue bridge
// (CLIP v2) and a Loxone Miniserver in step:
//   - controller commands arrive as GET /{name}/{value} (or over MQTT)
//     and are translated into rate-limited Hue light updates
//   - the Hue event stream is translated back into UDP datagrams,
//     retained MQTT topics, InfluxDB points and WebSocket events
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	_ "github.com/nerrad567/loxhue-core/migrations"

	"github.com/nerrad567/loxhue-core/internal/api"
	"github.com/nerrad567/loxhue-core/internal/bridge"
	"github.com/nerrad567/loxhue-core/internal/hue"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/config"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/database"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/logging"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/loxhue-core/internal/logstore"
	"github.com/nerrad567/loxhue-core/internal/mapping"
	"github.com/nerrad567/loxhue-core/internal/status"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting loxhue",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Open database. Without it the bridge still runs: logs stay in
	// memory and the mapping is not persisted.
	var sqlDB *sql.DB
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		log.Warn("database unavailable, continuing without persistence", "path", cfg.Database.Path, "error", err)
	} else {
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		sqlDB = db.DB
		log.Info("database ready", "path", cfg.Database.Path)
	}

	// Log history, then the configured logger that records into it.
	logs := logstore.New(sqlDB, cfg.Logging.Store)
	defer func() {
		if closeErr := logs.Close(); closeErr != nil {
			log.Error("error closing log store", "error", closeErr)
		}
	}()
	plain := logging.New(cfg.Logging, version)
	logs.SetOnError(func(err error) {
		plain.Error("log store write failed", "error", err)
	})

	log = logging.NewWithRecorder(cfg.Logging, version, logs)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"log_disk", logs.OnDisk(),
	)

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(cfg, log)
		if err != nil {
			log.Warn("MQTT unavailable, continuing without it", "error", err)
		} else {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
		}
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			log.Warn("InfluxDB unavailable, continuing without history", "error", err)
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	// Hue bridge client. Missing credentials leave the engine unconfigured.
	var hueAPI bridge.HueAPI
	hueClient, err := hue.NewClient(hue.Options{
		BridgeIP:           cfg.Hue.BridgeIP,
		AppKey:             cfg.Hue.AppKey,
		InsecureSkipVerify: cfg.Hue.InsecureSkipVerify,
		Timeout:            cfg.Hue.Timeout(),
	})
	switch {
	case errors.Is(err, hue.ErrNotConfigured):
		log.Warn("hue bridge not configured, set HUE_BRIDGE_IP and HUE_APP_KEY")
	case err != nil:
		return fmt.Errorf("creating hue client: %w", err)
	default:
		hueAPI = hueClient
		log.Info("hue bridge configured", "bridge_ip", cfg.Hue.BridgeIP)
	}

	// Status sinks
	hub := api.NewHub(cfg.WebSocket, log)
	sinks := []status.Sink{hub}

	if cfg.Loxone.IP != "" {
		udp, udpErr := openUDPSink(cfg.Loxone, log)
		if udpErr != nil {
			return fmt.Errorf("opening loxone udp sink: %w", udpErr)
		}
		defer udp.Close() //nolint:errcheck // best effort on shutdown
		sinks = append(sinks, udp)
		log.Info("loxone telemetry enabled", "ip", cfg.Loxone.IP, "port", cfg.Loxone.UDPPort)
	} else {
		log.Warn("loxone ip not set, udp telemetry disabled")
	}
	if mqttClient != nil {
		sinks = append(sinks, status.NewMQTTSink(mqttClient, cfg.MQTT.Prefix, byte(cfg.MQTT.QoS), log))
	}
	if influxClient != nil {
		sinks = append(sinks, status.NewHistorySink(influxClient))
	}

	// Engine
	opts := bridge.Options{
		Hue:    hueAPI,
		Sync:   cfg.Sync,
		Sinks:  sinks,
		Logger: log,
	}
	if sqlDB != nil {
		opts.Store = mapping.NewSQLiteRepository(sqlDB)
	}
	engine := bridge.New(opts)
	if startErr := engine.Start(ctx); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping bridge")
		engine.Stop()
	}()

	if mqttClient != nil {
		if subErr := engine.SubscribeCommands(mqttClient, mqttClient.Topics(), byte(cfg.MQTT.QoS)); subErr != nil {
			log.Warn("MQTT command subscription failed", "error", subErr)
		}
	}

	// Health reporting
	healthCfg := bridge.HealthConfig{
		Topic:   mqtt.NewTopics(cfg.MQTT.Prefix).Health(),
		Version: version,
		Logger:  log,
		Record: func(msg bridge.HealthMessage) {
			hub.Broadcast(api.ChannelHealth, msg)
			if influxClient != nil {
				influxClient.WriteHealth(healthSample(msg))
			}
		},
	}
	if mqttClient != nil {
		healthCfg.Publisher = mqttClient
	}
	health := bridge.NewHealthReporter(engine, healthCfg)
	health.Start(ctx)
	defer health.Stop()

	// HTTP API
	deps := api.Deps{
		Config:  cfg,
		Logger:  log,
		Bridge:  engine,
		Logs:    logs,
		Health:  health,
		Hub:     hub,
		Version: version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		log.Warn("startup health check failed", "error", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, health, bridge, sinks,
	// InfluxDB, MQTT, log store, database.
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LOXHUE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LOXHUE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectMQTT connects to the broker and wires connection logging.
func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, err
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"prefix", cfg.MQTT.Prefix,
	)
	return client, nil
}

// openUDPSink dials the controller's virtual UDP input. The sink tags
// each line with the entry's own category, so log is passed untagged.
func openUDPSink(cfg config.LoxoneConfig, log *logging.Logger) (*status.UDPSink, error) {
	addr := net.JoinHostPort(cfg.IP, strconv.Itoa(cfg.UDPPort))
	return status.NewUDPSink(addr, cfg.Namespace, log)
}

// healthSample flattens a health report into an InfluxDB sample.
func healthSample(msg bridge.HealthMessage) influxdb.HealthSample {
	return influxdb.HealthSample{
		Streaming:   msg.Stats.Stream == bridge.StateStreaming.String(),
		Restarts:    msg.Stats.Restarts,
		InFlight:    msg.Stats.InFlight,
		CacheSize:   msg.Stats.CacheSize,
		QueueDepths: msg.Stats.QueueDepths,
	}
}

// healthCheck verifies the optional infrastructure that was opened.
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
