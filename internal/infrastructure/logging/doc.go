// Package logging provides structured logging for the bridge.
//
// This package wraps Go's standard log/slog package. Every record can be
// tagged with a category (SYSTEM, LIGHT, SENSOR, BUTTON) and optionally
// copied into the log history through a Recorder.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//	  debug: false       # forces debug level (env DEBUG=true)
//
// # Usage
//
//	logger := logging.NewWithRecorder(cfg.Logging, version, store)
//	logger.Category(logging.CategoryLight).Info("command sent", "target", name)
//
// Never log the Hue app key or MQTT credentials.
package logging
