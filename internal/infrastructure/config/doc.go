// Package config handles loading and validating the bridge configuration.
//
// This package manages:
//   - Loading configuration from a YAML file (optional)
//   - Overriding with environment variables
//   - Validation of ranges and required fields
//
// Security Considerations:
//   - The Hue app key and MQTT password should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !cfg.Hue.Configured() {
//	    // commands answer 503 until a bridge is configured
//	}
package config
