// Package config handles loading and validating simulator configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with IEDSIM_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Sensitive values (MQTT, Redis and InfluxDB credentials) should be set via
// environment variables rather than the file.
//
// Usage:
//
//	cfg, err := config.LoadOrDefault("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.ModbusAddr())
package config
