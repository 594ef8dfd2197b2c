// Package logging provides structured logging for the IED simulator.
//
// It wraps log/slog so every component logs with the same default fields
// (service, version) and the same level filtering.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, file
//	  file: ""           # path when output is file
//
// # Usage
//
//	logger, err := logging.New(cfg.Logging, version)
//	logger.Info("modbus listening", "addr", addr)
//	logger.Error("variable save failed", "error", err)
package logging
