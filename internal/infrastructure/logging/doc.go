// Package logging provides structured logging for AirGuard Core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the ingestion pipeline.
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("subscribed", "topic", "gas/datos")
//	logger.Error("dispatch failed", "message_id", id, "error", err)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
