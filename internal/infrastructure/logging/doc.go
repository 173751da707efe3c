// Package logging provides structured logging for fedimint-http.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same handler, level and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting gateway", "port", 3001)
//	logger.Error("join failed", "error", err)
//
// # Security
//
// Never log the bearer password, WebSocket tickets or e-cash note strings.
// Note strings are bearer instruments; log their federation prefix instead.
package logging
