// Package logging provides structured logging for the compatibility service.
//
// It wraps log/slog so every component logs the same way: JSON for
// production, text for development, with service and version fields on
// every entry and level-based filtering.
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
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("catalogue loaded", "rows", 1234)
//	logger.Error("load failed", "error", err)
//
// *Logger satisfies the small Logger interfaces declared by the engine,
// worker, catalogdb and infrastructure packages.
package logging
