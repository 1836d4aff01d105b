// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Always keeps the most recent entries in an in-memory ring buffer so a
//     failed recording can print its log tail
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"pipeline": "debug", // Per-module overrides
//			"capture":  "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("pipeline")
//	logger.Info("Recording started", "fps", 30)
//	logger.Debug("Frame converted", "pts_ms", pts)
//	logger.Error("Capture failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("capture").With("display", idx)
//	logger.Info("Source opened") // Includes display in all logs
//
// # Viewing Logs
//
// On a system with journald:
//
//	journalctl -t screenrec              # All screenrec logs
//	journalctl -t screenrec -f           # Follow live
//	journalctl -t screenrec -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t screenrec MODULE=pipeline
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	pipeline = "debug"
//	capture = "warn"
package logging
