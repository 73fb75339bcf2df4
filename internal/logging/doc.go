// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stderr when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// Console output goes to stderr because the supervised child inherits stdout.
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"runner": "debug",  // Per-module overrides
//			"guard":  "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("runner")
//	logger.Info("Child started", "pid", pid)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("guard").With("pid", pid)
//	logger.Info("Disposed")  // Includes pid in all logs
//
// # Output Destinations
//
//	Journal available + console available → MultiHandler (both)
//	Journal available only                → JournalHandler
//	Console available only                → TextHandler or JSONHandler
//
// Journal availability is checked via [github.com/coreos/go-systemd/v22/journal.Enabled].
//
// # Viewing Logs
//
//	journalctl -t procguard              # All procguard logs
//	journalctl -t procguard -f           # Follow live
//	journalctl -t procguard -p warning   # Teardown problems and worse
//
// Filter by structured fields:
//
//	journalctl -t procguard MODULE=runner
//	journalctl -t procguard PID=4242
//
// Attribute keys become uppercase field names; any character outside A-Z,
// 0-9 and underscore is replaced by an underscore.
//
// # Configuration
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	runner = "debug"
package logging
