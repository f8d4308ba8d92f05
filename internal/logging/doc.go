// Package logging provides structured logging with per-module log levels.
//
// Loggers are plain *slog.Logger values tagged with a "module" attribute.
// Output goes to stdout when it is attached to a terminal, pipe or file, and
// to the systemd journal when journald is reachable; both are used at once
// through a MultiHandler when available.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"supervisor": "debug",
//			"ffmpeg":     "warn",
//		},
//	})
//
// and fetch module loggers where needed:
//
//	logger := logging.GetLogger("supervisor").With("run_id", id)
//	logger.Info("Primary started", "pid", pid)
//
// Journal entries carry SYSLOG_IDENTIFIER=chesscast and every attribute as an
// upper-case field:
//
//	journalctl -t chesscast MODULE=ffmpeg
//	journalctl -t chesscast RUN_ID=<uuid> -p warning
package logging
