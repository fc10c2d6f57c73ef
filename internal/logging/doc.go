// Package logging provides structured logging with per-module log levels.
//
// Records go to stdout (text or JSON) and, when journald is reachable, to
// the systemd journal through [github.com/coreos/go-systemd/v22/journal].
//
// Initialize once at startup, usually from the [logging] table of vcap.toml,
// where every key other than level and format names a module:
//
//	[logging]
//	level = "info"
//	capture = "debug"
//
// or directly:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"capture": "debug",
//			"api":     "warn",
//		},
//	})
//
// Then fetch a logger per module:
//
//	logger := logging.GetLogger("capture").With("device", "/dev/video0")
//	logger.Info("Streaming started", "format", f)
//
// Module levels can change while running with SetModuleLevel; the config
// watcher uses this when vcap.toml is edited.
//
// Journal entries carry SYSLOG_IDENTIFIER=vcap and one upper-case field per
// attribute:
//
//	journalctl -t vcap MODULE=capture
package logging
