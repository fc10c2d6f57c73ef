package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`

	// Output overrides stdout. Tests set it; the journal is still used when present.
	Output io.Writer `toml:"-"`
}

type registry struct {
	mu          sync.RWMutex
	config      Config
	initialized bool
	loggers     map[string]*slog.Logger
	levels      map[string]*slog.LevelVar
	global      slog.LevelVar
}

var std = &registry{
	loggers: make(map[string]*slog.Logger),
	levels:  make(map[string]*slog.LevelVar),
}

// Initialize configures the global level, per-module overrides and output
// format. Loggers handed out before Initialize are rebuilt so they pick up
// the new handlers.
func Initialize(config Config) {
	std.mu.Lock()
	defer std.mu.Unlock()

	std.config = config
	std.initialized = true
	std.global.Set(levelOr(config.Level, slog.LevelInfo))

	for module, levelVar := range std.levels {
		levelVar.Set(std.moduleLevel(module))
		std.loggers[module] = slog.New(std.handler(levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(std.handler(&std.global)))
}

// GetLogger returns the logger for a module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	std.mu.RLock()
	logger, ok := std.loggers[module]
	std.mu.RUnlock()
	if ok {
		return logger
	}

	std.mu.Lock()
	defer std.mu.Unlock()

	if logger, ok := std.loggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(std.moduleLevel(module))

	logger = slog.New(std.handler(levelVar)).With("module", module)
	std.loggers[module] = logger
	std.levels[module] = levelVar
	return logger
}

// SetModuleLevel changes a module's level at runtime. Existing loggers for
// the module follow the change.
func SetModuleLevel(module, level string) error {
	l, err := ParseLevel(level)
	if err != nil {
		return err
	}

	GetLogger(module)

	std.mu.Lock()
	defer std.mu.Unlock()
	if std.config.Modules == nil {
		std.config.Modules = make(map[string]string)
	}
	std.config.Modules[module] = level
	std.levels[module].Set(l)
	return nil
}

// moduleLevel resolves a module's level from the config. Callers hold mu.
func (r *registry) moduleLevel(module string) slog.Level {
	if !r.initialized {
		return slog.LevelInfo
	}
	level := levelOr(r.config.Level, slog.LevelInfo)
	if s, ok := r.config.Modules[module]; ok {
		level = levelOr(s, level)
	}
	return level
}

// handler builds the output chain: stdout (text or json) plus the journal
// when journald is reachable. Callers hold mu.
func (r *registry) handler(level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	out := r.config.Output
	if out == nil {
		out = os.Stdout
	}

	var stdout slog.Handler
	if r.config.Format == "json" {
		stdout = slog.NewJSONHandler(out, opts)
	} else {
		stdout = slog.NewTextHandler(out, opts)
	}

	var handlers []slog.Handler
	if r.config.Output != nil || isStdoutAvailable() {
		handlers = append(handlers, stdout)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}

	switch len(handlers) {
	case 0:
		return stdout
	case 1:
		return handlers[0]
	default:
		return NewMultiHandler(handlers...)
	}
}

// isStdoutAvailable checks if stdout is connected to a terminal, pipe, socket, or file.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	// /dev/null is a char device too, but harmless to write to
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

// ParseLevel converts "debug", "info", "warn"/"warning" or "error" to a level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

func levelOr(s string, fallback slog.Level) slog.Level {
	if l, err := ParseLevel(s); err == nil {
		return l
	}
	return fallback
}
