package logging

import (
	"io"
	"log/slog"
	"os"
)

// Init installs the default logger for interactive commands, which only show
// errors unless LOG_LEVEL says otherwise.
func Init() {
	InitWithDefault(os.Stderr, slog.LevelError)
}

// InitWithDefault installs a text logger on w. LOG_LEVEL overrides fallback.
func InitWithDefault(w io.Writer, fallback slog.Level) {
	level := fallback
	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if parsed, ok := ParseLevel(l); ok {
			level = parsed
		}
	}

	logger := slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
}

// ParseLevel maps LOG_LEVEL values onto slog levels.
func ParseLevel(l string) (slog.Level, bool) {
	switch l {
	case "dev", "development", "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "production", "prod":
		return slog.LevelError, true
	}
	return 0, false
}
