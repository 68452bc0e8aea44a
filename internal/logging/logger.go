package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"jarconsole/internal/buildinfo"
	"jarconsole/internal/config"
)

// NewLogger creates a structured zerolog.Logger writing to w with the service
// and panel fields set from the config.
func NewLogger(w io.Writer, service string, cfg config.Config) zerolog.Logger {
	ctx := zerolog.New(w).With().Timestamp().Str("mode", buildinfo.Mode)

	if service != "" {
		ctx = ctx.Str("service", service)
	}
	if cfg.PanelURL != "" {
		ctx = ctx.Str("panel", cfg.PanelURL)
	}

	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}

// Open returns the log destination named in the config: stdout when empty,
// otherwise the file opened for appending. The caller closes the returned closer.
func Open(cfg config.Config) (io.Writer, io.Closer, error) {
	if cfg.LogFile == "" {
		return os.Stdout, nopCloser{}, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
