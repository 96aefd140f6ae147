// Package logging builds the zerolog logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level  string // trace, debug, info, warn, error
	Format string // console or json
	Output io.Writer
}

func New(cfg Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("log level: %w", err)
		}
		level = l
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	switch strings.ToLower(cfg.Format) {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case "json":
	default:
		return zerolog.Logger{}, fmt.Errorf("log format must be 'console' or 'json', got %q", cfg.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "signalbot").Logger(), nil
}
