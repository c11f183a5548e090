// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TimeFormat is used for console output and the log file.
const TimeFormat = "2006-01-02 15:04:05"

// Config selects level, format and sinks.
type Config struct {
	// Level is trace, debug, info, warn (or warning), or error. Empty means info.
	Level string
	// Format is "text" for human-readable console output or "json".
	Format string
	// File is the rotating log file path. Empty disables the file sink.
	File       string
	MaxSizeMB  int
	MaxBackups int
	WithCaller bool

	// Output replaces stderr as the console sink.
	Output io.Writer
}

// DefaultConfig mirrors the LOG_* environment defaults.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "text",
		File:       "logs/app.log",
		MaxSizeMB:  10,
		MaxBackups: 5,
	}
}

// ParseLevel accepts the level names of Config.Level.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.NoLevel, errors.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init replaces log.Logger and the global level. The returned Closer
// releases the log file; it is a no-op without one.
func Init(cfg Config) (io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var console io.Writer
	switch cfg.Format {
	case "", "text":
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: TimeFormat}
	case "json":
		console = out
	default:
		return nil, errors.Errorf("unknown log format %q", cfg.Format)
	}

	writer := console
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		closer = file
		writer = io.MultiWriter(console, zerolog.ConsoleWriter{
			Out:        file,
			NoColor:    true,
			TimeFormat: TimeFormat,
		})
	}

	zerolog.SetGlobalLevel(level)
	ctx := zerolog.New(writer).With().Timestamp()
	if cfg.WithCaller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()

	log.Info().
		Str("level", level.String()).
		Str("format", cfg.Format).
		Str("file", cfg.File).
		Int("max_mb", cfg.MaxSizeMB).
		Int("backups", cfg.MaxBackups).
		Msg("Logging initialised")
	return closer, nil
}
