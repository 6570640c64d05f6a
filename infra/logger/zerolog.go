package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the output of every component logger in the service.
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// SetDefaults fills unset fields with defaults.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
}

// Validate checks configuration consistency.
func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("unknown log level %q", c.Level)
	}
	switch c.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
	return nil
}

// componentLogger backs Logger with rs/zerolog. Every line carries the
// component it came from so one stream can be filtered per subsystem.
type componentLogger struct {
	log zerolog.Logger
}

// NewWithConfig builds a component logger writing to stdout per cfg: JSON
// lines at the configured level, or human-readable console output when the
// format is "console".
func NewWithConfig(component string, cfg Config) Logger {
	return &componentLogger{log: newZerolog(component, cfg, os.Stdout)}
}

func newZerolog(component string, cfg Config, out io.Writer) zerolog.Logger {
	cfg.SetDefaults()
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("component", component).Logger()
}

func (l *componentLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *componentLogger) Debugw(msg string, fields map[string]any) {
	ev := l.log.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (l *componentLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *componentLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *componentLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
