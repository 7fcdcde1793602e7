// Package logging provides structured logging for the transfer engine and
// its CLI front-end, adapted from the teacher's mode-aware zerolog wrapper
// down to the single CLI mode this engine ships.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with the engine's console formatting.
type Logger struct {
	zlog   zerolog.Logger
	output io.Writer
}

// New creates a logger writing to out with the engine's console formatting.
// Passing nil defaults to os.Stdout, matching the CLI's stdout convention
// (stderr is reserved for progressbar/v3 output).
func New(out io.Writer) *Logger {
	if out == nil {
		out = os.Stdout
	}
	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	return &Logger{
		zlog:   zerolog.New(writer).With().Timestamp().Logger(),
		output: out,
	}
}

// NewDefault creates a logger writing to os.Stdout.
func NewDefault() *Logger { return New(os.Stdout) }

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event { return l.zlog.Info() }

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event { return l.zlog.Warn() }

// With creates a child logger context with additional fields.
func (l *Logger) With() zerolog.Context { return l.zlog.With() }

// SetOutput redirects the logger's output, rebuilding the console writer so
// callers can reroute logs around an active progress bar.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	l.zlog = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()
}

// Output returns the logger's current output writer.
func (l *Logger) Output() io.Writer { return l.output }

// Debugf logs a debug message with printf-style formatting.
func (l *Logger) Debugf(format string, args ...interface{}) { l.zlog.Debug().Msgf(format, args...) }

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) { l.zlog.Info().Msgf(format, args...) }

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) { l.zlog.Error().Msgf(format, args...) }

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) { l.zlog.Warn().Msgf(format, args...) }

// SetGlobalLevel sets zerolog's global minimum level.
func SetGlobalLevel(level zerolog.Level) { zerolog.SetGlobalLevel(level) }

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
