// Package logger provides the process-wide structured logger. Output
// goes to stderr, either as zerolog JSON or as human-readable console
// lines, with leveled methods taking alternating key-value fields.
package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log is the process-wide logger. Packages log through it directly;
// Setup replaces it when the caller configures level and format.
var Log *Logger

// Logger wraps a zerolog.Logger behind variadic key-value methods.
type Logger struct {
	zl zerolog.Logger
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	Log = &Logger{zl: newZerolog("console")}
}

// Setup reconfigures the global logger. Level names follow zerolog
// ("debug", "info", "warn", "error", case-insensitive); unknown or
// empty levels fall back to info. Any format other than "json"
// selects console output.
func Setup(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	Log = &Logger{zl: newZerolog(format)}
}

func newZerolog(format string) zerolog.Logger {
	if strings.ToLower(format) == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).With().Timestamp().Logger()
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.emit(l.zl.Debug(), msg, args)
}

// Info logs at info level.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.emit(l.zl.Info(), msg, args)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.emit(l.zl.Warn(), msg, args)
}

// Error logs at error level.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.emit(l.zl.Error(), msg, args)
}

// emit attaches alternating key-value fields to the event and sends
// it. Non-string keys are stringified; a trailing key without a value
// is dropped.
func (l *Logger) emit(e *zerolog.Event, msg string, args []interface{}) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		e.Interface(key, args[i+1])
	}
	e.Msg(msg)
}
