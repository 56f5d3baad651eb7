// Package vlog is a minimal leveled logging shim over the standard
// library's log package, used by every command and internal package that
// needs to respect the CLI's -v/-q verbosity flags without pulling a full
// structured logging framework into leaf packages.
package vlog

import (
	"log"
	"os"
)

// Level is a logging severity, ordered from least to most severe.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses the "nuts-log-<level>:" tag a plugin child process
// writes on its stderr, returning false if s names no known level.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "trace":
		return LevelTrace, true
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return 0, false
	}
}

// Logger is a leveled logger backed by a standard library *log.Logger.
type Logger struct {
	min Level
	std *log.Logger
}

// New returns a Logger that discards messages below min and otherwise
// writes to stderr with a timestamp prefix.
func New(min Level) *Logger {
	return &Logger{min: min, std: log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *Logger) log(level Level, prefix, format string, args []interface{}) {
	if l == nil || level < l.min {
		return
	}
	l.std.Printf(prefix+format, args...)
}

func (l *Logger) Tracef(format string, args ...interface{}) { l.log(LevelTrace, "TRACE ", format, args) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, "DEBUG ", format, args) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(LevelInfo, "INFO ", format, args) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(LevelWarn, "WARN ", format, args) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, "ERROR ", format, args) }

// Log writes a message at level, prefixed with the level's name in
// brackets (e.g. "[warn] ").
func (l *Logger) Log(level Level, format string, args ...interface{}) {
	prefix := "[" + level.String() + "] "
	l.log(level, prefix, format, args)
}
