// Package logger is the process wide structured logger. Calls fan out to
// every backend passed to Init; before Init they are dropped.
package logger

import "sync/atomic"

// LoggerInstance defines the interface for logging backends.
type LoggerInstance interface {
	Log(message string, keyvals ...any)
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

type level int

const (
	levelLog level = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
	levelFatal
)

var backends atomic.Pointer[[]LoggerInstance]

// Init replaces the configured backends. Init with no arguments silences
// logging.
func Init(instances ...LoggerInstance) {
	list := append([]LoggerInstance(nil), instances...)
	backends.Store(&list)
}

func dispatch(l level, message string, keyvals []any) {
	list := backends.Load()
	if list == nil {
		return
	}
	for _, instance := range *list {
		switch l {
		case levelDebug:
			instance.Debug(message, keyvals...)
		case levelInfo:
			instance.Info(message, keyvals...)
		case levelWarn:
			instance.Warn(message, keyvals...)
		case levelError:
			instance.Error(message, keyvals...)
		case levelFatal:
			instance.Fatal(message, keyvals...)
		default:
			instance.Log(message, keyvals...)
		}
	}
}

func Log(message string, keyvals ...any)   { dispatch(levelLog, message, keyvals) }
func Debug(message string, keyvals ...any) { dispatch(levelDebug, message, keyvals) }
func Info(message string, keyvals ...any)  { dispatch(levelInfo, message, keyvals) }
func Warn(message string, keyvals ...any)  { dispatch(levelWarn, message, keyvals) }
func Error(message string, keyvals ...any) { dispatch(levelError, message, keyvals) }

// Fatal logs at FATAL level. Backends decide whether to exit.
func Fatal(message string, keyvals ...any) { dispatch(levelFatal, message, keyvals) }

// Scoped prefixes every call with a fixed set of key/value pairs, such as
// the document being ingested.
type Scoped struct {
	keyvals []any
}

// With returns a Scoped logger carrying keyvals.
func With(keyvals ...any) Scoped {
	return Scoped{keyvals: append([]any(nil), keyvals...)}
}

// With extends the scope.
func (s Scoped) With(keyvals ...any) Scoped {
	return Scoped{keyvals: append(append([]any(nil), s.keyvals...), keyvals...)}
}

func (s Scoped) merge(keyvals []any) []any {
	return append(append(make([]any, 0, len(s.keyvals)+len(keyvals)), s.keyvals...), keyvals...)
}

func (s Scoped) Debug(message string, keyvals ...any) { dispatch(levelDebug, message, s.merge(keyvals)) }
func (s Scoped) Info(message string, keyvals ...any)  { dispatch(levelInfo, message, s.merge(keyvals)) }
func (s Scoped) Warn(message string, keyvals ...any)  { dispatch(levelWarn, message, s.merge(keyvals)) }
func (s Scoped) Error(message string, keyvals ...any) { dispatch(levelError, message, s.merge(keyvals)) }
