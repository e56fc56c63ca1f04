package log

import (
	"fmt"
	"time"
)

// Logger is the structured logger the dispatcher writes to. It must be safe
// for concurrent use: the worker and every producer share one Logger.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Kind identifies the type held by a Field.
type Kind uint8

// Field kinds.
const (
	KindAny Kind = iota
	KindString
	KindInt64
	KindBool
	KindDuration
	KindError
)

// Field is one key-value pair of a log entry. Scalar values are stored
// unboxed.
type Field struct {
	Key  string
	Kind Kind

	str   string
	num   int64
	value any
}

// Value returns the field value as an interface.
func (f Field) Value() any {
	switch f.Kind {
	case KindString:
		return f.str
	case KindInt64:
		return f.num
	case KindBool:
		return f.num != 0
	case KindDuration:
		return time.Duration(f.num)
	default:
		return f.value
	}
}

// String formats the field as key=value.
func (f Field) String() string {
	return fmt.Sprintf("%s=%v", f.Key, f.Value())
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Kind: KindString, str: value}
}

// Int creates an integer field.
func Int(key string, value int) Field {
	return Field{Key: key, Kind: KindInt64, num: int64(value)}
}

// Int64 creates an integer field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Kind: KindInt64, num: value}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	var n int64
	if value {
		n = 1
	}
	return Field{Key: key, Kind: KindBool, num: n}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Kind: KindDuration, num: int64(value)}
}

// Err creates an error field with key "error".
func Err(err error) Field {
	return Field{Key: "error", Kind: KindError, value: err}
}

// Any creates a field with any value.
func Any(key string, value any) Field {
	return Field{Key: key, Kind: KindAny, value: value}
}

var _ Logger = NoopLogger{}

// NoopLogger discards everything. It is the library default.
type NoopLogger struct{}

func (NoopLogger) Debug(string, ...Field) {}
func (NoopLogger) Info(string, ...Field)  {}
func (NoopLogger) Warn(string, ...Field)  {}
func (NoopLogger) Error(string, ...Field) {}
