// Package logging provides leveled key-value logging for turnlink. Each
// component (tracker, bridge, navigator, device simulator) takes a Logger
// from For, which names the component on every line. Loggers derived from
// one another share a level and an output, so changing the level after
// components are built still takes effect.
package logging

import (
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
)

// Level represents a log level.
type Level int

const (
	// LevelDebug is for inbound frames and per-fix tracker decisions.
	LevelDebug Level = iota
	// LevelInfo is for connection and step transitions.
	LevelInfo
	// LevelWarn is for recoverable transport failures.
	LevelWarn
	// LevelError is for failures that stop navigation.
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// String returns the upper-case level name.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel converts a config or flag value ("debug", "info", "warn",
// "error") into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger writes lines of the form
//
//	LEVEL component: message | key=value key=value
//
// Context fields come first in the order they were added, followed by the
// call's own key-value pairs. A later key replaces an earlier one in place.
type Logger struct {
	sink      *sink
	component string
	fields    []field
}

// sink is shared by a Logger and everything derived from it.
type sink struct {
	mu     sync.RWMutex
	level  Level
	output *log.Logger
}

type field struct {
	key   string
	value interface{}
}

var defaultLogger = New()

// New creates a Logger at info level writing to stderr.
func New() *Logger {
	return &Logger{sink: &sink{
		level:  LevelInfo,
		output: log.New(os.Stderr, "", log.LstdFlags),
	}}
}

// SetLevel sets the minimum level for l and every Logger sharing its sink.
func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// SetOutput redirects l and every Logger sharing its sink.
func (l *Logger) SetOutput(output *log.Logger) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.output = output
}

// For returns a child logger for component. The child keeps l's fields.
func (l *Logger) For(component string) *Logger {
	return &Logger{sink: l.sink, component: component, fields: l.fields}
}

// With returns a child logger with one more context field.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{sink: l.sink, component: l.component, fields: setField(l.fields, key, value)}
}

// WithFields returns a child logger with several more context fields,
// added in key order.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	merged := l.fields
	for _, k := range keys {
		merged = setField(merged, k, fields[k])
	}
	return &Logger{sink: l.sink, component: l.component, fields: merged}
}

// setField returns a copy of fields with key set to value.
func setField(fields []field, key string, value interface{}) []field {
	out := make([]field, len(fields), len(fields)+1)
	copy(out, fields)
	for i := range out {
		if out[i].key == key {
			out[i].value = value
			return out
		}
	}
	return append(out, field{key: key, value: value})
}

// Enabled reports whether a message at level would be written.
func (l *Logger) Enabled(level Level) bool {
	l.sink.mu.RLock()
	defer l.sink.mu.RUnlock()
	return level >= l.sink.level
}

func (l *Logger) log(level Level, msg string, keyVals ...interface{}) {
	l.sink.mu.RLock()
	threshold, output := l.sink.level, l.sink.output
	l.sink.mu.RUnlock()
	if level < threshold {
		return
	}

	all := l.fields
	for i := 0; i+1 < len(keyVals); i += 2 {
		if key, ok := keyVals[i].(string); ok {
			all = setField(all, key, keyVals[i+1])
		}
	}

	var sb strings.Builder
	sb.WriteString(levelNames[level])
	sb.WriteString(" ")
	if l.component != "" {
		sb.WriteString(l.component)
		sb.WriteString(": ")
	}
	sb.WriteString(msg)

	if len(all) > 0 {
		sb.WriteString(" |")
		for _, f := range all {
			sb.WriteString(" ")
			sb.WriteString(f.key)
			sb.WriteString("=")
			sb.WriteString(formatValue(f.value))
		}
	}

	output.Print(sb.String())
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		if val == "" || strings.ContainsAny(val, " \t\n\"") {
			return fmt.Sprintf("%q", val)
		}
		return val
	case error:
		return fmt.Sprintf("%q", val.Error())
	case float64:
		return fmt.Sprintf("%.1f", val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}

func (l *Logger) Debug(msg string, keyVals ...interface{}) { l.log(LevelDebug, msg, keyVals...) }
func (l *Logger) Info(msg string, keyVals ...interface{})  { l.log(LevelInfo, msg, keyVals...) }
func (l *Logger) Warn(msg string, keyVals ...interface{})  { l.log(LevelWarn, msg, keyVals...) }
func (l *Logger) Error(msg string, keyVals ...interface{}) { l.log(LevelError, msg, keyVals...) }

// Default returns the package-level logger.
func Default() *Logger {
	return defaultLogger
}

// SetLevel sets the level of the default logger and every component logger
// obtained from For.
func SetLevel(level Level) {
	defaultLogger.SetLevel(level)
}

// SetOutput redirects the default logger and its component loggers.
func SetOutput(output *log.Logger) {
	defaultLogger.SetOutput(output)
}

// For returns the component logger for component.
func For(component string) *Logger {
	return defaultLogger.For(component)
}

// With returns a child of the default logger with one context field.
func With(key string, value interface{}) *Logger {
	return defaultLogger.With(key, value)
}

// WithFields returns a child of the default logger with several fields.
func WithFields(fields map[string]interface{}) *Logger {
	return defaultLogger.WithFields(fields)
}

func Debug(msg string, keyVals ...interface{}) { defaultLogger.Debug(msg, keyVals...) }
func Info(msg string, keyVals ...interface{})  { defaultLogger.Info(msg, keyVals...) }
func Warn(msg string, keyVals ...interface{})  { defaultLogger.Warn(msg, keyVals...) }
func Error(msg string, keyVals ...interface{}) { defaultLogger.Error(msg, keyVals...) }

// Discard returns a Logger with its own sink that writes nothing.
func Discard() *Logger {
	l := New()
	l.SetLevel(LevelError + 1)
	return l
}
