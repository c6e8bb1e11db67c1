// Package logger wraps charmbracelet/log with JN's field conventions:
// sorted, deterministically-ordered structured fields and a JSON/human
// formatter switch driven by whether output is attached to a terminal.
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	cblog "github.com/charmbracelet/log"
)

// Options configures a Logger at construction time.
type Options struct {
	Writer        io.Writer
	Level         string // trace|debug|info|warn|error|fatal
	HumanReadable bool
	Component     string // e.g. "discovery", "resolver", "executor"
}

// Logger is JN's structured logger, used to report discovery advisories,
// resolution fallbacks, and executor lifecycle events (spec §4.1 Errors,
// §4.3.5 Output Channels).
type Logger struct {
	base   *cblog.Logger
	fields []interface{}
}

// New builds a Logger from Options.
func New(opts Options) (*Logger, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	level := cblog.InfoLevel
	if opts.Level != "" {
		parsed, err := cblog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	cblogOpts := cblog.Options{
		Level:           level,
		ReportTimestamp: true,
	}
	if !opts.HumanReadable {
		cblogOpts.Formatter = cblog.JSONFormatter
	}

	base := cblog.NewWithOptions(writer, cblogOpts)

	var fields []interface{}
	if opts.Component != "" {
		fields = []interface{}{"component", opts.Component}
	}

	return &Logger{base: base, fields: fields}, nil
}

// With derives a logger that always carries the supplied key/value fields
// in addition to any already attached.
func (l *Logger) With(fields ...interface{}) *Logger {
	if l == nil {
		return nil
	}
	next := make([]interface{}, 0, len(l.fields)+len(fields))
	next = append(next, l.fields...)
	next = append(next, fields...)
	return &Logger{base: l.base, fields: next}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(l.base.Debug, msg, fields) }

// Info logs at info level.
func (l *Logger) Info(msg string, fields ...interface{}) { l.log(l.base.Info, msg, fields) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields ...interface{}) { l.log(l.base.Warn, msg, fields) }

// Error logs at error level.
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(l.base.Error, msg, fields) }

func (l *Logger) log(emit func(string, ...interface{}), msg string, fields []interface{}) {
	if l == nil || l.base == nil {
		return
	}
	emit(msg, mergeFields(l.fields, fields)...)
}

// mergeFields combines base and call-site fields — a call-site field
// overrides a persistent one of the same key — and emits pairs in sorted
// key order so output is deterministic across runs.
func mergeFields(base, additions []interface{}) []interface{} {
	store := map[string]interface{}{}
	var order []string

	add := func(values []interface{}) {
		for i := 0; i+1 < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			if _, seen := store[key]; !seen {
				order = append(order, key)
			}
			store[key] = values[i+1]
		}
	}
	add(base)
	add(additions)

	sort.Strings(order)
	out := make([]interface{}, 0, len(order)*2)
	for _, k := range order {
		out = append(out, k, store[k])
	}
	return out
}
