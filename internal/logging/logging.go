// Package logging provides the named, levelled logger used across ddgraph.
//
// Usage:
//
//	logging.Initialize("info")
//	logger := logging.GetLogger("workflow")
//	logger.Info("run %s started", runID)
//	logger.InfoWithFields("stage done",
//	    logging.Field("stage", "planner"),
//	    logging.Field("fallback", false),
//	)
//
// Child loggers carry persistent fields:
//
//	runLogger := logger.WithField("run_id", runID).WithField("company_id", companyID)
//
// When the logger is bound to a context carrying an OpenTelemetry span,
// trace_id and span_id are added to every line.
package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel accepts debug, info, warn/warning and error in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
}

type LogField struct {
	Key   string
	Value any
}

func Field(key string, value any) LogField {
	return LogField{Key: key, Value: value}
}

var (
	mu          sync.RWMutex
	globalLevel = INFO
	out         io.Writer = os.Stderr
	std                   = log.New(os.Stderr, "", 0)
)

// Initialize sets the global level. Unknown levels fall back to INFO and are
// reported as an error.
func Initialize(level string) error {
	lvl, err := ParseLevel(level)
	mu.Lock()
	globalLevel = lvl
	mu.Unlock()
	return err
}

// SetOutput redirects every logger. Intended for tests and the CLI.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	std = log.New(w, "", 0)
}

func currentLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return globalLevel
}

type Logger struct {
	name   string
	fields map[string]any
	ctx    context.Context
}

func GetLogger(name string) *Logger {
	return &Logger{name: name, fields: map[string]any{}}
}

func (l *Logger) clone() *Logger {
	fields := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &Logger{name: l.name, fields: fields, ctx: l.ctx}
}

func (l *Logger) WithField(key string, value any) *Logger {
	n := l.clone()
	n.fields[key] = value
	return n
}

func (l *Logger) WithFields(fields ...LogField) *Logger {
	n := l.clone()
	for _, f := range fields {
		n.fields[f.Key] = f.Value
	}
	return n
}

func (l *Logger) WithContext(ctx context.Context) *Logger {
	n := l.clone()
	n.ctx = ctx
	return n
}

func (l *Logger) Debug(msg string, args ...any) { l.logf(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.logf(INFO, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.logf(WARN, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.logf(ERROR, msg, args...) }

func (l *Logger) DebugWithFields(msg string, fields ...LogField) { l.write(DEBUG, msg, fields) }
func (l *Logger) InfoWithFields(msg string, fields ...LogField)  { l.write(INFO, msg, fields) }
func (l *Logger) WarnWithFields(msg string, fields ...LogField)  { l.write(WARN, msg, fields) }
func (l *Logger) ErrorWithFields(msg string, fields ...LogField) { l.write(ERROR, msg, fields) }

func (l *Logger) logf(level Level, msg string, args ...any) {
	if level < currentLevel() {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.write(level, msg, nil)
}

func (l *Logger) write(level Level, msg string, extra []LogField) {
	if level < currentLevel() {
		return
	}
	merged := make(map[string]any, len(l.fields)+len(extra)+2)
	if l.ctx != nil {
		if sc := trace.SpanContextFromContext(l.ctx); sc.IsValid() {
			merged["trace_id"] = sc.TraceID().String()
			merged["span_id"] = sc.SpanID().String()
		}
	}
	for k, v := range l.fields {
		merged[k] = v
	}
	for _, f := range extra {
		merged[f.Key] = f.Value
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s: %s", timestamp(), level, l.name, msg)
	if len(merged) > 0 {
		keys := make([]string, 0, len(merged))
		for k := range merged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, merged[k])
		}
	}

	mu.RLock()
	logger := std
	mu.RUnlock()
	logger.Println(b.String())
}

func timestamp() string {
	if override := os.Getenv("LOG_TIMESTAMP"); override != "" {
		return override
	}
	return time.Now().Format(time.RFC3339)
}

// Std returns a *log.Logger writing through the shared output, for
// libraries that expect the standard logger.
func Std(prefix string) *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log.New(out, prefix, log.LstdFlags)
}
