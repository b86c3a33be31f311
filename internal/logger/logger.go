// Package logger wraps logrus with the component-tagged entries used across
// the pipeline.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Fields is an alias-compatible copy of logrus.Fields.
type Fields map[string]any

// Log wraps logrus.Logger.
type Log struct {
	*logrus.Logger
}

// Entry wraps logrus.Entry.
type Entry struct {
	*logrus.Entry
}

var global = New()

// New returns a JSON logger on stderr at the LOG_LEVEL level (info by default).
func New() *Log {
	l := &Log{Logger: logrus.New()}
	l.SetOutput(os.Stderr)
	l.SetReportCaller(true)
	l.SetLevel(logrus.InfoLevel)
	if lvl, err := logrus.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL"))); err == nil {
		l.SetLevel(lvl)
	}
	l.SetFormatter(jsonFormatter())
	return l
}

// Discard returns a logger that writes nothing. Used by tests and library
// callers that pass no logger.
func Discard() *Log {
	l := &Log{Logger: logrus.New()}
	l.SetOutput(io.Discard)
	return l
}

// Global returns the process-wide logger.
func Global() *Log {
	return global
}

// WithComponent returns an entry tagged with component.
func (l *Log) WithComponent(component string) *Entry {
	return &Entry{Entry: l.Logger.WithField("component", component)}
}

// WithFields returns an entry carrying fields.
func (l *Log) WithFields(fields Fields) *Entry {
	return &Entry{Entry: l.Logger.WithFields(logrus.Fields(fields))}
}

// WithError returns an entry carrying err.
func (l *Log) WithError(err error) *Entry {
	return &Entry{Entry: l.Logger.WithError(err)}
}

// WithComponent tags e with component.
func (e *Entry) WithComponent(component string) *Entry {
	return &Entry{Entry: e.Entry.WithField("component", component)}
}

// WithFields adds fields to e.
func (e *Entry) WithFields(fields Fields) *Entry {
	return &Entry{Entry: e.Entry.WithFields(logrus.Fields(fields))}
}

// WithField adds one field to e.
func (e *Entry) WithField(key string, value any) *Entry {
	return &Entry{Entry: e.Entry.WithField(key, value)}
}

// WithError adds err to e.
func (e *Entry) WithError(err error) *Entry {
	return &Entry{Entry: e.Entry.WithError(err)}
}

// Configure sets level, format ("json" or "text") and output. Output is
// "stdout", "stderr" or a file path; files rotate through lumberjack when
// maxAgeDays > 0. LOG_LEVEL overrides level.
func (l *Log) Configure(level, format, output string, maxAgeDays int) error {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level '%s'", level)
	}
	l.SetLevel(lvl)
	l.SetReportCaller(true)

	switch format {
	case "json", "":
		l.SetFormatter(jsonFormatter())
	case "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: callerPrettyfier,
		})
	default:
		return fmt.Errorf("invalid log format '%s'", format)
	}

	switch output {
	case "stderr", "":
		l.SetOutput(os.Stderr)
	case "stdout":
		l.SetOutput(os.Stdout)
	default:
		if maxAgeDays > 0 {
			l.SetOutput(&lumberjack.Logger{
				Filename: output,
				MaxAge:   maxAgeDays,
				MaxSize:  100,
				Compress: true,
			})
			return nil
		}
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file '%s': %w", output, err)
		}
		l.SetOutput(f)
	}
	return nil
}

// LogDuration logs how long operation took under component.
func (e *Entry) LogDuration(operation string, d time.Duration, fields Fields) {
	if fields == nil {
		fields = make(Fields)
	}
	fields["operation"] = operation
	fields["duration_ms"] = float64(d.Nanoseconds()) / 1e6
	e.WithFields(fields).Info("operation finished")
}

func jsonFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
		CallerPrettyfier: callerPrettyfier,
	}
}

func callerPrettyfier(f *runtime.Frame) (string, string) {
	return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
}
