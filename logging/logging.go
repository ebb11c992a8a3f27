// Package logging provides the structured logger used throughout the VO core.
//
// It is a thin wrapper over zap.SugaredLogger: every component that needs to
// report diagnostics (tracker convergence, BA outlier counts, initializer
// reselection passes) takes a logging.Logger rather than reaching for the
// standard library log package or its own ad-hoc fmt.Printf calls.
package logging

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Level is a logging severity, ordered DEBUG < INFO < WARN < ERROR.
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
		return "Debug"
	case INFO:
		return "Info"
	case WARN:
		return "Warn"
	case ERROR:
		return "Error"
	default:
		return "Unknown"
	}
}

// LevelFromString parses a level name case-insensitively; "warning" is
// accepted as an alias for WARN.
func LevelFromString(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Level) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("level must be a JSON string, got %q", s)
	}
	parsed, err := LevelFromString(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger is the interface every core component depends on. It intentionally
// exposes only the handful of methods the pipeline uses, plus Sublogger and
// AsZap for callers that need the full zap surface (e.g. handing a logger to
// a solver callback for per-iteration trace lines).
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Sublogger(name string) Logger
	AsZap() *zap.SugaredLogger
}

type logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger builds a production logger at the given level with a console
// encoder, named after the component that owns it.
func NewLogger(name string, level Level) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	z, err := cfg.Build()
	if err != nil {
		// Config above is static and always valid; fall back defensively
		// rather than propagate a build-time configuration impossibility.
		z = zap.NewNop()
	}
	return &logger{sugar: z.Named(name).Sugar()}
}

// NewTestLogger returns a Logger that writes through t.Log, mirroring the
// teacher's golog.NewTestLogger convenience used pervasively in its tests.
func NewTestLogger(t testing.TB) Logger {
	return &logger{sugar: zaptest.NewLogger(t).Sugar()}
}

func (l *logger) Debug(args ...interface{})                   { l.sugar.Debug(args...) }
func (l *logger) Debugf(template string, args ...interface{}) { l.sugar.Debugf(template, args...) }
func (l *logger) Info(args ...interface{})                    { l.sugar.Info(args...) }
func (l *logger) Infof(template string, args ...interface{})  { l.sugar.Infof(template, args...) }
func (l *logger) Warn(args ...interface{})                    { l.sugar.Warn(args...) }
func (l *logger) Warnf(template string, args ...interface{})  { l.sugar.Warnf(template, args...) }
func (l *logger) Error(args ...interface{})                   { l.sugar.Error(args...) }
func (l *logger) Errorf(template string, args ...interface{}) { l.sugar.Errorf(template, args...) }

func (l *logger) Sublogger(name string) Logger {
	return &logger{sugar: l.sugar.Named(name)}
}

func (l *logger) AsZap() *zap.SugaredLogger {
	return l.sugar
}
