// Package corelog defines the logging interface shared by every daemon
// component and a logrus-backed implementation.
package corelog

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the narrow logging surface components depend on. It mirrors the
// teacher's core.Logger shape so call sites read the same regardless of
// which concrete backend is wired in.
type Logger interface {
	Debugf(format string, args ...any)
	Noticef(format string, args ...any)
	Warningf(format string, args ...any)
	Errorf(format string, args ...any)
	Criticalf(format string, args ...any)
}

// LogrusAdapter wraps a logrus.Logger to satisfy Logger.
type LogrusAdapter struct {
	*logrus.Logger
}

var _ Logger = (*LogrusAdapter)(nil)

func (l *LogrusAdapter) Debugf(format string, args ...any)    { l.Logger.Debugf(format, args...) }
func (l *LogrusAdapter) Noticef(format string, args ...any)   { l.Logger.Infof(format, args...) }
func (l *LogrusAdapter) Warningf(format string, args ...any)  { l.Logger.Warnf(format, args...) }
func (l *LogrusAdapter) Errorf(format string, args ...any)    { l.Logger.Errorf(format, args...) }
func (l *LogrusAdapter) Criticalf(format string, args ...any) { l.Logger.Logf(logrus.FatalLevel, format, args...) }

// New builds a LogrusAdapter writing to stderr, console-formatted unless
// jsonFormat is requested.
func New(level string, jsonFormat bool) (*LogrusAdapter, error) {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if jsonFormat {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(lvl)
	return &LogrusAdapter{Logger: l}, nil
}

// ParseLevel maps the daemon's level vocabulary onto logrus levels,
// defaulting to Info for an empty string.
func ParseLevel(level string) (logrus.Level, error) {
	switch level {
	case "":
		return logrus.InfoLevel, nil
	case "trace", "debug":
		return logrus.DebugLevel, nil
	case "info", "notice":
		return logrus.InfoLevel, nil
	case "warning", "warn":
		return logrus.WarnLevel, nil
	case "error", "fatal", "critical":
		return logrus.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", level)
	}
}
