// Package log implements structured logging on top of logrus, behind a
// narrow interface so no package outside internal/log imports logrus
// directly.
package log

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logging surface every actor and the daemon
// supervisor depend on.
type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
}

var (
	once   sync.Once
	logger Logger
)

// GetLogger returns the process-global logger. Until Init has run it
// returns a logger backed by logrus's standard logger with its default
// settings, so code that logs before (or without) Init, such as unit
// tests, does not get a nil Logger.
func GetLogger() Logger {
	if logger == nil {
		return &logrusAdapter{entry: logrus.NewEntry(logrus.StandardLogger())}
	}
	return logger
}

// Init initializes the global logger from configuration. Safe to call
// more than once; only the first call takes effect.
func Init(cfg Config) error {
	var initErr error
	once.Do(func() {
		initErr = initByConfig(cfg)
	})
	return initErr
}
