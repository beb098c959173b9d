// Package definition holds the default, concrete implementations a World
// falls back to when the caller does not supply its own: today that is
// just the logger.
package definition

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/tanshoo/mimpi/pkg/mimpi/types"
)

// DefaultLogger is the logger used when a caller does not configure one of
// its own. It backs the types.Logger contract with a logrus.Logger writing
// to stderr, toggling between info and debug level the way the teacher's
// own default logger toggled a boolean debug flag.
type DefaultLogger struct {
	entry *logrus.Logger
}

// NewDefaultLogger builds a DefaultLogger writing leveled, timestamped
// lines to stderr.
func NewDefaultLogger() *DefaultLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &DefaultLogger{entry: l}
}

func (l *DefaultLogger) Info(v ...interface{}) { l.entry.Info(v...) }
func (l *DefaultLogger) Infof(format string, v ...interface{}) { l.entry.Infof(format, v...) }
func (l *DefaultLogger) Warn(v ...interface{}) { l.entry.Warn(v...) }
func (l *DefaultLogger) Warnf(format string, v ...interface{}) { l.entry.Warnf(format, v...) }
func (l *DefaultLogger) Error(v ...interface{}) { l.entry.Error(v...) }
func (l *DefaultLogger) Errorf(format string, v ...interface{}) { l.entry.Errorf(format, v...) }
func (l *DefaultLogger) Debug(v ...interface{}) { l.entry.Debug(v...) }
func (l *DefaultLogger) Debugf(format string, v ...interface{}) { l.entry.Debugf(format, v...) }
func (l *DefaultLogger) Fatal(v ...interface{}) { l.entry.Fatal(v...) }
func (l *DefaultLogger) Fatalf(format string, v ...interface{}) { l.entry.Fatalf(format, v...) }

// ToggleDebug turns debug-level logging on or off and returns the new state.
func (l *DefaultLogger) ToggleDebug(enable bool) bool {
	if enable {
		l.entry.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.SetLevel(logrus.InfoLevel)
	}
	return enable
}

var _ types.Logger = (*DefaultLogger)(nil)
