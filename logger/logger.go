// Package logger exposes the package-level logging entry point every other
// PlayHouse package logs through, the same way byte4fun-pitaya's agent.go
// calls logger.Log.Debugf/Warnf/Errorf directly rather than taking a logger
// as a constructor argument.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ulala-x/playhouse/constants"
)

// Log is the package-level logger. Swappable via SetLogger so an embedding
// application can route PlayHouse's logs into its own sink.
var Log logrus.FieldLogger = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLogger replaces the package-level logger.
func SetLogger(l logrus.FieldLogger) {
	Log = l
}

// SetLevel adjusts the default logger's level; a no-op if the logger was
// replaced with an implementation that isn't a *logrus.Logger.
func SetLevel(level logrus.Level) {
	if l, ok := Log.(*logrus.Logger); ok {
		l.SetLevel(level)
	}
}

// WithField is a small convenience used throughout the mesh core to attach
// a single correlating field (nid, stageId, sid, accountId, ...).
func WithField(key string, value interface{}) logrus.FieldLogger {
	return Log.WithField(key, value)
}

// RouteDebugf logs a debug-level line for a single route (a msgId, in
// PlayHouse's case) only when constants.LogCanPrint admits it. The mesh
// core calls this on every packet it handles; by default constants.LogFilter
// is empty so nothing prints, and an embedding application opts specific
// routes into per-packet tracing via constants.SetLogFilter without having
// to drop the whole logger to Debug level.
func RouteDebugf(route, format string, args ...interface{}) {
	if !constants.LogCanPrint(route) {
		return
	}
	Log.Debugf(format, args...)
}
