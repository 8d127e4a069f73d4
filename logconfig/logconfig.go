// Package logconfig builds the loggers used throughout bifrost
package logconfig

import (
	prefixed "github.com/BertoldVdb/logrus-prefixed-formatter"
	"github.com/sirupsen/logrus"
)

// GetLogger builds a logger with the prefixed text formatter at the given
// level. Callers own the flag or config plumbing that decides the level.
func GetLogger(level logrus.Level) *logrus.Entry {
	logrus.ErrorKey = "$error"

	logger := logrus.New()
	logger.SetLevel(level)

	formatter := new(prefixed.TextFormatter)
	formatter.TimestampFormat = "2006-01-02 15:04:05"
	formatter.FullTimestamp = true
	formatter.SpacePadding = 12
	logger.SetFormatter(formatter)

	return logrus.NewEntry(logger)
}

// WithPrefix tags log lines with a component name
func WithPrefix(log *logrus.Entry, prefix string) *logrus.Entry {
	return log.WithField("prefix", prefix)
}
