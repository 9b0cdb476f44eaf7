// Package logging sets up the diagnostic logger and writes the Nagios-format
// history log.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls the diagnostic logger.
type Options struct {
	// Debug is the livestatus debug level: 0 notices, 1 informational
	// messages, 2 and above everything.
	Debug int
	// File receives the log output. Empty means stderr.
	File string
}

// Level maps a livestatus debug level to a logrus level.
func Level(debug int) logrus.Level {
	switch {
	case debug <= 0:
		return logrus.InfoLevel
	case debug == 1:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// New returns a configured logger. The returned closer releases the log file.
func New(opts Options) (*logrus.Logger, io.Closer) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	logger.SetLevel(Level(opts.Debug))
	if opts.File == "" {
		logger.SetOutput(os.Stderr)
		return logger, nopCloser{}
	}
	out := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}
	logger.SetOutput(out)
	return logger, out
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.TraceLevel)
	return logger
}
