// Package logger provides the process-wide structured log used by the runner and drivers.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	globalLogger *logrus.Logger
	logFile      *os.File
	mu           sync.Mutex
)

// Init initializes the global logger with the specified log file path.
// An empty path logs to stderr. verbose enables debug entries.
func Init(logPath string, verbose bool) error {
	mu.Lock()
	defer mu.Unlock()

	// Close previous log file if exists
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000000",
	})
	l.SetLevel(logrus.InfoLevel)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}

	if logPath == "" {
		l.SetOutput(os.Stderr)
	} else {
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //#nosec G304 -- user-provided log path
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		logFile = f
		l.SetOutput(f)
	}

	globalLogger = l
	return nil
}

// SetOutput routes log entries to w. Used by tests.
func SetOutput(w io.Writer, verbose bool) {
	mu.Lock()
	defer mu.Unlock()

	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	l.SetOutput(w)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	globalLogger = l
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger = nil
}

// Fields is a set of structured log fields.
type Fields = logrus.Fields

// WithFields returns an entry carrying fields. Entries are discarded until Init is called.
func WithFields(fields Fields) *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l.WithFields(fields)
	}
	return globalLogger.WithFields(fields)
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		globalLogger.Infof(format, v...)
	}
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		globalLogger.Debugf(format, v...)
	}
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		globalLogger.Errorf(format, v...)
	}
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		globalLogger.Warnf(format, v...)
	}
}

// GetWriter returns the underlying writer for use by drivers.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		return globalLogger.Out
	}
	return io.Discard
}
