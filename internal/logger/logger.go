package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Configure sets the log level. An empty level falls back to LOG_LEVEL and
// then to info.
func Configure(level string) error {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		log.SetLevel(logrus.InfoLevel)
		return nil
	}

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.SetLevel(logrus.InfoLevel)
		return err
	}

	log.SetLevel(parsed)
	log.Debugf("Log level set to '%s'", parsed)
	return nil
}

// SetOutput redirects log output, mostly for tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// Logger returns the shared logger.
func Logger() *logrus.Logger {
	return log
}

// WithField returns an entry carrying a single field
func WithField(key string, value interface{}) *logrus.Entry {
	return log.WithField(key, value)
}

// WithFields returns an entry carrying the given fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return log.WithFields(fields)
}

// Debugf logs a message at the Debug level
func Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}
