// internal/infra/logger/logger.go
package logger

import (
	"io"
	"os"
	"strings"

	"habit_notifier/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// Log is the global logger instance
var Log = logrus.New()

// Init points the global logger at stdout with the configured level and format.
func Init(cfg *config.AppConfig) {
	configure(Log, os.Stdout, cfg.LogLevel, cfg.Environment)
	Log.WithFields(logrus.Fields{
		"level":       Log.GetLevel().String(),
		"environment": cfg.Environment,
		"format":      formatName(Log.Formatter),
	}).Info("Logger initialized")
}

func configure(l *logrus.Logger, out io.Writer, level, environment string) {
	l.SetOutput(out)
	l.SetFormatter(formatterFor(environment))

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		l.SetLevel(logrus.InfoLevel)
		l.WithError(err).WithField("requested", level).Warn("Invalid log level, using info")
		return
	}
	l.SetLevel(parsed)
}

// formatterFor picks JSON for deployed environments and text everywhere else.
func formatterFor(environment string) logrus.Formatter {
	switch strings.ToLower(environment) {
	case "production", "staging":
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	}
	return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"}
}

func formatName(f logrus.Formatter) string {
	if _, ok := f.(*logrus.JSONFormatter); ok {
		return "json"
	}
	return "text"
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}

// Discard returns an entry that drops everything, for tests.
func Discard() *logrus.Entry {
	l := logrus.New()
	configure(l, io.Discard, "panic", "")
	return logrus.NewEntry(l)
}
