// Package logging configures the application logger. Components receive a
// *logrus.Entry tagged with their name instead of reaching for a global.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds a logger with the requested level and format. Unrecognised
// levels fall back to info; any format other than "json" selects the text
// formatter.
func New(level, format string, out io.Writer) *logrus.Logger {
	log := logrus.New()

	lv, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lv = logrus.InfoLevel
	}
	log.SetLevel(lv)

	if strings.ToLower(format) == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	log.SetOutput(out)
	return log
}

// Component derives a tagged entry for one subsystem.
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}

// Discard returns a logger that drops everything. Used by tests and as the
// fallback when a constructor receives a nil entry.
func Discard() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("component", "discard")
}
