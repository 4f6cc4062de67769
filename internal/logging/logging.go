// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Setup sets the level and formatter of the standard logrus logger.  An
// unknown level falls back to info.
func Setup(level string, json bool) {
	SetupTo(os.Stdout, level, json)
}

// SetupTo is Setup writing to w.
func SetupTo(w io.Writer, level string, json bool) {
	logrus.SetOutput(w)
	if json {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
}

// For returns an entry tagged with the component name.
func For(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}
