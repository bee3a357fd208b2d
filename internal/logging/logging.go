// Package logging builds the process logger. Components derive their own
// entry with Component so every line carries a "component" field.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stderr: JSON in prod, text otherwise.
// An unknown level falls back to info.
func New(level, env string) *logrus.Logger {
	return NewWithOutput(os.Stderr, level, env)
}

func NewWithOutput(w io.Writer, level, env string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)

	if strings.EqualFold(env, "prod") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

func Component(l logrus.FieldLogger, name string) *logrus.Entry {
	return l.WithField("component", name)
}
