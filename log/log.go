// Package log provides the logging handle passed to rtio components.
package log

import (
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

var debug bool

// Logger is the interface rtio components log with. Components get it at
// construction, there is no package-level logger.
type Logger = logrus.FieldLogger

func init() {
	var err error
	debug, err = strconv.ParseBool(os.Getenv("RTIO_DEBUG"))
	if err != nil {
		debug = false
	}
}

// New returns a new logger instance. Debug level is enabled with the
// RTIO_DEBUG environment variable.
func New() *logrus.Logger {
	l := logrus.New()
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// Nop returns a logger which discards everything.
func Nop() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// OrNop returns l, or a discarding logger if l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
