package observability

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NopLogger discards everything; used by tests and tools.
func NopLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
