package base

import (
	"log"
	"os"

	"github.com/cockroachdb/redact"
)

// Logger defines an interface for writing log messages. Workers take one so
// tests can swap in a capturing implementation without touching the stdlib
// log package's global state.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// DefaultLogger logs to the Go stdlib log package. Messages are formatted
// through redact so values that implement SafeFormatter keep their
// redaction markers out of the rendered text while unsafe values are still
// printable; workers log paths and error chains, both of which carry
// user-controlled strings.
type DefaultLogger struct{}

func (DefaultLogger) Infof(format string, args ...interface{}) {
	_ = log.Output(2, "INFO: "+redact.Sprintf(format, args...).StripMarkers())
}

func (DefaultLogger) Errorf(format string, args ...interface{}) {
	_ = log.Output(2, "ERROR: "+redact.Sprintf(format, args...).StripMarkers())
}

func (DefaultLogger) Fatalf(format string, args ...interface{}) {
	_ = log.Output(2, "FATAL: "+redact.Sprintf(format, args...).StripMarkers())
	os.Exit(1)
}
