// Package log configures logrus and renders errors for log output.
package log

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Configure sets the level and format of l. Supported
// formats are text and json.
func Configure(l *logrus.Logger, level string, format string, out io.Writer) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "parsing log level")
	}

	switch format {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return errors.Errorf("unsupported log format %q", format)
	}

	if out != nil {
		l.SetOutput(out)
	}

	l.SetLevel(lvl)
	return nil
}

// FormatError returns the message of err followed by the stack trace of the
// innermost error that carries one.
func FormatError(err error) string {
	var st stackTracer
	for e := err; e != nil; e = errors.Unwrap(e) {
		if s, ok := e.(stackTracer); ok {
			st = s
		}
	}

	if st == nil {
		return fmt.Sprint(err)
	}

	b := &bytes.Buffer{}
	fmt.Fprintf(b, "%s\n", err)
	for _, f := range st.StackTrace() {
		fmt.Fprintf(b, "  %+v\n", f)
	}

	return b.String()
}
