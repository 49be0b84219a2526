// Package logging configures logrus for nostrid and hands out
// package-scoped entries.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Configure sets the level and formatter of the standard logger.
// format is "text" or "json".
func Configure(level, format string, out io.Writer) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	if out != nil {
		logrus.SetOutput(out)
	}
	return nil
}

// For returns an entry on the standard logger tagged with pkg.
func For(pkg string) *logrus.Entry {
	return logrus.WithField("package", pkg)
}

// OperationFields creates standardized operation logging fields.
func OperationFields(operation, status string, additional ...logrus.Fields) logrus.Fields {
	fields := logrus.Fields{
		"operation": operation,
		"status":    status,
	}
	for _, extra := range additional {
		for k, v := range extra {
			fields[k] = v
		}
	}
	return fields
}
