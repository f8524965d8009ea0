package logsvc

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/simchatzion/ledger/core"
)

// NewStdLogger returns the process logger: JSON in production and staging, text otherwise.
func NewStdLogger(conf *core.Config, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stdout
	}
	std := logrus.New()
	std.SetOutput(out)

	level, err := logrus.ParseLevel(strings.ToLower(conf.LogLevel))
	if err != nil {
		std.Warnf("invalid log level %q, defaulting to info", conf.LogLevel)
		level = logrus.InfoLevel
	}
	std.SetLevel(level)

	switch strings.ToLower(conf.Env) {
	case "production", "prod", "staging":
		std.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	default:
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}
	return std
}

// NewTestLogger discards everything, errors included.
func NewTestLogger() *RollbarLogger {
	std := logrus.New()
	std.SetOutput(io.Discard)
	return &RollbarLogger{std: logrus.NewEntry(std)}
}
