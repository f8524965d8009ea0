package logsvc

import (
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/sirupsen/logrus"

	"github.com/simchatzion/ledger/core"
)

// RollbarLogger reports to Rollbar, when enabled, and always logs locally.
type RollbarLogger struct {
	std     *logrus.Entry
	enabled bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *logrus.Logger, conf *core.Config, component string) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)

	l := &RollbarLogger{std: std.WithField("component", component)}
	l.Enable(conf.RollbarToken != "" && !conf.TestMode)
	return l
}

func (l *RollbarLogger) Enable(enabled bool) {
	l.enabled = enabled
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, core.LogFields
func (l *RollbarLogger) prepare(msg string, args []interface{}) (*logrus.Entry, []interface{}) {
	entry := l.std
	rbArgs := make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case core.LogFields:
			entry = entry.WithFields(logrus.Fields(a))
			rbArgs = append(rbArgs, map[string]interface{}(a))
		case error:
			entry = entry.WithError(a)
			rbArgs = append(rbArgs, a)
		default:
			rbArgs = append(rbArgs, a)
		}
	}
	return entry, rbArgs
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	entry, rbArgs := l.prepare(msg, args)
	if l.enabled {
		rollbar.Debug(rbArgs...)
	}
	entry.Debug(msg)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	entry, rbArgs := l.prepare(msg, args)
	if l.enabled {
		rollbar.Info(rbArgs...)
	}
	entry.Info(msg)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	entry, rbArgs := l.prepare(msg, args)
	if l.enabled {
		rollbar.Warning(rbArgs...)
	}
	entry.Warn(msg)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	entry, rbArgs := l.prepare(msg, args)
	if l.enabled {
		rollbar.Error(rbArgs...)
	}
	entry.Error(msg)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	entry, rbArgs := l.prepare(msg, args)
	if l.enabled {
		rollbar.Critical(rbArgs...)
		rollbar.Wait()
	}
	entry.Fatal(msg)
}

// Close flushes pending Rollbar reports.
func (l *RollbarLogger) Close() {
	if l.enabled {
		rollbar.Close()
	}
}
