// Package observability provides the logger used throughout the vault
// engine.
package observability

import (
	"log/slog"

	"github.com/getsentry/sentry-go"
)

// CoreLogger writes messages to an slog Logger and reports captured
// errors to Sentry.
type CoreLogger struct {
	*slog.Logger

	sentryHub *sentry.Hub // nil if Sentry is disabled
}

// NewCoreLogger returns a new logger that writes messages to the slog
// Logger and uploads captured errors using a clone of the sentryHub.
//
// sentryHub can be set to nil to disable Sentry.
func NewCoreLogger(logger *slog.Logger, sentryHub *sentry.Hub) *CoreLogger {
	if sentryHub != nil {
		sentryHub = sentryHub.Clone()
	}

	return &CoreLogger{
		Logger:    logger,
		sentryHub: sentryHub,
	}
}

// With returns a derived logger that includes the given attributes in
// each message.
func (cl *CoreLogger) With(args ...any) *CoreLogger {
	var sentryHub *sentry.Hub
	if cl.sentryHub != nil {
		sentryHub = cl.sentryHub.Clone()
	}

	return &CoreLogger{
		Logger:    cl.Logger.With(args...),
		sentryHub: sentryHub,
	}
}

// CaptureError logs an error and sends it to Sentry.
func (cl *CoreLogger) CaptureError(err error, args ...any) {
	cl.Error(err.Error(), args...)

	if cl.sentryHub != nil {
		cl.sentryHub.CaptureException(err)
	}
}

// CaptureWarn logs a warning and sends it to Sentry.
func (cl *CoreLogger) CaptureWarn(msg string, args ...any) {
	cl.Warn(msg, args...)

	if cl.sentryHub != nil {
		cl.sentryHub.CaptureMessage(msg)
	}
}
