package event

import (
	"errors"
	"log/slog"
)

// ExceptionPolicy receives handler failures captured during dispatch.
//
// Report is called once per failed handler invocation. It must not block
// for long, since it runs inline on the dispatching goroutine. A panic inside
// Report is recovered and discarded.
type ExceptionPolicy interface {
	Report(err error, message string)
}

// PolicyFunc is a function adapter for ExceptionPolicy.
type PolicyFunc func(err error, message string)

// Report implements ExceptionPolicy.
func (f PolicyFunc) Report(err error, message string) {
	f(err, message)
}

// NopPolicy discards every report.
type NopPolicy struct{}

// Report implements ExceptionPolicy.
func (NopPolicy) Report(error, string) {}

// LogPolicy writes handler failures to a structured logger.
type LogPolicy struct {
	logger *slog.Logger
}

// NewLogPolicy creates a policy that logs through logger.
// A nil logger uses slog.Default().
func NewLogPolicy(logger *slog.Logger) *LogPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPolicy{logger: logger}
}

// Report implements ExceptionPolicy.
func (p *LogPolicy) Report(err error, message string) {
	attrs := []any{slog.Any("error", err)}

	var herr *HandlerError
	var perr *PanicError
	switch {
	case errors.As(err, &perr):
		attrs = append(attrs,
			slog.String("handler", perr.Handler),
			slog.String("owner", perr.Owner),
			slog.String("event_type", perr.EventType.String()),
			slog.String("stack", perr.Stack),
		)
	case errors.As(err, &herr):
		attrs = append(attrs,
			slog.String("handler", herr.Handler),
			slog.String("owner", herr.Owner),
			slog.String("event_type", herr.EventType.String()),
		)
	}

	p.logger.Error(message, attrs...)
}

// safeReport delivers a report, swallowing any panic raised by the policy.
func safeReport(p ExceptionPolicy, err error, message string) {
	if p == nil {
		return
	}
	defer func() { _ = recover() }()
	p.Report(err, message)
}
