package event

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogPolicy_HandlerError(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPolicy(slog.New(slog.NewJSONHandler(&buf, nil)))

	p.Report(&HandlerError{
		Handler:   "guard",
		Owner:     "regions",
		EventType: "block.break",
		Err:       errors.New("denied"),
	}, "could not pass event block.break to handler guard")

	out := buf.String()
	for _, want := range []string{`"handler":"guard"`, `"owner":"regions"`, `"event_type":"block.break"`, "denied"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %s", out, want)
		}
	}
}

func TestLogPolicy_PanicError(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPolicy(slog.New(slog.NewJSONHandler(&buf, nil)))

	p.Report(&PanicError{Handler: "h", EventType: "player.join", Value: "boom", Stack: "trace"}, "msg")

	out := buf.String()
	if !strings.Contains(out, `"stack":"trace"`) {
		t.Errorf("expected stack in output, got %q", out)
	}
}

func TestSafeReport(t *testing.T) {
	// Neither a nil policy nor a panicking one may escape.
	safeReport(nil, errors.New("x"), "msg")
	safeReport(PolicyFunc(func(error, string) { panic("bad policy") }), errors.New("x"), "msg")
	NopPolicy{}.Report(errors.New("x"), "msg")
}

func TestPanicError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	if !errors.Is(&PanicError{Value: cause}, cause) {
		t.Error("expected PanicError to unwrap an error value")
	}
	if errors.Unwrap(&PanicError{Value: "text"}) != nil {
		t.Error("expected nil unwrap for non-error value")
	}
}

func TestHandlerError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := &HandlerError{Handler: "h", EventType: "block", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("expected HandlerError to unwrap")
	}
	if !strings.Contains(err.Error(), "h") || !strings.Contains(err.Error(), "block") {
		t.Errorf("unexpected message %q", err.Error())
	}
}
