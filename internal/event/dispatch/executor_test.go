package dispatch

import (
	"context"
	"errors"
	"testing"
)

type unwindSignal struct{ id int }

func (unwindSignal) Unwind() {}

func TestResult_IsSuccess(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		expected bool
	}{
		{"success", Result{Success: true}, true},
		{"error", Result{Success: false, Error: errors.New("error")}, false},
		{"panic", Result{Success: false, Panicked: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.IsSuccess(); got != tt.expected {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestResult_IsErrorIsPanic(t *testing.T) {
	errResult := Result{Error: errors.New("error")}
	panicResult := Result{Panicked: true, PanicValue: "boom"}

	if !errResult.IsError() || errResult.IsPanic() {
		t.Errorf("error result misclassified: %+v", errResult)
	}
	if panicResult.IsError() || !panicResult.IsPanic() {
		t.Errorf("panic result misclassified: %+v", panicResult)
	}
}

func TestExecutor_Execute_Success(t *testing.T) {
	executor := NewExecutor()

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "value")

	var called bool
	result := executor.Execute(ctx, func(ctx context.Context) error {
		called = true
		if ctx.Value(ctxKey{}) != "value" {
			t.Error("invocation did not receive the caller's context")
		}
		return nil
	})

	if !result.IsSuccess() {
		t.Errorf("expected success, got %+v", result)
	}
	if !called {
		t.Error("invocation was not called")
	}
}

func TestExecutor_Execute_Error(t *testing.T) {
	executor := NewExecutor()
	expectedErr := errors.New("handler error")

	result := executor.Execute(context.Background(), func(ctx context.Context) error {
		return expectedErr
	})

	if result.IsSuccess() {
		t.Error("expected failure")
	}
	if !errors.Is(result.Error, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, result.Error)
	}
}

func TestExecutor_Execute_Panic(t *testing.T) {
	var panicHandlerCalled bool
	var capturedPanicValue any

	executor := NewExecutor(
		WithExecutorPanicHandler(func(panicValue any, stack []byte) {
			panicHandlerCalled = true
			capturedPanicValue = panicValue
		}),
	)

	result := executor.Execute(context.Background(), func(ctx context.Context) error {
		panic("test panic")
	})

	if !result.IsPanic() {
		t.Error("expected IsPanic() to be true")
	}
	if result.PanicValue != "test panic" {
		t.Errorf("expected panic value 'test panic', got %v", result.PanicValue)
	}
	if len(result.PanicStack) == 0 {
		t.Error("expected non-empty stack trace")
	}
	if !panicHandlerCalled {
		t.Error("panic handler was not called")
	}
	if capturedPanicValue != "test panic" {
		t.Errorf("panic handler received wrong value: %v", capturedPanicValue)
	}
}

func TestExecutor_Execute_PanicHandlerPanics(t *testing.T) {
	executor := NewExecutor(
		WithExecutorPanicHandler(func(panicValue any, stack []byte) {
			panic("handler of handler")
		}),
	)

	result := executor.Execute(context.Background(), func(ctx context.Context) error {
		panic("boom")
	})

	if !result.IsPanic() {
		t.Errorf("expected panic result, got %+v", result)
	}
}

func TestExecutor_Execute_UnwinderPassesThrough(t *testing.T) {
	var panicHandlerCalled bool
	executor := NewExecutor(
		WithExecutorPanicHandler(func(panicValue any, stack []byte) {
			panicHandlerCalled = true
		}),
	)

	defer func() {
		r := recover()
		sig, ok := r.(unwindSignal)
		if !ok || sig.id != 7 {
			t.Errorf("expected unwindSignal{7} to escape, got %v", r)
		}
		if panicHandlerCalled {
			t.Error("panic handler must not see unwind signals")
		}
	}()

	executor.Execute(context.Background(), func(ctx context.Context) error {
		panic(unwindSignal{id: 7})
	})
	t.Error("Execute should not return normally")
}

func TestExecutor_Execute_NestedDuration(t *testing.T) {
	executor := NewExecutor()

	inner := executor.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	outer := executor.Execute(context.Background(), func(ctx context.Context) error {
		executor.Execute(ctx, func(ctx context.Context) error { return nil })
		return nil
	})

	if inner.Duration < 0 || outer.Duration < 0 {
		t.Errorf("durations must be non-negative: %v %v", inner.Duration, outer.Duration)
	}
}
