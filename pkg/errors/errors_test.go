package errors

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
	}{
		{
			name: "basic error",
			err:  New(ErrCodeConnectionFailed, "Connection failed"),
		},
		{
			name: "error with suggestions",
			err: New(ErrCodeConnectionFailed, "Connection failed").
				WithSuggestions("Check network", "Verify credentials"),
		},
		{
			name: "error with context",
			err: New(ErrCodeConnectionFailed, "Connection failed").
				WithContext("account", "xy12345").
				WithContext("warehouse", "COMPUTE_WH"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != ErrCodeConnectionFailed {
				t.Errorf("Expected code %s, got %s", ErrCodeConnectionFailed, tt.err.Code)
			}
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	baseErr := fmt.Errorf("database connection refused")

	appErr := Wrap(baseErr, ErrCodeConnectionFailed, "Failed to connect to warehouse")

	if appErr.Cause != baseErr {
		t.Error("Wrapped error should contain original error as cause")
	}

	if appErr.Code != ErrCodeConnectionFailed {
		t.Errorf("Expected code %s, got %s", ErrCodeConnectionFailed, appErr.Code)
	}
}

func TestCompileError(t *testing.T) {
	cause := fmt.Errorf("template: int_order_items:3: function \"reff\" not defined")
	err := CompileError("int_order_items", cause)

	if err.Code != ErrCodeCompilationFailed {
		t.Errorf("Expected code %s, got %s", ErrCodeCompilationFailed, err.Code)
	}
	if err.Context["model"] != "int_order_items" {
		t.Errorf("Expected model context, got %v", err.Context["model"])
	}
}

func TestCheckError(t *testing.T) {
	err := CheckError("unique_fct_orders_order_key", "fct_orders", 4)

	if err.Code != ErrCodeCheckFailed {
		t.Errorf("Expected code %s, got %s", ErrCodeCheckFailed, err.Code)
	}
	if err.Context["failing_rows"] != int64(4) {
		t.Errorf("Expected 4 failing rows in context, got %v", err.Context["failing_rows"])
	}
}

func TestRetryLogic(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	config := &RetryConfig{
		MaxRetries:   maxAttempts - 1,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       false,
		RetryableError: func(err error) bool {
			return true
		},
	}

	ctx := context.Background()

	err := Retry(ctx, config, func(ctx context.Context) error {
		attempts++
		if attempts < maxAttempts {
			return New(ErrCodeConnectionTimeout, "Timeout").AsRecoverable()
		}
		return nil
	})

	if err != nil {
		t.Error("Expected retry to succeed")
	}

	if attempts != maxAttempts {
		t.Errorf("Expected %d attempts, got %d", maxAttempts, attempts)
	}
}

func TestRetryNonRetryable(t *testing.T) {
	attempts := 0
	ctx := context.Background()

	err := Retry(ctx, DefaultRetryConfig(), func(ctx context.Context) error {
		attempts++
		return New(ErrCodeSQLSyntax, "syntax error near 'selct'")
	})

	if err == nil {
		t.Error("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for a non-retryable error, got %d", attempts)
	}
}

func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, 100*time.Millisecond)
	ctx := context.Background()

	err := cb.Execute(ctx, func() error {
		return fmt.Errorf("failure 1")
	})
	if err == nil {
		t.Error("Expected error")
	}

	err = cb.Execute(ctx, func() error {
		return fmt.Errorf("failure 2")
	})
	if err == nil {
		t.Error("Expected error")
	}

	// Circuit should be open now
	err = cb.Execute(ctx, func() error {
		return nil
	})
	if err == nil {
		t.Error("Expected circuit breaker to reject execution")
	}
	if GetErrorCode(err) != ErrCodeServiceUnavailable {
		t.Errorf("Expected %s, got %s", ErrCodeServiceUnavailable, GetErrorCode(err))
	}

	// After the reset timeout the circuit transitions to half-open
	time.Sleep(150 * time.Millisecond)

	err = cb.Execute(ctx, func() error {
		return nil
	})
	if err != nil {
		t.Errorf("Expected half-open circuit to allow execution, got %v", err)
	}
	if cb.GetState() != "closed" {
		t.Errorf("Expected circuit to close after success, got %s", cb.GetState())
	}
}
