package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Connection errors (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "MF1001"
	ErrCodeConnectionTimeout    ErrorCode = "MF1002"
	ErrCodeAuthenticationFailed ErrorCode = "MF1003"
	ErrCodeNetworkUnavailable   ErrorCode = "MF1004"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound   ErrorCode = "MF2001"
	ErrCodeConfigInvalid    ErrorCode = "MF2002"
	ErrCodeConfigMissing    ErrorCode = "MF2003"
	ErrCodeConfigPermission ErrorCode = "MF2004"

	// Project errors (3xxx)
	ErrCodeProjectNotFound   ErrorCode = "MF3001"
	ErrCodeModelNotFound     ErrorCode = "MF3002"
	ErrCodeSourceNotFound    ErrorCode = "MF3003"
	ErrCodeProjectInvalid    ErrorCode = "MF3004"
	ErrCodeRepoSyncFailed    ErrorCode = "MF3005"
	ErrCodeDuplicateModel    ErrorCode = "MF3006"
	ErrCodeDependencyCycle   ErrorCode = "MF3007"
	ErrCodeCompilationFailed ErrorCode = "MF3008"

	// SQL execution errors (4xxx)
	ErrCodeSQLSyntax         ErrorCode = "MF4001"
	ErrCodeSQLPermission     ErrorCode = "MF4002"
	ErrCodeSQLTimeout        ErrorCode = "MF4003"
	ErrCodeSQLTransaction    ErrorCode = "MF4004"
	ErrCodeSQLObjectNotFound ErrorCode = "MF4005"
	ErrCodeSQLExecution      ErrorCode = "MF4006"
	ErrCodeMaterialization   ErrorCode = "MF4007"

	// File system errors (5xxx)
	ErrCodeFileNotFound   ErrorCode = "MF5001"
	ErrCodeFilePermission ErrorCode = "MF5002"
	ErrCodeFileOperation  ErrorCode = "MF5003"

	// Validation errors (6xxx)
	ErrCodeValidationFailed ErrorCode = "MF6001"
	ErrCodeCheckFailed      ErrorCode = "MF6002"
	ErrCodeInvalidInput     ErrorCode = "MF6003"
	ErrCodeRequiredField    ErrorCode = "MF6004"

	// Security errors (7xxx)
	ErrCodeEncryptionFailed  ErrorCode = "MF7001"
	ErrCodeCredentialMissing ErrorCode = "MF7002"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "MF9001"
	ErrCodeTimeout            ErrorCode = "MF9002"
	ErrCodeResourceExhausted  ErrorCode = "MF9003"
	ErrCodeServiceUnavailable ErrorCode = "MF9004"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // System failure, requires immediate attention
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed, but system continues
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"     // Informational, not an error
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		Severity:    SeverityError,
		Context:     make(map[string]interface{}),
		Stack:       captureStack(),
		Timestamp:   time.Now(),
		Recoverable: false,
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// If wrapping another AppError, inherit some properties
	if ae, ok := err.(*AppError); ok {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

// captureStack captures the current stack trace
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// ConnectionError creates a connection-related error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSeverity(SeverityError).
		WithSuggestions(
			"Check your network connection",
			"Verify the warehouse endpoint is accessible",
			"Check firewall settings",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'martflow setup' to reconfigure",
			"Refer to the configuration documentation",
		)
}

// SQLError creates an SQL execution error
func SQLError(message string, query string, cause error) *AppError {
	err := Wrap(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncateString(query, 200))

	if strings.Contains(message, "permission") || strings.Contains(message, "access denied") {
		err.Code = ErrCodeSQLPermission
		_ = err.WithSuggestions(
			"Check user permissions in the warehouse",
			"Verify the role has required privileges",
			"Contact your warehouse administrator",
		)
	} else if strings.Contains(message, "timeout") {
		err.Code = ErrCodeSQLTimeout
		_ = err.WithSuggestions(
			"Optimize the query for better performance",
			"Increase the query timeout setting",
			"Check warehouse compute size",
		)
	}

	return err
}

// CompileError creates a model compilation error
func CompileError(model string, cause error) *AppError {
	return Wrap(cause, ErrCodeCompilationFailed, fmt.Sprintf("Failed to compile model %s", model)).
		WithContext("model", model).
		WithSuggestions(
			"Check template syntax in the model file",
			"Verify every ref target exists in the project",
			"Verify every source is declared in sources.yml",
		)
}

// CheckError creates a data check failure error
func CheckError(check string, model string, failures int64) *AppError {
	return New(ErrCodeCheckFailed, fmt.Sprintf("Check %s failed on %s", check, model)).
		WithContext("check", check).
		WithContext("model", model).
		WithContext("failing_rows", failures).
		WithSuggestions(
			"Inspect the failing rows with the compiled check query",
			"Fix the upstream data or relax the check severity",
		)
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
