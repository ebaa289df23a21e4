// Package domain defines core types, interfaces, and errors for the query
// safety engine.
package domain

import (
	"errors"
	"fmt"
)

// InjectionDetectedError indicates the question matched prompt-injection
// patterns. Terminal: the request never reaches the generator.
type InjectionDetectedError struct {
	Message         string
	MatchedPatterns []string
	RiskScore       float64
}

func (e *InjectionDetectedError) Error() string { return e.Message }

// AccessDeniedError indicates the role may not read one or more referenced
// tables. Terminal: retrying cannot change the role.
type AccessDeniedError struct {
	Message      string
	DeniedTables []string
}

func (e *AccessDeniedError) Error() string { return e.Message }

// GenerationFailedError indicates the oracle returned an unusable response
// (malformed contract, empty SQL, or isReadOnly=false). Retryable.
type GenerationFailedError struct {
	Message string
}

func (e *GenerationFailedError) Error() string { return e.Message }

// SchemaValidationError indicates the candidate SQL referenced unknown
// tables/columns or a non-SELECT verb. Retryable with error context.
type SchemaValidationError struct {
	Message string
}

func (e *SchemaValidationError) Error() string { return e.Message }

// SyntaxError indicates the candidate SQL failed the dry-run parse check.
// Retryable with error context.
type SyntaxError struct {
	Message string
}

func (e *SyntaxError) Error() string { return e.Message }

// SecurityValidationError indicates the AST layer found a tenant-isolation
// breach or a forbidden construct. Terminal for the attempt; a fresh
// generation may still be attempted.
type SecurityValidationError struct {
	Message    string
	Violations []string
}

func (e *SecurityValidationError) Error() string { return e.Message }

// ExecutionTimeoutError indicates the store call exceeded the role's
// wall-clock budget and was abandoned.
type ExecutionTimeoutError struct {
	Message string
}

func (e *ExecutionTimeoutError) Error() string { return e.Message }

// ExecutionError indicates the store rejected or failed the statement.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string { return e.Message }

// PayloadTooLargeError indicates the serialized result exceeded the payload
// ceiling. The caller is asked to narrow the query.
type PayloadTooLargeError struct {
	Message string
}

func (e *PayloadTooLargeError) Error() string { return e.Message }

// ResultValidationError indicates the sanity checker rejected the result
// outright (implausible values or a failed cross-check).
type ResultValidationError struct {
	Message string
}

func (e *ResultValidationError) Error() string { return e.Message }

// ErrInjectionDetected creates an InjectionDetectedError with a formatted message.
func ErrInjectionDetected(format string, args ...interface{}) *InjectionDetectedError {
	return &InjectionDetectedError{Message: fmt.Sprintf(format, args...)}
}

// ErrAccessDenied creates an AccessDeniedError with a formatted message.
func ErrAccessDenied(format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{Message: fmt.Sprintf(format, args...)}
}

// ErrGenerationFailed creates a GenerationFailedError with a formatted message.
func ErrGenerationFailed(format string, args ...interface{}) *GenerationFailedError {
	return &GenerationFailedError{Message: fmt.Sprintf(format, args...)}
}

// ErrSchemaValidation creates a SchemaValidationError with a formatted message.
func ErrSchemaValidation(format string, args ...interface{}) *SchemaValidationError {
	return &SchemaValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrSyntax creates a SyntaxError with a formatted message.
func ErrSyntax(format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{Message: fmt.Sprintf(format, args...)}
}

// ErrSecurityValidation creates a SecurityValidationError with a formatted message.
func ErrSecurityValidation(format string, args ...interface{}) *SecurityValidationError {
	return &SecurityValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrExecutionTimeout creates an ExecutionTimeoutError with a formatted message.
func ErrExecutionTimeout(format string, args ...interface{}) *ExecutionTimeoutError {
	return &ExecutionTimeoutError{Message: fmt.Sprintf(format, args...)}
}

// ErrExecution creates an ExecutionError with a formatted message.
func ErrExecution(format string, args ...interface{}) *ExecutionError {
	return &ExecutionError{Message: fmt.Sprintf(format, args...)}
}

// ErrPayloadTooLarge creates a PayloadTooLargeError with a formatted message.
func ErrPayloadTooLarge(format string, args ...interface{}) *PayloadTooLargeError {
	return &PayloadTooLargeError{Message: fmt.Sprintf(format, args...)}
}

// ErrResultValidation creates a ResultValidationError with a formatted message.
func ErrResultValidation(format string, args ...interface{}) *ResultValidationError {
	return &ResultValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsTerminal reports whether the error must never be retried: injection
// blocks and access denials are final regardless of remaining attempts.
func IsTerminal(err error) bool {
	var inj *InjectionDetectedError
	var denied *AccessDeniedError
	return errors.As(err, &inj) || errors.As(err, &denied)
}

// IsRetryable reports whether a fresh generation attempt, seeded with this
// error as context, may succeed.
func IsRetryable(err error) bool {
	var gen *GenerationFailedError
	var schema *SchemaValidationError
	var syn *SyntaxError
	var sec *SecurityValidationError
	return errors.As(err, &gen) || errors.As(err, &schema) ||
		errors.As(err, &syn) || errors.As(err, &sec)
}

// ViolationKind classifies security-relevant failures for audit alerting.
// Returns "" for errors that carry no violation classification.
func ViolationKind(err error) string {
	var inj *InjectionDetectedError
	if errors.As(err, &inj) {
		return ViolationInjection
	}
	var denied *AccessDeniedError
	if errors.As(err, &denied) {
		return ViolationAccessDenied
	}
	var sec *SecurityValidationError
	if errors.As(err, &sec) {
		return ViolationSecurity
	}
	return ""
}

// Violation classifications attached to audit entries.
const (
	ViolationInjection    = "PROMPT_INJECTION"
	ViolationAccessDenied = "ACCESS_DENIED"
	ViolationSecurity     = "SECURITY_VALIDATION"
	ViolationRateLimit    = "RATE_LIMIT"
)
