package query

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory classifies query errors.
type ErrorCategory string

const (
	ErrorCategoryNotSupported      ErrorCategory = "not_supported"
	ErrorCategoryInvalidPlan       ErrorCategory = "invalid_plan"
	ErrorCategoryTypeCoercion      ErrorCategory = "type_coercion"
	ErrorCategoryResultNotFound    ErrorCategory = "result_not_found"
	ErrorCategoryMoreThanOneResult ErrorCategory = "more_than_one_result"
	ErrorCategoryInvalidOperation  ErrorCategory = "invalid_operation"
	ErrorCategoryBackend           ErrorCategory = "backend"
)

// Error is returned by every stage of query compilation and execution.
type Error struct {
	Op       string        // The stage or operation that failed
	Category ErrorCategory // Error category
	Message  string        // Human-readable message
	Cause    error         // Underlying error
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("query %s failed", e.Op)}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " - ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// GetCategory returns the error category.
func (e *Error) GetCategory() ErrorCategory {
	return e.Category
}

func newError(op string, category ErrorCategory, cause error, format string, args ...any) *Error {
	return &Error{
		Op:       op,
		Category: category,
		Message:  fmt.Sprintf(format, args...),
		Cause:    cause,
	}
}

func notSupported(op, format string, args ...any) *Error {
	return newError(op, ErrorCategoryNotSupported, nil, format, args...)
}

func invalidPlan(op, format string, args ...any) *Error {
	return newError(op, ErrorCategoryInvalidPlan, nil, format, args...)
}

func typeCoercion(cause error, format string, args ...any) *Error {
	return newError("projection", ErrorCategoryTypeCoercion, cause, format, args...)
}

// ErrorCategoryOf returns the category of err, or "" when err is not a query error.
func ErrorCategoryOf(err error) ErrorCategory {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Category
	}
	return ""
}

func IsNotSupported(err error) bool {
	return ErrorCategoryOf(err) == ErrorCategoryNotSupported
}

func IsInvalidPlan(err error) bool {
	return ErrorCategoryOf(err) == ErrorCategoryInvalidPlan
}

func IsTypeCoercion(err error) bool {
	return ErrorCategoryOf(err) == ErrorCategoryTypeCoercion
}

// IsResultNotFound reports whether a single-result query matched nothing.
func IsResultNotFound(err error) bool {
	return ErrorCategoryOf(err) == ErrorCategoryResultNotFound
}

// IsMoreThanOneResult reports whether Single matched more than one entry.
func IsMoreThanOneResult(err error) bool {
	return ErrorCategoryOf(err) == ErrorCategoryMoreThanOneResult
}

func IsInvalidOperation(err error) bool {
	return ErrorCategoryOf(err) == ErrorCategoryInvalidOperation
}
