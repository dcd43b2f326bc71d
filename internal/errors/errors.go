package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message
func Newf(code, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the code of the outermost AppError in the chain, otherwise "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// HasCode reports whether any AppError in the chain carries code
func HasCode(err error, code string) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Predefined error codes
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeDatabaseError   = "DATABASE_ERROR"
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeInvalidInput    = "INVALID_INPUT"

	// Expression engine
	CodeUnknownVariable  = "UNKNOWN_VARIABLE"
	CodeMissingStatistic = "MISSING_STATISTIC"
	CodeUnsafeExpression = "UNSAFE_EXPRESSION"
	CodeEvaluationError  = "EVALUATION_ERROR"

	// Pipeline
	CodeDuplicateColumnName       = "DUPLICATE_COLUMN_NAME"
	CodeInsufficientReferenceData = "INSUFFICIENT_REFERENCE_DATA"
	CodeEmptyDataset              = "EMPTY_DATASET"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string) *AppError {
	return New(CodeDatabaseError, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func UnknownVariable(name string) *AppError {
	return New(CodeUnknownVariable, fmt.Sprintf("unknown variable %q", name))
}

func MissingStatistic(column, statistic string) *AppError {
	return New(CodeMissingStatistic, fmt.Sprintf("column %q has no %s statistic", column, statistic))
}

func UnsafeExpression(token string) *AppError {
	return New(CodeUnsafeExpression, fmt.Sprintf("expression contains forbidden token %q", token))
}

func EvaluationError(message string) *AppError {
	return New(CodeEvaluationError, message)
}

func DuplicateColumnName(name string) *AppError {
	return New(CodeDuplicateColumnName, fmt.Sprintf("column %q already exists", name))
}

func InsufficientReferenceData(column, reason string) *AppError {
	return New(CodeInsufficientReferenceData, fmt.Sprintf("cannot interpolate %q: %s", column, reason))
}

func EmptyDataset() *AppError {
	return New(CodeEmptyDataset, "dataset has no rows")
}
