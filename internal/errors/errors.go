package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrTypeSchemaFormat   ErrorType = "schema_format"
	ErrTypeDuplicateTable ErrorType = "duplicate_table"
	ErrTypeBackend        ErrorType = "backend_unavailable"
	ErrTypeParseIO        ErrorType = "parse_io"
	ErrTypeDatabase       ErrorType = "database"
	ErrTypeValidation     ErrorType = "validation"
	ErrTypeNotFound       ErrorType = "not_found"
	ErrTypeConfig         ErrorType = "config"
	ErrTypeNetwork        ErrorType = "network"
	ErrTypeInternal       ErrorType = "internal"
)

// Error represents a structured error with type and optional suggestions
type Error struct {
	Type        ErrorType
	Message     string
	Cause       error
	Suggestions []string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithSuggestion adds a suggestion for resolving the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// New creates a new structured error
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new structured error with formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with formatted message
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Type == errType
	}

	return false
}

// GetType returns the error type if it's a structured error
func GetType(err error) ErrorType {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Type
	}

	return ErrTypeInternal
}

// GetSuggestions collects suggestions from every structured error in the chain
func GetSuggestions(err error) []string {
	var suggestions []string

	for err != nil {
		var structErr *Error
		if !errors.As(err, &structErr) {
			break
		}

		suggestions = append(suggestions, structErr.Suggestions...)
		err = structErr.Cause
	}

	return suggestions
}

// NewConfigError creates a configuration error with suggestions
func NewConfigError(message, field string) *Error {
	err := New(ErrTypeConfig, message)
	if field != "" {
		err.Message = fmt.Sprintf("%s (field: %s)", message, field)
	}

	return err.
		WithSuggestion("Check your configuration file syntax").
		WithSuggestion("Run with --help to see valid configuration options")
}

// NewSchemaFormatError reports a schema file whose content is malformed.
// file may be empty when the content did not come from disk.
func NewSchemaFormatError(file, format string, args ...interface{}) *Error {
	message := fmt.Sprintf(format, args...)
	if file != "" {
		message = fmt.Sprintf("%s: %s", file, message)
	}

	return New(ErrTypeSchemaFormat, message)
}

// NewDuplicateTableError reports a table name claimed by more than one schema file
func NewDuplicateTableError(tableName string, files []string) *Error {
	return Newf(ErrTypeDuplicateTable, "table %q is defined by multiple files: %v", tableName, files).
		WithSuggestion("Rename or remove one of the files so each table_name appears once")
}

// NewBackendError wraps a failure of the vector index or embedding backend
func NewBackendError(err error, operation string) *Error {
	return Wrapf(err, ErrTypeBackend, "index backend failed during %s", operation)
}

// NewParseIOError wraps a failure to read a schema file or directory
func NewParseIOError(err error, path string) *Error {
	return Wrapf(err, ErrTypeParseIO, "failed to read %s", path)
}
