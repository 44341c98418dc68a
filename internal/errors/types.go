// Package errors defines the structured error type and the diagnostic
// collector shared by the command line, the watcher and the preview server.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeTagSet     ErrorType = "tagset"
	ErrorTypeMarkup     ErrorType = "markup"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeFileRead         = "ERR_FILE_READ"
	ErrCodeFileWrite        = "ERR_FILE_WRITE"
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodeInvalidOrigin    = "ERR_INVALID_ORIGIN"
	ErrCodeTagSetInvalid    = "ERR_TAGSET_INVALID"
	ErrCodeTemplateInvalid  = "ERR_TEMPLATE_INVALID"
	ErrCodeMarkupInvalid    = "ERR_MARKUP_INVALID"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
	ErrCodeInternalError    = "ERR_INTERNAL"
)

// Error is a structured error carrying a category, a stable code and an
// optional source location.
type Error struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
	FilePath string
	Line     int
	Column   int
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, "["+e.Code+"]")
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)
	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += ": " + e.Cause.Error()
	}
	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same type and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithLocation adds file location information.
func (e *Error) WithLocation(filePath string, line, column int) *Error {
	e.FilePath = filePath
	e.Line = line
	e.Column = column
	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *Error {
	return &Error{Type: ErrorTypeValidation, Code: code, Message: message}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *Error {
	return &Error{Type: ErrorTypeIO, Code: code, Message: message, Cause: cause}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *Error {
	return &Error{Type: ErrorTypeConfig, Code: code, Message: message}
}

// NewTagSetError reports a tag definition file that cannot be used.
func NewTagSetError(code, message string, cause error) *Error {
	return &Error{Type: ErrorTypeTagSet, Code: code, Message: message, Cause: cause}
}

// NewMarkupError reports a document that fell back to its raw input.
func NewMarkupError(message string) *Error {
	return &Error{Type: ErrorTypeMarkup, Code: ErrCodeMarkupInvalid, Message: message}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *Error {
	return &Error{Type: ErrorTypeInternal, Code: code, Message: message, Cause: cause}
}

func hasType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsConfigError checks if an error is configuration related.
func IsConfigError(err error) bool { return hasType(err, ErrorTypeConfig) }

// IsIOError checks if an error is I/O related.
func IsIOError(err error) bool { return hasType(err, ErrorTypeIO) }

// IsTagSetError checks if an error comes from a tag definition file.
func IsTagSetError(err error) bool { return hasType(err, ErrorTypeTagSet) }

// IsMarkupError checks if an error reports invalid markup.
func IsMarkupError(err error) bool { return hasType(err, ErrorTypeMarkup) }

// Logger is the subset of logging.Logger the handler needs.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// Handler logs errors at a level chosen by their type.
type Handler struct {
	logger Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger Logger) *Handler {
	return &Handler{logger: logger}
}

// Handle logs err. Markup and validation problems are warnings, anything
// else is an error.
func (h *Handler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var e *Error
	if !errors.As(err, &e) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	fields := []interface{}{"type", e.Type, "code", e.Code}
	if e.FilePath != "" {
		fields = append(fields, "file", e.FilePath)
	}

	switch e.Type {
	case ErrorTypeMarkup, ErrorTypeValidation:
		h.logger.Warn(ctx, err, "Document problem", fields...)
	default:
		h.logger.Error(ctx, err, "Error occurred", fields...)
	}
}
