package errors

import (
	"errors"
	"fmt"
	"io/fs"
)

// Wrap wraps err in an *Error. An existing *Error keeps its location and
// context so the outer error still points at the offending file.
func Wrap(err error, errType ErrorType, code, message string) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return &Error{
			Type:     errType,
			Code:     code,
			Message:  message,
			Cause:    err,
			Context:  e.Context,
			FilePath: e.FilePath,
			Line:     e.Line,
			Column:   e.Column,
		}
	}
	return &Error{Type: errType, Code: code, Message: message, Cause: err}
}

// FileError wraps a failed file operation, choosing the not-found code when
// err says so.
func FileError(operation, path string, err error) *Error {
	if err == nil {
		return nil
	}
	code := ErrCodeFileRead
	switch {
	case errors.Is(err, fs.ErrNotExist):
		code = ErrCodeFileNotFound
	case operation == "write":
		code = ErrCodeFileWrite
	}
	return Wrap(err, ErrorTypeIO, code, fmt.Sprintf("cannot %s file", operation)).
		WithLocation(path, 0, 0).
		WithContext("operation", operation)
}

// ConfigurationError reports an invalid configuration setting.
func ConfigurationError(setting, message string, value interface{}) *Error {
	return NewConfigError(
		ErrCodeConfigInvalid,
		fmt.Sprintf("invalid configuration for %s: %s", setting, message),
	).WithContext("setting", setting).WithContext("value", value)
}

// Chain returns err and its causes from outermost to innermost.
func Chain(err error) []error {
	var chain []error
	for err != nil {
		chain = append(chain, err)
		err = errors.Unwrap(err)
	}
	return chain
}

// HasCode checks if any error in the chain carries code.
func HasCode(err error, code string) bool {
	for _, e := range Chain(err) {
		if se, ok := e.(*Error); ok && se.Code == code {
			return true
		}
	}
	return false
}
