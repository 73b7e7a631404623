// Package errors defines the structured error types used across devloop and
// the suggestion-carrying errors printed to the operator when the server
// cannot keep running.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeNetwork  ErrorType = "network"
	ErrorTypeBuild    ErrorType = "build"
	ErrorTypeWatcher  ErrorType = "watcher"
	ErrorTypeInternal ErrorType = "internal"
)

// Error codes for the fatal conditions of the dev loop.
const (
	CodeBuildStart  = "BUILD_START"
	CodeNoPort      = "NO_PORT"
	CodeBind        = "BIND"
	CodeWatcherRead = "WATCHER_READ"
	CodeWatcherAdd  = "WATCHER_ADD"
	CodeConfig      = "CONFIG_INVALID"
	CodePublish     = "PUBLISH"
)

// DevError is a structured error type with context.
type DevError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *DevError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *DevError) Unwrap() error {
	return e.Cause
}

// Is matches another *DevError with the same type and code.
func (e *DevError) Is(target error) bool {
	var t *DevError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *DevError) WithContext(key string, value interface{}) *DevError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// NewBuildError creates an error for a build command that could not be run.
func NewBuildError(code, message string, cause error) *DevError {
	return &DevError{Type: ErrorTypeBuild, Code: code, Message: message, Cause: cause}
}

// NewNetworkError creates a network error.
func NewNetworkError(code, message string, cause error) *DevError {
	return &DevError{Type: ErrorTypeNetwork, Code: code, Message: message, Cause: cause}
}

// NewWatcherError creates a file watcher error.
func NewWatcherError(code, message string, cause error) *DevError {
	return &DevError{Type: ErrorTypeWatcher, Code: code, Message: message, Cause: cause}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string, cause error) *DevError {
	return &DevError{Type: ErrorTypeConfig, Code: CodeConfig, Message: message, Cause: cause}
}

// NewIOError creates a recoverable IO error.
func NewIOError(code, message string, cause error) *DevError {
	return &DevError{Type: ErrorTypeIO, Code: code, Message: message, Cause: cause, Recoverable: true}
}

// IsRecoverable reports whether err is a DevError marked recoverable.
func IsRecoverable(err error) bool {
	var de *DevError
	if errors.As(err, &de) {
		return de.Recoverable
	}

	return false
}

// IsFatal reports whether err must end the process. Every non-recoverable
// DevError is fatal; plain errors are treated as fatal as well.
func IsFatal(err error) bool {
	return err != nil && !IsRecoverable(err)
}

// ErrNoAvailablePort signals that every port in the retry range was taken.
var ErrNoAvailablePort = &DevError{Type: ErrorTypeNetwork, Code: CodeNoPort, Message: "no available port"}

// As is errors.As.
func As(err error, target interface{}) bool { return errors.As(err, target) }
