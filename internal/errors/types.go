// Package errors holds the small error vocabulary shared by docsite
// components. Failures in the watch pipeline are logged rather than
// returned, so the types here mostly carry context for log lines.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeNetwork  ErrorType = "network"
	ErrorTypeContent  ErrorType = "content"
	ErrorTypeInternal ErrorType = "internal"
)

// DocsiteError is a structured error with the operation and path it
// concerns.
type DocsiteError struct {
	Type    ErrorType
	Op      string
	Path    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *DocsiteError) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, ": ")
	if e.Cause != nil {
		if result == "" {
			return e.Cause.Error()
		}
		result += ": " + e.Cause.Error()
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *DocsiteError) Unwrap() error {
	return e.Cause
}

// Is matches another DocsiteError of the same type and operation.
func (e *DocsiteError) Is(target error) bool {
	var t *DocsiteError
	if errors.As(target, &t) {
		return e.Type == t.Type && (t.Op == "" || e.Op == t.Op)
	}

	return false
}

// NewIOError wraps a filesystem failure.
func NewIOError(op, path string, cause error) *DocsiteError {
	return &DocsiteError{Type: ErrorTypeIO, Op: op, Path: path, Cause: cause}
}

// NewConfigError reports an invalid configuration value.
func NewConfigError(field, format string, args ...interface{}) *DocsiteError {
	return &DocsiteError{
		Type:    ErrorTypeConfig,
		Op:      field,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewNetworkError wraps a socket or listener failure.
func NewNetworkError(op, addr string, cause error) *DocsiteError {
	return &DocsiteError{Type: ErrorTypeNetwork, Op: op, Path: addr, Cause: cause}
}

// NewContentError reports a document that could not be parsed.
func NewContentError(op, path string, cause error) *DocsiteError {
	return &DocsiteError{Type: ErrorTypeContent, Op: op, Path: path, Cause: cause}
}

// IsType reports whether any error in err's chain is a DocsiteError of t.
func IsType(err error, t ErrorType) bool {
	var de *DocsiteError
	for err != nil {
		if errors.As(err, &de) {
			if de.Type == t {
				return true
			}
			err = de.Cause
			continue
		}
		return false
	}
	return false
}
