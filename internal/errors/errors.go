// Package errors provides structured error handling for the capture pipeline.
// Codes follow the failure taxonomy of the system: device, engine, persistence,
// and lifecycle errors are handled differently by callers, so each carries a
// machine-checkable code.
package errors

import (
	"errors"
	"fmt"
)

// Code classifies an error for handling decisions.
type Code int

const (
	Unknown Code = iota
	DeviceOpenFailed
	DeviceStatus
	EngineUnavailable
	EngineTimeout
	EngineFailed
	PersistenceFailed
	LifecycleInvalid
	ConfigInvalid
)

var codeNames = map[Code]string{
	Unknown:           "UNKNOWN",
	DeviceOpenFailed:  "DEVICE_OPEN_FAILED",
	DeviceStatus:      "DEVICE_STATUS",
	EngineUnavailable: "ENGINE_UNAVAILABLE",
	EngineTimeout:     "ENGINE_TIMEOUT",
	EngineFailed:      "ENGINE_FAILED",
	PersistenceFailed: "PERSISTENCE_FAILED",
	LifecycleInvalid:  "LIFECYCLE_INVALID",
	ConfigInvalid:     "CONFIG_INVALID",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "UNKNOWN"
}

// AppError is the base error type with a structured code.
type AppError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Cause != nil {
		s += fmt.Sprintf(": %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates an AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates an AppError with a formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a code and message.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// CodeOf returns the code of err, or Unknown for foreign errors.
// Wrapped AppErrors are found through the error chain.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return Unknown
}

// IsCode checks if an error carries a specific code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether the error is plausibly transient.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case EngineUnavailable, EngineTimeout:
		return true
	default:
		return false
	}
}
