package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrBackendUnavailable = errors.New("execution backend unavailable")
	ErrExecutionFailed    = errors.New("sandbox execution failed")
	ErrTimeout            = errors.New("sandbox execution timed out")
	ErrContractViolation  = errors.New("planner action contract violation")
	ErrIncomplete         = errors.New("analysis incomplete")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// BackendUnavailable signals that no sandbox execution backend could be
// reached. It is fatal to the in-flight job and never retried automatically.
func BackendUnavailable(message string) *AppError {
	return &AppError{
		Err:     ErrBackendUnavailable,
		Message: message,
	}
}

// ExecutionFailed wraps a non-zero exit from sandboxed code.
func ExecutionFailed(message string) *AppError {
	return &AppError{
		Err:     ErrExecutionFailed,
		Message: message,
	}
}

// ExecutionTimeout marks a run killed at the wall-clock budget. The wrapped
// chain matches both ErrTimeout and ErrExecutionFailed via errors.Is, so
// callers can distinguish infinite loops from plain logic errors.
func ExecutionTimeout(message string) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrExecutionFailed, ErrTimeout),
		Message: message,
	}
}

// ContractViolation signals a planner response that reached a terminal
// action without its required fields. Sessions fail on it without retry.
func ContractViolation(field, message string) *AppError {
	return &AppError{
		Err:     ErrContractViolation,
		Message: message,
		Field:   field,
	}
}

// Incomplete signals that the turn budget ran out before a terminal action.
func Incomplete(message string) *AppError {
	return &AppError{
		Err:     ErrIncomplete,
		Message: message,
	}
}
