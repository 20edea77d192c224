// Package services implements flow, node and catalog management on top of
// the persistence layer.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest     = errors.New("invalid request")
	ErrFlowNameRequired   = errors.New("flow name is required")
	ErrInvalidCategory    = errors.New("invalid node category")
	ErrCategoryMismatch   = errors.New("node category does not match predefined node")
	ErrInvalidParams      = errors.New("node params do not match predefined node")
	ErrCrossFlowLink      = errors.New("nodes belong to different flows")
	ErrSelfLink           = errors.New("node cannot link to itself")
	ErrLoggerSuccessor    = errors.New("logger nodes cannot have successors")
	ErrErrorFlowNotAction = errors.New("error flow is only allowed from action nodes")

	// Business Logic Conflicts (409 Conflict).
	ErrPredefinedNodeExists = errors.New("predefined node already exists")
	ErrPredefinedNodeInUse  = errors.New("predefined node is used by flow nodes")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrFlowNameRequired) ||
		errors.Is(err, ErrInvalidCategory) ||
		errors.Is(err, ErrCategoryMismatch) ||
		errors.Is(err, ErrInvalidParams) ||
		errors.Is(err, ErrCrossFlowLink) ||
		errors.Is(err, ErrSelfLink) ||
		errors.Is(err, ErrLoggerSuccessor) ||
		errors.Is(err, ErrErrorFlowNotAction)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrPredefinedNodeExists) ||
		errors.Is(err, ErrPredefinedNodeInUse)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
