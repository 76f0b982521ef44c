package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeNotFoundOrForbidden = "NOT_FOUND_OR_FORBIDDEN"
	CodeNoOp                = "NO_OP"
	CodeConflict            = "CONFLICT"
	CodeStorageFailure      = "STORAGE_FAILURE"
)

// FieldError is a single field-level validation violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the failure form of the response envelope.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Code    string       `json:"code,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
	Fields  []FieldError
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Status maps the error code to its HTTP status.
func (e *AppError) Status() int {
	switch e.Code {
	case CodeValidationFailed, CodeNoOp:
		return fiber.StatusBadRequest
	case CodeUnauthenticated:
		return fiber.StatusUnauthorized
	case CodeNotFoundOrForbidden:
		return fiber.StatusNotFound
	case CodeConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func NewValidationError(message string, fields ...FieldError) *AppError {
	if message == "" {
		message = "Validation failed"
	}
	return &AppError{
		Code:    CodeValidationFailed,
		Message: message,
		Fields:  fields,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthenticated,
		Message: message,
	}
}

// NewNotFoundError deliberately does not distinguish a missing resource from
// one owned by somebody else.
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFoundOrForbidden,
		Message: resource + " not found or access denied",
	}
}

func NewNoOpError(message string) *AppError {
	return &AppError{
		Code:    CodeNoOp,
		Message: message,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeStorageFailure,
		Message: "Internal server error",
		Err:     err,
	}
}

// StatusFor returns the HTTP status for any error reaching the boundary.
func StatusFor(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status()
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}

// RespondWithError writes err as a failure envelope. Underlying error text is
// only included when exposeDetails is set.
func RespondWithError(c *fiber.Ctx, err error, exposeDetails bool) error {
	response := ErrorResponse{Success: false}

	var appErr *AppError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &appErr):
		response.Message = appErr.Message
		response.Code = appErr.Code
		response.Errors = appErr.Fields
		if exposeDetails && appErr.Err != nil {
			response.Error = appErr.Err.Error()
		}
	case errors.As(err, &fiberErr):
		response.Message = fiberErr.Message
	default:
		response.Message = "Internal server error"
		response.Code = CodeStorageFailure
		if exposeDetails {
			response.Error = err.Error()
		}
	}

	return c.Status(StatusFor(err)).JSON(response)
}
