// Package service orchestrates validation, repositories and caches for the
// HTTP layer. Every error it returns is a *models.AppError.
package service

import (
	"errors"

	"postapp/internal/models"
	"postapp/internal/repository"
)

const noValidFieldsMessage = "No valid fields to update"

// storageError maps repository results onto the application error taxonomy.
// resource names the entity in not-found messages.
func storageError(err error, resource string) error {
	var appErr *models.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repository.ErrNotFoundOrForbidden), errors.Is(err, repository.ErrNotFound):
		return models.NewNotFoundError(resource)
	case errors.Is(err, repository.ErrNoOp):
		return models.NewNoOpError(noValidFieldsMessage)
	case errors.Is(err, repository.ErrDuplicate):
		return models.NewConflictError(resource + " already exists")
	default:
		return models.NewInternalError(err)
	}
}
