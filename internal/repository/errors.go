package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFoundOrForbidden means no row matched the id together with the
	// caller's visibility or ownership condition. The two cases are not told
	// apart.
	ErrNotFoundOrForbidden = errors.New("not found or access denied")
	// ErrNotFound means no row matched an unconditioned lookup.
	ErrNotFound = errors.New("not found")
	// ErrNoOp means an update carried no writable fields.
	ErrNoOp = errors.New("no fields to update")
	// ErrDuplicate means a unique constraint rejected the write.
	ErrDuplicate = errors.New("duplicate value")
)

const pgUniqueViolation = "23505"

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
