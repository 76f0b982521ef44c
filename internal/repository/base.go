package repository

import (
	"context"
	"errors"
	"time"

	"postapp/internal/observability"

	"gorm.io/gorm"
)

// DefaultQueryTimeout applies when a repository is built with a zero timeout.
const DefaultQueryTimeout = 5 * time.Second

// base carries what every repository call needs: the pool, a per-call
// timeout, tracing and error logging.
type base struct {
	db      *gorm.DB
	table   string
	timeout time.Duration
	log     *observability.RepoLogger
}

func newBase(db *gorm.DB, table string, timeout time.Duration) base {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return base{
		db:      db,
		table:   table,
		timeout: timeout,
		log:     observability.NewRepoLogger(table),
	}
}

// begin bounds ctx by the query timeout and opens a span. The returned finish
// func must be called exactly once with the call's result.
func (b base) begin(ctx context.Context, method string) (context.Context, func(error)) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	ctx, end := observability.StartRepositorySpan(ctx, b.db.Dialector.Name(), b.table, method)
	return ctx, func(err error) {
		if isOutcome(err) {
			end(nil)
		} else {
			b.log.LogError(ctx, err, method)
			end(err)
		}
		cancel()
	}
}

// isOutcome reports whether err is an expected result rather than a storage
// failure.
func isOutcome(err error) bool {
	return err == nil ||
		errors.Is(err, ErrNotFoundOrForbidden) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrNoOp) ||
		errors.Is(err, ErrDuplicate)
}
