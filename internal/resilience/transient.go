// Package resilience guards calls to flaky collaborators with
// transient-error classification, a retry loop, and a circuit breaker.
// The resolver runs entity-hierarchy parent lookups through it, where
// the backing store may be briefly unreachable.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// TransientError marks an error as safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err so IsTransient reports it as retryable.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

// Retryable SQLSTATE values beyond the whole-class prefixes:
// serialization failure, deadlock, and server shutdown or startup.
var pgTransientCodes = map[string]struct{}{
	"40001": {},
	"40P01": {},
	"57P01": {},
	"57P02": {},
	"57P03": {},
}

// Class 08 is connection exceptions, class 53 insufficient resources.
var pgTransientClasses = []string{"08", "53"}

// IsTransient reports whether a later attempt at the failed call can
// reasonably succeed: an explicit TransientError, a network timeout, a
// reset or refused connection, a Postgres error in a retryable
// SQLSTATE, or a locked SQLite database.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := pgTransientCodes[pgErr.Code]; ok {
			return true
		}
		for _, class := range pgTransientClasses {
			if strings.HasPrefix(pgErr.Code, class) {
				return true
			}
		}
		return false
	}

	// SQLite surfaces busy/locked states only in the message, and some
	// drivers flatten network errors the same way.
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"database is locked",
		"database table is locked",
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
