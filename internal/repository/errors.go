package repository

import (
	"errors"

	"hushfeed/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Postgres SQLSTATE codes the ledger cares about.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgInsufficientPriv     = "42501"
)

// classify maps a driver error to the AppError taxonomy. Errors that are
// already AppErrors pass through untouched so a NotFound raised inside a
// scope reaches the caller as NotFound.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
			return models.NewConflictError("Concurrent update, try again", err)
		case pgInsufficientPriv:
			return models.NewPermissionDeniedError("Store rejected the write", err)
		}
		return models.NewInternalError(err)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return models.NewConflictError("Concurrent update, try again", err)
		case sqlite3.ErrPerm, sqlite3.ErrReadonly, sqlite3.ErrAuth:
			return models.NewPermissionDeniedError("Store rejected the write", err)
		case sqlite3.ErrConstraint:
			if liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
				return models.NewConflictError("Concurrent update, try again", err)
			}
		}
		return models.NewInternalError(err)
	}

	return models.NewInternalError(err)
}
