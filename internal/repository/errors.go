// Package repository provides the data access layer: the post store and the
// interaction ledger.
package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"xclone/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// ClassifyError maps driver and GORM errors onto the application error taxonomy.
// Errors that are already AppErrors pass through untouched.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return models.NewConflictError("Record already exists", err)
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		return models.NewConflictError("Record already exists", err)
	case isUnavailable(err):
		return models.NewStoreUnavailableError(err)
	default:
		return models.NewInternalError(err)
	}
}

func isUnavailable(err error) bool {
	var connectErr *pgconn.ConnectError
	return errors.As(err, &connectErr) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		pgconn.Timeout(err)
}
