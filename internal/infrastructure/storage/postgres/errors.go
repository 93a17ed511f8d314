package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"invoicer/internal/core/apperror"
)

// PostgreSQL SQLSTATE codes the service reacts to.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
	pgAdminShutdown        = "57P01"
)

// numberConstraints are the UNIQUE constraints guarding allocated numbers.
// A violation of one of them means a concurrent request won the race.
var numberConstraints = map[string]bool{
	"invoices_invoice_number_key": true,
	"items_item_number_key":       true,
	"users_user_number_key":       true,
}

// IsUniqueViolation reports a 23505 error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// ClassifyError maps a pgx error onto the apperror taxonomy.
//
// AppErrors and context errors pass through unchanged. Errors with no
// specific meaning are returned as-is so callers can wrap them.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation && numberConstraints[pgErr.ConstraintName]:
			return apperror.NewDuplicateNumber(pgErr.ConstraintName, err)
		case pgErr.Code == pgUniqueViolation:
			return apperror.NewConflict("duplicate value violates a unique constraint").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgErr.Code == pgForeignKeyViolation:
			return apperror.NewValidation("referenced record does not exist").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgErr.Code == pgSerializationFailure,
			pgErr.Code == pgDeadlockDetected,
			pgErr.Code == pgLockNotAvailable,
			pgErr.Code == pgAdminShutdown,
			strings.HasPrefix(pgErr.Code, "08"):
			return apperror.NewTransient(err)
		case pgErr.Code == pgQueryCanceled:
			return apperror.NewTimeout(err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.SafeToRetry(err) {
		return apperror.NewTransient(err)
	}
	if pgconn.Timeout(err) {
		return apperror.NewTimeout(err)
	}

	return err
}
