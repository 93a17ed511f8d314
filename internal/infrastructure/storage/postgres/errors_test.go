package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"invoicer/internal/core/apperror"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{
			name:      "unique violation on invoice number",
			err:       &pgconn.PgError{Code: "23505", ConstraintName: "invoices_invoice_number_key"},
			code:      apperror.CodeDuplicateNumber,
			retryable: true,
		},
		{
			name: "unique violation elsewhere",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"},
			code: apperror.CodeConflict,
		},
		{
			name:      "serialization failure",
			err:       fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}),
			code:      apperror.CodeTransient,
			retryable: true,
		},
		{
			name:      "deadlock",
			err:       &pgconn.PgError{Code: "40P01"},
			code:      apperror.CodeTransient,
			retryable: true,
		},
		{
			name:      "connection exception class",
			err:       &pgconn.PgError{Code: "08006"},
			code:      apperror.CodeTransient,
			retryable: true,
		},
		{
			name: "statement timeout",
			err:  &pgconn.PgError{Code: "57014"},
			code: apperror.CodeTimeout,
		},
		{
			name: "foreign key",
			err:  &pgconn.PgError{Code: "23503", ConstraintName: "invoices_customer_id_fkey"},
			code: apperror.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			appErr, ok := apperror.AsAppError(got)
			if assert.True(t, ok) {
				assert.Equal(t, tt.code, appErr.Code)
				assert.Equal(t, tt.retryable, apperror.IsRetryable(got))
			}
		})
	}
}

func TestClassifyError_PassThrough(t *testing.T) {
	assert.Nil(t, ClassifyError(nil))

	plain := errors.New("syntax error")
	assert.Same(t, plain, ClassifyError(plain))

	assert.ErrorIs(t, ClassifyError(context.Canceled), context.Canceled)

	appErr := apperror.NewMalformedNumber("INV2505", "INV2505ABC123")
	assert.Same(t, appErr, ClassifyError(appErr))

	other := &pgconn.PgError{Code: "42P01"}
	assert.Same(t, error(other), ClassifyError(other))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(errors.New("23505")))
}
