package invoice

import (
	"context"
	"time"

	"invoicer/internal/core/id"
	"invoicer/internal/domain"
)

// Repository defines persistence of invoices and their lines.
type Repository interface {
	// Create inserts the header and all lines.
	Create(ctx context.Context, inv *Invoice) error

	// GetByID retrieves an invoice with lines.
	GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error)

	// GetByNumber retrieves an invoice with lines by its invoice number.
	GetByNumber(ctx context.Context, number string) (*Invoice, error)

	// GetForUpdate retrieves an invoice with lines and locks its header row.
	GetForUpdate(ctx context.Context, invoiceID id.ID) (*Invoice, error)

	// UpdateStatus writes status and status timestamps (with optimistic locking).
	UpdateStatus(ctx context.Context, inv *Invoice) error

	// List retrieves invoice headers.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Invoice], error)
}

// ListFilter for filtering invoices.
type ListFilter struct {
	domain.ListFilter

	CustomerID *id.ID
	Status     Status
	DateFrom   *time.Time
	DateTo     *time.Time
}
