package item

import (
	"context"

	"invoicer/internal/domain"
)

// Repository defines the interface for Item persistence.
type Repository interface {
	domain.CatalogRepository[*Item]

	// FindByNumber retrieves an item by its item number.
	FindByNumber(ctx context.Context, number string) (*Item, error)
}
