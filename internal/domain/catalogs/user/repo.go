package user

import (
	"context"

	"invoicer/internal/domain"
)

// Repository defines the interface for User persistence.
type Repository interface {
	domain.CatalogRepository[*User]

	// FindByEmail retrieves a user by email.
	FindByEmail(ctx context.Context, email string) (*User, error)
}
