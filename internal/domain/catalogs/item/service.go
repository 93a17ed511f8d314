package item

import (
	"context"
	"fmt"

	"invoicer/internal/core/numerator"
	"invoicer/internal/core/tx"
	"invoicer/internal/domain"
)

// NumberAllocator hands out item numbers on the transaction in ctx.
type NumberAllocator interface {
	AllocateItemNumber(ctx context.Context) (string, error)
	TxOptions(kind numerator.Kind) tx.Options
}

// Service provides business logic for the Item catalog.
// Uses composition with domain.CatalogService for common CRUD operations.
type Service struct {
	*domain.CatalogService[*Item]
	repo    Repository
	numbers NumberAllocator
}

// NewService creates a new Item service.
func NewService(repo Repository, txm tx.Manager, numbers NumberAllocator, auditor domain.Auditor) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Item]{
		Repo:       repo,
		TxManager:  txm,
		Auditor:    auditor,
		TxOptions:  numbers.TxOptions(numerator.KindItem),
		EntityName: "item",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		numbers:        numbers,
	}

	base.Hooks().On(domain.BeforeInsert, svc.assignNumber)

	return svc
}

// assignNumber allocates the item number in the creating transaction.
// A client-supplied number is discarded.
func (s *Service) assignNumber(ctx context.Context, it *Item) error {
	number, err := s.numbers.AllocateItemNumber(ctx)
	if err != nil {
		return err
	}
	if number == "" {
		return fmt.Errorf("empty item number")
	}
	it.SetNumber(number)
	return nil
}

// FindByNumber retrieves an item by its item number.
func (s *Service) FindByNumber(ctx context.Context, number string) (*Item, error) {
	return s.repo.FindByNumber(ctx, number)
}
