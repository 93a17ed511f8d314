package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"invoicer/internal/core/apperror"
	"invoicer/internal/domain/catalogs/item"
	"invoicer/internal/infrastructure/storage/postgres"
)

const itemTable = "items"

// ItemRepo implements item.Repository.
type ItemRepo struct {
	*BaseCatalogRepo[*item.Item]
}

var _ item.Repository = (*ItemRepo)(nil)

// NewItemRepo creates a new item repository.
func NewItemRepo(txm *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			itemTable,
			"item",
			postgres.ExtractDBColumns[item.Item](),
			[]string{"name", "item_number", "description"},
			postgres.ImmutableColumns[item.Item](),
			func() *item.Item { return &item.Item{} },
		),
	}
}

// FindByNumber retrieves an item by its item number.
func (r *ItemRepo) FindByNumber(ctx context.Context, number string) (*item.Item, error) {
	it, err := r.FindOne(ctx, r.baseSelect().
		Where(squirrel.Eq{"item_number": number}).
		Limit(1))
	if apperror.IsNotFound(err) {
		return nil, apperror.NewNotFound("item", number)
	}
	return it, err
}
