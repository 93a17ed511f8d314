package catalog_repo

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"

	"invoicer/internal/core/apperror"
	"invoicer/internal/domain/catalogs/user"
	"invoicer/internal/infrastructure/storage/postgres"
)

const userTable = "users"

// UserRepo implements user.Repository.
type UserRepo struct {
	*BaseCatalogRepo[*user.User]
}

var _ user.Repository = (*UserRepo)(nil)

// NewUserRepo creates a new user repository.
func NewUserRepo(txm *postgres.TxManager) *UserRepo {
	return &UserRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			userTable,
			"user",
			postgres.ExtractDBColumns[user.User](),
			[]string{"display_name", "email", "user_number"},
			postgres.ImmutableColumns[user.User](),
			func() *user.User { return &user.User{} },
		),
	}
}

// FindByEmail retrieves a user by email, case-insensitively.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := r.FindOne(ctx, r.baseSelect().
		Where(squirrel.Eq{"email": email}).
		Limit(1))
	if apperror.IsNotFound(err) {
		return nil, apperror.NewNotFound("user", email)
	}
	return u, err
}
