package user

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"invoicer/internal/core/apperror"
	"invoicer/internal/core/numerator"
	"invoicer/internal/core/tx"
	"invoicer/internal/domain"
)

// MinPasswordLength applies to passwords set on creation.
const MinPasswordLength = 8

// NumberAllocator hands out user numbers on the transaction in ctx.
type NumberAllocator interface {
	AllocateUserNumber(ctx context.Context, role string) (string, error)
	TxOptions(kind numerator.Kind) tx.Options
}

// Service provides business logic for the User catalog.
type Service struct {
	*domain.CatalogService[*User]
	repo       Repository
	numbers    NumberAllocator
	bcryptCost int
}

// NewService creates a new User service.
func NewService(repo Repository, txm tx.Manager, numbers NumberAllocator, auditor domain.Auditor) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*User]{
		Repo:       repo,
		TxManager:  txm,
		Auditor:    auditor,
		TxOptions:  numbers.TxOptions(numerator.KindUser),
		EntityName: "user",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		numbers:        numbers,
		bcryptCost:     bcrypt.DefaultCost,
	}

	base.Hooks().On(domain.BeforeCreate, svc.checkEmailUnique)
	base.Hooks().On(domain.BeforeInsert, svc.assignNumber)

	return svc
}

// Register hashes password (optional for customers) and creates the user.
func (s *Service) Register(ctx context.Context, u *User, password string) error {
	u.Normalize()
	if password != "" {
		if len(password) < MinPasswordLength {
			return apperror.NewValidation("password is too short").
				WithDetail("field", "password").
				WithDetail("minLength", MinPasswordLength)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}
	return s.Create(ctx, u)
}

// CheckPassword reports whether password matches the stored hash.
func (s *Service) CheckPassword(u *User, password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (s *Service) checkEmailUnique(ctx context.Context, u *User) error {
	existing, err := s.repo.FindByEmail(ctx, u.Email)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID != u.ID {
		return apperror.NewDuplicate("user", "email", u.Email)
	}
	return nil
}

// assignNumber allocates the role-scoped number in the creating transaction.
func (s *Service) assignNumber(ctx context.Context, u *User) error {
	number, err := s.numbers.AllocateUserNumber(ctx, u.Role)
	if err != nil {
		return err
	}
	u.SetNumber(number)
	return nil
}

// FindByEmail retrieves a user by email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.FindByEmail(ctx, email)
}
