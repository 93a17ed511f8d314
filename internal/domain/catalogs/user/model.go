// Package user provides the User catalog. Customers are users with role CUSTOMER.
package user

import (
	"context"
	"net/mail"
	"strings"

	"invoicer/internal/core/apperror"
	"invoicer/internal/core/entity"
)

// User represents a person who can act in the system or be invoiced.
type User struct {
	entity.BaseEntity

	// UserNumber is the role prefix plus 6 digits, e.g. CUS000042
	UserNumber string `db:"user_number" json:"userNumber" repo:"immutable"`

	Email       string `db:"email" json:"email"`
	DisplayName string `db:"display_name" json:"displayName"`

	// Role decides the number prefix; it cannot change after creation
	Role string `db:"role" json:"role" repo:"immutable"`

	// Country is an ISO 3166-1 alpha-2 code
	Country string `db:"country" json:"country"`

	// VATID is the customer's VAT registration, empty for private persons
	VATID string `db:"vat_id" json:"vatId,omitempty"`

	PasswordHash string `db:"password_hash" json:"-"`
}

// NewUser creates a user with normalized fields.
func NewUser(email, displayName, role, country string) *User {
	u := &User{
		BaseEntity:  entity.NewBaseEntity(),
		Email:       email,
		DisplayName: displayName,
		Role:        role,
		Country:     country,
	}
	u.Normalize()
	return u
}

// Normalize trims input and brings codes to upper case.
func (u *User) Normalize() {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.DisplayName = strings.TrimSpace(u.DisplayName)
	u.Role = strings.ToUpper(strings.TrimSpace(u.Role))
	u.Country = strings.ToUpper(strings.TrimSpace(u.Country))
	u.VATID = strings.ToUpper(strings.ReplaceAll(u.VATID, " ", ""))
}

// GetNumber implements entity.Numbered.
func (u *User) GetNumber() string { return u.UserNumber }

// SetNumber implements entity.Numbered.
func (u *User) SetNumber(number string) { u.UserNumber = number }

// Validate implements entity.Validatable.
// Role membership is checked by the number allocator.
func (u *User) Validate(ctx context.Context) error {
	if _, err := mail.ParseAddress(u.Email); err != nil || u.Email == "" {
		return apperror.NewValidation("valid email is required").
			WithDetail("field", "email")
	}

	if u.DisplayName == "" {
		return apperror.NewValidation("display name is required").
			WithDetail("field", "displayName")
	}

	if u.Role == "" {
		return apperror.NewValidation("role is required").
			WithDetail("field", "role")
	}

	if len(u.Country) != 2 {
		return apperror.NewValidation("country must be an ISO 3166-1 alpha-2 code").
			WithDetail("field", "country")
	}

	return nil
}

var (
	_ entity.Validatable = (*User)(nil)
	_ entity.Numbered    = (*User)(nil)
)
