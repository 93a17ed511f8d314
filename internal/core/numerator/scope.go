// Package numerator provides domain contracts for sequential document numbering.
// Implementations live in infrastructure layer.
package numerator

import (
	"fmt"
	"strings"
	"time"

	"invoicer/internal/core/apperror"
)

// Kind identifies the entity family a number belongs to.
type Kind string

const (
	KindInvoice Kind = "INVOICE"
	KindItem    Kind = "ITEM"
	KindUser    Kind = "USER"
)

// Fixed prefixes of time-scoped kinds.
const (
	InvoicePrefix = "INV"
	ItemPrefix    = "ITM"
)

const (
	// SequenceWidth is the zero-padded width of the trailing sequence.
	SequenceWidth = 6

	// MaxSequence is the largest sequence representable in SequenceWidth digits.
	MaxSequence int64 = 999_999

	// periodLayout renders YYMM, e.g. "2505" for May 2025.
	periodLayout = "0601"
)

// Role names as stored on users.
const (
	RoleAdmin      = "ADMIN"
	RoleCustomer   = "CUSTOMER"
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleAccountant = "ACCOUNTANT"
)

// RolePrefixes maps a user role to the prefix of its numbers.
var RolePrefixes = map[string]string{
	RoleAdmin:      "ADM",
	RoleCustomer:   "CUS",
	RoleSuperAdmin: "SAD",
	RoleAccountant: "ACC",
}

// Scope partitions the number space. Two scopes with different keys never
// share a sequence.
type Scope struct {
	Kind      Kind
	Prefix    string
	PeriodKey string
}

// Key is the literal text every number of this scope starts with.
func (s Scope) Key() string {
	return s.Prefix + s.PeriodKey
}

func (s Scope) String() string {
	return fmt.Sprintf("%s(%s)", s.Kind, s.Key())
}

// PeriodKey renders t as YYMM in t's own location. The calendar month is
// therefore the one of the clock's time zone.
func PeriodKey(t time.Time) string {
	return t.Format(periodLayout)
}

// InvoiceScope returns the scope of invoice numbers issued at now.
func InvoiceScope(now time.Time) Scope {
	return Scope{Kind: KindInvoice, Prefix: InvoicePrefix, PeriodKey: PeriodKey(now)}
}

// ItemScope returns the scope of item numbers issued at now.
func ItemScope(now time.Time) Scope {
	return Scope{Kind: KindItem, Prefix: ItemPrefix, PeriodKey: PeriodKey(now)}
}

// UserScope returns the scope for users of the given role.
//
// Unknown roles are rejected unless allowUnknown is set, in which case they
// share the empty-prefix scope.
func UserScope(role string, allowUnknown bool) (Scope, error) {
	prefix, ok := RolePrefixes[strings.ToUpper(strings.TrimSpace(role))]
	if !ok {
		if !allowUnknown {
			return Scope{}, apperror.NewValidation("unknown user role").
				WithDetail("role", role)
		}
		prefix = ""
	}
	return Scope{Kind: KindUser, Prefix: prefix}, nil
}

// IsKnownRole reports whether role has a number prefix.
func IsKnownRole(role string) bool {
	_, ok := RolePrefixes[role]
	return ok
}
