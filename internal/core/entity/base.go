// Package entity provides base types shared by all persisted entities.
package entity

import (
	"context"
	"time"

	"invoicer/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// Identifiable exposes the primary key for audit and outbox records.
type Identifiable interface {
	GetID() id.ID
}

// Numbered is implemented by entities that carry an allocated number.
// The number is assigned once, inside the creating transaction.
type Numbered interface {
	GetNumber() string
	SetNumber(number string)
}

// BaseEntity contains common fields for all entities.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// DeletionMark indicates soft-deleted entity. The number stays reserved.
	DeletionMark bool `db:"deletion_mark" json:"deletionMark"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewBaseEntity creates a new BaseEntity with generated ID.
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{
		ID:        id.New(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// GetID implements Identifiable.
func (b *BaseEntity) GetID() id.ID {
	return b.ID
}

// Touch increments version and refreshes UpdatedAt.
func (b *BaseEntity) Touch() {
	b.Version++
	b.UpdatedAt = time.Now().UTC()
}

// MarkDeleted sets the deletion mark.
func (b *BaseEntity) MarkDeleted() {
	b.DeletionMark = true
}
