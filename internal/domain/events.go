package domain

import (
	"context"

	"invoicer/internal/core/id"
)

// AuditAction represents the type of audited operation.
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionStatus AuditAction = "status"
)

// Auditor records entity changes. Record runs on the transaction in ctx.
type Auditor interface {
	Record(ctx context.Context, entityType string, entityID id.ID, action AuditAction, state any) error
}

// Event is a domain event delivered through the transactional outbox.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// EventPublisher writes events inside the current transaction.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopAuditor discards audit records.
type NopAuditor struct{}

func (NopAuditor) Record(context.Context, string, id.ID, AuditAction, any) error { return nil }

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
