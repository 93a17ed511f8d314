package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"invoicer/internal/core/id"
	"invoicer/internal/domain"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
)

// OutboxMessage represents a message in the transactional outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	CreatedAt     time.Time    `db:"created_at"`
}

// OutboxPublisher writes events to sys_outbox.
type OutboxPublisher struct {
	txManager *TxManager
}

var _ domain.EventPublisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

// Publish writes an event within the current transaction.
// MUST be called inside a transaction context.
func (p *OutboxPublisher) Publish(ctx context.Context, event domain.Event) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	msg, err := newOutboxMessage(event)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, msg.Status, msg.CreatedAt)
	if err != nil {
		return ClassifyError(fmt.Errorf("insert outbox message: %w", err))
	}
	return nil
}

func newOutboxMessage(event domain.Event) (OutboxMessage, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal event payload: %w", err)
	}
	return OutboxMessage{
		ID:            id.New(),
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		Status:        OutboxStatusPending,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
