package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	appctx "invoicer/internal/core/context"
	"invoicer/internal/core/id"
	"invoicer/internal/domain"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// defaultCompressThreshold is the payload size above which state is zstd-compressed.
const defaultCompressThreshold = 10 * 1024

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID                id.ID              `db:"id" json:"id"`
	EntityType        string             `db:"entity_type" json:"entityType"`
	EntityID          id.ID              `db:"entity_id" json:"entityId"`
	Action            domain.AuditAction `db:"action" json:"action"`
	UserID            string             `db:"user_id" json:"userId,omitempty"`
	RequestID         string             `db:"request_id" json:"requestId,omitempty"`
	Changes           json.RawMessage    `db:"changes" json:"changes,omitempty"`
	ChangesCompressed []byte             `db:"changes_compressed" json:"-"`
	CompressionAlgo   CompressionAlgo    `db:"compression_algo" json:"-"`
	CreatedAt         time.Time          `db:"created_at" json:"createdAt"`
}

// AuditService writes sys_audit rows on the transaction in ctx.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ domain.Auditor = (*AuditService)(nil)

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: defaultCompressThreshold,
	}, nil
}

// Record implements domain.Auditor.
func (s *AuditService) Record(ctx context.Context, entityType string, entityID id.ID, action domain.AuditAction, state any) error {
	changes, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal audit state: %w", err)
	}

	entry := s.prepare(ctx, AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    changes,
	})

	_, err = s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, user_id, request_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action,
		entry.UserID, entry.RequestID,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo,
		entry.CreatedAt,
	)
	if err != nil {
		return ClassifyError(fmt.Errorf("insert audit entry: %w", err))
	}
	return nil
}

// prepare fills identity fields and compresses large payloads.
func (s *AuditService) prepare(ctx context.Context, entry AuditEntry) AuditEntry {
	if entry.UserID == "" {
		entry.UserID = appctx.GetUserID(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = appctx.GetRequestID(ctx)
	}
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) > s.compressThreshold {
		entry.ChangesCompressed = s.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}
	return entry
}

// decompress restores Changes of a compressed entry in place.
func (s *AuditService) decompress(entry *AuditEntry) error {
	if entry.CompressionAlgo != CompressionZstd || len(entry.ChangesCompressed) == 0 {
		return nil
	}
	raw, err := s.decoder.DecodeAll(entry.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	entry.Changes = raw
	entry.ChangesCompressed = nil
	return nil
}

// History returns the newest audit entries of an entity, decompressed.
func (s *AuditService) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	var entries []AuditEntry
	err := pgxscan.Select(ctx, s.txManager.GetQuerier(ctx), &entries, `
		SELECT id, entity_type, entity_id, action, user_id, request_id,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, entityType, entityID, limit)
	if err != nil {
		return nil, ClassifyError(fmt.Errorf("query audit history: %w", err))
	}

	for i := range entries {
		if err := s.decompress(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}
