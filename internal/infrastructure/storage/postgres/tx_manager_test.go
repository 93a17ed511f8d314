package postgres

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"invoicer/internal/core/tx"
)

func TestMergeIsoLevel(t *testing.T) {
	tests := []struct {
		name       string
		configured pgx.TxIsoLevel
		requested  tx.Isolation
		want       pgx.TxIsoLevel
	}{
		{"default request keeps configured", pgx.ReadCommitted, tx.IsolationDefault, pgx.ReadCommitted},
		{"scan raises to serializable", pgx.ReadCommitted, tx.IsolationSerializable, pgx.Serializable},
		{"weaker request is ignored", pgx.Serializable, tx.IsolationReadCommitted, pgx.Serializable},
		{"repeatable read over read committed", pgx.ReadCommitted, tx.IsolationRepeatableRead, pgx.RepeatableRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeIsoLevel(tt.configured, tt.requested))
		})
	}
}
