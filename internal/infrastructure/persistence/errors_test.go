package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, true},
		{"pgconn unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"pgconn foreign key violation", &pgconn.PgError{Code: "23503", Message: "violates unique-looking fk"}, false},
		{"pq unique violation", &pq.Error{Code: "23505"}, true},
		{"pq not null violation", &pq.Error{Code: "23502"}, false},
		{"sqlite message", errors.New("UNIQUE constraint failed: s_supplier.s_supplier_code"), true},
		{"postgres message", errors.New(`ERROR: duplicate key value violates unique constraint "s_tax_rate_s_tax_rate_name_key"`), true},
		{"other failure", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

func TestStorageError(t *testing.T) {
	t.Run("classifies unique violations", func(t *testing.T) {
		err := newStorageError("exec", "INSERT INTO s_item", &pgconn.PgError{Code: "23505"})
		assert.Equal(t, StorageErrorUniqueViolation, err.Kind)
		assert.True(t, IsUniqueViolation(fmt.Errorf("ensure item: %w", err)))

		var pgErr *pgconn.PgError
		assert.ErrorAs(t, err, &pgErr)
	})

	t.Run("other failures keep their kind", func(t *testing.T) {
		cause := errors.New("syntax error at or near \"FROM\"")
		err := newStorageError("query", "SELECT FROM", cause)
		assert.Equal(t, StorageErrorOther, err.Kind)
		assert.False(t, IsUniqueViolation(err))
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "storage query failed")
	})
}
