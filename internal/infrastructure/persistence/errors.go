package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// uniqueViolationCode is the SQLSTATE for unique_violation.
const uniqueViolationCode = "23505"

// StorageErrorKind classifies a StorageError.
type StorageErrorKind string

// Storage error kinds
const (
	StorageErrorUniqueViolation StorageErrorKind = "unique_violation"
	StorageErrorOther           StorageErrorKind = "other"
)

// StorageError wraps a failure returned by the database while executing a
// statement.
type StorageError struct {
	Op        string
	Statement string
	Kind      StorageErrorKind
	Err       error
}

// Error implements the error interface
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the driver error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

func newStorageError(op, stmt string, err error) *StorageError {
	kind := StorageErrorOther
	if isUniqueViolation(err) {
		kind = StorageErrorUniqueViolation
	}
	return &StorageError{Op: op, Statement: stmt, Kind: kind, Err: err}
}

// IsUniqueViolation reports whether err was caused by a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind == StorageErrorUniqueViolation
	}
	return isUniqueViolation(err)
}

// isUniqueViolation checks the structured driver errors first and falls back
// to the message for drivers that expose neither.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
