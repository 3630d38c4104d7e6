package persistence

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Row is one result row keyed by column name.
type Row map[string]any

// QueryExecutor runs one parameterised statement. Statements without result
// columns return no rows.
type QueryExecutor interface {
	Execute(ctx context.Context, stmt string, args ...any) ([]Row, error)
}

// Transactor runs fn against an executor bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(QueryExecutor) error) error
}

// TxExecutor is an executor that can also open transactions.
type TxExecutor interface {
	QueryExecutor
	Transactor
}

// GormExecutor implements TxExecutor on a gorm connection. Placeholders are
// written as ? and rebound by the dialect.
type GormExecutor struct {
	db *gorm.DB
}

// NewGormExecutor creates a new GormExecutor
func NewGormExecutor(db *gorm.DB) *GormExecutor {
	return &GormExecutor{db: db}
}

// Execute implements QueryExecutor
func (e *GormExecutor) Execute(ctx context.Context, stmt string, args ...any) ([]Row, error) {
	db := e.db.WithContext(ctx)
	if !returnsRows(stmt) {
		if err := db.Exec(stmt, args...).Error; err != nil {
			return nil, newStorageError("exec", stmt, err)
		}
		return nil, nil
	}

	rows, err := db.Raw(stmt, args...).Rows()
	if err != nil {
		return nil, newStorageError("query", stmt, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, newStorageError("query", stmt, err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, newStorageError("scan", stmt, err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError("query", stmt, err)
	}
	return out, nil
}

// WithinTransaction implements Transactor
func (e *GormExecutor) WithinTransaction(ctx context.Context, fn func(QueryExecutor) error) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormExecutor{db: tx})
	})
}

func returnsRows(stmt string) bool {
	s := strings.ToUpper(strings.TrimSpace(stmt))
	return strings.HasPrefix(s, "SELECT") ||
		strings.HasPrefix(s, "WITH") ||
		strings.Contains(s, " RETURNING ")
}

// UUIDValue converts a scanned column value into a UUID.
func UUIDValue(v any) (uuid.UUID, error) {
	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case [16]byte:
		return uuid.UUID(t), nil
	case string:
		return uuid.Parse(t)
	case []byte:
		if len(t) == 16 {
			return uuid.FromBytes(t)
		}
		return uuid.ParseBytes(t)
	case nil:
		return uuid.Nil, fmt.Errorf("uuid column is NULL")
	default:
		return uuid.Nil, fmt.Errorf("unsupported uuid column type %T", v)
	}
}

// Int64Value converts a scanned numeric column value into an int64.
func Int64Value(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	case []byte:
		return strconv.ParseInt(string(t), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported integer column type %T", v)
	}
}

// firstID returns the id column of the first row, if any.
func firstID(rows []Row, col string) (uuid.UUID, bool, error) {
	if len(rows) == 0 {
		return uuid.Nil, false, nil
	}
	id, err := UUIDValue(rows[0][col])
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("read %s: %w", col, err)
	}
	return id, true, nil
}

// tables qualifies table names with the tenant schema.
type tables struct {
	schema string
}

func (t tables) name(table string) string {
	if t.schema == "" {
		return table
	}
	return t.schema + "." + table
}

// insertStatement builds INSERT INTO table (cols...) VALUES (?, ...).
func insertStatement(table string, cols []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
}

// column is one column/value pair of an insert.
type column struct {
	name  string
	value any
}

func splitColumns(cols []column) ([]string, []any) {
	names := make([]string, len(cols))
	values := make([]any, len(cols))
	for i, c := range cols {
		names[i] = c.name
		values[i] = c.value
	}
	return names, values
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
