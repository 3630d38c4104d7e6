package persistence

import (
	"context"
	"fmt"
)

// PostgresSequence is a docid.SequenceSource backed by a database sequence,
// so GRN numbers stay unique across processes.
type PostgresSequence struct {
	exec QueryExecutor
	name string
}

// NewPostgresSequence returns a sequence source reading nextval of the named
// sequence, qualified with schema when one is given.
func NewPostgresSequence(exec QueryExecutor, schema, name string) *PostgresSequence {
	return &PostgresSequence{exec: exec, name: tables{schema: schema}.name(name)}
}

// Next implements docid.SequenceSource
func (s *PostgresSequence) Next(ctx context.Context) (int64, error) {
	rows, err := s.exec.Execute(ctx, "SELECT nextval(CAST(? AS regclass)) AS value", s.name)
	if err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", s.name, err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("advance sequence %s: no value returned", s.name)
	}
	v, err := Int64Value(rows[0]["value"])
	if err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", s.name, err)
	}
	return v, nil
}
