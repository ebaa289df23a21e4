// Package store adapts a database/sql pool to the engine's row port,
// scanning arbitrary result shapes without prior knowledge of the columns.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"queryguard/internal/domain"
)

// SQLStore runs read statements against a relational pool. The pool is
// expected to point at an analytics database; nothing here writes.
type SQLStore struct {
	db *sql.DB
}

func New(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Query executes the statement and materializes every row. Byte slices
// are copied to strings so rows survive the driver's buffer reuse.
func (s *SQLStore) Query(ctx context.Context, query string, args ...interface{}) (*domain.ResultSet, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	rs := &domain.ResultSet{Columns: columns}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		scanTargets := make([]interface{}, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return rs, nil
}
