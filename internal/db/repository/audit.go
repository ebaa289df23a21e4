// Package repository implements the audit persistence port over SQLite.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"queryguard/internal/domain"
)

// defaultListLimit caps unbounded listings.
const defaultListLimit = 100

// AuditRepo writes through the single-writer pool and lists through the
// read pool.
type AuditRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

func NewAuditRepo(writeDB, readDB *sql.DB) *AuditRepo {
	return &AuditRepo{writeDB: writeDB, readDB: readDB}
}

const insertSQL = `
INSERT INTO audit_log (
	id, created_at, event_type, tenant_id, user_id, role, question,
	sql_text, sql_encrypted, outcome, violation, warnings, duration_ms, rows_returned
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (r *AuditRepo) Insert(ctx context.Context, e *domain.AuditEntry) error {
	warnings, err := encodeWarnings(e.Warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}

	_, err = r.writeDB.ExecContext(ctx, insertSQL,
		e.ID, e.CreatedAt.UTC(), e.EventType, e.TenantID, e.UserID, string(e.Role),
		e.Question, e.SQL, boolToInt(e.SQLEncrypted), e.Outcome, e.Violation,
		warnings, e.DurationMs, e.RowsReturned,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns entries newest first. A zero filter limit applies the
// default cap.
func (r *AuditRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	var conds []string
	var args []interface{}

	if filter.TenantID != nil {
		conds = append(conds, "tenant_id = ?")
		args = append(args, *filter.TenantID)
	}
	if filter.UserID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.EventType != nil {
		conds = append(conds, "event_type = ?")
		args = append(args, *filter.EventType)
	}
	if filter.Violation != nil {
		conds = append(conds, "violation = ?")
		args = append(args, *filter.Violation)
	}
	if filter.Since != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if filter.Until != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, filter.Until.UTC())
	}

	query := `SELECT id, created_at, event_type, tenant_id, user_id, role, question,
	sql_text, sql_encrypted, outcome, violation, warnings, duration_ms, rows_returned
FROM audit_log`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var role, warnings string
		var encrypted int
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.EventType, &e.TenantID, &e.UserID,
			&role, &e.Question, &e.SQL, &encrypted, &e.Outcome, &e.Violation,
			&warnings, &e.DurationMs, &e.RowsReturned); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Role = domain.Role(role)
		e.SQLEncrypted = encrypted != 0
		if e.Warnings, err = decodeWarnings(warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteOlderThan removes entries older than cutoffDays and reports how
// many were deleted.
func (r *AuditRepo) DeleteOlderThan(ctx context.Context, cutoffDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -cutoffDays)
	res, err := r.writeDB.ExecContext(ctx,
		"DELETE FROM audit_log WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("rotate audit entries: %w", err)
	}
	return res.RowsAffected()
}

func encodeWarnings(warnings []string) (string, error) {
	if len(warnings) == 0 {
		return "", nil
	}
	b, err := json.Marshal(warnings)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeWarnings(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
