package domain

import "time"

// Audit event types.
const (
	EventQuerySuccess      = "QUERY_SUCCESS"
	EventQueryBlocked      = "QUERY_BLOCKED"
	EventSecurityViolation = "SECURITY_VIOLATION"
	EventRateLimited       = "RATE_LIMITED"
	EventPIIAccess         = "PII_ACCESS"
)

// AuditEntry is a single append-only audit record. Entries are never
// rewritten; rotation deletes whole entries by age only.
type AuditEntry struct {
	ID           string
	CreatedAt    time.Time
	EventType    string
	TenantID     string
	UserID       string
	Role         Role
	Question     string // sanitized before storage
	SQL          string // plain or hex ciphertext, per SQLEncrypted
	SQLEncrypted bool
	Outcome      string // "SUCCESS", "BLOCKED", "FAILED"
	Violation    string
	Warnings     []string
	DurationMs   int64
	RowsReturned int64
}

// AuditFilter restricts an audit log query. Nil fields match everything.
type AuditFilter struct {
	TenantID  *string
	UserID    *string
	EventType *string
	Violation *string
	Since     *time.Time
	Until     *time.Time
	Limit     int // 0 uses the repository default cap
}
