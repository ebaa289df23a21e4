package domain

import "context"

// GenerationRequest is the strict request contract for one oracle call.
type GenerationRequest struct {
	Question      string
	TenantID      string
	SchemaContext string
	ErrorContext  string // prior attempt's failure text, for retries
	TemplateSQL   string // previously learned template, advisory only
	Framing       string // prompt framing variant, used by consensus voting
}

// GenerationResult is the strict response contract expected from the oracle.
type GenerationResult struct {
	SQL         string   `json:"sql"`
	Explanation string   `json:"explanation"`
	Confidence  float64  `json:"confidence"`
	Tables      []string `json:"tables"`
	ReadOnly    bool     `json:"isReadOnly"`
}

// Generator produces candidate SQL for a question. Implementations must be
// side-effect free so calls are safely retryable; they perform no retries
// themselves.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}

// RowStore executes read statements against the shared relational store.
// Implementations are assumed to abandon server-side work when ctx expires.
type RowStore interface {
	Query(ctx context.Context, sql string, args ...interface{}) (*ResultSet, error)
}

// AuditRepository is the append-only audit sink. Insert never mutates
// existing entries; DeleteOlderThan is the only removal path.
type AuditRepository interface {
	Insert(ctx context.Context, e *AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
	DeleteOlderThan(ctx context.Context, cutoffDays int) (int64, error)
}
