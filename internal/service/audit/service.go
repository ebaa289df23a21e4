// Package audit writes the append-only trail of every request the engine
// handles. Questions are sanitized before storage; SQL touching sensitive
// columns is encrypted at rest and only decrypted on read by callers that
// hold the key.
package audit

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"queryguard/internal/crypto"
	"queryguard/internal/domain"
	"queryguard/internal/service/redact"
)

// sensitiveSQL decides which statements get ciphertext storage. Matching
// is on the SQL text itself, after all validation layers have seen it.
var sensitiveSQL = regexp.MustCompile(
	`(?i)\b(password|passwd|pwd|token|secret|api_key|ssn|card|card_last4|cvv|salary|wage|email|phone|date_of_birth|tax_id)\b`)

var (
	credentialKV = regexp.MustCompile(`(?i)\b(password|passwd|pwd|token|secret|api[_-]?key)\s*[:=]\s*\S+`)
	longOpaqueID = regexp.MustCompile(`\b[A-Za-z0-9_-]{24,}\b`)
)

// Service is the only writer of audit entries. Safe for concurrent use.
type Service struct {
	logger        *slog.Logger
	repo          domain.AuditRepository
	enc           *crypto.Encryptor
	retentionDays int
	now           func() time.Time
}

func NewService(logger *slog.Logger, repo domain.AuditRepository, enc *crypto.Encryptor, retentionDays int) *Service {
	return &Service{
		logger:        logger.With("component", "audit"),
		repo:          repo,
		enc:           enc,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// SanitizeQuestion masks PII shapes, credential key-value pairs, and long
// opaque identifiers in a question before it is stored.
func SanitizeQuestion(question string) string {
	q := credentialKV.ReplaceAllString(question, "$1="+redact.Placeholder)
	q = redact.Sanitize(q)
	return longOpaqueID.ReplaceAllString(q, redact.Placeholder)
}

// QuerySucceeded records a completed query.
func (s *Service) QuerySucceeded(ctx context.Context, req domain.QueryRequest, sql string, durationMs, rows int64, warnings []string) error {
	e := s.newEntry(domain.EventQuerySuccess, req)
	e.Outcome = "SUCCESS"
	e.DurationMs = durationMs
	e.RowsReturned = rows
	e.Warnings = warnings
	s.attachSQL(e, sql)
	return s.insert(ctx, e)
}

// QueryBlocked records a request refused before execution.
func (s *Service) QueryBlocked(ctx context.Context, req domain.QueryRequest, violation string) error {
	e := s.newEntry(domain.EventQueryBlocked, req)
	e.Outcome = "BLOCKED"
	e.Violation = violation
	return s.insert(ctx, e)
}

// SecurityViolation records a statement rejected by a security layer.
func (s *Service) SecurityViolation(ctx context.Context, req domain.QueryRequest, sql, violation string) error {
	e := s.newEntry(domain.EventSecurityViolation, req)
	e.Outcome = "BLOCKED"
	e.Violation = violation
	s.attachSQL(e, sql)
	return s.insert(ctx, e)
}

// RateLimited records a request refused for budget exhaustion.
func (s *Service) RateLimited(ctx context.Context, req domain.QueryRequest) error {
	e := s.newEntry(domain.EventRateLimited, req)
	e.Outcome = "BLOCKED"
	e.Violation = domain.ViolationRateLimit
	return s.insert(ctx, e)
}

// PIIAccess records that a result contained masked personal data.
func (s *Service) PIIAccess(ctx context.Context, req domain.QueryRequest, sql string, maskedColumns []string) error {
	e := s.newEntry(domain.EventPIIAccess, req)
	e.Outcome = "SUCCESS"
	e.Warnings = maskedColumns
	s.attachSQL(e, sql)
	return s.insert(ctx, e)
}

// List returns entries newest first. The repository applies its default
// cap when the filter has none.
func (s *Service) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	return s.repo.List(ctx, filter)
}

// DecryptSQL returns the plaintext statement of an entry, decrypting when
// it was stored encrypted.
func (s *Service) DecryptSQL(e *domain.AuditEntry) (string, error) {
	if !e.SQLEncrypted {
		return e.SQL, nil
	}
	return s.enc.Decrypt(e.SQL)
}

// RotateOlderThan deletes entries past the retention window and returns
// how many were removed.
func (s *Service) RotateOlderThan(ctx context.Context) (int64, error) {
	removed, err := s.repo.DeleteOlderThan(ctx, s.retentionDays)
	if err != nil {
		s.logger.Error("audit rotation failed", "error", err)
		return 0, err
	}
	s.logger.Info("audit rotation complete",
		"removed", removed, "retention_days", s.retentionDays)
	return removed, nil
}

func (s *Service) newEntry(eventType string, req domain.QueryRequest) *domain.AuditEntry {
	return &domain.AuditEntry{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
		EventType: eventType,
		TenantID:  req.TenantID,
		UserID:    req.UserID,
		Role:      req.Role,
		Question:  SanitizeQuestion(req.Question),
	}
}

// attachSQL stores the statement, encrypting it when it references
// sensitive columns.
func (s *Service) attachSQL(e *domain.AuditEntry, sql string) {
	if sql == "" {
		return
	}
	if s.enc != nil && sensitiveSQL.MatchString(sql) {
		ciphertext, err := s.enc.Encrypt(sql)
		if err != nil {
			s.logger.Error("audit SQL encryption failed, storing redacted", "error", err)
			e.SQL = redact.Placeholder
			return
		}
		e.SQL = ciphertext
		e.SQLEncrypted = true
		return
	}
	e.SQL = sql
}

func (s *Service) insert(ctx context.Context, e *domain.AuditEntry) error {
	if err := s.repo.Insert(ctx, e); err != nil {
		s.logger.Error("audit insert failed",
			"event", e.EventType, "tenant", e.TenantID, "error", err)
		return err
	}
	return nil
}
