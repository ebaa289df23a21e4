package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"queryguard/internal/crypto"
	"queryguard/internal/domain"
	"queryguard/internal/engine"
	"queryguard/internal/service/access"
	"queryguard/internal/service/astcheck"
	"queryguard/internal/service/audit"
	"queryguard/internal/service/consensus"
	"queryguard/internal/service/generate"
	"queryguard/internal/service/injection"
	"queryguard/internal/service/intent"
	"queryguard/internal/service/redact"
	"queryguard/internal/service/sanity"
	"queryguard/internal/service/selfcorrect"
	"queryguard/internal/service/validate"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type memAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (m *memAuditRepo) Insert(ctx context.Context, e *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memAuditRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func (m *memAuditRepo) DeleteOlderThan(ctx context.Context, cutoffDays int) (int64, error) {
	return 0, nil
}

type staticGenerator struct{ sql string }

func (g *staticGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	return &domain.GenerationResult{SQL: g.sql, Confidence: 0.9, ReadOnly: true}, nil
}

type staticExecutor struct{ rs *domain.ResultSet }

func (e *staticExecutor) Execute(ctx context.Context, role domain.Role, sql string, args ...interface{}) (*domain.ExecutionResult, error) {
	return &domain.ExecutionResult{
		Result:   e.rs,
		RowCount: len(e.rs.Rows),
		Duration: 3 * time.Millisecond,
	}, nil
}

func newTestServer(t *testing.T) (http.Handler, *memAuditRepo) {
	t.Helper()

	logger := slog.Default()
	schema := generate.DefaultSchemaContext()
	enc, err := crypto.NewEncryptor(testEncryptionKey)
	require.NoError(t, err)
	repo := &memAuditRepo{}
	auditSvc := audit.NewService(logger, repo, enc, 30)

	exec := &staticExecutor{rs: &domain.ResultSet{
		Columns: []string{"total_sales"},
		Rows:    [][]interface{}{{float64(512.75)}},
	}}
	eng := engine.New(engine.Deps{
		Logger:     logger,
		Detector:   injection.NewDetector(logger),
		Classifier: intent.NewClassifier(logger),
		Prebuilt:   intent.NewPrebuilt(logger, exec),
		Generator:  &staticGenerator{sql: "SELECT total FROM orders WHERE tenant_id = 'tenant-a'"},
		Validator:  validate.NewChecker(logger, schema),
		Security:   astcheck.NewValidator(logger, "tenant_id"),
		Access:     access.NewController(logger),
		Executor:   exec,
		Sanity:     sanity.NewChecker(logger, exec),
		Corrector:  selfcorrect.NewController(logger),
		Voter:      consensus.NewVoter(logger),
		Redactor:   redact.NewRedactor(logger),
		Audit:      auditSvc,
	})

	handler := NewHandler(logger, eng, auditSvc)
	router := NewRouter(handler, RouterConfig{
		AllowedOrigins: []string{"*"},
		RateLimitRPS:   100,
		RateLimitBurst: 50,
	})
	return router, repo
}

func postQuery(router http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func identityHeaders(role string) map[string]string {
	return map[string]string{
		"X-Tenant-ID": "tenant-a",
		"X-User-ID":   "user-1",
		"X-Role":      role,
	}
}
