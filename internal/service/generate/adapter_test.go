package generate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryguard/internal/domain"
)

type fakeOracle struct {
	response string
	err      error
	lastUser string
	calls    int
}

func (f *fakeOracle) Complete(_ context.Context, _, user string) (string, error) {
	f.calls++
	f.lastUser = user
	return f.response, f.err
}

func newTestAdapter(t *testing.T, oracle Oracle) *Adapter {
	t.Helper()
	return NewAdapter(slog.New(slog.NewTextHandler(io.Discard, nil)), oracle, DefaultSchemaContext())
}

func TestGenerateParsesContract(t *testing.T) {
	oracle := &fakeOracle{response: `{"sql":"SELECT COUNT(*) FROM orders WHERE tenant_id = 'acme'","explanation":"counts orders","confidence":0.85,"tables":["orders"],"isReadOnly":true}`}
	a := newTestAdapter(t, oracle)

	got, err := a.Generate(context.Background(), domain.GenerationRequest{
		Question: "how many orders?",
		TenantID: "acme",
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) FROM orders WHERE tenant_id = 'acme'", got.SQL)
	assert.Equal(t, []string{"orders"}, got.Tables)
	assert.InDelta(t, 0.85, got.Confidence, 0.001)
	assert.True(t, got.ReadOnly)
	assert.Equal(t, 1, oracle.calls)
}

func TestGenerateRejectsNonReadOnly(t *testing.T) {
	oracle := &fakeOracle{response: `{"sql":"DELETE FROM orders","explanation":"","confidence":0.9,"tables":["orders"],"isReadOnly":false}`}
	a := newTestAdapter(t, oracle)

	_, err := a.Generate(context.Background(), domain.GenerationRequest{TenantID: "acme"})

	var genErr *domain.GenerationFailedError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, err.Error(), "read-only")
}

func TestGenerateRejectsMalformedResponse(t *testing.T) {
	a := newTestAdapter(t, &fakeOracle{response: "sorry, I cannot do that"})

	_, err := a.Generate(context.Background(), domain.GenerationRequest{TenantID: "acme"})

	var genErr *domain.GenerationFailedError
	assert.ErrorAs(t, err, &genErr)
}

func TestGenerateRejectsEmptySQL(t *testing.T) {
	a := newTestAdapter(t, &fakeOracle{response: `{"sql":"  ","isReadOnly":true}`})

	_, err := a.Generate(context.Background(), domain.GenerationRequest{TenantID: "acme"})
	assert.Error(t, err)
}

func TestGenerateWrapsOracleError(t *testing.T) {
	a := newTestAdapter(t, &fakeOracle{err: errors.New("connection refused")})

	_, err := a.Generate(context.Background(), domain.GenerationRequest{TenantID: "acme"})

	var genErr *domain.GenerationFailedError
	assert.ErrorAs(t, err, &genErr)
}

func TestGenerateStripsMarkdownFences(t *testing.T) {
	a := newTestAdapter(t, &fakeOracle{response: "```json\n{\"sql\":\"SELECT 1\",\"isReadOnly\":true}\n```"})

	got, err := a.Generate(context.Background(), domain.GenerationRequest{TenantID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", got.SQL)
}

func TestGenerateClampsConfidence(t *testing.T) {
	a := newTestAdapter(t, &fakeOracle{response: `{"sql":"SELECT 1","confidence":3.5,"isReadOnly":true}`})

	got, err := a.Generate(context.Background(), domain.GenerationRequest{TenantID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestBuildUserPromptIncludesContext(t *testing.T) {
	oracle := &fakeOracle{response: `{"sql":"SELECT 1","isReadOnly":true}`}
	a := newTestAdapter(t, oracle)

	_, err := a.Generate(context.Background(), domain.GenerationRequest{
		Question:     "total sales today",
		TenantID:     "acme",
		ErrorContext: "unknown column frobs",
		TemplateSQL:  "SELECT SUM(total) FROM orders WHERE tenant_id = 'acme'",
		Framing:      "Answer as a careful data analyst.",
	})
	require.NoError(t, err)

	assert.Contains(t, oracle.lastUser, "Tenant id: acme")
	assert.Contains(t, oracle.lastUser, "unknown column frobs")
	assert.Contains(t, oracle.lastUser, "advisory only")
	assert.Contains(t, oracle.lastUser, "careful data analyst")
	assert.Contains(t, oracle.lastUser, "orders(")
	assert.Contains(t, oracle.lastUser, "Question: total sales today")
}

func TestSchemaContextTableColumns(t *testing.T) {
	sc := DefaultSchemaContext()
	cols := sc.TableColumns()

	require.Contains(t, cols, "orders")
	assert.True(t, cols["orders"]["tenant_id"])
	assert.False(t, cols["orders"]["salary"])
}

func TestLoadSchemaContextMissingFileUsesDefault(t *testing.T) {
	sc, err := LoadSchemaContext("/nonexistent/schema.yaml")
	require.NoError(t, err)
	assert.Equal(t, "tenant_id", sc.TenantColumn)
	assert.NotEmpty(t, sc.Tables)
}
