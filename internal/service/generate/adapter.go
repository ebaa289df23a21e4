package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"queryguard/internal/domain"
)

const systemPrompt = `You translate business questions into SQL for a multi-tenant analytics database.

Rules:
1. Produce exactly one SELECT statement. Never produce INSERT, UPDATE, DELETE, DDL, or multiple statements.
2. Every table you read must be filtered by the tenant column with a literal equality, e.g. tenant_id = 'TENANT'. Use the tenant id given in the request. Never use placeholders like ? or $1.
3. Use only the tables and columns listed in the schema context.
4. Do not reference system catalogs or information_schema.
5. Do not include SQL comments.

Respond with a single JSON object, no surrounding text:
{"sql": "...", "explanation": "...", "confidence": 0.0, "tables": ["..."], "isReadOnly": true}`

// Adapter implements domain.Generator over an Oracle. It assembles the
// prompt, enforces the response contract, and rejects non-read-only answers.
// It performs no retries; that is the self-correction controller's job.
type Adapter struct {
	logger *slog.Logger
	oracle Oracle
	schema *SchemaContext
}

// NewAdapter creates an Adapter bound to one oracle and schema context.
func NewAdapter(logger *slog.Logger, oracle Oracle, schema *SchemaContext) *Adapter {
	return &Adapter{
		logger: logger.With("component", "sql_generator"),
		oracle: oracle,
		schema: schema,
	}
}

// Generate performs a single oracle call for the request.
func (a *Adapter) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	raw, err := a.oracle.Complete(ctx, systemPrompt, a.buildUserPrompt(req))
	if err != nil {
		return nil, domain.ErrGenerationFailed("oracle call failed: %v", err)
	}

	result, err := parseResult(raw)
	if err != nil {
		return nil, err
	}

	if !result.ReadOnly {
		a.logger.Warn("oracle declared a non-read-only statement", "tenant", req.TenantID)
		return nil, domain.ErrGenerationFailed("generated statement is not read-only")
	}

	return result, nil
}

func (a *Adapter) buildUserPrompt(req domain.GenerationRequest) string {
	var b strings.Builder

	schemaText := req.SchemaContext
	if schemaText == "" {
		schemaText = a.schema.Render()
	}
	b.WriteString("Schema context:\n")
	b.WriteString(schemaText)

	fmt.Fprintf(&b, "\nTenant id: %s\n", req.TenantID)

	if req.Framing != "" {
		fmt.Fprintf(&b, "\n%s\n", req.Framing)
	}
	if req.TemplateSQL != "" {
		fmt.Fprintf(&b, "\nA previously successful query for a similar question (advisory only):\n%s\n", req.TemplateSQL)
	}
	if req.ErrorContext != "" {
		fmt.Fprintf(&b, "\nYour previous attempt failed with this error. Fix it:\n%s\n", req.ErrorContext)
	}

	fmt.Fprintf(&b, "\nQuestion: %s\n", req.Question)
	return b.String()
}

// parseResult decodes the oracle's JSON contract, tolerating markdown code
// fences around the object.
func parseResult(raw string) (*domain.GenerationResult, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var result domain.GenerationResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, domain.ErrGenerationFailed("malformed oracle response: %v", err)
	}

	result.SQL = strings.TrimSpace(result.SQL)
	if result.SQL == "" {
		return nil, domain.ErrGenerationFailed("oracle response contains no SQL")
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	return &result, nil
}
