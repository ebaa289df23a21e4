// Package engine orchestrates the full question-to-answer pipeline:
// injection screening, the intent fast path, SQL generation with
// self-correction or consensus voting, layered validation, governed
// execution, result verification, redaction, and audit.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"queryguard/internal/domain"
	"queryguard/internal/service/access"
	"queryguard/internal/service/astcheck"
	"queryguard/internal/service/audit"
	"queryguard/internal/service/consensus"
	"queryguard/internal/service/governor"
	"queryguard/internal/service/injection"
	"queryguard/internal/service/intent"
	"queryguard/internal/service/redact"
	"queryguard/internal/service/sanity"
	"queryguard/internal/service/selfcorrect"
	"queryguard/internal/service/validate"
	"queryguard/internal/sqlast"
)

// Executor is the governed execution port. *governor.Governor satisfies it.
type Executor = intent.Executor

var _ Executor = (*governor.Governor)(nil)

// Deps wires the engine. Every field is required.
type Deps struct {
	Logger     *slog.Logger
	Detector   *injection.Detector
	Classifier *intent.Classifier
	Prebuilt   *intent.Prebuilt
	Generator  domain.Generator
	Validator  *validate.Checker
	Security   *astcheck.Validator
	Access     *access.Controller
	Executor   Executor
	Sanity     *sanity.Checker
	Corrector  *selfcorrect.Controller
	Voter      *consensus.Voter
	Redactor   *redact.Redactor
	Audit      *audit.Service
}

// Engine is safe for concurrent use.
type Engine struct {
	logger     *slog.Logger
	detector   *injection.Detector
	classifier *intent.Classifier
	prebuilt   *intent.Prebuilt
	generator  domain.Generator
	validator  *validate.Checker
	security   *astcheck.Validator
	accessCtl  *access.Controller
	executor   Executor
	sanity     *sanity.Checker
	corrector  *selfcorrect.Controller
	voter      *consensus.Voter
	redactor   *redact.Redactor
	audit      *audit.Service
}

func New(deps Deps) *Engine {
	return &Engine{
		logger:     deps.Logger.With("component", "engine"),
		detector:   deps.Detector,
		classifier: deps.Classifier,
		prebuilt:   deps.Prebuilt,
		generator:  deps.Generator,
		validator:  deps.Validator,
		security:   deps.Security,
		accessCtl:  deps.Access,
		executor:   deps.Executor,
		sanity:     deps.Sanity,
		corrector:  deps.Corrector,
		voter:      deps.Voter,
		redactor:   deps.Redactor,
		audit:      deps.Audit,
	}
}

// refusalAnswer is the only text returned for blocked requests. It never
// explains which check fired.
const refusalAnswer = "I can't help with that request. Try asking a question about your sales, orders, products, or reviews."

var defaultSuggestions = []string{
	"How much did we sell yesterday?",
	"What were the top 5 products last week?",
	"What is our average ticket this month?",
}

// ProcessQuery turns one natural-language question into a safe answer.
// Every path through this method writes an audit trail.
func (e *Engine) ProcessQuery(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	if req.RateLimited {
		e.auditQuietly(e.audit.RateLimited(ctx, req))
		return blockedResponse(domain.ViolationRateLimit,
			"You have sent too many requests; wait a moment and try again."), nil
	}

	if verdict := e.detector.Check(req.Question); verdict.ShouldBlock {
		e.logger.Warn("question blocked as injection",
			"tenant", req.TenantID, "risk", verdict.RiskScore, "patterns", verdict.MatchedPatterns)
		e.auditQuietly(e.audit.QueryBlocked(ctx, req, domain.ViolationInjection))
		return blockedResponse(domain.ViolationInjection, refusalAnswer), nil
	}

	if c := e.classifier.Classify(req.Question); c.IsSimpleQuery {
		if resp, ok := e.tryFastPath(ctx, req, c); ok {
			return resp, nil
		}
	}

	if e.classifier.IsComplex(req.Question) && e.classifier.IsImportant(req.Question) {
		return e.processWithConsensus(ctx, req)
	}
	return e.processWithSelfCorrection(ctx, req)
}

// tryFastPath serves canonical simple questions from prebuilt parameterized
// queries. Any failure falls back to generation rather than surfacing.
func (e *Engine) tryFastPath(ctx context.Context, req domain.QueryRequest, c intent.Classification) (*domain.QueryResponse, bool) {
	result, sql, err := e.prebuilt.Run(ctx, req.TenantID, req.Role, c)
	if err != nil {
		e.logger.Warn("fast path failed, falling back to generation", "error", err)
		return nil, false
	}

	resp := e.successResponse(ctx, req, sql, result, nil)
	resp.Metadata.FastPath = true
	return resp, true
}

// pipelineOutcome is one generated statement that survived every layer.
type pipelineOutcome struct {
	sql       string
	tables    []string
	verdicts  []domain.ValidationVerdict
	execution *domain.ExecutionResult
	warnings  []string
}

// runPipeline validates and executes one generated statement.
func (e *Engine) runPipeline(ctx context.Context, req domain.QueryRequest, genReq domain.GenerationRequest) (*pipelineOutcome, error) {
	gen, err := e.generator.Generate(ctx, genReq)
	if err != nil {
		return nil, err
	}
	out := &pipelineOutcome{sql: gen.SQL}

	verdicts, err := e.validator.Validate(gen.SQL)
	out.verdicts = verdicts
	if err != nil {
		return nil, err
	}

	stmt, err := sqlast.Parse(gen.SQL)
	if err != nil {
		return nil, domain.ErrSyntax("parse failed: %v", err)
	}

	if e.security.NeedsDeepValidation(stmt, req.Role) {
		verdict := e.security.Validate(stmt, gen.SQL, req.TenantID, req.Role)
		out.verdicts = append(out.verdicts, verdict)
		out.warnings = append(out.warnings, verdict.Warnings...)
		if !verdict.Passed {
			return nil, astcheck.Error(verdict)
		}
	}

	out.tables = sqlast.CollectTableNames(stmt)
	if decision := e.accessCtl.Check(req.Role, out.tables); !decision.Allowed {
		return nil, access.Error(decision)
	}

	execution, err := e.executor.Execute(ctx, req.Role, gen.SQL)
	if err != nil {
		return nil, err
	}
	out.execution = execution
	if execution.Truncated {
		out.warnings = append(out.warnings, execution.TruncationWarning)
	}

	comparison := e.classifier.IsComplex(req.Question)
	sanityOut, err := e.sanity.Check(execution.Result, comparison)
	if err != nil {
		return nil, err
	}
	out.warnings = append(out.warnings, sanityOut.Warnings...)

	if intent.HasTopClaim(req.Question) {
		if err := e.sanity.CrossCheckCount(ctx, req.Role, gen.SQL, execution); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *Engine) processWithSelfCorrection(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	result, err := e.corrector.Run(ctx, func(ctx context.Context, number int, errorContext string) (*selfcorrect.Attempt, error) {
		out, err := e.runPipeline(ctx, req, domain.GenerationRequest{
			Question:     req.Question,
			TenantID:     req.TenantID,
			ErrorContext: errorContext,
		})
		if err != nil {
			return nil, err
		}
		return &selfcorrect.Attempt{
			Number:    number,
			SQL:       out.sql,
			Tables:    out.tables,
			Verdicts:  out.verdicts,
			Execution: out.execution,
			Warnings:  out.warnings,
		}, nil
	})
	if err != nil {
		return e.failureResponse(ctx, req, err, result.AttemptCount), nil
	}

	attempt := result.Attempt
	resp := e.successResponse(ctx, req, attempt.SQL, attempt.Execution, attempt.Warnings)
	resp.Metadata.AttemptCount = result.AttemptCount
	resp.Metadata.SelfCorrected = result.SelfCorrected
	return resp, nil
}

func (e *Engine) processWithConsensus(ctx context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	outcome, err := e.voter.Vote(ctx, func(ctx context.Context, framing string) *domain.ConsensusCandidate {
		out, err := e.runPipeline(ctx, req, domain.GenerationRequest{
			Question: req.Question,
			TenantID: req.TenantID,
			Framing:  framing,
		})
		if err != nil {
			return &domain.ConsensusCandidate{Err: err}
		}
		return &domain.ConsensusCandidate{
			Attempt:   &domain.GenerationAttempt{SQL: out.sql},
			Execution: out.execution,
			Verdicts:  out.verdicts,
		}
	})
	if err != nil {
		return e.failureResponse(ctx, req, err, len(consensus.Framings)), nil
	}

	winner := outcome.Winner
	var warnings []string
	if outcome.Caveat != "" {
		warnings = append(warnings, outcome.Caveat)
	}
	resp := e.successResponse(ctx, req, winner.Attempt.SQL, winner.Execution, warnings)
	resp.Confidence = outcome.Confidence
	resp.Metadata.ConsensusAgreement = outcome.Agreement
	return resp, nil
}

// successResponse redacts, audits, and assembles the response for an
// executed result.
func (e *Engine) successResponse(ctx context.Context, req domain.QueryRequest, sql string, execution *domain.ExecutionResult, warnings []string) *domain.QueryResponse {
	masked, maskedCols := e.redactor.Apply(req.Role, execution.Result)
	if masked > 0 {
		e.auditQuietly(e.audit.PIIAccess(ctx, req, sql, maskedCols))
	}

	e.auditQuietly(e.audit.QuerySucceeded(ctx, req, sql,
		execution.Duration.Milliseconds(), int64(execution.RowCount), warnings))

	confidence := domain.ConfidenceHigh
	if len(warnings) > 0 {
		confidence = domain.ConfidenceLow
	}

	return &domain.QueryResponse{
		Answer:     composeAnswer(execution.Result),
		SQL:        sql,
		Rows:       execution.Result.MapRows(),
		Confidence: confidence,
		Metadata: domain.ResponseMetadata{
			Warnings:        warnings,
			ExecutionTimeMs: execution.Duration.Milliseconds(),
			RowsReturned:    execution.RowCount,
		},
	}
}

// failureResponse audits the failure and degrades to a polite refusal
// rather than surfacing internals.
func (e *Engine) failureResponse(ctx context.Context, req domain.QueryRequest, err error, attempts int) *domain.QueryResponse {
	violation := domain.ViolationKind(err)
	if violation != "" {
		e.auditQuietly(e.audit.SecurityViolation(ctx, req, "", violation))
	} else {
		e.auditQuietly(e.audit.QueryBlocked(ctx, req, ""))
	}
	e.logger.Warn("query failed",
		"tenant", req.TenantID, "attempts", attempts, "violation", violation, "error", err)

	resp := blockedResponse(violation,
		"I couldn't answer that question reliably. Try rephrasing it or narrowing the date range.")
	resp.Metadata.AttemptCount = attempts
	return resp
}

func blockedResponse(violation, answer string) *domain.QueryResponse {
	return &domain.QueryResponse{
		Answer:     answer,
		Confidence: domain.ConfidenceLow,
		Metadata: domain.ResponseMetadata{
			Blocked:       true,
			ViolationType: violation,
		},
		Suggestions: defaultSuggestions,
	}
}

// composeAnswer renders a short natural-language answer from the result
// shape. Single-cell results read as a direct answer; anything wider
// defers to the row payload.
func composeAnswer(rs *domain.ResultSet) string {
	if sanity.Empty(rs) {
		return "No data was found for your question."
	}
	if len(rs.Rows) == 1 && len(rs.Columns) == 1 {
		return fmt.Sprintf("The answer is %v.", rs.Rows[0][0])
	}
	if len(rs.Rows) == 1 {
		parts := make([]string, 0, len(rs.Columns))
		for i, col := range rs.Columns {
			if i < len(rs.Rows[0]) {
				parts = append(parts, fmt.Sprintf("%s: %v", col, rs.Rows[0][i]))
			}
		}
		return strings.Join(parts, ", ") + "."
	}
	return fmt.Sprintf("Found %d rows; see the result table.", len(rs.Rows))
}

// auditQuietly logs audit failures without failing the request; the
// repository already logged the detail.
func (e *Engine) auditQuietly(err error) {
	if err != nil {
		e.logger.Error("audit write failed", "error", err)
	}
}
