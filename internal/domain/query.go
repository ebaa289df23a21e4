package domain

import "time"

// QueryRequest carries one natural-language question through the pipeline.
// Immutable once created.
type QueryRequest struct {
	Question  string
	TenantID  string
	UserID    string
	Role      Role
	SessionID string
	IPAddress string // optional client IP

	// RateLimited is set by the embedding layer when the caller has already
	// exhausted its budget; the engine only audits and refuses.
	RateLimited bool
}

// GenerationAttempt records one candidate produced by the oracle.
type GenerationAttempt struct {
	Number       int
	SQL          string
	Explanation  string
	Confidence   float64 // oracle self-reported, 0..1
	Tables       []string
	ReadOnly     bool
	ErrorContext string // prior attempt's failure, empty on the first attempt
}

// ValidationVerdict is one validation layer's judgment of an attempt.
// Any Errors entry fails the attempt; Warnings alone never block but are
// always audited.
type ValidationVerdict struct {
	Layer    string
	Passed   bool
	Errors   []string
	Warnings []string
}

// ResultSet is a column-ordered set of rows returned by the store.
type ResultSet struct {
	Columns []string
	Rows    [][]interface{}
}

// ColumnIndex returns the position of the named column, or -1.
func (rs *ResultSet) ColumnIndex(name string) int {
	for i, c := range rs.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// MapRows converts the rows into column-name keyed maps for serialization.
func (rs *ResultSet) MapRows() []map[string]interface{} {
	out := make([]map[string]interface{}, len(rs.Rows))
	for i, row := range rs.Rows {
		m := make(map[string]interface{}, len(rs.Columns))
		for j, col := range rs.Columns {
			if j < len(row) {
				m[col] = row[j]
			}
		}
		out[i] = m
	}
	return out
}

// ExecutionResult is the governed outcome of running one attempt's SQL.
type ExecutionResult struct {
	Result            *ResultSet
	RowCount          int
	Duration          time.Duration
	Truncated         bool
	TruncationWarning string
}

// ConsensusCandidate pairs one independent generation with its execution
// outcome. Err is set when the branch failed at any layer.
type ConsensusCandidate struct {
	Attempt   *GenerationAttempt
	Execution *ExecutionResult
	Verdicts  []ValidationVerdict
	Err       error
}

// Confidence levels reported to the caller.
const (
	ConfidenceHigh = "HIGH"
	ConfidenceLow  = "LOW"
)

// ResponseMetadata describes how the answer was produced.
type ResponseMetadata struct {
	Blocked            bool     `json:"blocked"`
	ViolationType      string   `json:"violationType,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
	ExecutionTimeMs    int64    `json:"executionTimeMs"`
	RowsReturned       int      `json:"rowsReturned"`
	AttemptCount       int      `json:"attemptCount,omitempty"`
	SelfCorrected      bool     `json:"selfCorrected,omitempty"`
	FastPath           bool     `json:"fastPath,omitempty"`
	ConsensusAgreement float64  `json:"consensusAgreement,omitempty"`
}

// QueryResponse is the inbound call's result contract.
type QueryResponse struct {
	Answer      string                   `json:"answer"`
	SQL         string                   `json:"sql,omitempty"`
	Rows        []map[string]interface{} `json:"rows,omitempty"`
	Confidence  string                   `json:"confidence"` // ConfidenceHigh or ConfidenceLow
	Metadata    ResponseMetadata         `json:"metadata"`
	Suggestions []string                 `json:"suggestions,omitempty"`
}
