// Package governor bounds every statement that reaches the store: a
// per-role wall-clock budget, a per-role row cap with truncation, and a
// payload ceiling on the serialized result.
package governor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"queryguard/internal/domain"
)

// rowCaps is the maximum row count surfaced per role. Rows past the cap
// are dropped, never streamed.
var rowCaps = map[domain.Role]int{
	domain.RoleViewer:  100,
	domain.RoleAnalyst: 500,
	domain.RoleManager: 1000,
	domain.RoleAdmin:   5000,
}

// Governor wraps a RowStore with execution limits. Safe for concurrent use.
type Governor struct {
	logger      *slog.Logger
	store       domain.RowStore
	baseTimeout time.Duration
	maxBytes    int
}

func NewGovernor(logger *slog.Logger, store domain.RowStore, baseTimeout time.Duration, maxBytes int) *Governor {
	return &Governor{
		logger:      logger.With("component", "governor"),
		store:       store,
		baseTimeout: baseTimeout,
		maxBytes:    maxBytes,
	}
}

// Timeout returns the wall-clock budget for the role. Admin gets double
// the base budget, everyone else the base.
func (g *Governor) Timeout(role domain.Role) time.Duration {
	if role == domain.RoleAdmin {
		return 2 * g.baseTimeout
	}
	return g.baseTimeout
}

// RowCap returns the row ceiling for the role.
func (g *Governor) RowCap(role domain.Role) int {
	if cap, ok := rowCaps[role]; ok {
		return cap
	}
	return rowCaps[domain.RoleViewer]
}

// Execute runs the statement under the role's limits. The store call is
// raced against the budget; on expiry the call is abandoned and a timeout
// error returned, relying on the store to stop server-side work when its
// context dies.
func (g *Governor) Execute(ctx context.Context, role domain.Role, sql string, args ...interface{}) (*domain.ExecutionResult, error) {
	budget := g.Timeout(role)
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type outcome struct {
		rs  *domain.ResultSet
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		rs, err := g.store.Query(runCtx, sql, args...)
		done <- outcome{rs, err}
	}()

	var rs *domain.ResultSet
	select {
	case out := <-done:
		if out.err != nil {
			if runCtx.Err() != nil {
				return nil, domain.ErrExecutionTimeout("query exceeded the %s execution budget", budget)
			}
			return nil, domain.ErrExecution("execution failed: %v", out.err)
		}
		rs = out.rs
	case <-runCtx.Done():
		g.logger.Warn("query abandoned at budget",
			"role", string(role), "budget", budget.String())
		return nil, domain.ErrExecutionTimeout("query exceeded the %s execution budget", budget)
	}
	elapsed := time.Since(start)

	result := &domain.ExecutionResult{
		Result:   rs,
		RowCount: len(rs.Rows),
		Duration: elapsed,
	}
	cap := g.RowCap(role)
	if result.RowCount > cap {
		rs.Rows = rs.Rows[:cap]
		result.RowCount = cap
		result.Truncated = true
		result.TruncationWarning = fmt.Sprintf(
			"result truncated to the first %d rows for your role", cap)
	}

	if size := estimatePayload(rs); size > g.maxBytes {
		g.logger.Warn("payload ceiling exceeded",
			"role", string(role), "estimated_bytes", size, "ceiling", g.maxBytes)
		return nil, domain.ErrPayloadTooLarge(
			"result is too large to return; narrow your query with a date range or fewer columns")
	}
	return result, nil
}

// ExecutePage runs the statement under Execute's limits, then returns only
// the requested page of rows. Pages are 1-based; pageSize is clamped to
// the role's row cap.
func (g *Governor) ExecutePage(ctx context.Context, role domain.Role, sql string, page, pageSize int, args ...interface{}) (*domain.ExecutionResult, error) {
	if page < 1 {
		page = 1
	}
	if cap := g.RowCap(role); pageSize < 1 || pageSize > cap {
		pageSize = cap
	}

	result, err := g.Execute(ctx, role, sql, args...)
	if err != nil {
		return nil, err
	}

	rows := result.Result.Rows
	lo := (page - 1) * pageSize
	hi := lo + pageSize
	if lo > len(rows) {
		lo = len(rows)
	}
	if hi > len(rows) {
		hi = len(rows)
	}
	result.Result.Rows = rows[lo:hi]
	result.RowCount = hi - lo
	return result, nil
}

// estimatePayload approximates the serialized size of the result without
// marshaling it. Strings count their bytes; everything else a flat 16.
func estimatePayload(rs *domain.ResultSet) int {
	size := 0
	for _, col := range rs.Columns {
		size += len(col) + 4
	}
	perRowOverhead := 2 + 4*len(rs.Columns)
	for _, row := range rs.Rows {
		size += perRowOverhead
		for _, cell := range row {
			if s, ok := cell.(string); ok {
				size += len(s) + 2
			} else {
				size += 16
			}
		}
	}
	return size
}
