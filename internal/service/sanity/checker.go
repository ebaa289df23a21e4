// Package sanity inspects executed results for implausible values before
// an answer is composed from them. Hard failures reject the result; soft
// findings become warnings and lower the reported confidence.
package sanity

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"queryguard/internal/domain"
)

// Executor re-runs verification statements under the same limits as the
// original query.
type Executor interface {
	Execute(ctx context.Context, role domain.Role, sql string, args ...interface{}) (*domain.ExecutionResult, error)
}

// Outcome is the soft half of a check: findings that do not reject the
// result but must reach the caller.
type Outcome struct {
	Empty    bool
	Warnings []string
}

// Checker is stateless apart from the clock, which tests override.
type Checker struct {
	logger *slog.Logger
	exec   Executor
	now    func() time.Time
}

func NewChecker(logger *slog.Logger, exec Executor) *Checker {
	return &Checker{
		logger: logger.With("component", "sanity"),
		exec:   exec,
		now:    time.Now,
	}
}

var (
	percentColumns = []string{"percent", "pct", "percentage"}
	totalColumns   = []string{"total", "revenue", "amount", "sales", "subtotal", "sum"}
	dateColumns    = []string{"date", "created_at", "updated_at", "day", "week", "month"}
)

func nameMatches(col string, needles []string) bool {
	lower := strings.ToLower(col)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

// Check validates the result set. comparison marks results that answer a
// comparative question, which need at least three rows to be meaningful.
func (c *Checker) Check(rs *domain.ResultSet, comparison bool) (Outcome, error) {
	if Empty(rs) {
		return Outcome{Empty: true}, nil
	}

	var out Outcome
	for i, col := range rs.Columns {
		isPercent := nameMatches(col, percentColumns)
		isTotal := nameMatches(col, totalColumns)
		isDate := nameMatches(col, dateColumns)

		for _, row := range rs.Rows {
			if i >= len(row) || row[i] == nil {
				continue
			}
			if v, ok := asFloat(row[i]); ok {
				if isPercent && (v < 0 || v > 100) {
					return out, domain.ErrResultValidation(
						"column %q holds %.2f, outside the valid percentage range", col, v)
				}
				if isTotal && v < 0 {
					return out, domain.ErrResultValidation(
						"column %q holds a negative total %.2f", col, v)
				}
			}
			if isDate {
				if ts, ok := asTime(row[i]); ok && ts.After(c.now().Add(24*time.Hour)) {
					return out, domain.ErrResultValidation(
						"column %q holds the future date %s", col, ts.Format("2006-01-02"))
				}
			}
		}

		if isTotal {
			if warning := outlierWarning(col, column(rs, i)); warning != "" {
				out.Warnings = append(out.Warnings, warning)
			}
		}
	}

	if comparison && len(rs.Rows) < 3 {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("only %d rows available for comparison; treat the trend with caution", len(rs.Rows)))
	}
	return out, nil
}

// CrossCheckCount re-runs the original statement wrapped in narrow
// aggregates and fails hard on disagreement: first the row count, then,
// when the result leads with a ranked total, the claimed top value.
// Skipped when the result was truncated, since the surfaced count is
// then deliberately smaller.
func (c *Checker) CrossCheckCount(ctx context.Context, role domain.Role, sql string, result *domain.ExecutionResult) error {
	if result.Truncated {
		return nil
	}
	inner := strings.TrimRight(strings.TrimSpace(sql), ";")
	countSQL := "SELECT COUNT(*) AS n FROM (" + inner + ") verification"
	n, err := c.runAggregate(ctx, role, countSQL)
	if err != nil {
		return err
	}
	if int(n) != result.RowCount {
		c.logger.Error("result cross-check mismatch",
			"reported", result.RowCount, "verified", int(n))
		return domain.ErrResultValidation(
			"result could not be verified: expected %d rows, recount found %d", result.RowCount, int(n))
	}
	return c.crossCheckTopValue(ctx, role, inner, result.Result)
}

// crossCheckTopValue re-aggregates the leading totals column and compares
// it to the value the first row claims. Ranked results order descending,
// so the head row must carry the column maximum.
func (c *Checker) crossCheckTopValue(ctx context.Context, role domain.Role, inner string, rs *domain.ResultSet) error {
	if rs == nil || len(rs.Rows) == 0 {
		return nil
	}
	col, claimed, ok := leadingTotal(rs)
	if !ok {
		return nil
	}
	maxSQL := "SELECT MAX(" + col + ") AS m FROM (" + inner + ") verification"
	m, err := c.runAggregate(ctx, role, maxSQL)
	if err != nil {
		return err
	}
	if !withinTolerance(claimed, m) {
		c.logger.Error("result cross-check mismatch",
			"column", col, "claimed", claimed, "verified", m)
		return domain.ErrResultValidation(
			"result could not be verified: top %s reads %.2f, re-aggregation found %.2f", col, claimed, m)
	}
	return nil
}

// runAggregate executes a single-cell verification statement and returns
// its numeric value.
func (c *Checker) runAggregate(ctx context.Context, role domain.Role, sql string) (float64, error) {
	verification, err := c.exec.Execute(ctx, role, sql)
	if err != nil {
		return 0, domain.ErrResultValidation("verification query failed: %v", err)
	}
	if len(verification.Result.Rows) != 1 || len(verification.Result.Rows[0]) != 1 {
		return 0, domain.ErrResultValidation("verification query returned an unexpected shape")
	}
	v, ok := asFloat(verification.Result.Rows[0][0])
	if !ok {
		return 0, domain.ErrResultValidation("verification query returned a non-numeric value")
	}
	return v, nil
}

// plainIdentRe limits re-aggregation to column names that can be embedded
// in a verification statement without quoting.
var plainIdentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// leadingTotal returns the first totals-like column and the value its
// head row holds.
func leadingTotal(rs *domain.ResultSet) (string, float64, bool) {
	for i, col := range rs.Columns {
		if !nameMatches(col, totalColumns) || !plainIdentRe.MatchString(col) {
			continue
		}
		if i < len(rs.Rows[0]) {
			if v, ok := asFloat(rs.Rows[0][i]); ok {
				return col, v, true
			}
		}
		return "", 0, false
	}
	return "", 0, false
}

// withinTolerance allows one percent of relative drift, matching the
// consensus vote tolerance, with an absolute floor for near-zero values.
func withinTolerance(a, b float64) bool {
	diff := math.Abs(a - b)
	if diff <= 1e-9 {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return diff <= 0.01*scale
}

// outlierWarning flags a value more than ten times the average of the
// others in its column. Needs at least four values to be meaningful.
func outlierWarning(col string, values []interface{}) string {
	var nums []float64
	for _, v := range values {
		if f, ok := asFloat(v); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) < 4 {
		return ""
	}
	total := 0.0
	for _, f := range nums {
		total += f
	}
	for _, f := range nums {
		rest := (total - f) / float64(len(nums)-1)
		if rest > 0 && f > 10*rest {
			return fmt.Sprintf("column %q contains an outlier more than 10x the average; verify before acting on it", col)
		}
	}
	return ""
}

func column(rs *domain.ResultSet, i int) []interface{} {
	out := make([]interface{}, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if i < len(row) {
			out = append(out, row[i])
		}
	}
	return out
}

// Empty reports whether a result carries no usable data: no rows, or
// rows whose every cell is NULL. Callers composing answers must treat
// both the same way.
func Empty(rs *domain.ResultSet) bool {
	if rs == nil || len(rs.Rows) == 0 {
		return true
	}
	return allNull(rs)
}

func allNull(rs *domain.ResultSet) bool {
	for _, row := range rs.Rows {
		for _, cell := range row {
			if cell != nil {
				return false
			}
		}
	}
	return true
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}
