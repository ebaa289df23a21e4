package sanity

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryguard/internal/domain"
)

// fakeExecutor answers from queue first, then falls back to result.
type fakeExecutor struct {
	result  *domain.ExecutionResult
	queue   []*domain.ExecutionResult
	err     error
	lastSQL string
	sqls    []string
}

func (f *fakeExecutor) Execute(ctx context.Context, role domain.Role, sql string, args ...interface{}) (*domain.ExecutionResult, error) {
	f.lastSQL = sql
	f.sqls = append(f.sqls, sql)
	if len(f.queue) > 0 {
		next := f.queue[0]
		f.queue = f.queue[1:]
		return next, nil
	}
	return f.result, f.err
}

// aggregate builds the single-cell result a verification statement returns.
func aggregate(v interface{}) *domain.ExecutionResult {
	return &domain.ExecutionResult{
		Result:   &domain.ResultSet{Columns: []string{"n"}, Rows: [][]interface{}{{v}}},
		RowCount: 1,
	}
}

var fixedNow = time.Date(2026, 3, 11, 14, 30, 0, 0, time.UTC)

func newTestChecker(t *testing.T, exec Executor) *Checker {
	t.Helper()
	c := NewChecker(slog.Default(), exec)
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestCheckFlagsEmptyResults(t *testing.T) {
	c := newTestChecker(t, nil)

	out, err := c.Check(&domain.ResultSet{Columns: []string{"total"}}, false)
	require.NoError(t, err)
	assert.True(t, out.Empty)

	allNull := &domain.ResultSet{
		Columns: []string{"total"},
		Rows:    [][]interface{}{{nil}, {nil}},
	}
	out, err = c.Check(allNull, false)
	require.NoError(t, err)
	assert.True(t, out.Empty)
}

func TestCheckAcceptsPlausibleResults(t *testing.T) {
	c := newTestChecker(t, nil)
	rs := &domain.ResultSet{
		Columns: []string{"day", "total"},
		Rows: [][]interface{}{
			{"2026-03-09", float64(1200)},
			{"2026-03-10", float64(1150)},
		},
	}

	out, err := c.Check(rs, false)

	require.NoError(t, err)
	assert.False(t, out.Empty)
	assert.Empty(t, out.Warnings)
}

func TestCheckRejectsFutureDates(t *testing.T) {
	c := newTestChecker(t, nil)
	rs := &domain.ResultSet{
		Columns: []string{"created_at", "total"},
		Rows:    [][]interface{}{{"2027-01-01", float64(10)}},
	}

	_, err := c.Check(rs, false)

	require.Error(t, err)
	var rvErr *domain.ResultValidationError
	require.ErrorAs(t, err, &rvErr)
	assert.Contains(t, err.Error(), "future date")
}

func TestCheckRejectsImpossiblePercentages(t *testing.T) {
	c := newTestChecker(t, nil)
	rs := &domain.ResultSet{
		Columns: []string{"product", "discount_percent"},
		Rows:    [][]interface{}{{"latte", float64(140)}},
	}

	_, err := c.Check(rs, false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "percentage")
}

func TestCheckRejectsNegativeTotals(t *testing.T) {
	c := newTestChecker(t, nil)
	rs := &domain.ResultSet{
		Columns: []string{"day", "revenue"},
		Rows:    [][]interface{}{{"2026-03-09", float64(-500)}},
	}

	_, err := c.Check(rs, false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative total")
}

func TestCheckWarnsOnOutliers(t *testing.T) {
	c := newTestChecker(t, nil)
	rs := &domain.ResultSet{
		Columns: []string{"day", "total"},
		Rows: [][]interface{}{
			{"2026-03-06", float64(100)},
			{"2026-03-07", float64(110)},
			{"2026-03-08", float64(95)},
			{"2026-03-09", float64(5000)},
		},
	}

	out, err := c.Check(rs, false)

	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "outlier")
}

func TestCheckWarnsOnThinComparisons(t *testing.T) {
	c := newTestChecker(t, nil)
	rs := &domain.ResultSet{
		Columns: []string{"shift", "total"},
		Rows: [][]interface{}{
			{"morning", float64(800)},
			{"evening", float64(650)},
		},
	}

	out, err := c.Check(rs, true)

	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "comparison")
}

func TestCrossCheckCountAgrees(t *testing.T) {
	exec := &fakeExecutor{result: &domain.ExecutionResult{
		Result:   &domain.ResultSet{Columns: []string{"n"}, Rows: [][]interface{}{{int64(3)}}},
		RowCount: 1,
	}}
	c := newTestChecker(t, exec)
	result := &domain.ExecutionResult{RowCount: 3}

	err := c.CrossCheckCount(context.Background(), domain.RoleManager, "SELECT x FROM t;", result)

	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) AS n FROM (SELECT x FROM t) verification", exec.lastSQL)
}

func TestCrossCheckCountMismatchFailsHard(t *testing.T) {
	exec := &fakeExecutor{result: &domain.ExecutionResult{
		Result: &domain.ResultSet{Columns: []string{"n"}, Rows: [][]interface{}{{int64(7)}}},
	}}
	c := newTestChecker(t, exec)
	result := &domain.ExecutionResult{RowCount: 3}

	err := c.CrossCheckCount(context.Background(), domain.RoleManager, "SELECT x FROM t", result)

	require.Error(t, err)
	var rvErr *domain.ResultValidationError
	require.ErrorAs(t, err, &rvErr)
	assert.Contains(t, err.Error(), "recount found 7")
}

func TestCrossCheckCountVerifiesTopValue(t *testing.T) {
	exec := &fakeExecutor{queue: []*domain.ExecutionResult{
		aggregate(int64(3)),
		aggregate(float64(900)),
	}}
	c := newTestChecker(t, exec)
	result := &domain.ExecutionResult{
		Result: &domain.ResultSet{
			Columns: []string{"product", "total"},
			Rows: [][]interface{}{
				{"latte", float64(900)},
				{"mocha", float64(500)},
				{"drip", float64(300)},
			},
		},
		RowCount: 3,
	}

	err := c.CrossCheckCount(context.Background(), domain.RoleManager,
		"SELECT product, total FROM t ORDER BY total DESC", result)

	require.NoError(t, err)
	require.Len(t, exec.sqls, 2)
	assert.Equal(t,
		"SELECT MAX(total) AS m FROM (SELECT product, total FROM t ORDER BY total DESC) verification",
		exec.sqls[1])
}

func TestCrossCheckCountTopValueMismatchFailsHard(t *testing.T) {
	exec := &fakeExecutor{queue: []*domain.ExecutionResult{
		aggregate(int64(1)),
		aggregate(float64(950)),
	}}
	c := newTestChecker(t, exec)
	result := &domain.ExecutionResult{
		Result: &domain.ResultSet{
			Columns: []string{"product", "total"},
			Rows:    [][]interface{}{{"latte", float64(900)}},
		},
		RowCount: 1,
	}

	err := c.CrossCheckCount(context.Background(), domain.RoleManager,
		"SELECT product, total FROM t", result)

	require.Error(t, err)
	var rvErr *domain.ResultValidationError
	require.ErrorAs(t, err, &rvErr)
	assert.Contains(t, err.Error(), "re-aggregation found 950.00")
}

func TestCrossCheckCountSkipsTruncatedResults(t *testing.T) {
	exec := &fakeExecutor{}
	c := newTestChecker(t, exec)
	result := &domain.ExecutionResult{RowCount: 100, Truncated: true}

	err := c.CrossCheckCount(context.Background(), domain.RoleManager, "SELECT x FROM t", result)

	require.NoError(t, err)
	assert.Empty(t, exec.lastSQL)
}
