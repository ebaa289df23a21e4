package intent

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryguard/internal/domain"
)

// fixedNow is a Wednesday.
var fixedNow = time.Date(2026, 3, 11, 14, 30, 0, 0, time.UTC)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c := NewClassifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestClassifyAggregateSales(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify("What were my total sales yesterday?")

	require.True(t, got.IsSimpleQuery)
	assert.Equal(t, IntentAggregateSales, got.Intent)
	assert.Equal(t, "yesterday", got.DateRange.Label)
	assert.InDelta(t, 0.95, got.Confidence, 0.001)
}

func TestClassifyTopProducts(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify("Show me the top 10 products this month")

	require.True(t, got.IsSimpleQuery)
	assert.Equal(t, IntentTopProducts, got.Intent)
	assert.Equal(t, 10, got.TopN)
	assert.Equal(t, "thisMonth", got.DateRange.Label)
}

func TestClassifyTopProductsDefaultsN(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify("top selling items today")
	require.True(t, got.IsSimpleQuery)
	assert.Equal(t, 5, got.TopN)
}

func TestClassifyAverageTicketAndReviews(t *testing.T) {
	c := newTestClassifier(t)

	avg := c.Classify("what is the average ticket size today?")
	require.True(t, avg.IsSimpleQuery)
	assert.Equal(t, IntentAverageTicket, avg.Intent)

	reviews := c.Classify("review stats for last week")
	require.True(t, reviews.IsSimpleQuery)
	assert.Equal(t, IntentReviewStats, reviews.Intent)
	assert.Equal(t, "lastWeek", reviews.DateRange.Label)
}

func TestClassifyDefaultsDateRange(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify("total sales")

	require.True(t, got.IsSimpleQuery)
	assert.Equal(t, "last30days", got.DateRange.Label)
	assert.InDelta(t, 0.9, got.Confidence, 0.001)
}

func TestClassifyRejectsComplexQuestions(t *testing.T) {
	c := newTestClassifier(t)

	for _, q := range []string{
		"Compare sales this week versus last week",
		"What were sales on Saturday morning?",
		"sales by product and region",
		"Did revenue grow more than last month?",
	} {
		got := c.Classify(q)
		assert.False(t, got.IsSimpleQuery, "question %q", q)
	}
}

func TestClassifyRejectsUnknownShapes(t *testing.T) {
	c := newTestClassifier(t)
	assert.False(t, c.Classify("why is the sky blue").IsSimpleQuery)
}

func TestIsImportant(t *testing.T) {
	c := newTestClassifier(t)

	assert.True(t, c.IsImportant("rank my staff by performance"))
	assert.True(t, c.IsImportant("should I discontinue this product?"))
	assert.False(t, c.IsImportant("total sales today"))
}

func TestParseDateRangeBoundaries(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		q          string
		label      string
		start, end time.Time
	}{
		{"sales today", "today", day(2026, 3, 11), day(2026, 3, 12)},
		{"sales yesterday", "yesterday", day(2026, 3, 10), day(2026, 3, 11)},
		{"sales last 7 days", "last7days", day(2026, 3, 4), day(2026, 3, 12)},
		// Weeks start on Monday; fixedNow is Wednesday 2026-03-11.
		{"sales this week", "thisWeek", day(2026, 3, 9), day(2026, 3, 16)},
		{"sales last week", "lastWeek", day(2026, 3, 2), day(2026, 3, 9)},
		{"sales this month", "thisMonth", day(2026, 3, 1), day(2026, 4, 1)},
		{"sales last month", "lastMonth", day(2026, 2, 1), day(2026, 3, 1)},
	}

	for _, tt := range tests {
		dr, ok := ParseDateRange(tt.q, fixedNow)
		require.True(t, ok, "question %q", tt.q)
		assert.Equal(t, tt.label, dr.Label, "question %q", tt.q)
		assert.Equal(t, tt.start, dr.Start, "question %q", tt.q)
		assert.Equal(t, tt.end, dr.End, "question %q", tt.q)
	}
}

type fakeExecutor struct {
	lastSQL  string
	lastArgs []interface{}
	result   *domain.ExecutionResult
	err      error
}

func (f *fakeExecutor) Execute(_ context.Context, _ domain.Role, sql string, args ...interface{}) (*domain.ExecutionResult, error) {
	f.lastSQL = sql
	f.lastArgs = args
	return f.result, f.err
}

func TestPrebuiltRunBindsTenantAndRange(t *testing.T) {
	exec := &fakeExecutor{result: &domain.ExecutionResult{
		Result:   &domain.ResultSet{Columns: []string{"order_count", "total_sales"}, Rows: [][]interface{}{{int64(3), 42.5}}},
		RowCount: 1,
	}}
	p := NewPrebuilt(slog.New(slog.NewTextHandler(io.Discard, nil)), exec)

	c := Classification{
		IsSimpleQuery: true,
		Intent:        IntentAggregateSales,
		DateRange:     relativeRange(fixedNow, "today"),
	}
	res, sql, err := p.Run(context.Background(), "tenant-a", domain.RoleViewer, c)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowCount)
	assert.Contains(t, sql, "tenant_id = ?")

	require.Len(t, exec.lastArgs, 3)
	assert.Equal(t, "tenant-a", exec.lastArgs[0])
}

func TestPrebuiltRunTopNArg(t *testing.T) {
	exec := &fakeExecutor{result: &domain.ExecutionResult{Result: &domain.ResultSet{}}}
	p := NewPrebuilt(slog.New(slog.NewTextHandler(io.Discard, nil)), exec)

	c := Classification{Intent: IntentTopProducts, TopN: 7, DateRange: relativeRange(fixedNow, "thisWeek")}
	_, _, err := p.Run(context.Background(), "tenant-a", domain.RoleManager, c)
	require.NoError(t, err)

	require.Len(t, exec.lastArgs, 4)
	assert.Equal(t, 7, exec.lastArgs[3])
}

func TestPrebuiltRunUnknownIntent(t *testing.T) {
	p := NewPrebuilt(slog.New(slog.NewTextHandler(io.Discard, nil)), &fakeExecutor{})
	_, _, err := p.Run(context.Background(), "tenant-a", domain.RoleViewer, Classification{Intent: "bogus"})
	assert.Error(t, err)
}
