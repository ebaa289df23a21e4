package governor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryguard/internal/domain"
)

type fakeStore struct {
	rs      *domain.ResultSet
	err     error
	delay   time.Duration
	lastSQL string
}

func (f *fakeStore) Query(ctx context.Context, sql string, args ...interface{}) (*domain.ResultSet, error) {
	f.lastSQL = sql
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.rs, f.err
}

func rowsOf(n int) *domain.ResultSet {
	rs := &domain.ResultSet{Columns: []string{"id", "total"}}
	for i := 0; i < n; i++ {
		rs.Rows = append(rs.Rows, []interface{}{int64(i), int64(i * 10)})
	}
	return rs
}

func newTestGovernor(t *testing.T, store domain.RowStore, timeout time.Duration, maxBytes int) *Governor {
	t.Helper()
	return NewGovernor(slog.Default(), store, timeout, maxBytes)
}

func TestExecuteReturnsRows(t *testing.T) {
	store := &fakeStore{rs: rowsOf(5)}
	g := newTestGovernor(t, store, time.Second, 1<<20)

	result, err := g.Execute(context.Background(), domain.RoleViewer, "SELECT 1")

	require.NoError(t, err)
	assert.Equal(t, 5, result.RowCount)
	assert.False(t, result.Truncated)
	assert.Equal(t, "SELECT 1", store.lastSQL)
}

func TestExecuteTruncatesAtRoleCap(t *testing.T) {
	store := &fakeStore{rs: rowsOf(150)}
	g := newTestGovernor(t, store, time.Second, 1<<20)

	result, err := g.Execute(context.Background(), domain.RoleViewer, "SELECT 1")

	require.NoError(t, err)
	assert.Equal(t, 100, result.RowCount)
	assert.Len(t, result.Result.Rows, 100)
	assert.True(t, result.Truncated)
	assert.Contains(t, result.TruncationWarning, "100")
}

func TestRowCapsScaleWithRole(t *testing.T) {
	g := newTestGovernor(t, &fakeStore{}, time.Second, 1<<20)

	assert.Equal(t, 100, g.RowCap(domain.RoleViewer))
	assert.Equal(t, 500, g.RowCap(domain.RoleAnalyst))
	assert.Equal(t, 1000, g.RowCap(domain.RoleManager))
	assert.Equal(t, 5000, g.RowCap(domain.RoleAdmin))
}

func TestTimeoutDoublesForAdmin(t *testing.T) {
	g := newTestGovernor(t, &fakeStore{}, 15*time.Second, 1<<20)

	assert.Equal(t, 15*time.Second, g.Timeout(domain.RoleManager))
	assert.Equal(t, 30*time.Second, g.Timeout(domain.RoleAdmin))
}

func TestExecuteAbandonsSlowQueries(t *testing.T) {
	store := &fakeStore{rs: rowsOf(1), delay: 200 * time.Millisecond}
	g := newTestGovernor(t, store, 20*time.Millisecond, 1<<20)

	start := time.Now()
	_, err := g.Execute(context.Background(), domain.RoleViewer, "SELECT 1")

	require.Error(t, err)
	var timeout *domain.ExecutionTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestExecuteEnforcesPayloadCeiling(t *testing.T) {
	rs := &domain.ResultSet{Columns: []string{"blob"}}
	for i := 0; i < 10; i++ {
		rs.Rows = append(rs.Rows, []interface{}{fmt.Sprintf("%01000d", i)})
	}
	g := newTestGovernor(t, &fakeStore{rs: rs}, time.Second, 512)

	_, err := g.Execute(context.Background(), domain.RoleViewer, "SELECT 1")

	require.Error(t, err)
	var tooLarge *domain.PayloadTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Contains(t, err.Error(), "narrow your query")
}

func TestExecuteWrapsStoreErrors(t *testing.T) {
	store := &fakeStore{err: errors.New("disk on fire")}
	g := newTestGovernor(t, store, time.Second, 1<<20)

	_, err := g.Execute(context.Background(), domain.RoleViewer, "SELECT 1")

	require.Error(t, err)
	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestExecutePageSlicesRows(t *testing.T) {
	store := &fakeStore{rs: rowsOf(10)}
	g := newTestGovernor(t, store, time.Second, 1<<20)

	result, err := g.ExecutePage(context.Background(), domain.RoleViewer, "SELECT 1", 2, 3)

	require.NoError(t, err)
	assert.Equal(t, 3, result.RowCount)
	assert.Equal(t, int64(3), result.Result.Rows[0][0])
	assert.Equal(t, int64(5), result.Result.Rows[2][0])
}

func TestExecutePagePastEndIsEmpty(t *testing.T) {
	store := &fakeStore{rs: rowsOf(4)}
	g := newTestGovernor(t, store, time.Second, 1<<20)

	result, err := g.ExecutePage(context.Background(), domain.RoleViewer, "SELECT 1", 5, 3)

	require.NoError(t, err)
	assert.Zero(t, result.RowCount)
	assert.Empty(t, result.Result.Rows)
}
