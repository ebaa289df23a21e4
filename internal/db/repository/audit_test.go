package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryguard/internal/db"
	"queryguard/internal/domain"
)

func newTestRepo(t *testing.T) *AuditRepo {
	t.Helper()
	writeDB, readDB := db.OpenTestAuditStore(t)
	return NewAuditRepo(writeDB, readDB)
}

func entryAt(ts time.Time, eventType, tenantID string) *domain.AuditEntry {
	return &domain.AuditEntry{
		ID:        fmt.Sprintf("%s-%d", eventType, ts.UnixNano()),
		CreatedAt: ts,
		EventType: eventType,
		TenantID:  tenantID,
		UserID:    "user-1",
		Role:      domain.RoleManager,
		Question:  "how much did we sell yesterday",
		Outcome:   "SUCCESS",
	}
}

func TestInsertAndListRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 11, 14, 30, 0, 0, time.UTC)

	e := entryAt(now, domain.EventQuerySuccess, "tenant-a")
	e.SQL = "6172a3ffdeadbeef"
	e.SQLEncrypted = true
	e.Warnings = []string{"result truncated to the first 100 rows for your role"}
	e.DurationMs = 240
	e.RowsReturned = 100
	require.NoError(t, repo.Insert(ctx, e))

	entries, err := repo.List(ctx, domain.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, domain.EventQuerySuccess, got.EventType)
	assert.Equal(t, "tenant-a", got.TenantID)
	assert.Equal(t, domain.RoleManager, got.Role)
	assert.Equal(t, e.SQL, got.SQL)
	assert.True(t, got.SQLEncrypted)
	assert.Equal(t, e.Warnings, got.Warnings)
	assert.Equal(t, int64(240), got.DurationMs)
	assert.Equal(t, int64(100), got.RowsReturned)
	assert.True(t, got.CreatedAt.Equal(now))
}

func TestListNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Insert(ctx,
			entryAt(base.AddDate(0, 0, i), domain.EventQuerySuccess, "tenant-a")))
	}

	entries, err := repo.List(ctx, domain.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].CreatedAt.After(entries[1].CreatedAt))
	assert.True(t, entries[1].CreatedAt.After(entries[2].CreatedAt))
}

func TestListAppliesFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, entryAt(base, domain.EventQuerySuccess, "tenant-a")))
	require.NoError(t, repo.Insert(ctx, entryAt(base.Add(time.Hour), domain.EventQueryBlocked, "tenant-a")))
	require.NoError(t, repo.Insert(ctx, entryAt(base.Add(2*time.Hour), domain.EventQuerySuccess, "tenant-b")))

	tenantA := "tenant-a"
	entries, err := repo.List(ctx, domain.AuditFilter{TenantID: &tenantA})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	blocked := domain.EventQueryBlocked
	entries, err = repo.List(ctx, domain.AuditFilter{EventType: &blocked})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EventQueryBlocked, entries[0].EventType)

	since := base.Add(90 * time.Minute)
	entries, err = repo.List(ctx, domain.AuditFilter{Since: &since})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "tenant-b", entries[0].TenantID)
}

func TestListHonorsLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Insert(ctx,
			entryAt(base.Add(time.Duration(i)*time.Minute), domain.EventQuerySuccess, "tenant-a")))
	}

	entries, err := repo.List(ctx, domain.AuditFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDeleteOlderThanRotates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Insert(ctx, entryAt(now.AddDate(0, 0, -45), domain.EventQuerySuccess, "tenant-a")))
	require.NoError(t, repo.Insert(ctx, entryAt(now.AddDate(0, 0, -31), domain.EventQueryBlocked, "tenant-a")))
	require.NoError(t, repo.Insert(ctx, entryAt(now.AddDate(0, 0, -2), domain.EventQuerySuccess, "tenant-a")))

	removed, err := repo.DeleteOlderThan(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	entries, err := repo.List(ctx, domain.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EventQuerySuccess, entries[0].EventType)
}
