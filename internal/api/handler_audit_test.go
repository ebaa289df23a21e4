package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryguard/internal/domain"
)

func getAudit(router http.Handler, query string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/audit"+query, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seedEntry(t *testing.T, repo *memAuditRepo, eventType string) {
	t.Helper()
	err := repo.Insert(context.Background(), &domain.AuditEntry{
		ID:        "entry-1",
		CreatedAt: time.Now().UTC(),
		EventType: eventType,
		TenantID:  "tenant-a",
		UserID:    "user-1",
		Role:      domain.RoleViewer,
		Question:  "how much did we sell yesterday",
		Outcome:   "SUCCESS",
	})
	require.NoError(t, err)
}

func TestHandleAuditList_AdminOnly(t *testing.T) {
	router, _ := newTestServer(t)

	for _, role := range []string{"viewer", "analyst", "manager"} {
		rec := getAudit(router, "", identityHeaders(role))
		assert.Equal(t, http.StatusForbidden, rec.Code, "role %s", role)
	}
}

func TestHandleAuditList_ReturnsEntries(t *testing.T) {
	router, repo := newTestServer(t)
	seedEntry(t, repo, domain.EventQuerySuccess)

	rec := getAudit(router, "", identityHeaders("admin"))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Entries []auditEntryResponse `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, domain.EventQuerySuccess, body.Entries[0].EventType)
	assert.Equal(t, "tenant-a", body.Entries[0].TenantID)
}

func TestHandleAuditList_RejectsBadSince(t *testing.T) {
	router, _ := newTestServer(t)

	rec := getAudit(router, "?since=not-a-time", identityHeaders("admin"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAuditList_RequiresIdentity(t *testing.T) {
	router, _ := newTestServer(t)

	rec := getAudit(router, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
