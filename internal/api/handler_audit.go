package api

import (
	"net/http"
	"strconv"
	"time"

	"queryguard/internal/domain"
	"queryguard/internal/middleware"
)

type auditEntryResponse struct {
	ID           string   `json:"id"`
	CreatedAt    string   `json:"createdAt"`
	EventType    string   `json:"eventType"`
	TenantID     string   `json:"tenantId"`
	UserID       string   `json:"userId"`
	Role         string   `json:"role"`
	Question     string   `json:"question"`
	SQL          string   `json:"sql,omitempty"`
	SQLEncrypted bool     `json:"sqlEncrypted"`
	Outcome      string   `json:"outcome"`
	Violation    string   `json:"violation,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	DurationMs   int64    `json:"durationMs"`
	RowsReturned int64    `json:"rowsReturned"`
}

// HandleAuditList implements GET /v1/audit. Admin only. Entries stored
// with encrypted SQL stay ciphertext unless decrypt=true is passed.
func (h *APIHandler) HandleAuditList(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}
	if identity.Role != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, "audit access requires the admin role")
		return
	}

	filter, err := auditFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.audit.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "audit lookup failed")
		return
	}

	decrypt := r.URL.Query().Get("decrypt") == "true"
	out := make([]auditEntryResponse, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		sqlText := e.SQL
		encrypted := e.SQLEncrypted
		if encrypted && decrypt {
			if plain, derr := h.audit.DecryptSQL(e); derr == nil {
				sqlText = plain
				encrypted = false
			}
		}
		out = append(out, auditEntryResponse{
			ID:           e.ID,
			CreatedAt:    e.CreatedAt.Format(time.RFC3339),
			EventType:    e.EventType,
			TenantID:     e.TenantID,
			UserID:       e.UserID,
			Role:         string(e.Role),
			Question:     e.Question,
			SQL:          sqlText,
			SQLEncrypted: encrypted,
			Outcome:      e.Outcome,
			Violation:    e.Violation,
			Warnings:     e.Warnings,
			DurationMs:   e.DurationMs,
			RowsReturned: e.RowsReturned,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": out})
}

func auditFilterFromQuery(r *http.Request) (domain.AuditFilter, error) {
	var filter domain.AuditFilter
	q := r.URL.Query()

	if v := q.Get("tenant_id"); v != "" {
		filter.TenantID = &v
	}
	if v := q.Get("user_id"); v != "" {
		filter.UserID = &v
	}
	if v := q.Get("event_type"); v != "" {
		filter.EventType = &v
	}
	if v := q.Get("violation"); v != "" {
		filter.Violation = &v
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, newBadParam("since")
		}
		filter.Since = &t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, newBadParam("until")
		}
		filter.Until = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, newBadParam("limit")
		}
		filter.Limit = n
	}
	return filter, nil
}

type badParamError struct{ name string }

func newBadParam(name string) error    { return &badParamError{name: name} }
func (e *badParamError) Error() string { return "invalid value for parameter " + e.name }
