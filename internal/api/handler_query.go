package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"queryguard/internal/domain"
	"queryguard/internal/middleware"
)

// maxQuestionLength bounds the inbound question before it ever touches
// the pipeline.
const maxQuestionLength = 2000

type queryRequestBody struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId,omitempty"`
}

// HandleQuery implements POST /v1/query. The response is always the
// pipeline contract; blocked questions come back as 200 with
// metadata.blocked set rather than an HTTP error.
func (h *APIHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	var body queryRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be JSON with a question field")
		return
	}
	question := strings.TrimSpace(body.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "question must not be empty")
		return
	}
	if utf8.RuneCountInString(question) > maxQuestionLength {
		writeError(w, http.StatusBadRequest, "question is too long")
		return
	}

	req := domain.QueryRequest{
		Question:    question,
		TenantID:    identity.TenantID,
		UserID:      identity.UserID,
		Role:        identity.Role,
		SessionID:   body.SessionID,
		IPAddress:   r.RemoteAddr,
		RateLimited: middleware.RateLimitedFromContext(r.Context()),
	}

	resp, err := h.engine.ProcessQuery(r.Context(), req)
	if err != nil {
		h.logger.Error("query processing failed", "tenant", identity.TenantID, "error", err)
		writeError(w, httpStatusFromDomainError(err), "query processing failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
