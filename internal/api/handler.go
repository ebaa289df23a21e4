// Package api provides the HTTP handlers for the query safety service.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"queryguard/internal/engine"
	"queryguard/internal/service/audit"
)

// APIHandler exposes the query pipeline and the audit trail over HTTP.
type APIHandler struct {
	logger *slog.Logger
	engine *engine.Engine
	audit  *audit.Service
}

// NewHandler creates an APIHandler with all required service dependencies.
func NewHandler(logger *slog.Logger, eng *engine.Engine, auditSvc *audit.Service) *APIHandler {
	return &APIHandler{
		logger: logger.With("component", "api"),
		engine: eng,
		audit:  auditSvc,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
