// Package access enforces per-role table visibility. Decisions are made on
// the physical table names collected from the statement, after the security
// validation layers have run.
package access

import (
	"log/slog"
	"sort"
	"strings"

	"queryguard/internal/domain"
)

// deniedMessage is the only text surfaced to the caller. It deliberately
// names neither the tables nor the schema.
const deniedMessage = "your role does not permit this query; try a question about your own sales or order data"

// denyLists maps each role to the tables it may not read. Admin has no
// entry and bypasses the check entirely.
var denyLists = map[domain.Role]map[string]bool{
	domain.RoleViewer: {
		"payments":  true,
		"customers": true,
		"staff":     true,
		"shifts":    true,
	},
	domain.RoleAnalyst: {
		"payments": true,
		"staff":    true,
	},
	domain.RoleManager: {},
}

// Decision is the outcome of an access check. DeniedTables and Violations
// go to the audit log only, never to the requester.
type Decision struct {
	Allowed      bool
	DeniedTables []string
	Violations   []string
}

// Controller is stateless and safe for concurrent use.
type Controller struct {
	logger *slog.Logger
}

func NewController(logger *slog.Logger) *Controller {
	return &Controller{logger: logger.With("component", "access_control")}
}

// Check evaluates the referenced tables against the role's deny list.
// Table names arrive lowercased; schema qualifiers are stripped before
// matching.
func (c *Controller) Check(role domain.Role, tables []string) Decision {
	if role == domain.RoleAdmin {
		return Decision{Allowed: true}
	}

	denied := denyLists[role]
	var hits []string
	for _, table := range tables {
		name := table
		if i := strings.LastIndex(name, "."); i >= 0 {
			name = name[i+1:]
		}
		if denied[name] {
			hits = append(hits, name)
		}
	}
	if len(hits) == 0 {
		return Decision{Allowed: true}
	}

	sort.Strings(hits)
	decision := Decision{
		Allowed:      false,
		DeniedTables: hits,
	}
	for _, name := range hits {
		decision.Violations = append(decision.Violations,
			"role "+string(role)+" denied read on table "+name)
	}
	c.logger.Warn("table access denied",
		"role", string(role), "tables", hits)
	return decision
}

// Error converts a denied decision into the terminal domain error. The
// message is generic; the table list rides along for the audit trail.
func Error(decision Decision) *domain.AccessDeniedError {
	return &domain.AccessDeniedError{
		Message:      deniedMessage,
		DeniedTables: decision.DeniedTables,
	}
}
