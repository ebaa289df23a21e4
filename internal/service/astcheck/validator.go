// Package astcheck enforces tenant isolation and forbids dangerous SQL
// constructs by analyzing the parsed statement tree, independent of surface
// text formatting.
package astcheck

import (
	"fmt"
	"log/slog"
	"strings"

	"queryguard/internal/domain"
	"queryguard/internal/sqlast"
)

// LayerName is the verdict layer attached by this validator.
const LayerName = "ast_security"

// systemPrefixes name catalog namespaces that must never be referenced.
var systemPrefixes = []string{
	"information_schema", "pg_", "duckdb_", "sqlite_", "system.",
}

// Validator performs structural security validation. Read-only after
// construction.
type Validator struct {
	logger       *slog.Logger
	tenantColumn string
	maxDepth     int
	// minimum role allowed to use subqueries and set operations at all
	subqueryRole domain.Role
}

// NewValidator creates a Validator for the given tenant column with the
// default depth limit of 3, gated to manager and above.
func NewValidator(logger *slog.Logger, tenantColumn string) *Validator {
	return &Validator{
		logger:       logger.With("component", "ast_validator"),
		tenantColumn: strings.ToLower(tenantColumn),
		maxDepth:     3,
		subqueryRole: domain.RoleManager,
	}
}

// NeedsDeepValidation reports whether the statement gets the deep pass:
// structurally complex statements always do, and so does every statement
// from a low-privilege role. Simple statements from trusted roles skip this
// layer after passing the schema and syntax checks.
func (v *Validator) NeedsDeepValidation(stmt sqlast.Stmt, role domain.Role) bool {
	if !role.AtLeast(domain.RoleManager) {
		return true
	}
	if sqlast.HasSetOperation(stmt) || sqlast.CountJoins(stmt) > 0 || sqlast.CountSelects(stmt) > 1 {
		return true
	}
	for _, name := range sqlast.CollectTableNames(stmt) {
		if isSystemTable(name) {
			return true
		}
	}
	return false
}

// Validate evaluates the parsed statement for the requesting tenant and
// role. Any Errors entry fails the attempt; Warnings alone never block but
// are always audited.
func (v *Validator) Validate(stmt sqlast.Stmt, rawSQL, tenantID string, role domain.Role) domain.ValidationVerdict {
	verdict := domain.ValidationVerdict{Layer: LayerName, Passed: true}
	fail := func(format string, args ...interface{}) {
		verdict.Passed = false
		verdict.Errors = append(verdict.Errors, fmt.Sprintf(format, args...))
	}
	warn := func(format string, args ...interface{}) {
		verdict.Warnings = append(verdict.Warnings, fmt.Sprintf(format, args...))
	}

	sel, ok := stmt.(*sqlast.SelectStmt)
	if !ok {
		fail("statement is not a SELECT")
		return verdict
	}

	if n := sqlast.CountComments(rawSQL); n > 0 {
		fail("comment tokens are not allowed in generated SQL (%d found)", n)
	}

	v.checkTenantPredicate(sel, tenantID, fail)
	v.checkTopLevelOr(sel, fail)
	v.checkDepthAndSetOps(sel, role, fail)
	v.checkSystemTables(sel, fail)
	v.checkTautologies(sel, fail)

	for _, item := range topCore(sel).Columns {
		if item.Star {
			warn("unqualified * projection returns every column")
			break
		}
	}

	if !verdict.Passed {
		v.logger.Warn("security validation failed",
			"tenant", tenantID, "role", string(role), "errors", verdict.Errors)
	}
	return verdict
}

// Error converts a failed verdict into the typed domain error.
func Error(verdict domain.ValidationVerdict) *domain.SecurityValidationError {
	return &domain.SecurityValidationError{
		Message:    strings.Join(verdict.Errors, "; "),
		Violations: verdict.Errors,
	}
}

func topCore(sel *sqlast.SelectStmt) *sqlast.SelectCore {
	if sel.Body == nil || sel.Body.Left == nil {
		return &sqlast.SelectCore{}
	}
	return sel.Body.Left
}

// checkTenantPredicate requires the tenant column to be bound by literal
// equality to the requester's tenant id: exactly once for a plain statement,
// and once per branch when set operations are involved, since each branch
// pulls rows independently.
func (v *Validator) checkTenantPredicate(sel *sqlast.SelectStmt, tenantID string, fail func(string, ...interface{})) {
	var total, mismatches int
	var outerCores []int

	sqlast.WalkSelects(sel, func(s *sqlast.SelectStmt, depth int) {
		for body := s.Body; body != nil; body = body.Right {
			core := body.Left
			if core == nil {
				continue
			}
			matches := 0
			if core.Where != nil {
				sqlast.WalkExprs(core.Where, func(e sqlast.Expr) {
					bin, ok := e.(*sqlast.BinaryExpr)
					if !ok || bin.Op != sqlast.TokenEq {
						return
					}
					ref, lit := tenantComparison(bin, v.tenantColumn)
					if ref == nil {
						return
					}
					if lit != nil && lit.Type == sqlast.LiteralString && lit.Value == tenantID {
						matches++
					} else {
						mismatches++
					}
				})
			}
			total += matches
			if depth == 0 && s == sel {
				outerCores = append(outerCores, matches)
			}
		}
	})

	if mismatches > 0 {
		fail("tenant predicate bound to a value other than the authenticated tenant")
		return
	}
	if len(outerCores) > 1 {
		for i, matches := range outerCores {
			if matches != 1 {
				fail("every branch of a set operation needs exactly one tenant predicate, branch %d has %d", i+1, matches)
			}
		}
		return
	}
	switch {
	case total == 0:
		fail("missing tenant isolation predicate on column %q", v.tenantColumn)
	case total > 1:
		fail("tenant predicate must appear exactly once, found %d", total)
	}
}

// tenantComparison returns the tenant column reference and the literal it is
// compared with, if this equality involves the tenant column at all.
func tenantComparison(bin *sqlast.BinaryExpr, tenantColumn string) (*sqlast.ColumnRef, *sqlast.Literal) {
	left, leftIsRef := bin.Left.(*sqlast.ColumnRef)
	right, rightIsRef := bin.Right.(*sqlast.ColumnRef)

	if leftIsRef && strings.ToLower(left.Column) == tenantColumn {
		lit, _ := bin.Right.(*sqlast.Literal)
		return left, lit
	}
	if rightIsRef && strings.ToLower(right.Column) == tenantColumn {
		lit, _ := bin.Left.(*sqlast.Literal)
		return right, lit
	}
	return nil, nil
}

// checkTopLevelOr rejects an OR in the top-level conjunction of any WHERE
// clause in the statement. Every core pulls rows independently, so an OR
// in a set-operation branch or a derived-table subquery widens the matched
// rows past the tenant filter just as one in the outer WHERE does. ORs
// nested under parentheses inside an AND branch are allowed.
func (v *Validator) checkTopLevelOr(sel *sqlast.SelectStmt, fail func(string, ...interface{})) {
	found := false
	var visit func(e sqlast.Expr)
	visit = func(e sqlast.Expr) {
		bin, ok := e.(*sqlast.BinaryExpr)
		if !ok {
			return
		}
		switch bin.Op {
		case sqlast.TokenOr:
			found = true
		case sqlast.TokenAnd:
			visit(bin.Left)
			visit(bin.Right)
		}
	}

	sqlast.WalkSelects(sel, func(s *sqlast.SelectStmt, _ int) {
		for body := s.Body; body != nil; body = body.Right {
			if core := body.Left; core != nil && core.Where != nil {
				visit(core.Where)
			}
		}
	})
	if found {
		fail("top-level OR condition can bypass the tenant filter")
	}
}

// checkDepthAndSetOps gates subqueries and set operations to privileged
// roles within the configured depth.
func (v *Validator) checkDepthAndSetOps(sel *sqlast.SelectStmt, role domain.Role, fail func(string, ...interface{})) {
	depth := sqlast.MaxSubqueryDepth(sel)
	hasSetOp := sqlast.HasSetOperation(sel)

	if depth == 0 && !hasSetOp {
		return
	}
	if !role.AtLeast(v.subqueryRole) {
		if hasSetOp {
			fail("set operations require an elevated role")
		}
		if depth > 0 {
			fail("subqueries require an elevated role")
		}
		return
	}
	if depth > v.maxDepth {
		fail("subquery nesting depth %d exceeds the maximum of %d", depth, v.maxDepth)
	}
}

func (v *Validator) checkSystemTables(sel *sqlast.SelectStmt, fail func(string, ...interface{})) {
	for _, name := range sqlast.CollectTableNames(sel) {
		if isSystemTable(name) {
			fail("reference to system catalog %q is not allowed", name)
		}
	}
}

func isSystemTable(name string) bool {
	for _, prefix := range systemPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// checkTautologies rejects always-true comparisons anywhere in the tree:
// literal = same literal, and boolean TRUE used as an OR operand.
func (v *Validator) checkTautologies(sel *sqlast.SelectStmt, fail func(string, ...interface{})) {
	found := false
	sqlast.WalkSelects(sel, func(s *sqlast.SelectStmt, _ int) {
		for body := s.Body; body != nil; body = body.Right {
			core := body.Left
			if core == nil || core.Where == nil || found {
				continue
			}
			sqlast.WalkExprs(core.Where, func(e sqlast.Expr) {
				if found {
					return
				}
				bin, ok := e.(*sqlast.BinaryExpr)
				if !ok {
					return
				}
				if bin.Op == sqlast.TokenEq && literalsEqual(bin.Left, bin.Right) {
					found = true
					return
				}
				if bin.Op == sqlast.TokenOr && (isTrueLiteral(bin.Left) || isTrueLiteral(bin.Right)) {
					found = true
				}
			})
		}
	})
	if found {
		fail("always-true condition defeats row filtering")
	}
}

func literalsEqual(a, b sqlast.Expr) bool {
	la, okA := a.(*sqlast.Literal)
	lb, okB := b.(*sqlast.Literal)
	return okA && okB && la.Type == lb.Type && la.Value == lb.Value
}

func isTrueLiteral(e sqlast.Expr) bool {
	lit, ok := e.(*sqlast.Literal)
	return ok && lit.Type == sqlast.LiteralBool && lit.Value == "true"
}
