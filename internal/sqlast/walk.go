package sqlast

import "strings"

// Classify returns the statement kind.
func Classify(stmt Stmt) StmtKind {
	switch s := stmt.(type) {
	case *SelectStmt:
		return KindSelect
	case *RawStmt:
		return s.Kind
	default:
		return KindUtility
	}
}

// WalkSelects visits every SELECT statement reachable from stmt, including
// CTEs, set-operation branches, derived tables, and subquery expressions.
// The visitor receives the depth of each SELECT, where the outermost is 0.
func WalkSelects(stmt Stmt, visit func(sel *SelectStmt, depth int)) {
	sel, ok := stmt.(*SelectStmt)
	if !ok {
		return
	}
	walkSelect(sel, 0, visit)
}

func walkSelect(sel *SelectStmt, depth int, visit func(*SelectStmt, int)) {
	if sel == nil {
		return
	}
	visit(sel, depth)

	if sel.With != nil {
		for _, cte := range sel.With.CTEs {
			walkSelect(cte.Select, depth+1, visit)
		}
	}
	walkSelectBody(sel.Body, depth, visit)
}

func walkSelectBody(body *SelectBody, depth int, visit func(*SelectStmt, int)) {
	if body == nil {
		return
	}
	walkSelectCore(body.Left, depth, visit)
	walkSelectBody(body.Right, depth, visit)
}

func walkSelectCore(core *SelectCore, depth int, visit func(*SelectStmt, int)) {
	if core == nil {
		return
	}

	for _, item := range core.Columns {
		walkExprSelects(item.Expr, depth, visit)
	}
	if core.From != nil {
		walkTableRefSelects(core.From.Source, depth, visit)
		for _, join := range core.From.Joins {
			walkTableRefSelects(join.Right, depth, visit)
			walkExprSelects(join.Condition, depth, visit)
		}
	}
	walkExprSelects(core.Where, depth, visit)
	for _, expr := range core.GroupBy {
		walkExprSelects(expr, depth, visit)
	}
	walkExprSelects(core.Having, depth, visit)
	for _, item := range core.OrderBy {
		walkExprSelects(item.Expr, depth, visit)
	}
	walkExprSelects(core.Limit, depth, visit)
	walkExprSelects(core.Offset, depth, visit)
}

func walkTableRefSelects(ref TableRef, depth int, visit func(*SelectStmt, int)) {
	if derived, ok := ref.(*DerivedTable); ok {
		walkSelect(derived.Select, depth+1, visit)
	}
}

func walkExprSelects(expr Expr, depth int, visit func(*SelectStmt, int)) {
	WalkExprs(expr, func(e Expr) {
		switch sub := e.(type) {
		case *SubqueryExpr:
			walkSelect(sub.Select, depth+1, visit)
		case *ExistsExpr:
			walkSelect(sub.Select, depth+1, visit)
		case *InExpr:
			walkSelect(sub.Query, depth+1, visit)
		}
	})
}

// WalkExprs visits expr and every sub-expression beneath it. Subquery
// boundaries are not crossed; use WalkSelects for that.
func WalkExprs(expr Expr, visit func(Expr)) {
	if expr == nil {
		return
	}
	visit(expr)

	switch e := expr.(type) {
	case *BinaryExpr:
		WalkExprs(e.Left, visit)
		WalkExprs(e.Right, visit)
	case *UnaryExpr:
		WalkExprs(e.Expr, visit)
	case *ParenExpr:
		WalkExprs(e.Expr, visit)
	case *FuncCall:
		for _, arg := range e.Args {
			WalkExprs(arg, visit)
		}
		if e.Window != nil {
			for _, part := range e.Window.PartitionBy {
				WalkExprs(part, visit)
			}
			for _, item := range e.Window.OrderBy {
				WalkExprs(item.Expr, visit)
			}
		}
	case *CaseExpr:
		WalkExprs(e.Operand, visit)
		for _, when := range e.Whens {
			WalkExprs(when.Condition, visit)
			WalkExprs(when.Result, visit)
		}
		WalkExprs(e.Else, visit)
	case *CastExpr:
		WalkExprs(e.Expr, visit)
	case *TypeCastExpr:
		WalkExprs(e.Expr, visit)
	case *InExpr:
		WalkExprs(e.Expr, visit)
		for _, v := range e.Values {
			WalkExprs(v, visit)
		}
	case *BetweenExpr:
		WalkExprs(e.Expr, visit)
		WalkExprs(e.Low, visit)
		WalkExprs(e.High, visit)
	case *IsNullExpr:
		WalkExprs(e.Expr, visit)
	case *IsBoolExpr:
		WalkExprs(e.Expr, visit)
	case *LikeExpr:
		WalkExprs(e.Expr, visit)
		WalkExprs(e.Pattern, visit)
	case *IntervalExpr:
		WalkExprs(e.Value, visit)
	case *ExtractExpr:
		WalkExprs(e.Expr, visit)
	}
}

// CollectTableNames returns every physical table referenced anywhere in the
// statement, lowercased and deduplicated. CTE names are excluded since they
// are query-local, not schema objects.
func CollectTableNames(stmt Stmt) []string {
	cteNames := map[string]bool{}
	WalkSelects(stmt, func(sel *SelectStmt, _ int) {
		if sel.With == nil {
			return
		}
		for _, cte := range sel.With.CTEs {
			cteNames[strings.ToLower(cte.Name)] = true
		}
	})

	seen := map[string]bool{}
	var names []string
	collect := func(ref TableRef) {
		table, ok := ref.(*TableName)
		if !ok {
			return
		}
		name := strings.ToLower(table.Name)
		if table.Schema != "" {
			name = strings.ToLower(table.Schema) + "." + name
		}
		if cteNames[name] || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	WalkSelects(stmt, func(sel *SelectStmt, _ int) {
		forEachCore(sel.Body, func(core *SelectCore) {
			if core.From == nil {
				return
			}
			collect(core.From.Source)
			for _, join := range core.From.Joins {
				collect(join.Right)
			}
		})
	})

	return names
}

// CollectColumnRefs returns every column reference in the statement,
// crossing subquery boundaries.
func CollectColumnRefs(stmt Stmt) []*ColumnRef {
	var refs []*ColumnRef
	WalkSelects(stmt, func(sel *SelectStmt, _ int) {
		forEachCore(sel.Body, func(core *SelectCore) {
			forEachCoreExpr(core, func(expr Expr) {
				WalkExprs(expr, func(e Expr) {
					if ref, ok := e.(*ColumnRef); ok {
						refs = append(refs, ref)
					}
				})
			})
		})
	})
	return refs
}

// MaxSubqueryDepth returns the deepest SELECT nesting level, where a flat
// query is 0.
func MaxSubqueryDepth(stmt Stmt) int {
	max := 0
	WalkSelects(stmt, func(_ *SelectStmt, depth int) {
		if depth > max {
			max = depth
		}
	})
	return max
}

// HasSetOperation reports whether any UNION/INTERSECT/EXCEPT appears.
func HasSetOperation(stmt Stmt) bool {
	found := false
	WalkSelects(stmt, func(sel *SelectStmt, _ int) {
		for body := sel.Body; body != nil; body = body.Right {
			if body.Op != SetOpNone {
				found = true
			}
		}
	})
	return found
}

// CountJoins returns the total join count across all SELECTs.
func CountJoins(stmt Stmt) int {
	count := 0
	WalkSelects(stmt, func(sel *SelectStmt, _ int) {
		forEachCore(sel.Body, func(core *SelectCore) {
			if core.From != nil {
				count += len(core.From.Joins)
			}
		})
	})
	return count
}

// CountSelects returns the number of SELECT statements, counting each
// set-operation branch within one statement once.
func CountSelects(stmt Stmt) int {
	count := 0
	WalkSelects(stmt, func(_ *SelectStmt, _ int) {
		count++
	})
	return count
}

// ContainsFunction reports whether the named function (case-insensitive) is
// called anywhere in the statement.
func ContainsFunction(stmt Stmt, name string) bool {
	lowered := strings.ToLower(name)
	found := false
	WalkSelects(stmt, func(sel *SelectStmt, _ int) {
		forEachCore(sel.Body, func(core *SelectCore) {
			forEachCoreExpr(core, func(expr Expr) {
				WalkExprs(expr, func(e Expr) {
					if fn, ok := e.(*FuncCall); ok && strings.ToLower(fn.Name) == lowered {
						found = true
					}
				})
			})
		})
	})
	return found
}

// forEachCore applies fn to every SELECT core in a body chain.
func forEachCore(body *SelectBody, fn func(*SelectCore)) {
	for ; body != nil; body = body.Right {
		if body.Left != nil {
			fn(body.Left)
		}
	}
}

// forEachCoreExpr applies fn to every top-level expression in a core.
func forEachCoreExpr(core *SelectCore, fn func(Expr)) {
	for _, item := range core.Columns {
		if item.Expr != nil {
			fn(item.Expr)
		}
	}
	if core.From != nil {
		for _, join := range core.From.Joins {
			if join.Condition != nil {
				fn(join.Condition)
			}
		}
	}
	if core.Where != nil {
		fn(core.Where)
	}
	for _, expr := range core.GroupBy {
		fn(expr)
	}
	if core.Having != nil {
		fn(core.Having)
	}
	for _, item := range core.OrderBy {
		fn(item.Expr)
	}
	if core.Limit != nil {
		fn(core.Limit)
	}
	if core.Offset != nil {
		fn(core.Offset)
	}
}
