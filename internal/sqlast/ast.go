package sqlast

// Node is the base interface for all AST nodes.
type Node interface {
	node()
}

// Expr is a marker interface for expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a marker interface for statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// TableRef is a marker interface for table reference nodes.
type TableRef interface {
	Node
	tableRefNode()
}

// === Expression nodes ===

// ColumnRef is a column reference, optionally qualified with a table or
// alias name.
type ColumnRef struct {
	Table  string
	Column string
}

func (*ColumnRef) node()     {}
func (*ColumnRef) exprNode() {}

// LiteralType classifies a literal value.
type LiteralType int

// Literal types.
const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
)

// Literal is a literal value.
type Literal struct {
	Type  LiteralType
	Value string
}

func (*Literal) node()     {}
func (*Literal) exprNode() {}

// BinaryExpr is left op right.
type BinaryExpr struct {
	Left  Expr
	Op    TokenType
	Right Expr
}

func (*BinaryExpr) node()     {}
func (*BinaryExpr) exprNode() {}

// UnaryExpr is NOT x, -x, or +x.
type UnaryExpr struct {
	Op   TokenType
	Expr Expr
}

func (*UnaryExpr) node()     {}
func (*UnaryExpr) exprNode() {}

// ParenExpr is a parenthesized expression.
type ParenExpr struct {
	Expr Expr
}

func (*ParenExpr) node()     {}
func (*ParenExpr) exprNode() {}

// FuncCall is a function call, possibly windowed.
type FuncCall struct {
	Name     string // stored in original case
	Distinct bool
	Star     bool // COUNT(*)
	Args     []Expr
	Window   *WindowSpec // OVER clause, nil when absent
}

func (*FuncCall) node()     {}
func (*FuncCall) exprNode() {}

// WindowSpec is an OVER clause body.
type WindowSpec struct {
	PartitionBy []Expr
	OrderBy     []OrderByItem
}

// CaseExpr is a CASE expression.
type CaseExpr struct {
	Operand Expr // nil for a searched CASE
	Whens   []WhenClause
	Else    Expr
}

func (*CaseExpr) node()     {}
func (*CaseExpr) exprNode() {}

// WhenClause is one WHEN/THEN pair.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CastExpr is CAST(expr AS type).
type CastExpr struct {
	Expr     Expr
	TypeName string
}

func (*CastExpr) node()     {}
func (*CastExpr) exprNode() {}

// TypeCastExpr is the :: shorthand cast.
type TypeCastExpr struct {
	Expr     Expr
	TypeName string
}

func (*TypeCastExpr) node()     {}
func (*TypeCastExpr) exprNode() {}

// InExpr is expr [NOT] IN (values | subquery).
type InExpr struct {
	Expr   Expr
	Not    bool
	Values []Expr
	Query  *SelectStmt
}

func (*InExpr) node()     {}
func (*InExpr) exprNode() {}

// BetweenExpr is expr [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

func (*BetweenExpr) node()     {}
func (*BetweenExpr) exprNode() {}

// IsNullExpr is expr IS [NOT] NULL.
type IsNullExpr struct {
	Expr Expr
	Not  bool
}

func (*IsNullExpr) node()     {}
func (*IsNullExpr) exprNode() {}

// IsBoolExpr is expr IS [NOT] TRUE/FALSE.
type IsBoolExpr struct {
	Expr  Expr
	Not   bool
	Value bool
}

func (*IsBoolExpr) node()     {}
func (*IsBoolExpr) exprNode() {}

// LikeExpr is expr [NOT] LIKE/ILIKE pattern.
type LikeExpr struct {
	Expr    Expr
	Not     bool
	Pattern Expr
	ILike   bool
}

func (*LikeExpr) node()     {}
func (*LikeExpr) exprNode() {}

// ExistsExpr is [NOT] EXISTS (subquery).
type ExistsExpr struct {
	Not    bool
	Select *SelectStmt
}

func (*ExistsExpr) node()     {}
func (*ExistsExpr) exprNode() {}

// SubqueryExpr is a scalar subquery used as an expression.
type SubqueryExpr struct {
	Select *SelectStmt
}

func (*SubqueryExpr) node()     {}
func (*SubqueryExpr) exprNode() {}

// StarExpr is * or table.* used as an expression.
type StarExpr struct {
	Table string
}

func (*StarExpr) node()     {}
func (*StarExpr) exprNode() {}

// IntervalExpr is INTERVAL 'value' unit.
type IntervalExpr struct {
	Value Expr
	Unit  string
}

func (*IntervalExpr) node()     {}
func (*IntervalExpr) exprNode() {}

// ExtractExpr is EXTRACT(field FROM expr).
type ExtractExpr struct {
	Field string
	Expr  Expr
}

func (*ExtractExpr) node()     {}
func (*ExtractExpr) exprNode() {}

// === Statement nodes ===

// SelectStmt is a complete SELECT statement with an optional WITH clause.
type SelectStmt struct {
	With *WithClause
	Body *SelectBody
}

func (*SelectStmt) node()     {}
func (*SelectStmt) stmtNode() {}

// WithClause holds common table expressions.
type WithClause struct {
	Recursive bool
	CTEs      []*CTE
}

// CTE is one common table expression.
type CTE struct {
	Name   string
	Select *SelectStmt
}

// SetOpType names a set operation joining SELECT cores.
type SetOpType string

// Set operations.
const (
	SetOpNone      SetOpType = ""
	SetOpUnion     SetOpType = "UNION"
	SetOpUnionAll  SetOpType = "UNION ALL"
	SetOpIntersect SetOpType = "INTERSECT"
	SetOpExcept    SetOpType = "EXCEPT"
)

// SelectBody is a SELECT core plus any chained set operations.
type SelectBody struct {
	Left  *SelectCore
	Op    SetOpType
	Right *SelectBody // non-nil when Op != SetOpNone
}

// SelectCore is one SELECT clause with its optional sub-clauses.
type SelectCore struct {
	Distinct bool
	Columns  []SelectItem
	From     *FromClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderByItem
	Limit    Expr
	Offset   Expr
}

// SelectItem is one item in the SELECT list.
type SelectItem struct {
	Star      bool   // SELECT *
	TableStar string // SELECT t.*
	Expr      Expr
	Alias     string
}

// FromClause is the FROM clause: one source plus joins.
type FromClause struct {
	Source TableRef
	Joins  []*Join
}

// JoinType names a join flavor.
type JoinType string

// Join types.
const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
	JoinCross JoinType = "CROSS"
	JoinComma JoinType = ","
)

// Join is one JOIN clause.
type Join struct {
	Type      JoinType
	Natural   bool
	Right     TableRef
	Condition Expr     // ON clause
	Using     []string // USING (col1, col2)
}

// OrderByItem is one ORDER BY entry.
type OrderByItem struct {
	Expr       Expr
	Desc       bool
	NullsFirst *bool // nil = dialect default
}

// === Table reference nodes ===

// TableName is a (possibly schema-qualified, aliased) table reference.
type TableName struct {
	Schema string
	Name   string
	Alias  string
}

func (*TableName) node()         {}
func (*TableName) tableRefNode() {}

// DerivedTable is a subquery in FROM.
type DerivedTable struct {
	Select *SelectStmt
	Alias  string
}

func (*DerivedTable) node()         {}
func (*DerivedTable) tableRefNode() {}

// === Non-SELECT statements ===

// StmtKind classifies a statement by its leading verb.
type StmtKind int

// Statement kinds.
const (
	KindSelect StmtKind = iota
	KindInsert
	KindUpdate
	KindDelete
	KindDDL
	KindUtility
)

func (k StmtKind) String() string {
	switch k {
	case KindSelect:
		return "SELECT"
	case KindInsert:
		return "INSERT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	case KindDDL:
		return "DDL"
	default:
		return "UTILITY"
	}
}

// RawStmt is a non-SELECT statement. The pipeline only ever rejects these,
// so they are classified by verb rather than deeply parsed.
type RawStmt struct {
	Kind StmtKind
	Verb string // uppercased leading verb, e.g. "DROP"
	SQL  string
}

func (*RawStmt) node()     {}
func (*RawStmt) stmtNode() {}
