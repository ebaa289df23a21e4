// Package validate performs the static schema check and the dry-run parse
// check on candidate SQL, before any structural security analysis.
package validate

import (
	"fmt"
	"log/slog"
	"strings"

	"queryguard/internal/domain"
	"queryguard/internal/service/generate"
	"queryguard/internal/sqlast"
)

// Layer names attached to verdicts.
const (
	LayerSchema = "schema"
	LayerSyntax = "syntax"
)

// contextWords are identifiers that legitimately appear outside column
// position: date parts, extract fields, and cast type names.
var contextWords = map[string]bool{
	"day": true, "week": true, "month": true, "year": true, "quarter": true,
	"hour": true, "minute": true, "second": true, "dow": true, "doy": true,
	"date": true, "time": true, "timestamp": true, "interval": true,
	"int": true, "integer": true, "bigint": true, "smallint": true,
	"decimal": true, "numeric": true, "double": true, "float": true, "real": true,
	"varchar": true, "text": true, "char": true, "boolean": true, "bool": true,
}

// Checker validates candidate SQL against the known schema without touching
// data. Read-only after construction.
type Checker struct {
	logger *slog.Logger
	tables map[string]map[string]bool
	// union of every column name across the schema, for bare references
	allColumns map[string]bool
}

// NewChecker creates a Checker bound to one schema context.
func NewChecker(logger *slog.Logger, schema *generate.SchemaContext) *Checker {
	tables := schema.TableColumns()
	all := map[string]bool{}
	for _, cols := range tables {
		for c := range cols {
			all[c] = true
		}
	}
	return &Checker{
		logger:     logger.With("component", "schema_validator"),
		tables:     tables,
		allColumns: all,
	}
}

// Check runs both ordered checks and returns their verdicts. The schema
// check failing does not suppress the syntax verdict; callers short-circuit
// on the first failed verdict.
func (c *Checker) Check(sql string) []domain.ValidationVerdict {
	return []domain.ValidationVerdict{
		c.schemaCheck(sql),
		c.syntaxCheck(sql),
	}
}

// Validate runs Check and converts the first failure into a typed error for
// the retry loop. The returned verdicts always cover both layers.
func (c *Checker) Validate(sql string) ([]domain.ValidationVerdict, error) {
	verdicts := c.Check(sql)
	for _, v := range verdicts {
		if v.Passed {
			continue
		}
		msg := strings.Join(v.Errors, "; ")
		if v.Layer == LayerSyntax {
			return verdicts, domain.ErrSyntax("%s", msg)
		}
		return verdicts, domain.ErrSchemaValidation("%s", msg)
	}
	return verdicts, nil
}

// schemaCheck is the instant, no-I/O static check: statement verb, quote
// balance, and table/column membership via a token scan.
func (c *Checker) schemaCheck(sql string) domain.ValidationVerdict {
	v := domain.ValidationVerdict{Layer: LayerSchema, Passed: true}
	fail := func(format string, args ...interface{}) {
		v.Passed = false
		v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(sql) == "" {
		fail("statement is empty")
		return v
	}

	if !quotesBalanced(sql, '\'') || !quotesBalanced(sql, '"') {
		fail("unbalanced quoting")
		return v
	}

	tokens := lexTokens(sql)
	if len(tokens) == 0 {
		fail("statement is empty")
		return v
	}

	first := tokens[0]
	if first.Type != sqlast.TokenSelect && first.Type != sqlast.TokenWith {
		fail("only SELECT statements are allowed, got %q", strings.ToUpper(first.Literal))
		return v
	}

	for i, tok := range tokens {
		if tok.Type == sqlast.TokenSemicolon && i < len(tokens)-1 {
			fail("multiple statements are not allowed")
			return v
		}
	}

	scan := newIdentifierScan(tokens)
	for _, name := range scan.tableNames {
		if scan.cteNames[name] {
			continue
		}
		if _, ok := c.tables[name]; !ok {
			fail("unknown table %q", name)
		}
	}
	for _, ref := range scan.qualifiedRefs {
		table, ok := scan.resolveQualifier(ref.qualifier)
		if !ok {
			continue // derived table or CTE alias, left to the parse layer
		}
		cols, known := c.tables[table]
		if known && !cols[ref.column] {
			fail("unknown column %q on table %q", ref.column, table)
		}
	}
	for _, col := range scan.bareColumns {
		if contextWords[col] || scan.isAlias(col) || scan.cteNames[col] {
			continue
		}
		if !c.allColumns[col] {
			fail("unknown column %q", col)
		}
	}

	return v
}

// syntaxCheck is the dry-run parse: no execution, no data access.
func (c *Checker) syntaxCheck(sql string) domain.ValidationVerdict {
	v := domain.ValidationVerdict{Layer: LayerSyntax, Passed: true}

	stmt, err := sqlast.Parse(sql)
	if err != nil {
		v.Passed = false
		v.Errors = append(v.Errors, err.Error())
		return v
	}
	if sqlast.Classify(stmt) != sqlast.KindSelect {
		v.Passed = false
		v.Errors = append(v.Errors, "only SELECT statements are allowed")
	}
	return v
}

// quotesBalanced checks parity of a quote character after collapsing the
// doubled-quote escape form.
func quotesBalanced(sql string, quote byte) bool {
	doubled := strings.ReplaceAll(sql, string([]byte{quote, quote}), "")
	return strings.Count(doubled, string(quote))%2 == 0
}

func lexTokens(sql string) []sqlast.Token {
	l := sqlast.NewLexer(sql)
	var tokens []sqlast.Token
	for {
		tok := l.NextToken()
		if tok.Type == sqlast.TokenEOF {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

type qualifiedRef struct {
	qualifier string
	column    string
}

// identifierScan is a single pass over the token stream that classifies
// identifiers without building a tree.
type identifierScan struct {
	tableNames    []string
	aliases       map[string]string // alias -> table
	cteNames      map[string]bool
	selectAliases map[string]bool
	qualifiedRefs []qualifiedRef
	bareColumns   []string
}

func (s *identifierScan) resolveQualifier(q string) (string, bool) {
	if _, ok := s.aliases[q]; ok {
		return s.aliases[q], true
	}
	return q, !s.cteNames[q]
}

func (s *identifierScan) isAlias(name string) bool {
	_, tableAlias := s.aliases[name]
	return tableAlias || s.selectAliases[name]
}

func newIdentifierScan(tokens []sqlast.Token) *identifierScan {
	s := &identifierScan{
		aliases:       map[string]string{},
		cteNames:      map[string]bool{},
		selectAliases: map[string]bool{},
	}

	typeAt := func(i int) sqlast.TokenType {
		if i < 0 || i >= len(tokens) {
			return sqlast.TokenEOF
		}
		return tokens[i].Type
	}
	lower := func(i int) string { return strings.ToLower(tokens[i].Literal) }

	consumed := make([]bool, len(tokens))

	// CTE names: WITH [RECURSIVE] name AS ( ... [, name AS (] ...
	for i := 0; i < len(tokens)-2; i++ {
		if typeAt(i) == sqlast.TokenIdent &&
			typeAt(i+1) == sqlast.TokenAs &&
			typeAt(i+2) == sqlast.TokenLParen {
			s.cteNames[lower(i)] = true
			consumed[i] = true
		}
	}

	// Table names and aliases after FROM / JOIN, including comma-separated
	// lists. The FROM inside EXTRACT(field FROM expr) is not a table source.
	for i := 0; i < len(tokens); i++ {
		if typeAt(i) != sqlast.TokenFrom && typeAt(i) != sqlast.TokenJoin {
			continue
		}
		if typeAt(i) == sqlast.TokenFrom && i >= 3 && typeAt(i-3) == sqlast.TokenExtract {
			continue
		}
		j := i + 1
		for typeAt(j) == sqlast.TokenIdent {
			name := lower(j)
			consumed[j] = true
			// schema.table
			if typeAt(j+1) == sqlast.TokenDot && typeAt(j+2) == sqlast.TokenIdent {
				name = name + "." + lower(j+2)
				consumed[j+1], consumed[j+2] = true, true
				j += 2
			}
			s.tableNames = append(s.tableNames, name)

			// alias, with or without AS
			k := j + 1
			if typeAt(k) == sqlast.TokenAs && typeAt(k+1) == sqlast.TokenIdent {
				s.aliases[lower(k+1)] = name
				consumed[k+1] = true
				k += 2
			} else if typeAt(k) == sqlast.TokenIdent {
				s.aliases[lower(k)] = name
				consumed[k] = true
				k++
			}

			if typeAt(k) != sqlast.TokenComma {
				break
			}
			j = k + 1
		}
	}

	// Select-item and expression aliases: AS ident (not followed by '('),
	// or a bare identifier directly after a closing paren, which covers
	// derived-table and function-result aliases without AS.
	for i := 0; i < len(tokens)-1; i++ {
		if typeAt(i) == sqlast.TokenAs && typeAt(i+1) == sqlast.TokenIdent &&
			typeAt(i+2) != sqlast.TokenLParen {
			s.selectAliases[lower(i+1)] = true
			consumed[i+1] = true
		}
		if typeAt(i) == sqlast.TokenRParen && typeAt(i+1) == sqlast.TokenIdent &&
			typeAt(i+2) != sqlast.TokenLParen && !consumed[i+1] {
			s.selectAliases[lower(i+1)] = true
			consumed[i+1] = true
		}
	}

	// Remaining identifiers are qualified or bare column references, except
	// function names (followed by '(').
	for i := 0; i < len(tokens); i++ {
		if typeAt(i) != sqlast.TokenIdent || consumed[i] {
			continue
		}
		if typeAt(i+1) == sqlast.TokenLParen {
			continue // function call
		}
		if typeAt(i+1) == sqlast.TokenDot && typeAt(i+2) == sqlast.TokenIdent {
			s.qualifiedRefs = append(s.qualifiedRefs, qualifiedRef{
				qualifier: lower(i),
				column:    lower(i + 2),
			})
			consumed[i], consumed[i+1], consumed[i+2] = true, true, true
			i += 2
			continue
		}
		if typeAt(i+1) == sqlast.TokenDot {
			// table.*, qualifier only
			consumed[i] = true
			continue
		}
		if i > 0 && typeAt(i-1) == sqlast.TokenDot {
			continue
		}
		s.bareColumns = append(s.bareColumns, lower(i))
	}

	return s
}
