package sqlast

import (
	"fmt"
	"strings"
)

// Parser parses one SQL statement into an AST.
type Parser struct {
	lexer  *Lexer
	input  string
	token  Token // current token
	peek   Token // lookahead token
	peek2  Token // second lookahead token
	errors []error
}

// NewParser creates a parser for the given SQL input.
func NewParser(sql string) *Parser {
	p := &Parser{
		lexer: NewLexer(sql),
		input: sql,
	}
	// Three-token lookahead for table.* and qualified-name disambiguation.
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses the SQL and returns the top-level statement. Multi-statement
// input is rejected to prevent piggy-backed injection ("SELECT 1; DROP ...").
func Parse(sql string) (Stmt, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return nil, fmt.Errorf("empty SQL")
	}

	p := NewParser(sql)
	stmt := p.parseTopLevel()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}

	// Consume one trailing semicolon, then require EOF.
	p.match(TokenSemicolon)
	if p.token.Type != TokenEOF {
		return nil, fmt.Errorf("multi-statement queries are not allowed")
	}

	return stmt, nil
}

// parseTopLevel dispatches on the first token. Only SELECT (and WITH) gets
// a deep parse; everything else is classified by verb for rejection.
func (p *Parser) parseTopLevel() Stmt {
	switch p.token.Type {
	case TokenSelect, TokenWith:
		return p.parseSelectStatement()
	case TokenIdent:
		return p.parseRawStatement()
	default:
		p.addError(fmt.Sprintf("unexpected token at start of statement: %s", p.token.Type))
		return nil
	}
}

// parseRawStatement classifies a non-SELECT statement by its leading verb
// and consumes the rest without deep parsing.
func (p *Parser) parseRawStatement() Stmt {
	verb := strings.ToUpper(p.token.Literal)

	var kind StmtKind
	switch verb {
	case "INSERT", "REPLACE", "MERGE":
		kind = KindInsert
	case "UPDATE":
		kind = KindUpdate
	case "DELETE":
		kind = KindDelete
	case "CREATE", "DROP", "ALTER", "TRUNCATE", "RENAME":
		kind = KindDDL
	case "SHOW", "DESCRIBE", "EXPLAIN", "PRAGMA", "SET", "CALL", "COPY",
		"GRANT", "REVOKE", "ATTACH", "DETACH", "USE", "VACUUM", "ANALYZE",
		"BEGIN", "COMMIT", "ROLLBACK", "PREPARE", "EXECUTE", "INSTALL", "LOAD":
		kind = KindUtility
	default:
		p.addError(fmt.Sprintf("unrecognized statement verb: %s", verb))
		return nil
	}

	stmt := &RawStmt{Kind: kind, Verb: verb, SQL: p.input}
	for p.token.Type != TokenEOF && p.token.Type != TokenSemicolon {
		p.nextToken()
	}
	return stmt
}

// === Token helpers ===

func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
	if p.peek2.Type == TokenIllegal {
		p.addError(fmt.Sprintf("illegal character %q", p.peek2.Literal))
	}
}

func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

func (p *Parser) checkPeek(t TokenType) bool {
	return p.peek.Type == t
}

func (p *Parser) checkPeek2(t TokenType) bool {
	return p.peek2.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf("unexpected token %s, expected %s", p.token.Type, t))
	return false
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, fmt.Errorf("parse error: %s", msg))
}

// isKeyword reports whether the token is a reserved keyword that cannot
// serve as an implicit alias.
func (p *Parser) isKeyword(tok Token) bool {
	switch tok.Type {
	case TokenFrom, TokenUnion, TokenIntersect, TokenExcept,
		TokenLeft, TokenRight, TokenInner, TokenOuter, TokenFull,
		TokenCross, TokenJoin, TokenOn, TokenUsing, TokenNatural,
		TokenWhere, TokenGroup, TokenHaving, TokenOrder, TokenLimit,
		TokenOffset, TokenSelect, TokenWith, TokenAs:
		return true
	}
	return false
}

// isJoinKeyword reports whether the token starts or continues a JOIN.
func (p *Parser) isJoinKeyword(tok Token) bool {
	switch tok.Type {
	case TokenJoin, TokenOn, TokenUsing, TokenNatural, TokenOuter,
		TokenInner, TokenLeft, TokenRight, TokenFull, TokenCross:
		return true
	}
	return false
}

// isClauseKeyword reports whether the token starts a new clause.
func (p *Parser) isClauseKeyword(tok Token) bool {
	switch tok.Type {
	case TokenUnion, TokenIntersect, TokenExcept,
		TokenWhere, TokenGroup, TokenHaving, TokenOrder,
		TokenLimit, TokenOffset:
		return true
	}
	return false
}
