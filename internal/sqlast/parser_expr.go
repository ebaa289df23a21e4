package sqlast

import "fmt"

// Expression parsing via precedence climbing.

// Operator precedence levels, loosest first.
const (
	precedenceNone = iota
	precedenceOr
	precedenceAnd
	precedenceNot
	precedenceComparison
	precedenceAddition
	precedenceMultiply
	precedenceUnary
	precedencePostfix
)

// parseExpression parses an expression at the loosest precedence.
func (p *Parser) parseExpression() Expr {
	return p.parseExpressionWithPrecedence(precedenceNone + 1)
}

func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) Expr {
	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}

	for {
		prec := p.getInfixPrecedence()
		if prec < minPrecedence {
			break
		}
		left = p.parseInfixExpr(left, prec)
		if left == nil {
			break
		}
	}

	return left
}

func (p *Parser) parsePrefixExpr() Expr {
	switch p.token.Type {
	case TokenNot:
		p.nextToken()
		return &UnaryExpr{Op: TokenNot, Expr: p.parseExpressionWithPrecedence(precedenceNot)}
	case TokenMinus:
		p.nextToken()
		return &UnaryExpr{Op: TokenMinus, Expr: p.parseExpressionWithPrecedence(precedenceUnary)}
	case TokenPlus:
		p.nextToken()
		return &UnaryExpr{Op: TokenPlus, Expr: p.parseExpressionWithPrecedence(precedenceUnary)}
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) getInfixPrecedence() int {
	switch p.token.Type {
	case TokenOr:
		return precedenceOr
	case TokenAnd:
		return precedenceAnd
	case TokenEq, TokenNe, TokenLt, TokenGt, TokenLe, TokenGe:
		return precedenceComparison
	case TokenIs, TokenIn, TokenBetween, TokenLike, TokenIlike, TokenNot:
		return precedenceComparison
	case TokenPlus, TokenMinus, TokenConcat:
		return precedenceAddition
	case TokenStar, TokenSlash, TokenPercent:
		return precedenceMultiply
	case TokenCast2:
		return precedencePostfix
	default:
		return precedenceNone
	}
}

func (p *Parser) parseInfixExpr(left Expr, prec int) Expr {
	switch p.token.Type {
	case TokenNot:
		return p.parseNotInfixExpr(left)
	case TokenIs:
		return p.parseIsExpr(left)
	case TokenIn:
		p.nextToken()
		return p.parseInExpr(left, false)
	case TokenBetween:
		p.nextToken()
		return p.parseBetweenExpr(left, false)
	case TokenLike:
		p.nextToken()
		return p.parseLikeExpr(left, false, false)
	case TokenIlike:
		p.nextToken()
		return p.parseLikeExpr(left, false, true)
	case TokenCast2:
		return p.parseTypeCastExpr(left)
	default:
		op := p.token.Type
		p.nextToken()
		right := p.parseExpressionWithPrecedence(prec + 1)
		return &BinaryExpr{Left: left, Op: op, Right: right}
	}
}

// parseNotInfixExpr handles NOT as an infix modifier (NOT IN, NOT BETWEEN,
// NOT LIKE, NOT ILIKE).
func (p *Parser) parseNotInfixExpr(left Expr) Expr {
	p.nextToken() // consume NOT

	switch p.token.Type {
	case TokenIn:
		p.nextToken()
		return p.parseInExpr(left, true)
	case TokenBetween:
		p.nextToken()
		return p.parseBetweenExpr(left, true)
	case TokenLike:
		p.nextToken()
		return p.parseLikeExpr(left, true, false)
	case TokenIlike:
		p.nextToken()
		return p.parseLikeExpr(left, true, true)
	default:
		p.addError("expected IN, BETWEEN, LIKE, or ILIKE after NOT")
		return left
	}
}

// parseIsExpr parses IS [NOT] NULL / IS [NOT] TRUE / IS [NOT] FALSE.
func (p *Parser) parseIsExpr(left Expr) Expr {
	p.nextToken() // consume IS
	isNot := p.match(TokenNot)

	switch p.token.Type {
	case TokenNull:
		p.nextToken()
		return &IsNullExpr{Expr: left, Not: isNot}
	case TokenTrue:
		p.nextToken()
		return &IsBoolExpr{Expr: left, Not: isNot, Value: true}
	case TokenFalse:
		p.nextToken()
		return &IsBoolExpr{Expr: left, Not: isNot, Value: false}
	default:
		p.addError("expected NULL, TRUE, or FALSE after IS")
		return left
	}
}

// parseInExpr parses IN (values) or IN (subquery).
func (p *Parser) parseInExpr(left Expr, not bool) Expr {
	in := &InExpr{Expr: left, Not: not}

	if !p.expect(TokenLParen) {
		return in
	}
	if p.check(TokenSelect) || p.check(TokenWith) {
		in.Query = p.parseSelectStatement()
	} else {
		in.Values = p.parseExpressionList()
	}
	p.expect(TokenRParen)

	return in
}

// parseBetweenExpr parses BETWEEN low AND high.
func (p *Parser) parseBetweenExpr(left Expr, not bool) Expr {
	between := &BetweenExpr{Expr: left, Not: not}
	between.Low = p.parseExpressionWithPrecedence(precedenceAddition)
	p.expect(TokenAnd)
	between.High = p.parseExpressionWithPrecedence(precedenceAddition)
	return between
}

// parseLikeExpr parses LIKE/ILIKE pattern.
func (p *Parser) parseLikeExpr(left Expr, not bool, ilike bool) Expr {
	return &LikeExpr{
		Expr:    left,
		Not:     not,
		ILike:   ilike,
		Pattern: p.parseExpressionWithPrecedence(precedenceAddition),
	}
}

// parseTypeCastExpr parses expr::type.
func (p *Parser) parseTypeCastExpr(left Expr) Expr {
	p.nextToken() // consume ::
	return &TypeCastExpr{Expr: left, TypeName: p.parseTypeName()}
}

// parseTypeName parses a type name, possibly with a length like DECIMAL(10,2).
func (p *Parser) parseTypeName() string {
	if !p.check(TokenIdent) {
		p.addError(fmt.Sprintf("expected type name, got %s", p.token.Type))
		return ""
	}
	name := p.token.Literal
	p.nextToken()

	// Consume precision/scale without recording it.
	if p.match(TokenLParen) {
		for !p.check(TokenRParen) && !p.check(TokenEOF) {
			p.nextToken()
		}
		p.expect(TokenRParen)
	}
	return name
}

// parseExpressionList parses a comma-separated list of expressions.
func (p *Parser) parseExpressionList() []Expr {
	var exprs []Expr
	for {
		expr := p.parseExpression()
		if expr != nil {
			exprs = append(exprs, expr)
		}
		if !p.match(TokenComma) {
			break
		}
	}
	return exprs
}

// === Primary expressions ===

func (p *Parser) parsePrimary() Expr {
	switch p.token.Type {
	case TokenNumber:
		lit := &Literal{Type: LiteralNumber, Value: p.token.Literal}
		p.nextToken()
		return lit

	case TokenString:
		lit := &Literal{Type: LiteralString, Value: p.token.Literal}
		p.nextToken()
		return lit

	case TokenTrue:
		p.nextToken()
		return &Literal{Type: LiteralBool, Value: "true"}

	case TokenFalse:
		p.nextToken()
		return &Literal{Type: LiteralBool, Value: "false"}

	case TokenNull:
		p.nextToken()
		return &Literal{Type: LiteralNull, Value: "NULL"}

	case TokenCase:
		return p.parseCaseExpr()

	case TokenCast:
		return p.parseCastExpr()

	case TokenExtract:
		return p.parseExtractExpr()

	case TokenInterval:
		return p.parseIntervalExpr()

	case TokenNot:
		if p.checkPeek(TokenExists) {
			p.nextToken()
			return p.parseExistsExpr(true)
		}
		p.nextToken()
		return &UnaryExpr{Op: TokenNot, Expr: p.parsePrimary()}

	case TokenExists:
		return p.parseExistsExpr(false)

	case TokenIdent:
		return p.parseIdentifierExpr()

	case TokenLParen:
		return p.parseParenExpr()

	case TokenStar:
		p.nextToken()
		return &StarExpr{}

	default:
		// Keywords like LEFT or RIGHT double as scalar function names.
		if p.token.Type >= TokenAll && p.checkPeek(TokenLParen) {
			return p.parseIdentifierExpr()
		}
		p.addError(fmt.Sprintf("unexpected token in expression: %s (%q)", p.token.Type, p.token.Literal))
		p.nextToken()
		return nil
	}
}

// parseIdentifierExpr parses an identifier (column ref or function call).
func (p *Parser) parseIdentifierExpr() Expr {
	name := p.token.Literal
	p.nextToken()

	if p.check(TokenLParen) {
		return p.parseFuncCall(name)
	}

	if p.check(TokenDot) {
		return p.parseQualifiedRef(name)
	}

	return &ColumnRef{Column: name}
}

// parseQualifiedRef parses table.column, schema.table.column, or table.*.
func (p *Parser) parseQualifiedRef(firstPart string) Expr {
	parts := []string{firstPart}

	for p.match(TokenDot) {
		if p.check(TokenStar) {
			p.nextToken()
			return &StarExpr{Table: firstPart}
		}
		if p.check(TokenIdent) {
			parts = append(parts, p.token.Literal)
			p.nextToken()
		} else {
			break
		}
	}

	ref := &ColumnRef{}
	switch len(parts) {
	case 2:
		ref.Table = parts[0]
		ref.Column = parts[1]
	default:
		// schema.table.column and deeper: keep the last two parts.
		ref.Table = parts[len(parts)-2]
		ref.Column = parts[len(parts)-1]
	}
	return ref
}

// parseFuncCall parses name([DISTINCT] args) [OVER (...)].
func (p *Parser) parseFuncCall(name string) Expr {
	fn := &FuncCall{Name: name}

	p.expect(TokenLParen)

	if p.check(TokenStar) {
		fn.Star = true
		p.nextToken()
	} else if !p.check(TokenRParen) {
		if p.match(TokenDistinct) {
			fn.Distinct = true
		}
		fn.Args = p.parseExpressionList()
	}

	p.expect(TokenRParen)

	if p.match(TokenOver) {
		fn.Window = p.parseWindowSpec()
	}

	return fn
}

// parseWindowSpec parses the body of an OVER clause.
func (p *Parser) parseWindowSpec() *WindowSpec {
	spec := &WindowSpec{}

	p.expect(TokenLParen)

	if p.match(TokenPartition) {
		p.expect(TokenBy)
		spec.PartitionBy = p.parseExpressionList()
	}

	if p.check(TokenOrder) {
		p.nextToken()
		p.expect(TokenBy)
		spec.OrderBy = p.parseOrderByList()
	}

	p.expect(TokenRParen)
	return spec
}

// parseCaseExpr parses a CASE expression.
func (p *Parser) parseCaseExpr() Expr {
	p.expect(TokenCase)
	caseExpr := &CaseExpr{}

	if !p.check(TokenWhen) {
		caseExpr.Operand = p.parseExpression()
	}

	for p.match(TokenWhen) {
		when := WhenClause{}
		when.Condition = p.parseExpression()
		p.expect(TokenThen)
		when.Result = p.parseExpression()
		caseExpr.Whens = append(caseExpr.Whens, when)
	}

	if p.match(TokenElse) {
		caseExpr.Else = p.parseExpression()
	}

	p.expect(TokenEnd)
	return caseExpr
}

// parseCastExpr parses CAST(expr AS type).
func (p *Parser) parseCastExpr() Expr {
	p.expect(TokenCast)
	p.expect(TokenLParen)
	expr := p.parseExpression()
	p.expect(TokenAs)
	typeName := p.parseTypeName()
	p.expect(TokenRParen)
	return &CastExpr{Expr: expr, TypeName: typeName}
}

// parseExtractExpr parses EXTRACT(field FROM expr).
func (p *Parser) parseExtractExpr() Expr {
	p.expect(TokenExtract)
	p.expect(TokenLParen)

	field := ""
	if p.check(TokenIdent) {
		field = p.token.Literal
		p.nextToken()
	} else {
		p.addError("expected field name in EXTRACT")
	}

	p.expect(TokenFrom)
	expr := p.parseExpression()
	p.expect(TokenRParen)
	return &ExtractExpr{Field: field, Expr: expr}
}

// parseIntervalExpr parses INTERVAL 'value' unit or INTERVAL n unit.
func (p *Parser) parseIntervalExpr() Expr {
	p.expect(TokenInterval)

	iv := &IntervalExpr{}
	switch p.token.Type {
	case TokenString:
		iv.Value = &Literal{Type: LiteralString, Value: p.token.Literal}
		p.nextToken()
	case TokenNumber:
		iv.Value = &Literal{Type: LiteralNumber, Value: p.token.Literal}
		p.nextToken()
	default:
		p.addError("expected literal after INTERVAL")
	}

	if p.check(TokenIdent) {
		iv.Unit = p.token.Literal
		p.nextToken()
	}
	return iv
}

// parseExistsExpr parses [NOT] EXISTS (subquery).
func (p *Parser) parseExistsExpr(not bool) Expr {
	p.expect(TokenExists)
	p.expect(TokenLParen)
	sel := p.parseSelectStatement()
	p.expect(TokenRParen)
	return &ExistsExpr{Not: not, Select: sel}
}

// parseParenExpr parses a parenthesized expression or a scalar subquery.
func (p *Parser) parseParenExpr() Expr {
	p.expect(TokenLParen)

	if p.check(TokenSelect) || p.check(TokenWith) {
		sel := p.parseSelectStatement()
		p.expect(TokenRParen)
		return &SubqueryExpr{Select: sel}
	}

	expr := p.parseExpression()
	p.expect(TokenRParen)
	return &ParenExpr{Expr: expr}
}
