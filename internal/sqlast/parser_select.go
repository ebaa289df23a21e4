package sqlast

import "fmt"

// parseSelectStatement parses [WITH ...] select-body.
func (p *Parser) parseSelectStatement() *SelectStmt {
	stmt := &SelectStmt{}

	if p.check(TokenWith) {
		stmt.With = p.parseWithClause()
	}

	stmt.Body = p.parseSelectBody()
	return stmt
}

// parseWithClause parses WITH [RECURSIVE] cte [, cte]*.
func (p *Parser) parseWithClause() *WithClause {
	p.expect(TokenWith)

	with := &WithClause{}
	if p.match(TokenRecursive) {
		with.Recursive = true
	}

	for {
		cte := p.parseCTE()
		if cte != nil {
			with.CTEs = append(with.CTEs, cte)
		}
		if !p.match(TokenComma) {
			break
		}
	}

	return with
}

// parseCTE parses name AS (select).
func (p *Parser) parseCTE() *CTE {
	if !p.check(TokenIdent) {
		p.addError(fmt.Sprintf("expected CTE name, got %s", p.token.Type))
		return nil
	}

	cte := &CTE{Name: p.token.Literal}
	p.nextToken()

	p.expect(TokenAs)
	p.expect(TokenLParen)
	cte.Select = p.parseSelectStatement()
	p.expect(TokenRParen)

	return cte
}

// parseSelectBody parses a SELECT core and any chained set operations.
func (p *Parser) parseSelectBody() *SelectBody {
	body := &SelectBody{Left: p.parseSelectCore()}

	switch p.token.Type {
	case TokenUnion:
		p.nextToken()
		if p.match(TokenAll) {
			body.Op = SetOpUnionAll
		} else {
			body.Op = SetOpUnion
		}
		body.Right = p.parseSelectBody()
	case TokenIntersect:
		p.nextToken()
		p.match(TokenAll)
		body.Op = SetOpIntersect
		body.Right = p.parseSelectBody()
	case TokenExcept:
		p.nextToken()
		p.match(TokenAll)
		body.Op = SetOpExcept
		body.Right = p.parseSelectBody()
	}

	return body
}

// parseSelectCore parses one SELECT ... [FROM ...] [WHERE ...] etc.
func (p *Parser) parseSelectCore() *SelectCore {
	core := &SelectCore{}

	if !p.expect(TokenSelect) {
		return core
	}

	if p.match(TokenDistinct) {
		core.Distinct = true
	} else {
		p.match(TokenAll)
	}

	core.Columns = p.parseSelectList()

	if p.match(TokenFrom) {
		core.From = p.parseFromClause()
	}

	if p.match(TokenWhere) {
		core.Where = p.parseExpression()
	}

	if p.check(TokenGroup) {
		p.nextToken()
		p.expect(TokenBy)
		core.GroupBy = p.parseExpressionList()
	}

	if p.match(TokenHaving) {
		core.Having = p.parseExpression()
	}

	if p.check(TokenOrder) {
		p.nextToken()
		p.expect(TokenBy)
		core.OrderBy = p.parseOrderByList()
	}

	if p.match(TokenLimit) {
		core.Limit = p.parseExpression()
	}

	if p.match(TokenOffset) {
		core.Offset = p.parseExpression()
	}

	return core
}

// parseSelectList parses the projection list.
func (p *Parser) parseSelectList() []SelectItem {
	var items []SelectItem
	for {
		items = append(items, p.parseSelectItem())
		if !p.match(TokenComma) {
			break
		}
	}
	return items
}

// parseSelectItem parses *, table.*, or expr [AS alias].
func (p *Parser) parseSelectItem() SelectItem {
	if p.check(TokenStar) {
		p.nextToken()
		return SelectItem{Star: true}
	}

	// table.* needs two tokens of lookahead to tell apart from table.col.
	if p.check(TokenIdent) && p.checkPeek(TokenDot) && p.checkPeek2(TokenStar) {
		item := SelectItem{TableStar: p.token.Literal}
		p.nextToken() // table
		p.nextToken() // .
		p.nextToken() // *
		return item
	}

	item := SelectItem{Expr: p.parseExpression()}

	if p.match(TokenAs) {
		if p.check(TokenIdent) {
			item.Alias = p.token.Literal
			p.nextToken()
		} else {
			p.addError(fmt.Sprintf("expected alias after AS, got %s", p.token.Type))
		}
	} else if p.check(TokenIdent) && !p.isKeyword(p.token) {
		item.Alias = p.token.Literal
		p.nextToken()
	}

	return item
}

// parseFromClause parses the first table source and any joins.
func (p *Parser) parseFromClause() *FromClause {
	from := &FromClause{Source: p.parseTableRef()}

	for {
		if p.check(TokenComma) {
			p.nextToken()
			from.Joins = append(from.Joins, &Join{
				Type:  JoinComma,
				Right: p.parseTableRef(),
			})
			continue
		}
		if p.isJoinStart() {
			from.Joins = append(from.Joins, p.parseJoin())
			continue
		}
		break
	}

	return from
}

func (p *Parser) isJoinStart() bool {
	switch p.token.Type {
	case TokenJoin, TokenInner, TokenLeft, TokenRight, TokenFull,
		TokenCross, TokenNatural:
		return true
	}
	return false
}

// parseJoin parses one join clause including its ON/USING condition.
func (p *Parser) parseJoin() *Join {
	join := &Join{Type: JoinInner}

	if p.match(TokenNatural) {
		join.Natural = true
	}

	switch p.token.Type {
	case TokenInner:
		p.nextToken()
	case TokenLeft:
		join.Type = JoinLeft
		p.nextToken()
		p.match(TokenOuter)
	case TokenRight:
		join.Type = JoinRight
		p.nextToken()
		p.match(TokenOuter)
	case TokenFull:
		join.Type = JoinFull
		p.nextToken()
		p.match(TokenOuter)
	case TokenCross:
		join.Type = JoinCross
		p.nextToken()
	}

	p.expect(TokenJoin)
	join.Right = p.parseTableRef()

	if join.Type == JoinCross || join.Natural {
		return join
	}

	if p.match(TokenOn) {
		join.Condition = p.parseExpression()
	} else if p.match(TokenUsing) {
		p.expect(TokenLParen)
		for {
			if p.check(TokenIdent) {
				join.Using = append(join.Using, p.token.Literal)
				p.nextToken()
			} else {
				p.addError(fmt.Sprintf("expected column name in USING, got %s", p.token.Type))
				break
			}
			if !p.match(TokenComma) {
				break
			}
		}
		p.expect(TokenRParen)
	}

	return join
}

// parseTableRef parses a table name or a derived table, with optional alias.
func (p *Parser) parseTableRef() TableRef {
	if p.check(TokenLParen) {
		return p.parseDerivedTable()
	}

	if !p.check(TokenIdent) {
		p.addError(fmt.Sprintf("expected table name, got %s", p.token.Type))
		return nil
	}

	table := &TableName{Name: p.token.Literal}
	p.nextToken()

	if p.match(TokenDot) {
		if p.check(TokenIdent) {
			table.Schema = table.Name
			table.Name = p.token.Literal
			p.nextToken()
		} else {
			p.addError(fmt.Sprintf("expected table name after '.', got %s", p.token.Type))
		}
	}

	table.Alias = p.parseTableAlias()
	return table
}

// parseDerivedTable parses (select) [AS] alias.
func (p *Parser) parseDerivedTable() TableRef {
	p.expect(TokenLParen)
	derived := &DerivedTable{Select: p.parseSelectStatement()}
	p.expect(TokenRParen)
	derived.Alias = p.parseTableAlias()
	return derived
}

func (p *Parser) parseTableAlias() string {
	if p.match(TokenAs) {
		if p.check(TokenIdent) {
			alias := p.token.Literal
			p.nextToken()
			return alias
		}
		p.addError(fmt.Sprintf("expected alias after AS, got %s", p.token.Type))
		return ""
	}
	if p.check(TokenIdent) && !p.isKeyword(p.token) {
		alias := p.token.Literal
		p.nextToken()
		return alias
	}
	return ""
}

// parseOrderByList parses ORDER BY entries with direction and NULLS handling.
func (p *Parser) parseOrderByList() []OrderByItem {
	var items []OrderByItem
	for {
		item := OrderByItem{Expr: p.parseExpression()}

		if p.match(TokenDesc) {
			item.Desc = true
		} else {
			p.match(TokenAsc)
		}

		if p.match(TokenNulls) {
			first := true
			switch p.token.Type {
			case TokenFirst:
				p.nextToken()
			case TokenLast:
				first = false
				p.nextToken()
			default:
				p.addError("expected FIRST or LAST after NULLS")
			}
			item.NullsFirst = &first
		}

		items = append(items, item)
		if !p.match(TokenComma) {
			break
		}
	}
	return items
}
