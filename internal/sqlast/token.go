// Package sqlast provides a SQL lexer, typed AST, and recursive-descent
// parser purpose-built for the query safety pipeline.
//
// Unlike a general SQL toolchain, this parser deep-parses only SELECT
// statements (including CTEs, set operations, joins, and subqueries); every
// other statement kind is classified by its leading verb and rejected by the
// validation layers. Security-relevant surface details a formatter would
// discard are preserved: comment tokens are counted, placeholders are
// refused, and multi-statement input is an error.
package sqlast

import "fmt"

// TokenType identifies a lexical token.
type TokenType int

// Token types produced by the lexer.
const (
	TokenEOF     TokenType = iota // end of input
	TokenIllegal                  // unexpected character

	TokenIdent  // identifier (bare or double-quoted)
	TokenNumber // 123, 45.67, 1e10
	TokenString // 'hello'

	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenSlash     // /
	TokenPercent   // %
	TokenConcat    // ||
	TokenEq        // =
	TokenNe        // != or <>
	TokenLt        // <
	TokenGt        // >
	TokenLe        // <=
	TokenGe        // >=
	TokenDot       // .
	TokenComma     // ,
	TokenSemicolon // ;
	TokenLParen    // (
	TokenRParen    // )
	TokenCast2     // :: shorthand cast

	// Keywords (alphabetical).
	TokenAll
	TokenAnd
	TokenAs
	TokenAsc
	TokenBetween
	TokenBy
	TokenCase
	TokenCast
	TokenCross
	TokenDesc
	TokenDistinct
	TokenElse
	TokenEnd
	TokenExcept
	TokenExists
	TokenExtract
	TokenFalse
	TokenFirst
	TokenFrom
	TokenFull
	TokenGroup
	TokenHaving
	TokenIlike
	TokenIn
	TokenInner
	TokenIntersect
	TokenInterval
	TokenIs
	TokenJoin
	TokenLast
	TokenLeft
	TokenLike
	TokenLimit
	TokenNatural
	TokenNot
	TokenNull
	TokenNulls
	TokenOffset
	TokenOn
	TokenOr
	TokenOrder
	TokenOuter
	TokenOver
	TokenPartition
	TokenRecursive
	TokenRight
	TokenSelect
	TokenThen
	TokenTrue
	TokenUnion
	TokenUsing
	TokenWhen
	TokenWhere
	TokenWith
)

// Token is one lexical token with its literal text.
type Token struct {
	Type    TokenType
	Literal string
}

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", int(t))
}

var tokenNames = map[TokenType]string{
	TokenEOF:     "EOF",
	TokenIllegal: "ILLEGAL",
	TokenIdent:   "IDENT",
	TokenNumber:  "NUMBER",
	TokenString:  "STRING",

	TokenPlus:      "+",
	TokenMinus:     "-",
	TokenStar:      "*",
	TokenSlash:     "/",
	TokenPercent:   "%",
	TokenConcat:    "||",
	TokenEq:        "=",
	TokenNe:        "!=",
	TokenLt:        "<",
	TokenGt:        ">",
	TokenLe:        "<=",
	TokenGe:        ">=",
	TokenDot:       ".",
	TokenComma:     ",",
	TokenSemicolon: ";",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenCast2:     "::",

	TokenAll:       "ALL",
	TokenAnd:       "AND",
	TokenAs:        "AS",
	TokenAsc:       "ASC",
	TokenBetween:   "BETWEEN",
	TokenBy:        "BY",
	TokenCase:      "CASE",
	TokenCast:      "CAST",
	TokenCross:     "CROSS",
	TokenDesc:      "DESC",
	TokenDistinct:  "DISTINCT",
	TokenElse:      "ELSE",
	TokenEnd:       "END",
	TokenExcept:    "EXCEPT",
	TokenExists:    "EXISTS",
	TokenExtract:   "EXTRACT",
	TokenFalse:     "FALSE",
	TokenFirst:     "FIRST",
	TokenFrom:      "FROM",
	TokenFull:      "FULL",
	TokenGroup:     "GROUP",
	TokenHaving:    "HAVING",
	TokenIlike:     "ILIKE",
	TokenIn:        "IN",
	TokenInner:     "INNER",
	TokenIntersect: "INTERSECT",
	TokenInterval:  "INTERVAL",
	TokenIs:        "IS",
	TokenJoin:      "JOIN",
	TokenLast:      "LAST",
	TokenLeft:      "LEFT",
	TokenLike:      "LIKE",
	TokenLimit:     "LIMIT",
	TokenNatural:   "NATURAL",
	TokenNot:       "NOT",
	TokenNull:      "NULL",
	TokenNulls:     "NULLS",
	TokenOffset:    "OFFSET",
	TokenOn:        "ON",
	TokenOr:        "OR",
	TokenOrder:     "ORDER",
	TokenOuter:     "OUTER",
	TokenOver:      "OVER",
	TokenPartition: "PARTITION",
	TokenRecursive: "RECURSIVE",
	TokenRight:     "RIGHT",
	TokenSelect:    "SELECT",
	TokenThen:      "THEN",
	TokenTrue:      "TRUE",
	TokenUnion:     "UNION",
	TokenUsing:     "USING",
	TokenWhen:      "WHEN",
	TokenWhere:     "WHERE",
	TokenWith:      "WITH",
}

// keywords maps lowercase identifier text to its keyword token type.
var keywords = map[string]TokenType{
	"all":       TokenAll,
	"and":       TokenAnd,
	"as":        TokenAs,
	"asc":       TokenAsc,
	"between":   TokenBetween,
	"by":        TokenBy,
	"case":      TokenCase,
	"cast":      TokenCast,
	"cross":     TokenCross,
	"desc":      TokenDesc,
	"distinct":  TokenDistinct,
	"else":      TokenElse,
	"end":       TokenEnd,
	"except":    TokenExcept,
	"exists":    TokenExists,
	"extract":   TokenExtract,
	"false":     TokenFalse,
	"first":     TokenFirst,
	"from":      TokenFrom,
	"full":      TokenFull,
	"group":     TokenGroup,
	"having":    TokenHaving,
	"ilike":     TokenIlike,
	"in":        TokenIn,
	"inner":     TokenInner,
	"intersect": TokenIntersect,
	"interval":  TokenInterval,
	"is":        TokenIs,
	"join":      TokenJoin,
	"last":      TokenLast,
	"left":      TokenLeft,
	"like":      TokenLike,
	"limit":     TokenLimit,
	"natural":   TokenNatural,
	"not":       TokenNot,
	"null":      TokenNull,
	"nulls":     TokenNulls,
	"offset":    TokenOffset,
	"on":        TokenOn,
	"or":        TokenOr,
	"order":     TokenOrder,
	"outer":     TokenOuter,
	"over":      TokenOver,
	"partition": TokenPartition,
	"recursive": TokenRecursive,
	"right":     TokenRight,
	"select":    TokenSelect,
	"then":      TokenThen,
	"true":      TokenTrue,
	"union":     TokenUnion,
	"using":     TokenUsing,
	"when":      TokenWhen,
	"where":     TokenWhere,
	"with":      TokenWith,
}

// lookupKeyword returns the keyword token type for lowered identifier text,
// or TokenIdent when the text is not a keyword.
func lookupKeyword(lowered string) TokenType {
	if tok, ok := keywords[lowered]; ok {
		return tok
	}
	return TokenIdent
}
