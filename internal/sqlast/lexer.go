package sqlast

import (
	"strings"
	"unicode"
)

// Lexer tokenizes SQL input. It skips comments but counts them, so the
// security layers can flag comment tokens used to truncate filters.
type Lexer struct {
	input    string
	pos      int  // current position in input
	readPos  int  // reading position (after current char)
	ch       byte // current char under examination
	comments int  // number of comment tokens skipped so far
}

// NewLexer creates a Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// Comments returns the number of comment tokens skipped so far.
func (l *Lexer) Comments() int { return l.comments }

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	var tok Token

	switch l.ch {
	case 0:
		return Token{Type: TokenEOF}
	case '+':
		tok = Token{Type: TokenPlus, Literal: "+"}
	case '-':
		tok = Token{Type: TokenMinus, Literal: "-"}
	case '*':
		tok = Token{Type: TokenStar, Literal: "*"}
	case '/':
		tok = Token{Type: TokenSlash, Literal: "/"}
	case '%':
		tok = Token{Type: TokenPercent, Literal: "%"}
	case '=':
		tok = Token{Type: TokenEq, Literal: "="}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = Token{Type: TokenLe, Literal: "<="}
		case '>':
			l.readChar()
			tok = Token{Type: TokenNe, Literal: "<>"}
		default:
			tok = Token{Type: TokenLt, Literal: "<"}
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TokenGe, Literal: ">="}
		} else {
			tok = Token{Type: TokenGt, Literal: ">"}
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TokenNe, Literal: "!="}
		} else {
			tok = Token{Type: TokenIllegal, Literal: string(l.ch)}
		}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok = Token{Type: TokenConcat, Literal: "||"}
		} else {
			tok = Token{Type: TokenIllegal, Literal: "|"}
		}
	case '.':
		tok = Token{Type: TokenDot, Literal: "."}
	case ',':
		tok = Token{Type: TokenComma, Literal: ","}
	case ';':
		tok = Token{Type: TokenSemicolon, Literal: ";"}
	case '(':
		tok = Token{Type: TokenLParen, Literal: "("}
	case ')':
		tok = Token{Type: TokenRParen, Literal: ")"}
	case ':':
		if l.peekChar() == ':' {
			l.readChar()
			tok = Token{Type: TokenCast2, Literal: "::"}
		} else {
			tok = Token{Type: TokenIllegal, Literal: ":"}
		}
	case '\'':
		return Token{Type: TokenString, Literal: l.readString()}
	case '"':
		return Token{Type: TokenIdent, Literal: l.readQuotedIdentifier()}
	default:
		switch {
		case isLetter(l.ch) || l.ch == '_':
			literal := l.readIdentifier()
			return Token{Type: lookupKeyword(strings.ToLower(literal)), Literal: literal}
		case isDigit(l.ch):
			return Token{Type: TokenNumber, Literal: l.readNumber()}
		default:
			// Placeholders ('?', '$1') and any other stray byte are illegal:
			// generated SQL must bind its tenant as a literal.
			tok = Token{Type: TokenIllegal, Literal: string(l.ch)}
		}
	}

	l.readChar()
	return tok
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		// Line comment (-- ...)
		if l.ch == '-' && l.peekChar() == '-' {
			l.comments++
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		// Block comment (/* ... */)
		if l.ch == '/' && l.peekChar() == '*' {
			l.comments++
			l.readChar()
			l.readChar()
			for l.ch != 0 {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					break
				}
				l.readChar()
			}
			continue
		}
		break
	}
}

// readString reads a single-quoted string literal, handling '' escapes.
func (l *Lexer) readString() string {
	l.readChar() // skip opening quote
	var result strings.Builder
	for l.ch != 0 {
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				result.WriteByte('\'')
				l.readChar()
				l.readChar()
			} else {
				l.readChar() // skip closing quote
				break
			}
		} else {
			result.WriteByte(l.ch)
			l.readChar()
		}
	}
	return result.String()
}

// readQuotedIdentifier reads a double-quoted identifier, handling "" escapes.
func (l *Lexer) readQuotedIdentifier() string {
	l.readChar() // skip opening quote
	var result strings.Builder
	for l.ch != 0 {
		if l.ch == '"' {
			if l.peekChar() == '"' {
				result.WriteByte('"')
				l.readChar()
				l.readChar()
			} else {
				l.readChar() // skip closing quote
				break
			}
		} else {
			result.WriteByte(l.ch)
			l.readChar()
		}
	}
	return result.String()
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.pos]
}

func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// CountComments returns the number of SQL comment tokens in the input
// without parsing it.
func CountComments(sql string) int {
	l := NewLexer(sql)
	for {
		if tok := l.NextToken(); tok.Type == TokenEOF {
			break
		}
	}
	return l.Comments()
}
