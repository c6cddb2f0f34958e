package parser

import (
	"fmt"
	"strings"
)

// TokenType enumerates the lexical tokens of the rules language
type TokenType int

const (
	// Literals
	IDENTIFIER TokenType = iota
	STRING
	NUMBER

	// Keywords
	RULES_VERSION
	SERVICE
	MATCH
	ALLOW
	DENY
	IF

	// Operators
	EQUALS
	NOT_EQUALS
	AND
	OR
	NOT
	LESS_THAN
	GREATER_THAN
	LESS_EQUAL
	GREATER_EQUAL
	DOT
	PLUS
	MINUS
	STAR
	PERCENT
	QUESTION
	SEMICOLON
	COLON
	COMMA

	// Delimiters
	LBRACE
	RBRACE
	LPAREN
	RPAREN
	LBRACKET
	RBRACKET

	// Special
	PATH
	EOF
)

// Token is a lexed token with its source position
type Token struct {
	Type   TokenType
	Value  string
	Line   int
	Column int
}

// Lexer converts rules source into tokens
type Lexer struct {
	input    string
	position int
	line     int
	column   int
	tokens   []Token
}

// NewLexer creates a lexer over input
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		line:   1,
		column: 1,
		tokens: make([]Token, 0, len(input)/4),
	}
}

// Tokenize converts the whole input into tokens, terminated by EOF
func (l *Lexer) Tokenize() ([]Token, error) {
	for l.position < len(l.input) {
		if l.isWhitespace(l.current()) {
			l.advance()
			continue
		}
		if l.current() == '/' && l.peek() == '/' {
			l.skipLineComment()
			continue
		}
		if l.current() == '/' && l.peek() == '*' {
			if err := l.skipMultiLineComment(); err != nil {
				return nil, err
			}
			continue
		}

		token, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		l.tokens = append(l.tokens, token)
	}

	l.tokens = append(l.tokens, Token{Type: EOF, Line: l.line, Column: l.column})
	return l.tokens, nil
}

func (l *Lexer) nextToken() (Token, error) {
	line, column := l.line, l.column

	// two character operators first
	if l.position+1 < len(l.input) {
		switch l.input[l.position : l.position+2] {
		case "==":
			return l.emit(EQUALS, "==", line, column, 2), nil
		case "!=":
			return l.emit(NOT_EQUALS, "!=", line, column, 2), nil
		case "&&":
			return l.emit(AND, "&&", line, column, 2), nil
		case "||":
			return l.emit(OR, "||", line, column, 2), nil
		case "<=":
			return l.emit(LESS_EQUAL, "<=", line, column, 2), nil
		case ">=":
			return l.emit(GREATER_EQUAL, ">=", line, column, 2), nil
		}
	}

	ch := l.current()
	switch ch {
	case '{':
		return l.emit(LBRACE, "{", line, column, 1), nil
	case '}':
		return l.emit(RBRACE, "}", line, column, 1), nil
	case '(':
		return l.emit(LPAREN, "(", line, column, 1), nil
	case ')':
		return l.emit(RPAREN, ")", line, column, 1), nil
	case '[':
		return l.emit(LBRACKET, "[", line, column, 1), nil
	case ']':
		return l.emit(RBRACKET, "]", line, column, 1), nil
	case '=':
		return l.emit(EQUALS, "=", line, column, 1), nil
	case '!':
		return l.emit(NOT, "!", line, column, 1), nil
	case '<':
		return l.emit(LESS_THAN, "<", line, column, 1), nil
	case '>':
		return l.emit(GREATER_THAN, ">", line, column, 1), nil
	case ';':
		return l.emit(SEMICOLON, ";", line, column, 1), nil
	case ':':
		return l.emit(COLON, ":", line, column, 1), nil
	case ',':
		return l.emit(COMMA, ",", line, column, 1), nil
	case '.':
		return l.emit(DOT, ".", line, column, 1), nil
	case '+':
		return l.emit(PLUS, "+", line, column, 1), nil
	case '-':
		return l.emit(MINUS, "-", line, column, 1), nil
	case '*':
		return l.emit(STAR, "*", line, column, 1), nil
	case '%':
		return l.emit(PERCENT, "%", line, column, 1), nil
	case '?':
		return l.emit(QUESTION, "?", line, column, 1), nil
	case '"', '\'':
		return l.readString()
	case '/':
		return l.readPath(), nil
	}

	if l.isLetter(ch) {
		return l.readIdentifier(), nil
	}
	if l.isDigit(ch) {
		return l.readNumber(), nil
	}
	return Token{}, fmt.Errorf("unexpected character '%c' at line %d, column %d", ch, l.line, l.column)
}

func (l *Lexer) current() byte {
	if l.position >= len(l.input) {
		return 0
	}
	return l.input[l.position]
}

func (l *Lexer) peek() byte {
	if l.position+1 >= len(l.input) {
		return 0
	}
	return l.input[l.position+1]
}

func (l *Lexer) advance() {
	if l.position >= len(l.input) {
		return
	}
	if l.input[l.position] == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.position++
}

func (l *Lexer) emit(tokenType TokenType, value string, line, column, width int) Token {
	for i := 0; i < width; i++ {
		l.advance()
	}
	return Token{Type: tokenType, Value: value, Line: line, Column: column}
}

func (l *Lexer) isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func (l *Lexer) isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func (l *Lexer) isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) skipLineComment() {
	for l.current() != '\n' && l.current() != 0 {
		l.advance()
	}
}

func (l *Lexer) skipMultiLineComment() error {
	line := l.line
	l.advance()
	l.advance()
	for l.position < len(l.input) {
		if l.current() == '*' && l.peek() == '/' {
			l.advance()
			l.advance()
			return nil
		}
		l.advance()
	}
	return fmt.Errorf("unterminated comment starting at line %d", line)
}

// readString returns the unquoted string value; escapes are kept verbatim
// except for the escaped quote character itself.
func (l *Lexer) readString() (Token, error) {
	quote := l.current()
	line, column := l.line, l.column
	l.advance()

	var sb strings.Builder
	for l.current() != quote {
		ch := l.current()
		if ch == 0 || ch == '\n' {
			return Token{}, fmt.Errorf("unterminated string at line %d", line)
		}
		if ch == '\\' && l.peek() == quote {
			l.advance()
			ch = quote
		}
		sb.WriteByte(ch)
		l.advance()
	}
	l.advance()

	return Token{Type: STRING, Value: sb.String(), Line: line, Column: column}, nil
}

// readPath reads a path literal such as /users/{userId}, /{document=**} or
// /databases/$(database)/documents/users/$(request.auth.uid).
func (l *Lexer) readPath() Token {
	line, column := l.line, l.column
	var sb strings.Builder

	for l.current() != 0 && !l.isWhitespace(l.current()) {
		ch := l.current()
		if ch == ';' || ch == ')' || ch == ',' {
			break
		}
		switch {
		case ch == '{':
			for l.current() != 0 && l.current() != '}' {
				sb.WriteByte(l.current())
				l.advance()
			}
			if l.current() == '}' {
				sb.WriteByte('}')
				l.advance()
			}
		case ch == '$' && l.peek() == '(':
			depth := 0
			for l.current() != 0 {
				c := l.current()
				sb.WriteByte(c)
				l.advance()
				if c == '(' {
					depth++
				} else if c == ')' {
					depth--
					if depth == 0 {
						break
					}
				}
			}
		default:
			sb.WriteByte(ch)
			l.advance()
		}
	}

	return Token{Type: PATH, Value: sb.String(), Line: line, Column: column}
}

func (l *Lexer) readIdentifier() Token {
	line, column := l.line, l.column
	start := l.position
	for l.isLetter(l.current()) || l.isDigit(l.current()) || l.current() == '.' {
		l.advance()
	}
	value := l.input[start:l.position]
	return Token{Type: keywordType(value), Value: value, Line: line, Column: column}
}

func (l *Lexer) readNumber() Token {
	line, column := l.line, l.column
	start := l.position
	for l.isDigit(l.current()) {
		l.advance()
	}
	if l.current() == '.' && l.isDigit(l.peek()) {
		l.advance()
		for l.isDigit(l.current()) {
			l.advance()
		}
	}
	return Token{Type: NUMBER, Value: l.input[start:l.position], Line: line, Column: column}
}

func keywordType(value string) TokenType {
	switch value {
	case "rules_version":
		return RULES_VERSION
	case "service":
		return SERVICE
	case "match":
		return MATCH
	case "allow":
		return ALLOW
	case "deny":
		return DENY
	case "if":
		return IF
	default:
		return IDENTIFIER
	}
}
