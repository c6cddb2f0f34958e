package parser

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"rockmap-rules/internal/rules_translator/domain"
)

// ModernParser is a recursive descent parser for firestore.rules files.
// It is safe for concurrent use; each call parses with its own state.
type ModernParser struct {
	mu             sync.Mutex
	totalParsed    int64
	parseErrors    int64
	totalParseTime time.Duration
	lastParseTime  time.Time
}

// NewModernParser creates a parser
func NewModernParser() *ModernParser {
	return &ModernParser{}
}

var _ domain.RulesParser = (*ModernParser)(nil)

// Parse reads and parses rules from content
func (p *ModernParser) Parse(ctx context.Context, content io.Reader) (*domain.ParseResult, error) {
	raw, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("error reading content: %w", err)
	}
	return p.ParseString(ctx, string(raw))
}

// ParseString parses rules source held in memory
func (p *ModernParser) ParseString(ctx context.Context, content string) (*domain.ParseResult, error) {
	startTime := time.Now()
	result, err := p.parse(ctx, content)
	p.record(time.Since(startTime), err)
	if err != nil {
		return nil, err
	}
	result.ParseTime = time.Since(startTime)
	return result, nil
}

func (p *ModernParser) parse(ctx context.Context, content string) (*domain.ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens, err := NewLexer(content).Tokenize()
	if err != nil {
		return nil, fmt.Errorf("lexical error: %w", err)
	}

	state := &parseState{tokens: tokens}
	ruleset, err := state.parseRuleset()
	if err != nil {
		return nil, fmt.Errorf("syntax error: %w", err)
	}
	ruleset.CreatedAt = time.Now()

	state.validateSemantics(ruleset)

	return &domain.ParseResult{
		Ruleset:   ruleset,
		Errors:    state.errors,
		RuleCount: countRules(ruleset.Matches),
		LineCount: strings.Count(content, "\n") + 1,
	}, nil
}

func (p *ModernParser) record(duration time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalParsed++
	p.totalParseTime += duration
	p.lastParseTime = time.Now()
	if err != nil {
		p.parseErrors++
	}
}

// GetMetrics returns parser metrics
func (p *ModernParser) GetMetrics() *domain.ParserMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	metrics := &domain.ParserMetrics{
		TotalParsed:   p.totalParsed,
		LastParseTime: p.lastParseTime,
	}
	if p.totalParsed > 0 {
		metrics.AverageParseTime = p.totalParseTime / time.Duration(p.totalParsed)
		metrics.ErrorRate = float64(p.parseErrors) / float64(p.totalParsed)
	}
	return metrics
}

type parseState struct {
	tokens  []Token
	current int
	errors  []domain.ParseError
}

func (s *parseState) parseRuleset() (*domain.FirestoreRuleset, error) {
	ruleset := &domain.FirestoreRuleset{
		Version: "1",
		Matches: make([]*domain.MatchBlock, 0),
	}

	if s.check(RULES_VERSION) {
		version, err := s.parseRulesVersion()
		if err != nil {
			return nil, err
		}
		ruleset.Version = version
	}

	if !s.check(SERVICE) {
		return nil, s.error("expected 'service' declaration")
	}
	service, matches, err := s.parseService()
	if err != nil {
		return nil, err
	}
	ruleset.Service = service
	ruleset.Matches = matches

	if !s.isAtEnd() {
		return nil, s.error(fmt.Sprintf("unexpected token '%s' after service block", s.peek().Value))
	}
	return ruleset, nil
}

func (s *parseState) parseRulesVersion() (string, error) {
	s.advance()
	if !s.consume(EQUALS) {
		return "", s.error("expected '=' after 'rules_version'")
	}
	if !s.check(STRING) {
		return "", s.error("expected version string")
	}
	version := s.advance().Value
	if !s.consume(SEMICOLON) {
		return "", s.error("expected ';' after version")
	}
	return version, nil
}

func (s *parseState) parseService() (string, []*domain.MatchBlock, error) {
	s.advance()
	if !s.check(IDENTIFIER) {
		return "", nil, s.error("expected service name")
	}
	serviceName := s.advance().Value

	if !s.consume(LBRACE) {
		return "", nil, s.error("expected '{'")
	}

	matches := make([]*domain.MatchBlock, 0)
	for !s.check(RBRACE) && !s.isAtEnd() {
		match, err := s.parseMatchBlock()
		if err != nil {
			return "", nil, err
		}
		matches = append(matches, match)
	}
	if !s.consume(RBRACE) {
		return "", nil, s.error("unclosed service block - expected '}'")
	}
	return serviceName, matches, nil
}

func (s *parseState) parseMatchBlock() (*domain.MatchBlock, error) {
	matchToken := s.peek()
	if !s.consume(MATCH) {
		return nil, s.error(fmt.Sprintf("unexpected token '%s', expected 'match'", matchToken.Value))
	}
	if !s.check(PATH) {
		return nil, s.error("expected path after 'match'")
	}
	path := s.advance().Value

	if !s.consume(LBRACE) {
		return nil, s.error("expected '{' after match path")
	}

	block := &domain.MatchBlock{
		Path:      path,
		Variables: extractVariables(path),
		Allow:     make([]*domain.AllowStatement, 0),
		Deny:      make([]*domain.DenyStatement, 0),
		Nested:    make([]*domain.MatchBlock, 0),
		Line:      matchToken.Line,
	}

	for !s.check(RBRACE) && !s.isAtEnd() {
		switch {
		case s.check(ALLOW):
			line := s.advance().Line
			operations, condition, err := s.parseStatement("allow")
			if err != nil {
				return nil, err
			}
			block.Allow = append(block.Allow, &domain.AllowStatement{Operations: operations, Condition: condition, Line: line})
		case s.check(DENY):
			line := s.advance().Line
			operations, condition, err := s.parseStatement("deny")
			if err != nil {
				return nil, err
			}
			block.Deny = append(block.Deny, &domain.DenyStatement{Operations: operations, Condition: condition, Line: line})
		case s.check(MATCH):
			nested, err := s.parseMatchBlock()
			if err != nil {
				return nil, err
			}
			block.Nested = append(block.Nested, nested)
		default:
			return nil, s.error(fmt.Sprintf("unexpected token '%s' in match block", s.peek().Value))
		}
	}
	if !s.consume(RBRACE) {
		return nil, s.error("unclosed match block - expected '}'")
	}
	return block, nil
}

// parseStatement parses "op1, op2: if condition;" after the allow/deny keyword.
// A statement without a condition ("allow read;") is unconditional.
func (s *parseState) parseStatement(keyword string) ([]string, string, error) {
	operations := make([]string, 0, 2)
	if !s.check(IDENTIFIER) {
		return nil, "", s.error(fmt.Sprintf("expected operation after '%s'", keyword))
	}
	operations = append(operations, s.advance().Value)
	for s.consume(COMMA) {
		if !s.check(IDENTIFIER) {
			return nil, "", s.error("expected operation after ','")
		}
		operations = append(operations, s.advance().Value)
	}

	if s.consume(SEMICOLON) {
		return operations, "true", nil
	}
	if !s.consume(COLON) {
		return nil, "", s.error("expected ':' after operations")
	}
	if !s.consume(IF) {
		return nil, "", s.error("expected 'if' after ':'")
	}

	condition, err := s.parseCondition()
	if err != nil {
		return nil, "", err
	}

	// the semicolon may be omitted before the end of the block or the next statement
	if !s.consume(SEMICOLON) {
		next := s.peek().Type
		if next != RBRACE && next != ALLOW && next != DENY && next != MATCH && next != EOF {
			return nil, "", s.error(fmt.Sprintf("expected ';' after %s statement condition", keyword))
		}
	}
	return operations, condition, nil
}

// parseCondition collects the tokens of a condition up to the terminating
// semicolon and re-joins them into an expression string.
func (s *parseState) parseCondition() (string, error) {
	var sb strings.Builder
	depth := 0
	startToken := s.peek()
	var prev Token

	for !s.isAtEnd() {
		token := s.peek()
		if token.Type == SEMICOLON {
			break
		}
		if depth == 0 && (token.Type == RBRACE || token.Type == ALLOW || token.Type == DENY || token.Type == MATCH) {
			break
		}

		switch token.Type {
		case LPAREN, LBRACKET, LBRACE:
			depth++
		case RPAREN, RBRACKET, RBRACE:
			depth--
			if depth < 0 {
				return "", s.error(fmt.Sprintf("unbalanced '%s' in condition", token.Value))
			}
		}

		if sb.Len() > 0 && !shouldOmitSpace(prev, token) {
			sb.WriteByte(' ')
		}
		if token.Type == STRING {
			sb.WriteString(strconv.Quote(token.Value))
		} else {
			sb.WriteString(token.Value)
		}
		prev = token
		s.advance()
	}

	if depth != 0 {
		return "", s.error("unbalanced brackets in condition")
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty condition at line %d, column %d", startToken.Line, startToken.Column)
	}
	return sb.String(), nil
}

// shouldOmitSpace reports whether two adjacent condition tokens are written without a space
func shouldOmitSpace(prev Token, curr Token) bool {
	prevType, currType := prev.Type, curr.Type
	switch {
	case prevType == DOT || currType == DOT:
		return true
	case prevType == LBRACKET || prevType == LPAREN:
		return true
	case currType == RBRACKET || currType == RPAREN:
		return true
	case currType == COMMA:
		return true
	case prevType == NOT:
		return true
	case prevType == IDENTIFIER && prev.Value == "in":
		return false
	case (prevType == IDENTIFIER || prevType == RPAREN || prevType == RBRACKET) && (currType == LPAREN || currType == LBRACKET):
		return true
	}
	return false
}

func (s *parseState) validateSemantics(ruleset *domain.FirestoreRuleset) {
	if ruleset.Service != "cloud.firestore" {
		s.errors = append(s.errors, domain.ParseError{
			Line:    1,
			Message: fmt.Sprintf("unsupported service '%s'", ruleset.Service),
			Type:    "semantic",
		})
	}
	if len(ruleset.Matches) == 0 {
		s.errors = append(s.errors, domain.ParseError{
			Line:    1,
			Message: "no match blocks found",
			Type:    "semantic",
		})
	}
	for _, match := range ruleset.Matches {
		s.validateMatchBlock(match)
	}
}

func (s *parseState) validateMatchBlock(block *domain.MatchBlock) {
	if !strings.HasPrefix(block.Path, "/") {
		s.errors = append(s.errors, domain.ParseError{
			Line:    block.Line,
			Message: fmt.Sprintf("match path '%s' must start with '/'", block.Path),
			Type:    "semantic",
		})
	}
	for _, nested := range block.Nested {
		s.validateMatchBlock(nested)
	}
}

// extractVariables maps the wildcard names of a match path, {userId} and {document=**}
func extractVariables(path string) map[string]string {
	variables := make(map[string]string)
	rest := path
	for {
		open := strings.Index(rest, "{")
		if open == -1 {
			break
		}
		end := strings.Index(rest[open:], "}")
		if end == -1 {
			break
		}
		inner := rest[open+1 : open+end]
		name := inner
		if eq := strings.Index(inner, "="); eq != -1 {
			name = inner[:eq]
		}
		variables[name] = "{" + inner + "}"
		rest = rest[open+end+1:]
	}
	return variables
}

func countRules(matches []*domain.MatchBlock) int {
	count := 0
	for _, match := range matches {
		count += len(match.Allow) + len(match.Deny) + countRules(match.Nested)
	}
	return count
}

func (s *parseState) check(tokenType TokenType) bool {
	return s.peek().Type == tokenType
}

func (s *parseState) peek() Token {
	return s.tokens[s.current]
}

func (s *parseState) advance() Token {
	token := s.tokens[s.current]
	if !s.isAtEnd() {
		s.current++
	}
	return token
}

func (s *parseState) isAtEnd() bool {
	return s.peek().Type == EOF
}

func (s *parseState) consume(tokenType TokenType) bool {
	if s.check(tokenType) {
		s.advance()
		return true
	}
	return false
}

func (s *parseState) error(message string) error {
	token := s.peek()
	return fmt.Errorf("%s at line %d, column %d", message, token.Line, token.Column)
}
