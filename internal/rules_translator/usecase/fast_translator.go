package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"rockmap-rules/internal/firestore/domain/repository"
	"rockmap-rules/internal/rules_translator/domain"
	"rockmap-rules/internal/shared/logger"
)

// FastTranslator flattens nested match blocks into security rules with
// fully qualified match paths and CEL-ready conditions.
type FastTranslator struct {
	log          logger.Logger
	metrics      domain.TranslationMetrics
	metricsMutex sync.RWMutex
	failures     int64

	operationMap map[string]repository.OperationType
}

// NewFastTranslator creates a translator
func NewFastTranslator(log logger.Logger) *FastTranslator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &FastTranslator{
		log: log.WithComponent("rules_translator"),
		operationMap: map[string]repository.OperationType{
			"read":   repository.OperationRead,
			"get":    repository.OperationRead,
			"list":   repository.OperationList,
			"create": repository.OperationCreate,
			"update": repository.OperationUpdate,
			"delete": repository.OperationDelete,
		},
	}
}

var _ domain.RulesTranslator = (*FastTranslator)(nil)

// Translate converts a ruleset into security rules. Statements with unknown
// operations or untranslatable conditions are reported in the result and
// make the translation fail.
func (t *FastTranslator) Translate(ctx context.Context, ruleset *domain.FirestoreRuleset) (*domain.TranslationResult, error) {
	if ruleset == nil {
		return nil, fmt.Errorf("ruleset cannot be nil")
	}
	startTime := time.Now()

	result := &domain.TranslationResult{
		Rules:  make([]*repository.SecurityRule, 0),
		Errors: make([]string, 0),
	}
	for _, match := range ruleset.Matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t.translateMatchBlock(match, "", 0, result)
	}

	result.RulesGenerated = len(result.Rules)
	result.TranslationTime = time.Since(startTime)
	t.updateMetrics(result.TranslationTime, len(result.Errors) == 0)

	if len(result.Errors) > 0 {
		t.log.WithFields(map[string]interface{}{"errors": len(result.Errors)}).Warn("rules translation failed")
		return result, fmt.Errorf("rules translation failed: %s", strings.Join(result.Errors, "; "))
	}
	t.log.WithFields(map[string]interface{}{
		"rules":    result.RulesGenerated,
		"duration": result.TranslationTime.String(),
	}).Debug("rules translated")
	return result, nil
}

func (t *FastTranslator) translateMatchBlock(block *domain.MatchBlock, parentPath string, depth int, result *domain.TranslationResult) {
	fullPath := t.buildFullPath(parentPath, block.Path)

	if len(block.Allow) > 0 || len(block.Deny) > 0 {
		rule := &repository.SecurityRule{
			Match:       fullPath,
			Allow:       make(map[repository.OperationType]string),
			Deny:        make(map[repository.OperationType]string),
			Priority:    t.calculatePriority(fullPath, depth),
			Description: fmt.Sprintf("match %s (line %d)", block.Path, block.Line),
		}
		for _, stmt := range block.Allow {
			t.addStatement(rule.Allow, stmt.Operations, stmt.Condition, stmt.Line, result)
		}
		for _, stmt := range block.Deny {
			t.addStatement(rule.Deny, stmt.Operations, stmt.Condition, stmt.Line, result)
		}
		result.Rules = append(result.Rules, rule)
	}

	for _, nested := range block.Nested {
		t.translateMatchBlock(nested, fullPath, depth+1, result)
	}
}

// addStatement records a condition for each operation; several statements
// granting the same operation are combined with ||.
func (t *FastTranslator) addStatement(target map[repository.OperationType]string, operations []string, condition string, line int, result *domain.TranslationResult) {
	converted, err := ConvertCondition(condition)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
		return
	}

	for _, opStr := range operations {
		for _, op := range t.expandOperation(opStr) {
			mappedOp, ok := t.operationMap[op]
			if !ok {
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: unknown operation '%s'", line, op))
				continue
			}
			if existing, ok := target[mappedOp]; ok {
				target[mappedOp] = "(" + existing + ") || (" + converted + ")"
			} else {
				target[mappedOp] = converted
			}
		}
	}
}

// expandOperation expands composite operations: read -> get, list; write -> create, update, delete
func (t *FastTranslator) expandOperation(operation string) []string {
	switch strings.TrimSpace(operation) {
	case "read":
		return []string{"read", "list"}
	case "write":
		return []string{"create", "update", "delete"}
	default:
		return []string{strings.TrimSpace(operation)}
	}
}

func (t *FastTranslator) buildFullPath(parentPath, currentPath string) string {
	if parentPath == "" {
		return currentPath
	}
	if !strings.HasPrefix(currentPath, "/") {
		currentPath = "/" + currentPath
	}
	return strings.TrimSuffix(parentPath, "/") + currentPath
}

// calculatePriority ranks rules by specificity: deeper and more literal paths first
func (t *FastTranslator) calculatePriority(path string, depth int) int {
	priority := 1000 + depth*100

	for _, segment := range strings.Split(strings.Trim(path, "/"), "/") {
		switch {
		case strings.Contains(segment, "**"):
			priority -= 100
		case strings.Contains(segment, "{"):
			priority -= 10
		default:
			priority += 50
		}
	}

	if priority < 1 {
		priority = 1
	}
	return priority
}

func (t *FastTranslator) updateMetrics(translationTime time.Duration, success bool) {
	t.metricsMutex.Lock()
	defer t.metricsMutex.Unlock()

	t.metrics.TotalTranslations++
	t.metrics.LastTranslation = time.Now()
	if !success {
		t.failures++
	}

	if t.metrics.AverageTranslateTime == 0 {
		t.metrics.AverageTranslateTime = translationTime
	} else {
		t.metrics.AverageTranslateTime = time.Duration(
			float64(t.metrics.AverageTranslateTime)*0.9 + float64(translationTime)*0.1,
		)
	}
	t.metrics.ErrorRate = float64(t.failures) / float64(t.metrics.TotalTranslations)
}

// GetMetrics returns a snapshot of translator metrics
func (t *FastTranslator) GetMetrics() *domain.TranslationMetrics {
	t.metricsMutex.RLock()
	defer t.metricsMutex.RUnlock()

	metrics := t.metrics
	return &metrics
}

// ConvertCondition rewrites rules path literals into CEL string expressions:
// /databases/$(database)/documents/users/$(uid) becomes
// "/databases/" + string(database) + "/documents/users/" + string(uid).
// Everything else is passed through unchanged.
func ConvertCondition(condition string) (string, error) {
	var out strings.Builder
	var last byte = '('

	for i := 0; i < len(condition); {
		ch := condition[i]

		if ch == '"' || ch == '\'' {
			end, err := skipQuoted(condition, i)
			if err != nil {
				return "", err
			}
			out.WriteString(condition[i:end])
			last = ch
			i = end
			continue
		}

		if ch == '/' && startsOperand(last) {
			expr, end, err := convertPathLiteral(condition, i)
			if err != nil {
				return "", err
			}
			out.WriteString(expr)
			last = ')'
			i = end
			continue
		}

		out.WriteByte(ch)
		if ch != ' ' && ch != '\t' && ch != '\n' {
			last = ch
		}
		i++
	}
	return out.String(), nil
}

// startsOperand reports whether a '/' following prev begins an operand rather than a division
func startsOperand(prev byte) bool {
	return strings.IndexByte("(,=!&|?:[<>+", prev) >= 0
}

func skipQuoted(s string, start int) (int, error) {
	quote := s[start]
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("unterminated string literal in condition")
}

func convertPathLiteral(s string, start int) (string, int, error) {
	var parts []string
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			parts = append(parts, strconv.Quote(literal.String()))
			literal.Reset()
		}
	}

	i := start
	for i < len(s) {
		ch := s[i]
		if ch == ')' || ch == ',' || ch == ' ' || ch == '\t' || ch == '\n' {
			break
		}
		if ch == '$' && i+1 < len(s) && s[i+1] == '(' {
			depth := 0
			j := i + 1
			for ; j < len(s); j++ {
				if s[j] == '(' {
					depth++
				} else if s[j] == ')' {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			if j >= len(s) {
				return "", 0, fmt.Errorf("unterminated $( in path %q", s[start:])
			}
			expr := strings.TrimSpace(s[i+2 : j])
			if expr == "" {
				return "", 0, fmt.Errorf("empty $() in path %q", s[start:j+1])
			}
			flush()
			parts = append(parts, "string("+expr+")")
			i = j + 1
			continue
		}
		literal.WriteByte(ch)
		i++
	}
	flush()

	if len(parts) == 1 {
		return parts[0], i, nil
	}
	return "(" + strings.Join(parts, " + ") + ")", i, nil
}
