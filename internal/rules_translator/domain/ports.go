package domain

import (
	"context"
	"io"
)

// RulesParser turns firestore.rules source into a ruleset AST
type RulesParser interface {
	Parse(ctx context.Context, content io.Reader) (*ParseResult, error)
	ParseString(ctx context.Context, content string) (*ParseResult, error)
	GetMetrics() *ParserMetrics
}

// RulesTranslator flattens a ruleset AST into security rules the engine can compile
type RulesTranslator interface {
	Translate(ctx context.Context, ruleset *FirestoreRuleset) (*TranslationResult, error)
	GetMetrics() *TranslationMetrics
}

// RulesCache stores translation results keyed by source hash
type RulesCache interface {
	Get(ctx context.Context, key *CacheKey) (*TranslationResult, bool)
	Set(ctx context.Context, key *CacheKey, result *TranslationResult)
	InvalidateAll(ctx context.Context)
	GetStats() *CacheStats
}

// RulesDeployer compiles rules source and installs it for a project
type RulesDeployer interface {
	Deploy(ctx context.Context, projectID, source string) (*DeployResult, error)
	GetCurrentVersion(ctx context.Context, projectID string) (string, error)
	GetDeployHistory(ctx context.Context, projectID string, limit int) ([]*DeployHistory, error)
}
