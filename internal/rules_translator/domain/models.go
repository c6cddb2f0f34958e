package domain

import (
	"time"

	"rockmap-rules/internal/firestore/domain/repository"
)

// FirestoreRuleset is the parsed content of a firestore.rules file
type FirestoreRuleset struct {
	Service   string        `json:"service"`
	Matches   []*MatchBlock `json:"matches"`
	CreatedAt time.Time     `json:"created_at"`
	Version   string        `json:"version"`
}

// MatchBlock represents a "match /path/{wildcard} { ... }" block
type MatchBlock struct {
	Path      string            `json:"path"`
	Variables map[string]string `json:"variables"` // {userId} -> userId, {document=**} -> document
	Allow     []*AllowStatement `json:"allow"`
	Deny      []*DenyStatement  `json:"deny,omitempty"`
	Nested    []*MatchBlock     `json:"nested,omitempty"`
	Line      int               `json:"line"`
}

// AllowStatement represents "allow op1, op2: if condition;"
type AllowStatement struct {
	Operations []string `json:"operations"`
	Condition  string   `json:"condition"`
	Line       int      `json:"line"`
}

// DenyStatement represents "deny op: if condition;"
type DenyStatement struct {
	Operations []string `json:"operations"`
	Condition  string   `json:"condition"`
	Line       int      `json:"line"`
}

// ParseResult wraps a parsed ruleset with timing and diagnostics
type ParseResult struct {
	Ruleset   *FirestoreRuleset `json:"ruleset"`
	ParseTime time.Duration     `json:"parse_time"`
	Errors    []ParseError      `json:"errors,omitempty"`
	LineCount int               `json:"line_count"`
	RuleCount int               `json:"rule_count"`
}

// ParseError is a non fatal diagnostic found while parsing
type ParseError struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// TranslationResult holds the flattened rules produced from a ruleset
type TranslationResult struct {
	Rules           []*repository.SecurityRule `json:"rules"`
	TranslationTime time.Duration              `json:"translation_time"`
	RulesGenerated  int                        `json:"rules_generated"`
	Errors          []string                   `json:"errors,omitempty"`
}

// ParserMetrics reports parser activity
type ParserMetrics struct {
	TotalParsed      int64         `json:"total_parsed"`
	AverageParseTime time.Duration `json:"average_parse_time"`
	ErrorRate        float64       `json:"error_rate"`
	LastParseTime    time.Time     `json:"last_parse_time"`
}

// TranslationMetrics reports translator activity
type TranslationMetrics struct {
	TotalTranslations    int64         `json:"total_translations"`
	AverageTranslateTime time.Duration `json:"average_translate_time"`
	ErrorRate            float64       `json:"error_rate"`
	LastTranslation      time.Time     `json:"last_translation"`
}

// CacheKey identifies a translated ruleset by the hash of its source
type CacheKey struct {
	Hash string `json:"hash"`
}

// CacheStats reports translation cache usage
type CacheStats struct {
	Hits          int64     `json:"hits"`
	Misses        int64     `json:"misses"`
	CacheSize     int64     `json:"cache_size"`
	EvictionCount int64     `json:"eviction_count"`
	LastAccess    time.Time `json:"last_access"`
}

// DeployResult describes one rules deployment
type DeployResult struct {
	Success       bool          `json:"success"`
	Version       string        `json:"version"`
	DeployTime    time.Duration `json:"deploy_time"`
	RulesDeployed int           `json:"rules_deployed"`
	FromCache     bool          `json:"from_cache"`
	Warnings      []string      `json:"warnings,omitempty"`
}

// DeployHistory is a recorded deployment
type DeployHistory struct {
	Version    string    `json:"version"`
	Hash       string    `json:"hash"`
	DeployedAt time.Time `json:"deployed_at"`
	RulesCount int       `json:"rules_count"`
}
