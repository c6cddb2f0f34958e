package repository

import (
	"context"
	"time"
)

// OperationType defines the type of operation being performed
type OperationType string

const (
	OperationRead   OperationType = "read"
	OperationList   OperationType = "list"
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

// AuthInfo is the decoded identity a request is evaluated under.
// A nil *AuthInfo means the request is unauthenticated.
type AuthInfo struct {
	UID   string                 `json:"uid"`
	Token map[string]interface{} `json:"token,omitempty"`
}

// SecurityContext contains context information for rule evaluation
type SecurityContext struct {
	Auth       *AuthInfo `json:"auth,omitempty"`
	ProjectID  string    `json:"projectId"`
	DatabaseID string    `json:"databaseId"`
	// Path is the rules path, /databases/{database}/documents/{documentPath}
	Path string `json:"path"`
	// Resource holds the stored document's fields, nil when the document does not exist
	Resource map[string]interface{} `json:"resource,omitempty"`
	// RequestResource holds the document as it would look after a create or update
	RequestResource map[string]interface{} `json:"requestResource,omitempty"`
	Time            time.Time              `json:"time"`
}

// SecurityRule represents a single flattened security rule
type SecurityRule struct {
	// Match pattern for paths this rule applies to
	Match string `json:"match"`

	// Allow conditions for different operations
	Allow map[OperationType]string `json:"allow,omitempty"`

	// Deny conditions for different operations
	Deny map[OperationType]string `json:"deny,omitempty"`

	// Priority of this rule (higher priority rules are evaluated first)
	Priority int `json:"priority"`

	Description string `json:"description,omitempty"`
}

// RuleEvaluationResult represents the result of rule evaluation
type RuleEvaluationResult struct {
	Allowed   bool   `json:"allowed"`
	DeniedBy  string `json:"deniedBy,omitempty"`
	AllowedBy string `json:"allowedBy,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RuleMatch string `json:"ruleMatch,omitempty"`
}

// ResourceAccessor provides access to stored documents for the get() and exists() rule functions
type ResourceAccessor interface {
	// GetDocument returns the fields of the document at the rules path, nil if absent
	GetDocument(ctx context.Context, projectID, path string) (map[string]interface{}, error)

	// ExistsDocument checks if a document exists at the rules path
	ExistsDocument(ctx context.Context, projectID, path string) (bool, error)
}

// SecurityRulesEngine evaluates compiled security rules per project.
type SecurityRulesEngine interface {
	// SetRules compiles and installs rules for a project, replacing any previous set
	SetRules(projectID string, rules []*SecurityRule) error

	// HasRules reports whether rules are installed for the project
	HasRules(projectID string) bool

	// EvaluateAccess checks if an operation is allowed
	EvaluateAccess(ctx context.Context, operation OperationType, securityContext *SecurityContext) (*RuleEvaluationResult, error)

	// ClearRules removes the rules of a project
	ClearRules(projectID string)

	// SetResourceAccessor sets the resource accessor for get() and exists()
	SetResourceAccessor(accessor ResourceAccessor)
}
