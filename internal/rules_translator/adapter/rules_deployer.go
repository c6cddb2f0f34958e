package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"rockmap-rules/internal/firestore/domain/repository"
	"rockmap-rules/internal/rules_translator/domain"
	"rockmap-rules/internal/shared/errors"
	"rockmap-rules/internal/shared/logger"

	"github.com/google/uuid"
)

// RulesDeployer parses, translates and installs rules source into the security engine
type RulesDeployer struct {
	parser         domain.RulesParser
	translator     domain.RulesTranslator
	securityEngine repository.SecurityRulesEngine
	cache          domain.RulesCache
	history        *MemoryHistoryStore
	log            logger.Logger
}

// NewRulesDeployer creates a deployer. cache may be nil.
func NewRulesDeployer(
	parser domain.RulesParser,
	translator domain.RulesTranslator,
	securityEngine repository.SecurityRulesEngine,
	cache domain.RulesCache,
	log logger.Logger,
) *RulesDeployer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &RulesDeployer{
		parser:         parser,
		translator:     translator,
		securityEngine: securityEngine,
		cache:          cache,
		history:        NewMemoryHistoryStore(),
		log:            log.WithComponent("rules_deployer"),
	}
}

var _ domain.RulesDeployer = (*RulesDeployer)(nil)

// Deploy replaces the project's rules with the compiled source.
// Invalid source yields a validation error and leaves the previous rules installed.
func (d *RulesDeployer) Deploy(ctx context.Context, projectID, source string) (*domain.DeployResult, error) {
	startTime := time.Now()
	log := d.log.WithContext(ctx).WithFields(map[string]interface{}{"project_id": projectID})

	key := &domain.CacheKey{Hash: hashSource(source)}
	result := &domain.DeployResult{
		Version:  uuid.NewString(),
		Warnings: make([]string, 0),
	}

	var translated *domain.TranslationResult
	if d.cache != nil {
		if cached, ok := d.cache.Get(ctx, key); ok {
			translated = cached
			result.FromCache = true
		}
	}

	if translated == nil {
		parsed, err := d.parser.ParseString(ctx, source)
		if err != nil {
			log.Warnf("rules rejected: %v", err)
			return nil, errors.NewValidationError("invalid security rules").
				WithCause(err).
				WithDetail("project_id", projectID)
		}
		for _, parseErr := range parsed.Errors {
			result.Warnings = append(result.Warnings, fmt.Sprintf("line %d: %s", parseErr.Line, parseErr.Message))
		}

		translated, err = d.translator.Translate(ctx, parsed.Ruleset)
		if err != nil {
			log.Warnf("rules translation rejected: %v", err)
			return nil, errors.NewValidationError("invalid security rules").
				WithCause(err).
				WithDetail("project_id", projectID)
		}
	}

	if err := d.securityEngine.SetRules(projectID, translated.Rules); err != nil {
		log.Warnf("rules compilation rejected: %v", err)
		return nil, errors.NewValidationError("invalid security rules").
			WithCause(err).
			WithDetail("project_id", projectID)
	}
	if d.cache != nil && !result.FromCache {
		d.cache.Set(ctx, key, translated)
	}

	result.Success = true
	result.RulesDeployed = len(translated.Rules)
	result.DeployTime = time.Since(startTime)

	d.history.SaveDeployment(projectID, &domain.DeployHistory{
		Version:    result.Version,
		Hash:       key.Hash,
		DeployedAt: time.Now(),
		RulesCount: result.RulesDeployed,
	})

	log.WithFields(map[string]interface{}{
		"version":    result.Version,
		"rules":      result.RulesDeployed,
		"from_cache": result.FromCache,
	}).Info("security rules deployed")
	return result, nil
}

// GetCurrentVersion returns the version of the last deployment for the project
func (d *RulesDeployer) GetCurrentVersion(ctx context.Context, projectID string) (string, error) {
	last := d.history.GetLastDeployment(projectID)
	if last == nil {
		return "", errors.NewNotFoundError("rules deployment").WithCause(errors.ErrRulesNotLoaded)
	}
	return last.Version, nil
}

// GetDeployHistory returns up to limit most recent deployments, oldest first
func (d *RulesDeployer) GetDeployHistory(ctx context.Context, projectID string, limit int) ([]*domain.DeployHistory, error) {
	return d.history.GetHistory(projectID, limit), nil
}

func hashSource(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// MemoryHistoryStore keeps deployment history per project
type MemoryHistoryStore struct {
	deployments map[string][]*domain.DeployHistory
	maxEntries  int
	mutex       sync.RWMutex
}

// NewMemoryHistoryStore creates an in-memory history store
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{
		deployments: make(map[string][]*domain.DeployHistory),
		maxEntries:  100,
	}
}

// SaveDeployment appends a deployment, keeping at most maxEntries per project
func (h *MemoryHistoryStore) SaveDeployment(projectID string, deployment *domain.DeployHistory) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	entries := append(h.deployments[projectID], deployment)
	if len(entries) > h.maxEntries {
		entries = entries[len(entries)-h.maxEntries:]
	}
	h.deployments[projectID] = entries
}

// GetHistory returns the last limit deployments; limit <= 0 returns all
func (h *MemoryHistoryStore) GetHistory(projectID string, limit int) []*domain.DeployHistory {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	deployments := h.deployments[projectID]
	start := 0
	if limit > 0 && len(deployments) > limit {
		start = len(deployments) - limit
	}

	result := make([]*domain.DeployHistory, len(deployments)-start)
	copy(result, deployments[start:])
	return result
}

// GetLastDeployment returns the most recent deployment, nil if none
func (h *MemoryHistoryStore) GetLastDeployment(projectID string) *domain.DeployHistory {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	deployments := h.deployments[projectID]
	if len(deployments) == 0 {
		return nil
	}
	return deployments[len(deployments)-1]
}
