package security

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"rockmap-rules/internal/firestore/domain/repository"
	"rockmap-rules/internal/shared/errors"
	sharedfs "rockmap-rules/internal/shared/firestore"
	"rockmap-rules/internal/shared/logger"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// compiledRule is a security rule with its match pattern and conditions compiled
type compiledRule struct {
	rule       *repository.SecurityRule
	matchRegex *regexp.Regexp
	variables  []string
	allow      map[repository.OperationType]cel.Program
	deny       map[repository.OperationType]cel.Program
}

// evalScope is what get() and exists() resolve documents against
type evalScope struct {
	ctx       context.Context
	projectID string
}

// SecurityRulesEngine evaluates flattened Firestore rules with CEL.
// Rules are held per project in memory.
type SecurityRulesEngine struct {
	log    logger.Logger
	celEnv *cel.Env

	rulesMu sync.RWMutex
	rules   map[string][]*compiledRule

	accessorMu sync.RWMutex
	accessor   repository.ResourceAccessor

	// get() and exists() bindings read scope; evaluations are serialized by evalMu
	evalMu sync.Mutex
	scope  *evalScope
}

// NewSecurityRulesEngine creates an engine with no rules installed
func NewSecurityRulesEngine(log logger.Logger) (*SecurityRulesEngine, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	e := &SecurityRulesEngine{
		log:   log.WithComponent("security_rules_engine"),
		rules: make(map[string][]*compiledRule),
	}

	env, err := e.createCELEnvironment()
	if err != nil {
		return nil, errors.NewInternalError("failed to create CEL environment").WithCause(err)
	}
	e.celEnv = env
	return e, nil
}

var _ repository.SecurityRulesEngine = (*SecurityRulesEngine)(nil)

func (e *SecurityRulesEngine) createCELEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("request", cel.DynType),
		cel.Variable("resource", cel.DynType),
		cel.Function("get",
			cel.Overload("get_string", []*cel.Type{cel.StringType}, cel.DynType,
				cel.UnaryBinding(e.getDocument))),
		cel.Function("exists",
			cel.Overload("exists_string", []*cel.Type{cel.StringType}, cel.BoolType,
				cel.UnaryBinding(e.existsDocument))),
	)
}

// SetResourceAccessor sets the accessor used by get() and exists()
func (e *SecurityRulesEngine) SetResourceAccessor(accessor repository.ResourceAccessor) {
	e.accessorMu.Lock()
	defer e.accessorMu.Unlock()
	e.accessor = accessor
}

// SetRules compiles rules and installs them for the project. On error the
// previously installed rules are kept.
func (e *SecurityRulesEngine) SetRules(projectID string, rules []*repository.SecurityRule) error {
	compiled := make([]*compiledRule, 0, len(rules))
	for _, rule := range rules {
		cr, err := e.compileRule(rule)
		if err != nil {
			return errors.NewValidationError(fmt.Sprintf("invalid rule for match %s", rule.Match)).WithCause(err)
		}
		compiled = append(compiled, cr)
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].rule.Priority > compiled[j].rule.Priority
	})

	e.rulesMu.Lock()
	e.rules[projectID] = compiled
	e.rulesMu.Unlock()

	e.log.WithFields(map[string]interface{}{
		"project_id": projectID,
		"rules":      len(compiled),
	}).Debug("security rules installed")
	return nil
}

// HasRules reports whether rules are installed for the project
func (e *SecurityRulesEngine) HasRules(projectID string) bool {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()
	_, ok := e.rules[projectID]
	return ok
}

// ClearRules removes the project's rules
func (e *SecurityRulesEngine) ClearRules(projectID string) {
	e.rulesMu.Lock()
	defer e.rulesMu.Unlock()
	delete(e.rules, projectID)
}

func (e *SecurityRulesEngine) compileRule(rule *repository.SecurityRule) (*compiledRule, error) {
	matchRegex, variables, err := compileMatchPattern(rule.Match)
	if err != nil {
		return nil, err
	}

	opts := make([]cel.EnvOption, 0, len(variables))
	for _, name := range variables {
		opts = append(opts, cel.Variable(name, cel.StringType))
	}
	env, err := e.celEnv.Extend(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to declare path variables: %w", err)
	}

	cr := &compiledRule{
		rule:       rule,
		matchRegex: matchRegex,
		variables:  variables,
		allow:      make(map[repository.OperationType]cel.Program, len(rule.Allow)),
		deny:       make(map[repository.OperationType]cel.Program, len(rule.Deny)),
	}
	for op, condition := range rule.Allow {
		program, err := compileCondition(env, condition)
		if err != nil {
			return nil, fmt.Errorf("allow %s: %w", op, err)
		}
		cr.allow[op] = program
	}
	for op, condition := range rule.Deny {
		program, err := compileCondition(env, condition)
		if err != nil {
			return nil, fmt.Errorf("deny %s: %w", op, err)
		}
		cr.deny[op] = program
	}
	return cr, nil
}

func compileCondition(env *cel.Env, condition string) (cel.Program, error) {
	ast, issues := env.Compile(condition)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error in %q: %w", condition, issues.Err())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return program, nil
}

var variablePattern = regexp.MustCompile(`^\{([a-zA-Z_][a-zA-Z0-9_]*)(=\*\*)?\}$`)

// compileMatchPattern converts a match path such as
// /databases/{database}/documents/users/{userId} into an anchored regex with
// one named group per wildcard. {name=**} matches the rest of the path.
func compileMatchPattern(pattern string) (*regexp.Regexp, []string, error) {
	segments := strings.Split(strings.Trim(pattern, "/"), "/")
	parts := make([]string, 0, len(segments))
	variables := make([]string, 0)

	for i, segment := range segments {
		if !strings.Contains(segment, "{") {
			parts = append(parts, regexp.QuoteMeta(segment))
			continue
		}
		m := variablePattern.FindStringSubmatch(segment)
		if m == nil {
			return nil, nil, fmt.Errorf("invalid wildcard segment %q in match %s", segment, pattern)
		}
		variables = append(variables, m[1])
		if m[2] != "" {
			if i != len(segments)-1 {
				return nil, nil, fmt.Errorf("recursive wildcard must be the last segment in match %s", pattern)
			}
			parts = append(parts, "(?P<"+m[1]+">.+)")
		} else {
			parts = append(parts, "(?P<"+m[1]+">[^/]+)")
		}
	}

	matchRegex, err := regexp.Compile("^/" + strings.Join(parts, "/") + "$")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compile match %s: %w", pattern, err)
	}
	return matchRegex, variables, nil
}

// EvaluateAccess decides an operation: any true deny condition denies, any
// true allow condition allows, otherwise access is denied. A condition that
// fails to evaluate counts as false for allow and true for deny.
func (e *SecurityRulesEngine) EvaluateAccess(ctx context.Context, operation repository.OperationType, securityContext *repository.SecurityContext) (*repository.RuleEvaluationResult, error) {
	if securityContext == nil {
		return nil, errors.NewValidationError("security context is required")
	}
	if securityContext.ProjectID == "" {
		return nil, errors.NewValidationError("project ID is required").WithCause(errors.ErrInvalidProjectID)
	}

	e.rulesMu.RLock()
	rules, ok := e.rules[securityContext.ProjectID]
	e.rulesMu.RUnlock()

	result := &repository.RuleEvaluationResult{Reason: "no matching rule (default deny)"}
	if !ok {
		result.Reason = "no security rules loaded (default deny)"
		return result, nil
	}

	activation := buildActivation(operation, securityContext)

	e.evalMu.Lock()
	e.scope = &evalScope{ctx: ctx, projectID: securityContext.ProjectID}
	defer func() {
		e.scope = nil
		e.evalMu.Unlock()
	}()

	log := e.log.WithContext(ctx)
	for _, cr := range rules {
		variables, matched := cr.match(securityContext.Path)
		if !matched {
			continue
		}
		if result.RuleMatch == "" {
			result.RuleMatch = cr.rule.Match
		}
		vars := withVariables(activation, variables)

		if program, ok := cr.deny[operation]; ok {
			denied, err := evaluate(ctx, program, vars)
			if err != nil {
				log.Warnf("deny condition for %s on %s failed: %v", operation, cr.rule.Match, err)
				denied = true
			}
			if denied {
				result.Allowed = false
				result.AllowedBy = ""
				result.DeniedBy = cr.rule.Match
				result.Reason = fmt.Sprintf("denied by %s", cr.rule.Match)
				return result, nil
			}
		}

		if result.Allowed {
			continue
		}
		if program, ok := cr.allow[operation]; ok {
			allowed, err := evaluate(ctx, program, vars)
			if err != nil {
				log.Debugf("allow condition for %s on %s failed: %v", operation, cr.rule.Match, err)
				continue
			}
			if allowed {
				result.Allowed = true
				result.AllowedBy = cr.rule.Match
				result.RuleMatch = cr.rule.Match
				result.Reason = fmt.Sprintf("allowed by %s", cr.rule.Match)
			}
		}
	}

	if !result.Allowed && result.RuleMatch != "" {
		result.Reason = fmt.Sprintf("no allow condition for %s matched %s", operation, result.RuleMatch)
	}
	return result, nil
}

func (cr *compiledRule) match(path string) (map[string]string, bool) {
	matches := cr.matchRegex.FindStringSubmatch(path)
	if matches == nil {
		return nil, false
	}
	variables := make(map[string]string, len(cr.variables))
	for i, name := range cr.matchRegex.SubexpNames() {
		if i != 0 && name != "" {
			variables[name] = matches[i]
		}
	}
	return variables, true
}

// requestMethod maps an operation to the value of request.method
func requestMethod(operation repository.OperationType) string {
	if operation == repository.OperationRead {
		return "get"
	}
	return string(operation)
}

func buildActivation(operation repository.OperationType, sc *repository.SecurityContext) map[string]interface{} {
	var auth interface{}
	if sc.Auth != nil {
		token := make(map[string]interface{}, len(sc.Auth.Token)+1)
		for k, v := range sc.Auth.Token {
			token[k] = v
		}
		if _, ok := token["sub"]; !ok {
			token["sub"] = sc.Auth.UID
		}
		auth = map[string]interface{}{
			"uid":   sc.Auth.UID,
			"token": token,
		}
	}

	evalTime := sc.Time
	if evalTime.IsZero() {
		evalTime = time.Now()
	}

	request := map[string]interface{}{
		"auth":     auth,
		"method":   requestMethod(operation),
		"path":     sc.Path,
		"time":     evalTime,
		"resource": nil,
	}
	if sc.RequestResource != nil {
		request["resource"] = resourceValue(sc.Path, sc.RequestResource)
	}

	var resource interface{}
	if sc.Resource != nil {
		resource = resourceValue(sc.Path, sc.Resource)
	}

	return map[string]interface{}{
		"request":  request,
		"resource": resource,
	}
}

func resourceValue(path string, data map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data":     rulesData(data),
		"id":       path[strings.LastIndex(path, "/")+1:],
		"__name__": path,
	}
}

// rulesData rewrites values CEL cannot adapt, geo points become
// {latitude, longitude} maps
func rulesData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = rulesValue(v)
	}
	return out
}

func rulesValue(v interface{}) interface{} {
	switch val := v.(type) {
	case sharedfs.GeoPoint:
		return val.Map()
	case map[string]interface{}:
		return rulesData(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = rulesValue(item)
		}
		return out
	default:
		return val
	}
}

func withVariables(activation map[string]interface{}, variables map[string]string) map[string]interface{} {
	vars := make(map[string]interface{}, len(activation)+len(variables))
	for k, v := range activation {
		vars[k] = v
	}
	for k, v := range variables {
		vars[k] = v
	}
	return vars
}

func evaluate(ctx context.Context, program cel.Program, vars map[string]interface{}) (bool, error) {
	out, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return false, err
	}
	value, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition evaluated to %v, not a bool", out.Value())
	}
	return value, nil
}

func (e *SecurityRulesEngine) resolveAccessor() (repository.ResourceAccessor, *evalScope, error) {
	e.accessorMu.RLock()
	accessor := e.accessor
	e.accessorMu.RUnlock()

	if accessor == nil {
		return nil, nil, fmt.Errorf("no resource accessor configured")
	}
	if e.scope == nil {
		return nil, nil, fmt.Errorf("document lookup outside of rule evaluation")
	}
	return accessor, e.scope, nil
}

func (e *SecurityRulesEngine) getDocument(arg ref.Val) ref.Val {
	path, ok := arg.Value().(string)
	if !ok {
		return types.NewErr("get() expects a path string")
	}
	accessor, scope, err := e.resolveAccessor()
	if err != nil {
		return types.NewErr("get(%s): %v", path, err)
	}

	data, err := accessor.GetDocument(scope.ctx, scope.projectID, path)
	if err != nil {
		return types.NewErr("get(%s): %v", path, err)
	}
	if data == nil {
		return types.NewErr("get(%s): document does not exist", path)
	}
	return types.DefaultTypeAdapter.NativeToValue(resourceValue(path, data))
}

func (e *SecurityRulesEngine) existsDocument(arg ref.Val) ref.Val {
	path, ok := arg.Value().(string)
	if !ok {
		return types.NewErr("exists() expects a path string")
	}
	accessor, scope, err := e.resolveAccessor()
	if err != nil {
		return types.NewErr("exists(%s): %v", path, err)
	}

	exists, err := accessor.ExistsDocument(scope.ctx, scope.projectID, path)
	if err != nil {
		return types.NewErr("exists(%s): %v", path, err)
	}
	return types.Bool(exists)
}
