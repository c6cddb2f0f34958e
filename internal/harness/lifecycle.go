package harness

import (
	"context"
	stderrors "errors"
	"os"

	"rockmap-rules/internal/shared/errors"
	"rockmap-rules/internal/shared/logger"
)

// Lifecycle binds rules loading, data clearing and handle release to suite events
type Lifecycle struct {
	cfg      *Config
	emulator Emulator
	factory  *Factory
	log      logger.Logger
}

// NewLifecycle creates the lifecycle of one suite. factory may be nil.
func NewLifecycle(cfg *Config, emulator Emulator, factory *Factory, log logger.Logger) *Lifecycle {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Lifecycle{
		cfg:      cfg,
		emulator: emulator,
		factory:  factory,
		log:      log.WithComponent("lifecycle"),
	}
}

// BeforeAll loads the rules file into the emulator. Any error is a setup failure.
func (l *Lifecycle) BeforeAll(ctx context.Context) error {
	path, err := l.cfg.ResolveRulesFile()
	if err != nil {
		return errors.NewInfrastructureError("rules file not found").WithCause(err)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return errors.NewInfrastructureError("failed to read rules file").
			WithDetail("path", path).
			WithCause(err)
	}
	if err := l.emulator.LoadRules(ctx, l.cfg.ProjectID, string(source)); err != nil {
		return errors.NewInfrastructureError("failed to load rules").
			WithDetail("path", path).
			WithCause(err)
	}
	l.log.WithFields(map[string]interface{}{
		"project_id": l.cfg.ProjectID,
		"rules_file": path,
	}).Info("security rules loaded")
	return nil
}

// AfterEach removes every document of the project
func (l *Lifecycle) AfterEach(ctx context.Context) error {
	if err := l.emulator.ClearData(ctx, l.cfg.ProjectID); err != nil {
		return errors.NewInfrastructureError("failed to clear emulator data").WithCause(err)
	}
	return nil
}

// AfterAll deletes every app created through the factory or still known to
// the emulator. Each app is deleted once; apps a case already deleted are skipped.
func (l *Lifecycle) AfterAll(ctx context.Context) error {
	seen := make(map[string]bool)
	var apps []App
	if l.factory != nil {
		for _, client := range l.factory.Clients() {
			if !seen[client.Name()] {
				seen[client.Name()] = true
				apps = append(apps, client.App())
			}
		}
	}
	for _, app := range l.emulator.Apps() {
		if !seen[app.Name()] {
			seen[app.Name()] = true
			apps = append(apps, app)
		}
	}

	var errs []error
	for _, app := range apps {
		if err := app.Delete(ctx); err != nil && !stderrors.Is(err, errors.ErrAppDeleted) {
			errs = append(errs, err)
		}
	}
	if l.factory != nil {
		l.factory.forget()
	}

	l.log.WithFields(map[string]interface{}{
		"apps":   len(apps),
		"errors": len(errs),
	}).Debug("apps released")
	return stderrors.Join(errs...)
}
