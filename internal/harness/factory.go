package harness

import (
	"context"
	"sync"

	"rockmap-rules/internal/shared/errors"
	"rockmap-rules/internal/shared/logger"
)

// Factory creates the clients of a suite and remembers them for teardown
type Factory struct {
	emulator Emulator
	cfg      *Config
	log      logger.Logger

	adminOnce sync.Once
	admin     *Client
	adminErr  error

	mu      sync.Mutex
	clients []*Client
}

// NewFactory creates a factory scoped to cfg's project and database
func NewFactory(emulator Emulator, cfg *Config, log logger.Logger) *Factory {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Factory{
		emulator: emulator,
		cfg:      cfg,
		log:      log.WithComponent("client_factory"),
	}
}

// AdminClient returns the suite's admin client, creating it on first use.
// A failed creation is remembered and returned on every call.
func (f *Factory) AdminClient(ctx context.Context) (*Client, error) {
	f.adminOnce.Do(func() {
		f.admin, f.adminErr = f.newClient(ctx, AppOptions{Admin: true})
	})
	return f.admin, f.adminErr
}

// ActorClient returns a new rules-enforced client; a nil auth is unauthenticated
func (f *Factory) ActorClient(ctx context.Context, auth *AuthContext) (*Client, error) {
	return f.newClient(ctx, AppOptions{Auth: auth})
}

func (f *Factory) newClient(ctx context.Context, opts AppOptions) (*Client, error) {
	opts.ProjectID = f.cfg.ProjectID
	opts.DatabaseName = f.cfg.DatabaseName

	app, err := f.emulator.InitializeApp(ctx, opts)
	if err != nil {
		return nil, errors.NewInfrastructureError("failed to initialize app").
			WithDetail("project_id", opts.ProjectID).
			WithDetail("database", opts.DatabaseName).
			WithCause(err)
	}

	client := newClient(app)
	f.mu.Lock()
	f.clients = append(f.clients, client)
	f.mu.Unlock()

	fields := map[string]interface{}{"app": app.Name(), "admin": opts.Admin}
	if opts.Auth != nil {
		fields["uid"] = opts.Auth.UID
	}
	f.log.WithFields(fields).Debug("client created")
	return client, nil
}

// Clients returns every client created so far, in creation order
func (f *Factory) Clients() []*Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Client(nil), f.clients...)
}

// forget drops the tracked clients once they have been released
func (f *Factory) forget() {
	f.mu.Lock()
	f.clients = nil
	f.mu.Unlock()
}
