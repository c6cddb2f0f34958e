package di

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"rockmap-rules/internal/auth"
	authconfig "rockmap-rules/internal/auth/config"
	"rockmap-rules/internal/firestore"
	fsconfig "rockmap-rules/internal/firestore/config"
	"rockmap-rules/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
)

// Container holds the emulator modules and their shutdown order
type Container struct {
	mu sync.RWMutex
	// Module instances
	AuthModule      *auth.AuthModule
	FirestoreModule *firestore.FirestoreModule
	// Configuration
	AuthConfig      *authconfig.Config
	FirestoreConfig *fsconfig.FirestoreConfig
	Logger          logger.Logger
}

// NewContainer creates a new container. A nil log uses the default logger.
func NewContainer(log logger.Logger) *Container {
	if log == nil {
		log = logger.NewLogger()
	}
	return &Container{Logger: log}
}

// InitializeAuth initializes the emulator token handling
func (c *Container) InitializeAuth(authConfig *authconfig.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	authModule, err := auth.NewAuthModule(authConfig)
	if err != nil {
		return fmt.Errorf("failed to create auth module: %w", err)
	}
	c.AuthConfig = authConfig
	c.AuthModule = authModule
	return nil
}

// InitializeFirestore opens the document store and builds the emulator
func (c *Container) InitializeFirestore(ctx context.Context, cfg *fsconfig.FirestoreConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.AuthModule == nil {
		return fmt.Errorf("auth module must be initialized before Firestore module")
	}

	firestoreModule, err := firestore.NewFirestoreModule(ctx, cfg, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to create Firestore module: %w", err)
	}
	c.FirestoreConfig = firestoreModule.Config
	c.FirestoreModule = firestoreModule
	return nil
}

// RegisterRoutes mounts every module on app
func (c *Container) RegisterRoutes(app *fiber.App) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.AuthModule == nil || c.FirestoreModule == nil {
		return fmt.Errorf("modules must be initialized before registering routes")
	}
	c.FirestoreModule.RegisterRoutes(app, c.AuthModule.GetMiddleware())
	return nil
}

// GetAuthModule returns the auth module instance
func (c *Container) GetAuthModule() *auth.AuthModule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.AuthModule
}

// GetFirestoreModule returns the Firestore module instance
func (c *Container) GetFirestoreModule() *firestore.FirestoreModule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.FirestoreModule
}

// HealthCheck checks the document store
func (c *Container) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.FirestoreModule != nil {
		if err := c.FirestoreModule.HealthCheck(ctx); err != nil {
			return fmt.Errorf("document store health check failed: %w", err)
		}
	}
	return nil
}

// Cleanup stops the modules in reverse order of initialization
func (c *Container) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.FirestoreModule != nil {
		if err := c.FirestoreModule.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop Firestore module: %w", err))
		}
		c.FirestoreModule = nil
	}
	c.AuthModule = nil
	return stderrors.Join(errs...)
}
