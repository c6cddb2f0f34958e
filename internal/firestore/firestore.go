package firestore

import (
	"context"
	"fmt"

	authhttp "rockmap-rules/internal/auth/adapter/http"
	httpadapter "rockmap-rules/internal/firestore/adapter/http"
	"rockmap-rules/internal/firestore/adapter/metrics"
	"rockmap-rules/internal/firestore/adapter/persistence"
	"rockmap-rules/internal/firestore/adapter/persistence/memory"
	mongodbpersistence "rockmap-rules/internal/firestore/adapter/persistence/mongodb"
	"rockmap-rules/internal/firestore/adapter/security"
	"rockmap-rules/internal/firestore/config"
	"rockmap-rules/internal/firestore/domain/repository"
	"rockmap-rules/internal/firestore/usecase"
	rtadapter "rockmap-rules/internal/rules_translator/adapter"
	"rockmap-rules/internal/rules_translator/adapter/parser"
	rtusecase "rockmap-rules/internal/rules_translator/usecase"
	"rockmap-rules/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// FirestoreModule is the local emulator: a document store, the rules
// pipeline that feeds the CEL engine, and the REST surface over both.
type FirestoreModule struct {
	Config        *config.FirestoreConfig
	Store         repository.DocumentStore
	SecurityRules repository.SecurityRulesEngine
	Deployer      *rtadapter.RulesDeployer
	Emulator      usecase.EmulatorUsecase
	Metrics       *metrics.Collector
	Registry      *prometheus.Registry
	Handler       *httpadapter.HTTPHandler
	Logger        logger.Logger
}

// NewFirestoreModule opens the configured document store and builds the module on it.
func NewFirestoreModule(ctx context.Context, cfg *config.FirestoreConfig, log logger.Logger) (*FirestoreModule, error) {
	if cfg == nil {
		cfg = config.DefaultFirestoreConfig()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	module, err := NewFirestoreModuleWithStore(cfg, store, log)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	return module, nil
}

// NewFirestoreModuleWithStore builds the module on an already opened store.
func NewFirestoreModuleWithStore(cfg *config.FirestoreConfig, store repository.DocumentStore, log logger.Logger) (*FirestoreModule, error) {
	if cfg == nil {
		cfg = config.DefaultFirestoreConfig()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithComponent("firestore")

	engine, err := security.NewSecurityRulesEngine(log)
	if err != nil {
		return nil, fmt.Errorf("failed to create security rules engine: %w", err)
	}
	engine.SetResourceAccessor(persistence.NewResourceAccessor(store, log))

	deployer := rtadapter.NewRulesDeployer(
		parser.NewModernParser(),
		rtusecase.NewFastTranslator(log),
		engine,
		rtadapter.NewMemoryCache(nil),
		log,
	)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	emulator := usecase.NewEmulatorUsecase(store, engine, deployer, collector, log)
	log.WithFields(map[string]interface{}{"store": cfg.StoreBackend}).Info("emulator initialized")

	module := &FirestoreModule{
		Config:        cfg,
		Store:         store,
		SecurityRules: engine,
		Deployer:      deployer,
		Emulator:      emulator,
		Metrics:       collector,
		Registry:      registry,
		Handler:       httpadapter.NewFirestoreHTTPHandler(emulator, collector, log),
		Logger:        log,
	}
	module.Handler.Ping = module.HealthCheck
	return module, nil
}

// OpenStore connects the document store selected by cfg.StoreBackend
func OpenStore(ctx context.Context, cfg *config.FirestoreConfig, log logger.Logger) (repository.DocumentStore, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory, "":
		return memory.NewDocumentStore(), nil
	case config.StoreRedis:
		store := persistence.NewRedisDocumentStore(config.NewRedisClient(&cfg.Redis), log)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		return store, nil
	case config.StoreMongoDB:
		store, err := mongodbpersistence.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// RegisterRoutes mounts the emulator API behind the auth middleware, plus /metrics
func (m *FirestoreModule) RegisterRoutes(app *fiber.App, auth *authhttp.AuthMiddleware) {
	app.Use(m.Metrics.Middleware())
	app.Get("/metrics", metrics.Handler(m.Registry))
	if auth != nil {
		app.Use(auth.RequestID(), auth.Identify())
	}
	m.Handler.RegisterRoutes(app)
}

// HealthCheck pings the store when it supports it
func (m *FirestoreModule) HealthCheck(ctx context.Context) error {
	if pinger, ok := m.Store.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

// Stop releases the document store
func (m *FirestoreModule) Stop(ctx context.Context) error {
	m.Logger.Info("stopping emulator")
	return m.Store.Close(ctx)
}
