package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	authconfig "rockmap-rules/internal/auth/config"
	"rockmap-rules/internal/di"
	fsconfig "rockmap-rules/internal/firestore/config"
	"rockmap-rules/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	appLogger := logger.NewLogger().WithComponent("main")

	firestoreCfg, err := fsconfig.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load emulator configuration: %v", err)
	}
	authCfg, err := authconfig.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load auth configuration: %v", err)
	}

	container := di.NewContainer(appLogger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := container.Cleanup(ctx); err != nil {
			appLogger.Errorf("Failed to close container: %v", err)
		}
	}()

	if err := container.InitializeAuth(authCfg); err != nil {
		log.Fatalf("Failed to initialize Auth module: %v", err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = container.InitializeFirestore(startCtx, firestoreCfg)
	cancel()
	if err != nil {
		log.Fatalf("Failed to initialize Firestore module: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "RockMap rules emulator",
		Immutable:    true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fiberErr, ok := err.(*fiber.Error); ok {
				code = fiberErr.Code
			}
			appLogger.Errorf("HTTP error: %v", err)
			return c.Status(code).JSON(fiber.Map{
				"error": fiber.Map{"code": code, "message": err.Error(), "status": "INTERNAL"},
			})
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	if err := container.RegisterRoutes(app); err != nil {
		log.Fatalf("Failed to register routes: %v", err)
	}

	serverAddr := firestoreCfg.Server.Addr()
	appLogger.WithFields(map[string]interface{}{
		"addr":  serverAddr,
		"store": firestoreCfg.StoreBackend,
	}).Info("starting emulator")

	serverShutdown := make(chan error, 1)
	go func() {
		serverShutdown <- app.Listen(serverAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverShutdown:
		if err != nil {
			appLogger.Errorf("Server failed: %v", err)
		}
	case sig := <-quit:
		appLogger.Infof("Received shutdown signal: %v", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			appLogger.Errorf("Server forced to shutdown: %v", err)
		}
		appLogger.Info("HTTP server stopped")
	}
}
