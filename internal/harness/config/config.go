package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Harness backends
const (
	BackendLocal = "local"
	BackendREST  = "rest"
)

// Config is the explicit configuration of a rules test suite.
type Config struct {
	ProjectID    string `env:"RULES_PROJECT_ID" envDefault:"rockmap-70133"`
	DatabaseName string `env:"RULES_DATABASE_NAME" envDefault:"RockMap-debug"`
	// RulesFile is loaded verbatim at suite start. A relative path is also
	// looked up in parent directories, up to the module root.
	RulesFile string `env:"RULES_FILE" envDefault:"firestore.rules"`
	// Backend is local (in-process emulator) or rest (FIRESTORE_EMULATOR_HOST)
	Backend        string        `env:"RULES_BACKEND" envDefault:"local"`
	EmulatorHost   string        `env:"FIRESTORE_EMULATOR_HOST" envDefault:"localhost:8080"`
	RequestTimeout time.Duration `env:"RULES_REQUEST_TIMEOUT" envDefault:"10s"`
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.New("failed to load rules harness configuration from environment: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the RockMap constants with the local backend
func DefaultConfig() *Config {
	return &Config{
		ProjectID:      "rockmap-70133",
		DatabaseName:   "RockMap-debug",
		RulesFile:      "firestore.rules",
		Backend:        BackendLocal,
		EmulatorHost:   "localhost:8080",
		RequestTimeout: 10 * time.Second,
	}
}

// Validate checks the required fields
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return errors.New("RULES_PROJECT_ID cannot be empty")
	}
	if c.DatabaseName == "" {
		return errors.New("RULES_DATABASE_NAME cannot be empty")
	}
	if c.RulesFile == "" {
		return errors.New("RULES_FILE cannot be empty")
	}
	switch c.Backend {
	case BackendLocal:
	case BackendREST:
		if c.EmulatorHost == "" {
			return errors.New("FIRESTORE_EMULATOR_HOST is required for the rest backend")
		}
	default:
		return fmt.Errorf("unknown RULES_BACKEND %q (want local or rest)", c.Backend)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("RULES_REQUEST_TIMEOUT must be positive")
	}
	return nil
}

// ResolveRulesFile returns the path of the rules file. Relative paths that do
// not exist in the working directory are searched upwards until a directory
// containing go.mod.
func (c *Config) ResolveRulesFile() (string, error) {
	if filepath.IsAbs(c.RulesFile) {
		return c.RulesFile, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, c.RulesFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("rules file %q not found: %w", c.RulesFile, os.ErrNotExist)
}
