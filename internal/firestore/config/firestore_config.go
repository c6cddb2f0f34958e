package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/caarlos0/env/v6"
)

// Store backends for emulator documents
const (
	StoreMemory  = "memory"
	StoreRedis   = "redis"
	StoreMongoDB = "mongodb"
)

// ServerConfig holds the listen address of the emulator REST server.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"127.0.0.1"`
	Port string `env:"SERVER_PORT" envDefault:"8080"`
}

// Addr returns host:port
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// MongoConfig holds the MongoDB document store settings.
type MongoConfig struct {
	URI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"MONGODB_DATABASE" envDefault:"rockmap_emulator"`
}

// FirestoreConfig holds all configuration for the emulator module.
type FirestoreConfig struct {
	Server ServerConfig
	// StoreBackend selects where documents live: memory, redis or mongodb
	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`
	Redis        RedisConfig
	Mongo        MongoConfig
}

// LoadConfig loads configuration from environment variables and applies defaults.
func LoadConfig() (*FirestoreConfig, error) {
	cfg := &FirestoreConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, errors.New("failed to load firestore configuration from environment: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the backend selection and the settings it needs
func (c *FirestoreConfig) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.Host == "" {
			return errors.New("REDIS_HOST is required for the redis store")
		}
	case StoreMongoDB:
		if c.Mongo.URI == "" {
			return errors.New("MONGODB_URI is required for the mongodb store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want memory, redis or mongodb)", c.StoreBackend)
	}
	if c.Server.Port == "" {
		return errors.New("SERVER_PORT cannot be empty")
	}
	return nil
}

// DefaultFirestoreConfig returns a FirestoreConfig with default values.
func DefaultFirestoreConfig() *FirestoreConfig {
	return &FirestoreConfig{
		Server:       ServerConfig{Host: "127.0.0.1", Port: "8080"},
		StoreBackend: StoreMemory,
		Redis:        DefaultRedisConfig(),
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "rockmap_emulator",
		},
	}
}
