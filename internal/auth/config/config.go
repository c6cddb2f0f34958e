package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds the emulator ID token settings.
type Config struct {
	// OwnerToken is the bearer value that grants admin access, as in the Firebase emulator
	OwnerToken string `env:"AUTH_OWNER_TOKEN" envDefault:"owner"`
	// IssuerPrefix is joined with the project id to form the iss claim
	IssuerPrefix string        `env:"AUTH_ISSUER_PREFIX" envDefault:"https://securetoken.google.com/"`
	TokenTTL     time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"1h"`
}

// LoadConfig loads configuration from environment variables and applies defaults.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.New("failed to load auth configuration from environment: " + err.Error())
	}
	if cfg.OwnerToken == "" {
		return nil, errors.New("owner token cannot be empty")
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("token TTL must be positive")
	}
	return cfg, nil
}

// DefaultConfig returns the settings the Firebase emulator uses
func DefaultConfig() *Config {
	return &Config{
		OwnerToken:   "owner",
		IssuerPrefix: "https://securetoken.google.com/",
		TokenTTL:     time.Hour,
	}
}
