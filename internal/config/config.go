package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config contains runtime configuration required by the service.
type Config struct {
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":8080"`
	DBPath      string `env:"DB_PATH" envDefault:"package_events.db"`
	RegistryURL string `env:"REGISTRY_URL" envDefault:"https://pypi.org"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from environment variables, falling back to
// defaults that let the service run out-of-the-box.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
