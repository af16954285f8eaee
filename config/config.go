// Package config loads runtime settings from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr         string `env:"ADDR" envDefault:":8080"`
	DatabasePath string `env:"DB_PATH" envDefault:"scorepad.db"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
