package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all relay settings, loaded from the environment.
type Config struct {
	App struct {
		Port     int    `envconfig:"INVENTARIO_PORT" default:"8080"`
		LogLevel string `envconfig:"INVENTARIO_LOG_LEVEL" default:"info"`
	}

	DB struct {
		Path string `envconfig:"INVENTARIO_DB_PATH" default:"inventario.db"`
	}

	Session struct {
		TTL          time.Duration `envconfig:"INVENTARIO_SESSION_TTL" default:"720h"`
		ReapInterval time.Duration `envconfig:"INVENTARIO_REAP_INTERVAL" default:"10m"`
	}

	Server struct {
		ShutdownTimeout time.Duration `envconfig:"INVENTARIO_SHUTDOWN_TIMEOUT" default:"5s"`
	}
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
