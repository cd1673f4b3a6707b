package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		URL string `yaml:"url"`
	} `yaml:"server"`

	Inspector struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"inspector"`

	Cache struct {
		Path       string        `yaml:"path"`
		MaxEntries int           `yaml:"max_entries"`
		MaxAge     time.Duration `yaml:"max_age"`
	} `yaml:"cache"`

	Sync struct {
		DebounceWindow time.Duration `yaml:"debounce_window"`
	} `yaml:"sync"`

	LogLevel string `yaml:"log_level"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.Server.URL = "ws://localhost:8090/ws/table"
	cfg.Inspector.Enabled = true
	cfg.Inspector.Addr = ":8091"
	cfg.Cache.Path = "tabletop-cache.db"
	cfg.Cache.MaxEntries = 100
	cfg.Cache.MaxAge = 24 * time.Hour
	cfg.Sync.DebounceWindow = 150 * time.Millisecond
	cfg.LogLevel = "info"
	return &cfg
}

// loadConfig reads the yaml config at path on top of the defaults, then
// applies environment overrides. A missing file is not an error; env-only
// setups are fine.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.Server.URL = getEnv("TABLETOP_SERVER_URL", cfg.Server.URL)
	cfg.Inspector.Addr = getEnv("TABLETOP_INSPECTOR_ADDR", cfg.Inspector.Addr)
	cfg.Cache.Path = getEnv("TABLETOP_CACHE_PATH", cfg.Cache.Path)
	cfg.Cache.MaxEntries = getEnvAsInt("TABLETOP_CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)
	cfg.LogLevel = getEnv("TABLETOP_LOG_LEVEL", cfg.LogLevel)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
