package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DataSource struct {
		// Name selects the quote source: "eastmoney" or "mock".
		Name string `yaml:"name"`
	} `yaml:"data_source"`
	Refresh struct {
		DefaultMs int `yaml:"default_ms"`
	} `yaml:"refresh"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Export struct {
		Dir string `yaml:"dir"`
	} `yaml:"export"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DATA_SOURCE"); v != "" {
		cfg.DataSource.Name = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("EXPORT_DIR"); v != "" {
		cfg.Export.Dir = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("REFRESH_DEFAULT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Refresh.DefaultMs = ms
		}
	}

	// Defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8787"
	}
	if cfg.DataSource.Name == "" {
		cfg.DataSource.Name = "eastmoney"
	}
	if cfg.Refresh.DefaultMs == 0 {
		cfg.Refresh.DefaultMs = 30000
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/fundboard.db"
	}
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = "data/exports"
	}

	return cfg, nil
}

// Validate checks that all required fields are sane.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.DataSource.Name != "eastmoney" && c.DataSource.Name != "mock" {
		return fmt.Errorf("data_source.name must be eastmoney or mock, got %q", c.DataSource.Name)
	}
	if c.Refresh.DefaultMs < 1000 {
		return fmt.Errorf("refresh.default_ms must be at least 1000, got %d", c.Refresh.DefaultMs)
	}
	return nil
}
