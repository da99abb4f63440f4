// Package config loads the optional rgstore.yaml configuration used by
// the CLI. Library callers pass options directly and never touch this.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config mirrors the rgstore.yaml document. Zero values are replaced
// with defaults by Load.
type Config struct {
	StoreDir            string `yaml:"storeDir"`
	Mode                string `yaml:"mode"`
	LineWidth           int    `yaml:"lineWidth"`
	SeqdataPathTemplate string `yaml:"seqdataPathTemplate"`
	BlobBackend         string `yaml:"blobBackend"`
	MinFreeSpace        uint64 `yaml:"minFreeSpace"`
	CacheDir            string `yaml:"cacheDir"`
	RemoteURL           string `yaml:"remoteUrl"`
	LogLevel            string `yaml:"logLevel"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		StoreDir:  ".",
		Mode:      "encoded",
		LineWidth: 80,
		LogLevel:  "info",
	}
}

// Load reads and parses path, filling unset fields with defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	def := Default()
	if cfg.StoreDir == "" {
		cfg.StoreDir = def.StoreDir
	}
	if cfg.Mode == "" {
		cfg.Mode = def.Mode
	}
	if cfg.LineWidth == 0 {
		cfg.LineWidth = def.LineWidth
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	return cfg, nil
}
