package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ldi/tasker/pkg/models"
	"gopkg.in/yaml.v3"
)

const (
	defaultDBPath       = ".tasker/tasker.db"
	defaultConfigPath   = ".tasker/config.yaml"
	defaultSnapshotPath = ".tasker/snapshot.json"
)

type Config struct {
	DefaultCategory string `yaml:"default_category"`
	RelogCompletion bool   `yaml:"relog_completion"`
	AutoSnapshot    bool   `yaml:"auto_snapshot"`
	SnapshotPath    string `yaml:"snapshot_path"`
}

func defaultConfig() Config {
	return Config{
		DefaultCategory: models.DefaultCategory,
		SnapshotPath:    defaultSnapshotPath,
	}
}

// loadConfig reads the YAML config at path. A missing file yields the
// defaults; keys left out of the file keep their default values.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.DefaultCategory == "" {
		cfg.DefaultCategory = models.DefaultCategory
	}
	if cfg.SnapshotPath == "" {
		cfg.SnapshotPath = defaultSnapshotPath
	}
	return cfg, nil
}

// writeDefaultConfig creates a config file with the defaults unless one
// already exists. It reports whether a file was written.
func writeDefaultConfig(path string, snapshotPath string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	cfg := defaultConfig()
	cfg.SnapshotPath = snapshotPath
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write config: %w", err)
	}
	return true, nil
}
