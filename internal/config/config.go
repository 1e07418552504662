// Package config loads runtime settings from the environment and
// tissue model descriptions from YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/tissueoptics/nirmc/pkg/tissue"
)

// Config holds the settings shared by the CLI and the dashboard server.
type Config struct {
	ListenAddr string `env:"NIRMC_LISTEN_ADDR" envDefault:":8080"`
	StaticDir  string `env:"NIRMC_STATIC_DIR" envDefault:"web/static"`
	DBPath     string `env:"NIRMC_DB_PATH" envDefault:"nirmc.db"`

	Photons   int   `env:"NIRMC_PHOTONS" envDefault:"50000"`
	Seed      int64 `env:"NIRMC_SEED" envDefault:"1"`
	Workers   int   `env:"NIRMC_WORKERS" envDefault:"0"` // 0 selects NumCPU
	BatchSize int   `env:"NIRMC_BATCH_SIZE" envDefault:"1024"`

	// ModelPath optionally points at a custom model YAML used when a
	// run names no preset.
	ModelPath string `env:"NIRMC_MODEL_PATH"`
}

// FromEnv parses the NIRMC_* environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// LoadModel reads a tissue model from a YAML file and validates that
// it builds a usable layer stack. A file without a name is named after
// its basename.
func LoadModel(path string) (tissue.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tissue.Model{}, fmt.Errorf("read model file: %w", err)
	}
	var model tissue.Model
	if err := yaml.Unmarshal(data, &model); err != nil {
		return tissue.Model{}, fmt.Errorf("parse model file %s: %w", path, err)
	}
	if model.Name == "" {
		base := filepath.Base(path)
		model.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if _, err := model.Stack(); err != nil {
		return tissue.Model{}, fmt.Errorf("invalid model %q: %w", model.Name, err)
	}
	return model, nil
}

// ResolveModel picks the tissue model for a run. An explicit file path
// wins, then a preset name, then the configured model path, then the
// baseline model.
func (c Config) ResolveModel(name, path string) (tissue.Model, error) {
	if path != "" {
		return LoadModel(path)
	}
	if name != "" {
		model, ok := tissue.PresetByName(name)
		if !ok {
			return tissue.Model{}, fmt.Errorf("unknown model %q", name)
		}
		return model, nil
	}
	if c.ModelPath != "" {
		return LoadModel(c.ModelPath)
	}
	return tissue.BaselineBrain(), nil
}
