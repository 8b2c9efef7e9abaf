package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level file layout loaded from disk.
type Config struct {
	ServiceName string `toml:"ServiceName"`
	Environment string `toml:"Environment"`
	LogFile     string `toml:"LogFile"`
	Engine      Engine `toml:"Engine"`
	Pauses      Pauses `toml:"Pauses"`
	Quota       Quota  `toml:"Quota"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.EnsureDefaults()

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file. The default
// allows no tokens and no intervals; operators fill those in before first
// use.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ServiceName: "dca-engine",
		Environment: "local",
		Engine: Engine{
			MaxNoOfSwaps:       255,
			ThresholdGuardSecs: 600,
		},
		Quota: Quota{
			MaxRequestsPerMin: 120,
			EpochSeconds:      60,
		},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Save validates cfg and persists it to path.
func Save(path string, cfg *Config) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}
	return persist(path, cfg)
}
