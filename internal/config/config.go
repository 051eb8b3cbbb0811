// Package config loads the settings of the preparation tools from an
// optional YAML file and FILEPREP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/sunway910/api-sub001/internal/erasure"
	"github.com/sunway910/api-sub001/pkg/chunker"
	"github.com/sunway910/api-sub001/pkg/model"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment override, e.g. FILEPREP_SAVE_DIR.
const EnvPrefix = "FILEPREP"

type Config struct {
	SegmentSize   int64  `yaml:"segmentSize" envconfig:"SEGMENT_SIZE"`
	DataShards    int    `yaml:"dataShards" envconfig:"DATA_SHARDS"`
	ParShards     int    `yaml:"parShards" envconfig:"PAR_SHARDS"`
	SaveDir       string `yaml:"saveDir" envconfig:"SAVE_DIR"`
	ManifestDB    string `yaml:"manifestDB" envconfig:"MANIFEST_DB"`
	MinimumFreeGB uint   `yaml:"minimumFreeGB" envconfig:"MINIMUM_FREE_GB"`
	LogLevel      string `yaml:"logLevel" envconfig:"LOG_LEVEL"`
	// Workers bounds verification concurrency; zero is one per CPU.
	Workers       int    `yaml:"workers" envconfig:"WORKERS"`
}

// Default returns the built-in settings.
func Default() Config { // A
	return Config{
		SegmentSize: chunker.DefaultSegmentSize,
		DataShards:  model.DataShards,
		ParShards:   model.ParShards,
		SaveDir:     "fragments",
		ManifestDB:  "",
		LogLevel:    "info",
	}
}

// Load reads path (when non-empty and present), then applies environment
// overrides and fills unset fields from Default. A missing file is only an
// error when path was given explicitly by the caller, which is signalled by
// required.
func Load(path string, required bool) (Config, error) { // AC
	cfg := Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !required:
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() { // A
	def := Default()
	if c.SegmentSize == 0 {
		c.SegmentSize = def.SegmentSize
	}
	if c.DataShards == 0 {
		c.DataShards = def.DataShards
	}
	if c.ParShards == 0 {
		c.ParShards = def.ParShards
	}
	if c.SaveDir == "" {
		c.SaveDir = def.SaveDir
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Validate checks ranges the pipeline depends on.
func (c *Config) Validate() error { // A
	if err := chunker.CheckSegmentSize(c.SegmentSize); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.DataShards <= 0 || c.ParShards <= 0 {
		return model.Invalidf(
			"config: shard counts must be positive, got %d+%d",
			c.DataShards,
			c.ParShards,
		)
	}
	if c.Workers < 0 {
		return model.Invalidf("config: workers must not be negative")
	}
	if c.DataShards+c.ParShards > erasure.MaxTotalShards {
		return model.Invalidf(
			"config: %d total shards exceeds %d",
			c.DataShards+c.ParShards,
			erasure.MaxTotalShards,
		)
	}
	return nil
}
