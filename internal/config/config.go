// Package config loads the generator configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all generator configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Generation GenerationConfig `yaml:"generation"`
	Grouping   GroupingConfig   `yaml:"grouping"`
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
}

// PathsConfig locates inputs and outputs.
type PathsConfig struct {
	Scenes        string `yaml:"scenes"`
	GroupedScenes string `yaml:"grouped_scenes"`
	Metadata      string `yaml:"metadata"`
	TemplateDir   string `yaml:"template_dir"`
	OutputDir     string `yaml:"output_dir"`
	Database      string `yaml:"database"`
}

// GenerationConfig drives question generation.
type GenerationConfig struct {
	Seed                 uint64   `yaml:"seed"`
	InstancesPerTemplate int      `yaml:"instances_per_template"`
	MaxTries             int      `yaml:"max_tries"`
	MaxTime              string   `yaml:"max_time"` // per template; empty means none
	Prefix               string   `yaml:"prefix"`
	Templates            []string `yaml:"templates"` // classes, or ["all"]
	NoBoolean            bool     `yaml:"no_boolean"`
	Workers              int      `yaml:"workers"`
	MinDistinctAnswers   int      `yaml:"min_distinct_answers"`
}

// GroupingConfig drives the filter-group index build.
type GroupingConfig struct {
	InstancesPerTemplate int    `yaml:"instances_per_template"`
	ScenesPerGroup       int    `yaml:"scenes_per_group"`
	MaxTime              string `yaml:"max_time"`
	Templates            string `yaml:"templates"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
	JSON    bool `yaml:"json"`
}

// ServerConfig configures the gRPC service.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Scenes:        "CLEVR_val_scenes.json",
			GroupedScenes: "CLEVR_val_grouped_scenes.json",
			Metadata:      "metadata_extended.json",
			TemplateDir:   "templates",
			OutputDir:     "questions",
			Database:      "clevrgen.db",
		},
		Generation: GenerationConfig{
			InstancesPerTemplate: 1,
			MaxTries:             10000,
			Prefix:               "CLEVR",
			Templates:            []string{"all"},
			Workers:              1,
			MinDistinctAnswers:   2,
		},
		Grouping: GroupingConfig{
			InstancesPerTemplate: 50,
			ScenesPerGroup:       5,
			MaxTime:              "100s",
			Templates:            "grouping_templates.json",
		},
		Server: ServerConfig{
			Addr: "localhost:50051",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies CLEVRGEN_* environment variables.
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"CLEVRGEN_SCENES":         &c.Paths.Scenes,
		"CLEVRGEN_GROUPED_SCENES": &c.Paths.GroupedScenes,
		"CLEVRGEN_METADATA":       &c.Paths.Metadata,
		"CLEVRGEN_TEMPLATE_DIR":   &c.Paths.TemplateDir,
		"CLEVRGEN_OUTPUT_DIR":     &c.Paths.OutputDir,
		"CLEVRGEN_DB":             &c.Paths.Database,
		"CLEVRGEN_PREFIX":         &c.Generation.Prefix,
		"CLEVRGEN_MAX_TIME":       &c.Generation.MaxTime,
		"CLEVRGEN_ADDR":           &c.Server.Addr,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CLEVRGEN_INSTANCES_PER_TEMPLATE": &c.Generation.InstancesPerTemplate,
		"CLEVRGEN_MAX_TRIES":              &c.Generation.MaxTries,
		"CLEVRGEN_WORKERS":                &c.Generation.Workers,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	if v := os.Getenv("CLEVRGEN_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CLEVRGEN_SEED: %w", err)
		}
		c.Generation.Seed = seed
	}
	if v := os.Getenv("CLEVRGEN_TEMPLATES"); v != "" {
		c.Generation.Templates = strings.Split(v, ",")
	}
	if v := os.Getenv("CLEVRGEN_VERBOSE"); v != "" {
		c.Logging.Verbose = v == "1" || strings.EqualFold(v, "true")
	}
	return nil
}

// GetGenerationMaxTime returns the per-template time budget, zero for none.
func (c *Config) GetGenerationMaxTime() time.Duration {
	return parseDuration(c.Generation.MaxTime)
}

// GetGroupingMaxTime returns the per-grouping-template time budget.
func (c *Config) GetGroupingMaxTime() time.Duration {
	return parseDuration(c.Grouping.MaxTime)
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Generation.InstancesPerTemplate < 1 {
		return fmt.Errorf("generation.instances_per_template must be positive, got %d", c.Generation.InstancesPerTemplate)
	}
	if c.Generation.MaxTries < 0 {
		return fmt.Errorf("generation.max_tries must not be negative, got %d", c.Generation.MaxTries)
	}
	if c.Generation.Workers < 1 {
		return fmt.Errorf("generation.workers must be positive, got %d", c.Generation.Workers)
	}
	if c.Generation.Prefix == "" || strings.Contains(c.Generation.Prefix, "_") {
		return fmt.Errorf("generation.prefix must be non-empty and free of underscores, got %q", c.Generation.Prefix)
	}
	if c.Grouping.ScenesPerGroup < 1 {
		return fmt.Errorf("grouping.scenes_per_group must be positive, got %d", c.Grouping.ScenesPerGroup)
	}
	for name, s := range map[string]string{"generation.max_time": c.Generation.MaxTime, "grouping.max_time": c.Grouping.MaxTime} {
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
