// Package config holds the garden pipeline configuration. A Config is built
// once at startup (defaults, then garden.yaml, then .env and the process
// environment) and passed by reference to every component.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the project root when no --config is given.
const DefaultConfigFile = "garden.yaml"

// ErrMissingAPIKey is returned by Validate when no Gemini key is configured.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY not set (copy .env.example to .env and add your key)")

// Config holds all garden pipeline configuration.
type Config struct {
	// Project root; every relative path below is resolved against it.
	Root string `yaml:"root"`

	LLM      LLMConfig      `yaml:"llm"`
	Paths    PathsConfig    `yaml:"paths"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PathsConfig is the on-disk layout of inputs and outputs.
type PathsConfig struct {
	Space       string `yaml:"space"`
	Inspiration string `yaml:"inspiration"`
	Layouts     string `yaml:"layouts"`
	Annotated   string `yaml:"annotated"`
	Visuals     string `yaml:"visuals"`
	Rejected    string `yaml:"rejected"`
	Feedback    string `yaml:"feedback"`
	Prompts     string `yaml:"prompts"`
}

// PipelineConfig tunes the generate/verify retry loop.
type PipelineConfig struct {
	MaxRetries int    `yaml:"max_retries"`
	RetryDelay string `yaml:"retry_delay"`

	// Per-category caps on reference images sent with one request.
	MaxSpacePhotos      int `yaml:"max_space_photos"`
	MaxInspiration      int `yaml:"max_inspiration"`
	MaxInspirationFull  int `yaml:"max_inspiration_full"`
	MaxLayouts          int `yaml:"max_layouts"`
	MaxVerifyReferences int `yaml:"max_verify_references"`
	MaxVerifyAll        int `yaml:"max_verify_all"`
	PrepareParallelism  int `yaml:"prepare_parallelism"`
}

// DefaultConfig returns the default configuration rooted at the current directory.
func DefaultConfig() *Config {
	return &Config{
		Root: ".",

		LLM: DefaultLLMConfig(),

		Paths: PathsConfig{
			Space:       filepath.Join("ref", "space"),
			Inspiration: filepath.Join("ref", "inspiration"),
			Layouts:     filepath.Join("drawings", "layouts"),
			Annotated:   filepath.Join("generated", "annotated"),
			Visuals:     filepath.Join("generated", "visuals"),
			Rejected:    filepath.Join("generated", "rejected"),
			Feedback:    filepath.Join("generated", "feedback"),
			Prompts:     filepath.Join("generated", "prompts"),
		},

		Pipeline: PipelineConfig{
			MaxRetries:          3,
			RetryDelay:          "2s",
			MaxSpacePhotos:      3,
			MaxInspiration:      3,
			MaxInspirationFull:  4,
			MaxLayouts:          1,
			MaxVerifyReferences: 2,
			MaxVerifyAll:        100,
			PrepareParallelism:  4,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file layered over the defaults, then
// applies .env and environment overrides. A missing file is not an error.
// The project root defaults to the directory holding the config file; a
// relative root in the file is resolved against that directory too.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	dir := filepath.Dir(path)
	cfg.Root = ""

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// defaults
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	switch {
	case cfg.Root == "":
		cfg.Root = dir
	case !filepath.IsAbs(cfg.Root):
		cfg.Root = filepath.Join(dir, cfg.Root)
	}

	if err := cfg.loadDotEnv(); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration as YAML.
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

// loadDotEnv reads <root>/.env into the process environment, overriding
// existing values.
func (c *Config) loadDotEnv() error {
	path := filepath.Join(c.Root, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Overload(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("GARDEN_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if root := os.Getenv("GARDEN_ROOT"); root != "" {
		c.Root = root
	}
}

// Path resolves a configured path against the project root.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// GetRetryDelay returns the pause between orchestrator attempts.
func (c *Config) GetRetryDelay() time.Duration {
	d, err := time.ParseDuration(c.Pipeline.RetryDelay)
	if err != nil || d < 0 {
		return 2 * time.Second
	}
	return d
}

// Validate checks the settings that must be present before any model call.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model must not be empty")
	}
	if c.Pipeline.MaxRetries < 1 {
		return fmt.Errorf("pipeline.max_retries must be at least 1, got %d", c.Pipeline.MaxRetries)
	}
	return nil
}
