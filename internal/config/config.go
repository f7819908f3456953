package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/dshills/textfission/internal/exporter"
	"github.com/dshills/textfission/internal/llm"
	"github.com/dshills/textfission/internal/qa"
	"github.com/dshills/textfission/internal/source"
	"github.com/dshills/textfission/pkg/types"
)

// EnvPrefix prefixes every environment variable, e.g.
// TEXTFISSION_PROCESSING_CHUNK_SIZE or TEXTFISSION_MODEL_API_KEY
const EnvPrefix = "TEXTFISSION"

// Default locations under the user's home directory
const (
	DefaultDir        = ".textfission"
	DefaultConfigFile = "config.yaml"
	DefaultDBFile     = "textfission.db"
)

// DefaultOutput is the dataset path used when none is configured
const DefaultOutput = "dataset.json"

// Config is the complete application configuration
type Config struct {
	Model      ModelConfig            `yaml:"model" envconfig:"MODEL"`
	Processing types.ProcessingConfig `yaml:"processing" envconfig:"PROCESSING"`
	Export     ExportConfig           `yaml:"export" envconfig:"EXPORT"`
	Custom     qa.Options             `yaml:"custom" envconfig:"CUSTOM"`
	Storage    StorageConfig          `yaml:"storage" envconfig:"STORAGE"`
	Source     source.Options         `yaml:"source" envconfig:"SOURCE"`
}

// ModelConfig selects and tunes the language model
type ModelConfig struct {
	Provider       string        `yaml:"provider"`
	APIKey         string        `yaml:"api_key" split_words:"true"`
	BaseURL        string        `yaml:"base_url" split_words:"true"`
	Name           string        `yaml:"name"`
	EmbeddingModel string        `yaml:"embedding_model" split_words:"true"`
	Temperature    float32       `yaml:"temperature"`
	MaxTokens      int           `yaml:"max_tokens" split_words:"true"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxAttempts    int           `yaml:"max_attempts" split_words:"true"`
	CacheSize      int           `yaml:"cache_size" split_words:"true"`
}

// ExportConfig controls dataset output
type ExportConfig struct {
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	Indent int    `yaml:"indent"`
}

// StorageConfig locates the run and cache database
type StorageConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Temperature: llm.DefaultTemperature,
			MaxTokens:   llm.DefaultMaxTokens,
			Timeout:     llm.DefaultTimeout,
			MaxAttempts: llm.MaxAttempts,
			CacheSize:   1000,
		},
		Processing: types.DefaultProcessingConfig(),
		Export: ExportConfig{
			Format: string(exporter.FormatJSON),
			Output: DefaultOutput,
			Indent: exporter.DefaultIndent,
		},
		Custom: qa.DefaultOptions(),
		Storage: StorageConfig{
			Path: defaultPath(DefaultDBFile),
		},
		Source: source.Options{Encoding: source.DefaultEncoding},
	}
}

// DefaultConfigPath returns ~/.textfission/config.yaml
func DefaultConfigPath() string {
	return defaultPath(DefaultConfigFile)
}

func defaultPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(DefaultDir, name)
	}
	return filepath.Join(home, DefaultDir, name)
}

// Load builds the configuration in precedence order: defaults, the YAML
// file at path, a .env file in the working directory, then environment
// variables. An empty path loads DefaultConfigPath when it exists. Flags are
// applied by the caller on top of the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	// A missing .env is normal; existing variables win over it
	_ = godotenv.Load()

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile merges a YAML file over cfg. Unknown keys are rejected so typos
// do not silently fall back to defaults.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // empty file
		}
		return types.ConfigError("invalid config file %s: %v", path, err)
	}

	return nil
}

// loadEnv overlays TEXTFISSION_* variables, then fills the provider and API
// key from the vendor variables understood by the llm package
func (c *Config) loadEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return types.ConfigError("invalid environment: %v", err)
	}

	if c.Model.Provider == "" {
		c.Model.Provider = llm.DetectProvider()
	}
	if c.Model.APIKey == "" {
		c.Model.APIKey = llm.APIKeyFromEnv(c.Model.Provider)
	}
	if c.Model.BaseURL == "" {
		c.Model.BaseURL = os.Getenv(llm.EnvBaseURL)
	}
	if c.Model.Name == "" {
		c.Model.Name = os.Getenv(llm.EnvModel)
	}

	return nil
}

// Validate checks every group and returns the first ConfigurationError
func (c *Config) Validate() error {
	if err := c.Processing.Validate(); err != nil {
		return err
	}

	if err := c.Custom.Validate(); err != nil {
		return err
	}

	if err := c.Model.Validate(); err != nil {
		return err
	}

	if _, err := exporter.ParseFormat(c.Export.Format); err != nil {
		return types.ConfigError("%v", err)
	}
	if c.Export.Indent < 0 {
		return types.ConfigError("export indent cannot be negative, got %d", c.Export.Indent)
	}

	if err := source.ValidateEncoding(c.Source.Encoding); err != nil {
		return types.ConfigError("%v", err)
	}

	if !c.Storage.Disabled && strings.TrimSpace(c.Storage.Path) == "" {
		return types.ConfigError("storage path is required unless storage is disabled")
	}

	return nil
}

// Validate checks the model settings. Whether an API key is needed depends
// on the provider and is checked when the client is created.
func (m ModelConfig) Validate() error {
	if m.Provider != "" && !slices.Contains(llm.SupportedProviders(), strings.ToLower(m.Provider)) {
		return types.ConfigError("unknown provider %q (supported: %s)", m.Provider, strings.Join(llm.SupportedProviders(), ", "))
	}
	if m.Temperature < 0 || m.Temperature > 2 {
		return types.ConfigError("temperature must be between 0 and 2, got %g", m.Temperature)
	}
	if m.MaxTokens < 0 {
		return types.ConfigError("max tokens cannot be negative, got %d", m.MaxTokens)
	}
	if m.Timeout < 0 {
		return types.ConfigError("timeout cannot be negative, got %s", m.Timeout)
	}
	if m.MaxAttempts < 0 {
		return types.ConfigError("max attempts cannot be negative, got %d", m.MaxAttempts)
	}
	if m.CacheSize < 0 {
		return types.ConfigError("cache size cannot be negative, got %d", m.CacheSize)
	}
	return nil
}

// LLM converts the model group to client configuration
func (m ModelConfig) LLM() llm.Config {
	return llm.Config{
		Provider:       m.Provider,
		APIKey:         m.APIKey,
		BaseURL:        m.BaseURL,
		Model:          m.Name,
		EmbeddingModel: m.EmbeddingModel,
		Temperature:    m.Temperature,
		MaxTokens:      m.MaxTokens,
		Timeout:        m.Timeout,
		MaxAttempts:    m.MaxAttempts,
		CacheSize:      m.CacheSize,
	}
}

// ExportOptions converts the export group to serializer options
func (e ExportConfig) ExportOptions() exporter.Options {
	return exporter.Options{Indent: e.Indent}
}

// YAML renders the configuration with the API key redacted
func (c *Config) YAML() ([]byte, error) {
	redacted := *c
	if redacted.Model.APIKey != "" {
		redacted.Model.APIKey = "********"
	}
	return yaml.Marshal(&redacted)
}
