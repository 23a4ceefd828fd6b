package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultPath = "config/config.toml"

	OnMalformedSkip  = "skip"
	OnMalformedAbort = "abort"
)

// ConfigurationError reports a required setting that is absent.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration %q", e.Key)
}

type GraphConfig struct {
	URI            string `toml:"uri"`
	User           string `toml:"user"`
	Password       string `toml:"password"`
	Database       string `toml:"database"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxPoolSize    int    `toml:"max_pool_size"`
}

type IngestConfig struct {
	Source      string `toml:"source"`
	OnMalformed string `toml:"on_malformed"`
	OutputDir   string `toml:"output_dir"`
}

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type DatasetConfig struct {
	URL       string `toml:"url"`
	LocalPath string `toml:"local_path"`
}

// ExampleExtraction is one labelled span of a few-shot example.
type ExampleExtraction struct {
	Class      string         `toml:"class"`
	Text       string         `toml:"text"`
	Attributes map[string]any `toml:"attributes"`
}

type ExampleConfig struct {
	Text        string              `toml:"text"`
	Extractions []ExampleExtraction `toml:"extractions"`
}

// ProfileConfig is an extractor profile: what to look for and how it looks.
type ProfileConfig struct {
	Prompt   string          `toml:"prompt"`
	Examples []ExampleConfig `toml:"examples"`
}

type Config struct {
	Debug    bool                     `toml:"debug"`
	Graph    GraphConfig              `toml:"graph"`
	Ingest   IngestConfig             `toml:"ingest"`
	LLM      LLMConfig                `toml:"llm"`
	Dataset  DatasetConfig            `toml:"dataset"`
	Profiles map[string]ProfileConfig `toml:"profiles"`
}

// Default returns the settings used when no config file is present.
func Default() *Config {
	return &Config{
		Graph: GraphConfig{
			URI:            "bolt://localhost:7687",
			User:           "neo4j",
			TimeoutSeconds: 10,
			MaxPoolSize:    50,
		},
		Ingest: IngestConfig{
			Source:      "langextract",
			OnMalformed: OnMalformedSkip,
			OutputDir:   "test_output",
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
		},
		Dataset: DatasetConfig{
			URL:       "https://huggingface.co/datasets/AGBonnet/augmented-clinical-notes/resolve/main/augmented_notes_30K.jsonl",
			LocalPath: "data/agbonnet.jsonl",
		},
		Profiles: map[string]ProfileConfig{},
	}
}

// Load reads a TOML file on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Resolve loads the file named by CONFIG_PATH (or DefaultPath) and applies
// environment overrides.
func Resolve() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	cfg, err := LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides file settings with environment variables when set.
func (c *Config) ApplyEnv() error {
	overrides := []struct {
		key string
		dst *string
	}{
		{"NEO4J_URI", &c.Graph.URI},
		{"NEO4J_USER", &c.Graph.User},
		{"NEO4J_PASSWORD", &c.Graph.Password},
		{"NEO4J_DATABASE", &c.Graph.Database},
		{"LLM_PROVIDER", &c.LLM.Provider},
		{"LLM_MODEL", &c.LLM.Model},
		{"LLM_API_KEY", &c.LLM.APIKey},
		{"LLM_BASE_URL", &c.LLM.BaseURL},
		{"INGEST_ON_MALFORMED", &c.Ingest.OnMalformed},
		{"INGEST_SOURCE", &c.Ingest.Source},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok {
			*o.dst = strings.TrimSpace(v)
		}
	}

	if v, ok := os.LookupEnv("DEBUG"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		}
	}
	if v, ok := os.LookupEnv("NEO4J_TIMEOUT_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Graph.TimeoutSeconds = n
		}
	}

	return c.validate()
}

func (c *Config) validate() error {
	switch c.Ingest.OnMalformed {
	case OnMalformedSkip, OnMalformedAbort:
	case "":
		c.Ingest.OnMalformed = OnMalformedSkip
	default:
		return fmt.Errorf("invalid ingest.on_malformed %q: want %q or %q", c.Ingest.OnMalformed, OnMalformedSkip, OnMalformedAbort)
	}
	return nil
}

// ValidateGraph checks the settings needed to reach the graph store.
func (c *Config) ValidateGraph() error {
	if strings.TrimSpace(c.Graph.URI) == "" {
		return &ConfigurationError{Key: "graph.uri"}
	}
	return nil
}

// ValidateLLM checks the settings needed to call a hosted model.
func (c *Config) ValidateLLM() error {
	if strings.TrimSpace(c.LLM.Provider) == "" {
		return &ConfigurationError{Key: "llm.provider"}
	}
	if strings.ToLower(c.LLM.Provider) != "ollama" && strings.TrimSpace(c.LLM.APIKey) == "" {
		return &ConfigurationError{Key: "llm.api_key"}
	}
	return nil
}
