// Package config handles Recap configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/recap/config.yaml, /etc/recap/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "recap", "config.yaml"))
	}

	paths = append(paths, "/etc/recap/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Recap configuration.
type Config struct {
	Listen     ListenConfig     `yaml:"listen"`
	Models     ModelsConfig     `yaml:"models"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Media      MediaConfig      `yaml:"media"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	DataDir    string           `yaml:"data_dir"`
	LogLevel   string           `yaml:"log_level"`
	LogFormat  string           `yaml:"log_format"` // text (default) or json
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// Addr returns the host:port the server binds to.
func (l ListenConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.Address, l.Port)
}

// ModelsConfig selects the chat models.
type ModelsConfig struct {
	// Provider is "ollama" (default) or "openai". It serves every model
	// not listed in OpenAIModels.
	Provider     string   `yaml:"provider"`
	Summary      string   `yaml:"summary"`
	QA           string   `yaml:"qa"` // defaults to Summary
	OllamaURL    string   `yaml:"ollama_url"`
	OpenAIModels []string `yaml:"openai_models"` // routed to OpenAI regardless of Provider
	Temperature  float64  `yaml:"temperature"`
	MaxTokens    int      `yaml:"max_tokens"`

	// Pricing maps model names to per-million-token prices for usage
	// reports. Unlisted models cost nothing.
	Pricing map[string]PricingEntry `yaml:"pricing"`
}

// PricingEntry is a model's price in USD per million tokens.
type PricingEntry struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// OpenAIConfig defines settings for any OpenAI-compatible API.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // empty = api.openai.com
}

// Configured reports whether an API key is present.
func (o OpenAIConfig) Configured() bool { return o.APIKey != "" }

// EmbeddingsConfig defines embedding generation settings.
type EmbeddingsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"` // ollama (default) or openai
	Model    string `yaml:"model"`    // Embedding model name (e.g., nomic-embed-text)
	BaseURL  string `yaml:"baseurl"`  // Ollama URL (defaults to models.ollama_url)
}

// MediaConfig configures transcript retrieval.
type MediaConfig struct {
	YtDlpPath        string        `yaml:"yt_dlp_path"`
	CookiesFile      string        `yaml:"cookies_file"`
	SubtitleLanguage string        `yaml:"subtitle_language"`
	TranscriptDir    string        `yaml:"transcript_dir"`
	CacheMaxAge      time.Duration `yaml:"cache_max_age"`
}

// ChunkingConfig sets the text budgets, in bytes.
type ChunkingConfig struct {
	PromptBudget int `yaml:"prompt_budget"`
	EmbedBudget  int `yaml:"embed_budget"`
}

// RetrievalConfig tunes MMR search for question answering.
type RetrievalConfig struct {
	K      int     `yaml:"k"`
	FetchK int     `yaml:"fetch_k"`
	Lambda float64 `yaml:"lambda"`
}

// SessionsConfig controls Q&A session expiry.
type SessionsConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Load reads configuration from a YAML file, expands ${VAR} references,
// fills defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}

	if c.Models.Provider == "" {
		c.Models.Provider = "ollama"
	}
	if c.Models.OllamaURL == "" {
		c.Models.OllamaURL = "http://localhost:11434"
	}
	if c.Models.Summary == "" {
		c.Models.Summary = "qwen3:8b"
	}
	if c.Models.QA == "" {
		c.Models.QA = c.Models.Summary
	}
	if c.Models.MaxTokens == 0 {
		c.Models.MaxTokens = 2000
	}

	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "ollama"
	}
	if c.Embeddings.Model == "" {
		if c.Embeddings.Provider == "openai" {
			c.Embeddings.Model = "text-embedding-3-small"
		} else {
			c.Embeddings.Model = "nomic-embed-text"
		}
	}
	if c.Embeddings.BaseURL == "" && c.Embeddings.Provider == "ollama" {
		c.Embeddings.BaseURL = c.Models.OllamaURL
	}

	if c.Media.SubtitleLanguage == "" {
		c.Media.SubtitleLanguage = "en"
	}
	if c.Media.CacheMaxAge == 0 {
		c.Media.CacheMaxAge = 24 * time.Hour
	}

	if c.Chunking.PromptBudget == 0 {
		c.Chunking.PromptBudget = 50000
	}
	if c.Chunking.EmbedBudget == 0 {
		c.Chunking.EmbedBudget = 500
	}

	if c.Retrieval.K == 0 {
		c.Retrieval.K = 10
	}
	if c.Retrieval.FetchK == 0 {
		c.Retrieval.FetchK = 20
	}
	if c.Retrieval.Lambda == 0 {
		c.Retrieval.Lambda = 0.5
	}

	if c.Sessions.TTL == 0 {
		c.Sessions.TTL = time.Hour
	}
	if c.Sessions.SweepInterval == 0 {
		c.Sessions.SweepInterval = time.Minute
	}

	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range", c.Listen.Port)
	}
	switch c.Models.Provider {
	case "ollama":
	case "openai":
		if !c.OpenAI.Configured() {
			return fmt.Errorf("models.provider is openai but openai.api_key is empty")
		}
	default:
		return fmt.Errorf("unknown models.provider %q (valid: ollama, openai)", c.Models.Provider)
	}
	if len(c.Models.OpenAIModels) > 0 && !c.OpenAI.Configured() {
		return fmt.Errorf("models.openai_models set but openai.api_key is empty")
	}
	if c.Models.Temperature < 0 || c.Models.Temperature > 2 {
		return fmt.Errorf("models.temperature %v out of range [0, 2]", c.Models.Temperature)
	}
	for model, p := range c.Models.Pricing {
		if p.InputPerMillion < 0 || p.OutputPerMillion < 0 {
			return fmt.Errorf("models.pricing[%s]: prices must not be negative", model)
		}
	}

	switch c.Embeddings.Provider {
	case "ollama":
	case "openai":
		if c.Embeddings.Enabled && !c.OpenAI.Configured() {
			return fmt.Errorf("embeddings.provider is openai but openai.api_key is empty")
		}
	default:
		return fmt.Errorf("unknown embeddings.provider %q (valid: ollama, openai)", c.Embeddings.Provider)
	}

	if c.Chunking.PromptBudget < 0 || c.Chunking.EmbedBudget < 0 {
		return fmt.Errorf("chunking budgets must not be negative")
	}
	if c.Retrieval.K < 1 || c.Retrieval.FetchK < c.Retrieval.K {
		return fmt.Errorf("retrieval: need 1 <= k <= fetch_k (k=%d, fetch_k=%d)", c.Retrieval.K, c.Retrieval.FetchK)
	}
	if c.Retrieval.Lambda < 0 || c.Retrieval.Lambda > 1 {
		return fmt.Errorf("retrieval.lambda %v out of range [0, 1]", c.Retrieval.Lambda)
	}
	if c.Sessions.TTL < 0 || c.Sessions.SweepInterval < 0 {
		return fmt.Errorf("sessions durations must not be negative")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q (valid: text, json)", c.LogFormat)
	}
	return nil
}

// CachePath returns the SQLite video cache location, or "" when no
// data_dir is configured.
func (c *Config) CachePath() string {
	if c.DataDir == "" {
		return ""
	}
	return filepath.Join(expandHome(c.DataDir), "videos.db")
}

// UsagePath returns the SQLite token usage database location, or "" when
// no data_dir is configured.
func (c *Config) UsagePath() string {
	if c.DataDir == "" {
		return ""
	}
	return filepath.Join(expandHome(c.DataDir), "usage.db")
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
