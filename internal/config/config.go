// Package config provides configuration loading and structs for the groundchat server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Web        WebConfig        `yaml:"web"`
	Context    ContextConfig    `yaml:"context"`
	Rewrite    RewriteConfig    `yaml:"rewrite"`
	Strategies StrategiesConfig `yaml:"strategies"`
	Prompts    PromptConfig     `yaml:"prompts"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StorageConfig holds paths for the history database and the local retrieval indices.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
	VectorIndexPath  string `yaml:"vector_index_path"`
}

// LLMConfig selects the completion provider and the models behind each tier.
type LLMConfig struct {
	Provider     string        `yaml:"provider"` // openai or azure
	BaseURL      string        `yaml:"base_url"`
	APIKeyEnv    string        `yaml:"api_key_env"`
	APIVersion   string        `yaml:"api_version"`
	DefaultModel string        `yaml:"default_model"`
	FastModel    string        `yaml:"fast_model"`
	FastTiers    []string      `yaml:"fast_tiers"`
	// Timeout bounds the wait for response headers and whole non-streaming calls.
	// Streamed answers may run longer.
	Timeout time.Duration `yaml:"timeout"`
}

// ModelFor maps a client-supplied model tier to a concrete model name.
func (c *LLMConfig) ModelFor(tier string) string {
	for _, t := range c.FastTiers {
		if strings.EqualFold(t, tier) {
			return c.FastModel
		}
	}
	return c.DefaultModel
}

// EmbeddingConfig holds query embedding settings for the local retrieval backend.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // openai or mock
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
}

// RetrievalConfig selects the vector store backend.
type RetrievalConfig struct {
	Backend        string         `yaml:"backend"` // local or weaviate
	KeywordWeight  float64        `yaml:"keyword_weight"`
	SemanticWeight float64        `yaml:"semantic_weight"`
	Weaviate       WeaviateConfig `yaml:"weaviate"`
}

// WeaviateConfig holds connection settings for a Weaviate instance.
type WeaviateConfig struct {
	Scheme    string `yaml:"scheme"`
	Host      string `yaml:"host"`
	APIKeyEnv string `yaml:"api_key_env"`
	ClassName string `yaml:"class_name"`
	// NearText lets Weaviate vectorize queries itself instead of sending embeddings.
	NearText bool `yaml:"near_text"`
}

// WebConfig holds web search and page fetch settings.
type WebConfig struct {
	Searcher          string        `yaml:"searcher"` // bing or duckduckgo
	Fetcher           string        `yaml:"fetcher"`  // rod or http
	BingEndpoint      string        `yaml:"bing_endpoint"`
	BingAPIKeyEnv     string        `yaml:"bing_api_key_env"`
	Market            string        `yaml:"market"`
	DuckDuckGoURL     string        `yaml:"duckduckgo_url"`
	MaxPages          int           `yaml:"max_pages"`
	PageTimeout       time.Duration `yaml:"page_timeout"`
	SearchTimeout     time.Duration `yaml:"search_timeout"`
	MaxContentChars   int           `yaml:"max_content_chars"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	BrowserBin        string        `yaml:"browser_bin"`
	UserAgent         string        `yaml:"user_agent"`
}

// ContextConfig holds per-item character budgets for assembled grounding.
type ContextConfig struct {
	DocumentBudget int `yaml:"document_budget"`
	WebBudget      int `yaml:"web_budget"`
}

// RewriteConfig controls the ambiguity heuristic and the rewrite calls.
type RewriteConfig struct {
	MinLength    int    `yaml:"min_length"`
	HistoryTurns int    `yaml:"history_turns"`
	ModelTier    string `yaml:"model_tier"`
}

// StrategiesConfig holds per-strategy settings keyed by strategy name.
type StrategiesConfig struct {
	Plain StrategyConfig `yaml:"plain"`
	Data  StrategyConfig `yaml:"data"`
	Doc   StrategyConfig `yaml:"doc"`
	GPTs  StrategyConfig `yaml:"gpts"`
	Web   StrategyConfig `yaml:"web"`
}

// StrategyConfig holds window, retrieval and generation settings of one strategy.
// Pointer fields distinguish "unset" from an explicit zero.
type StrategyConfig struct {
	HistoryWindow   int      `yaml:"history_window"`
	TopK            int      `yaml:"top_k"`
	Temperature     *float32 `yaml:"temperature"`
	MaxTokens       int      `yaml:"max_tokens"`
	PresencePenalty *float32 `yaml:"presence_penalty"`
	Domain          string   `yaml:"domain"`
	ContentType     string   `yaml:"content_type"`
	RewriteQuery    *bool    `yaml:"rewrite_query"`
}

// TemperatureOrZero returns the configured temperature, or 0 (provider default) when unset.
func (s *StrategyConfig) TemperatureOrZero() float32 {
	if s.Temperature != nil {
		return *s.Temperature
	}
	return 0
}

// PresencePenaltyOrZero returns the configured presence penalty, or 0 when unset.
func (s *StrategyConfig) PresencePenaltyOrZero() float32 {
	if s.PresencePenalty != nil {
		return *s.PresencePenalty
	}
	return 0
}

// RewriteQueryOrDefault reports whether the retrieval query is condensed before search.
func (s *StrategyConfig) RewriteQueryOrDefault() bool {
	if s.RewriteQuery != nil {
		return *s.RewriteQuery
	}
	return false
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)

	return &cfg, nil
}

// Save writes the config to path. Used by "groundchat init" to write a starter config.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "azure":
	default:
		return fmt.Errorf("unknown llm provider: %q", c.LLM.Provider)
	}
	switch c.Embedding.Provider {
	case "openai", "mock":
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Embedding.Provider)
	}
	switch c.Retrieval.Backend {
	case "local", "weaviate":
	default:
		return fmt.Errorf("unknown retrieval backend: %q", c.Retrieval.Backend)
	}
	switch c.Web.Searcher {
	case "bing", "duckduckgo":
	default:
		return fmt.Errorf("unknown web searcher: %q", c.Web.Searcher)
	}
	switch c.Web.Fetcher {
	case "rod", "http":
	default:
		return fmt.Errorf("unknown web fetcher: %q", c.Web.Fetcher)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
