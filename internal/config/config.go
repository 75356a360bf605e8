// Package config loads the multistep CLI configuration through viper.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete multistep configuration
type Config struct {
	Model  ModelConfig  `mapstructure:"model"`
	Search SearchConfig `mapstructure:"search"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Retry  RetryConfig  `mapstructure:"retry"`
	Run    RunConfig    `mapstructure:"run"`
	Log    LogConfig    `mapstructure:"log"`
}

// ModelConfig selects the language model behind the decomposer, answer
// engine and synthesizer
type ModelConfig struct {
	// Provider is one of "openai", "anthropic", "ollama"
	Provider string `mapstructure:"provider"`
	// Name is the model identifier sent to the provider
	Name string `mapstructure:"name"`
	// APIKey authenticates with openai and anthropic
	APIKey string `mapstructure:"api_key"`
	// BaseURL points openai at a compatible server, or ollama at its host
	BaseURL string `mapstructure:"base_url"`
	// Temperature is sent when positive
	Temperature float64 `mapstructure:"temperature"`
	// MaxTokens caps each completion, 0 = provider default
	MaxTokens int `mapstructure:"max_tokens"`
	// ThinkingBudget enables extended thinking on anthropic (0 = disabled)
	ThinkingBudget int64 `mapstructure:"thinking_budget"`
	// Think asks ollama models to return reasoning separately
	Think bool `mapstructure:"think"`
	// RateLimitTPM is the initial tokens-per-minute budget, 0 = unlimited
	RateLimitTPM float64 `mapstructure:"rate_limit_tpm"`
	// MaxTPM is the ceiling the budget may recover to
	MaxTPM float64 `mapstructure:"max_tpm"`
}

// SearchConfig selects where sub-questions are answered from
type SearchConfig struct {
	// Provider is one of "duckduckgo", "brave", "tavily", "mongo"
	Provider string `mapstructure:"provider"`
	// APIKey authenticates with brave and tavily
	APIKey string `mapstructure:"api_key"`
	// Depth is the tavily search depth ("basic" or "advanced")
	Depth string `mapstructure:"depth"`
	// MaxResults caps the results used per sub-question
	MaxResults int `mapstructure:"max_results"`
	// Fetch downloads the top page when snippets are thin
	Fetch bool `mapstructure:"fetch"`
	// Mongo configures the mongo text-index provider
	Mongo MongoConfig `mapstructure:"mongo"`
}

// MongoConfig locates the passage collection
type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
	// Timeout bounds each query
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig controls the Redis answer cache
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RetryConfig controls retries of transient answer and model failures
type RetryConfig struct {
	// MaxAttempts includes the first attempt; 1 disables retries
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// RunConfig holds the defaults for each query
type RunConfig struct {
	// MaxSteps caps sub-questions per run; -1 means no cap
	MaxSteps int `mapstructure:"max_steps"`
	// Timeout bounds a whole run, 0 = none
	Timeout time.Duration `mapstructure:"timeout"`
	// StopPredicate names the termination test ("contains-none", "exact-none")
	StopPredicate string `mapstructure:"stop_predicate"`
	// EmptyPolicy is "answer" or "reject"
	EmptyPolicy string `mapstructure:"empty_policy"`
	// BestEffort synthesizes from partial state when a run fails midway
	BestEffort bool `mapstructure:"best_effort"`
	// IndexSummary describes the knowledge source to the decomposer
	IndexSummary string `mapstructure:"index_summary"`
}

// LogConfig controls clue log output
type LogConfig struct {
	// Format is one of "terminal", "text", "json"
	Format string `mapstructure:"format"`
	Debug  bool   `mapstructure:"debug"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider: "openai",
			Name:     "gpt-4o-mini",
		},
		Search: SearchConfig{
			Provider:   "duckduckgo",
			Depth:      "basic",
			MaxResults: 5,
			Fetch:      true,
			Mongo: MongoConfig{
				Database:   "multistep",
				Collection: "passages",
				Timeout:    10 * time.Second,
			},
		},
		Cache: CacheConfig{
			Addr:   "localhost:6379",
			Prefix: "multistep:answer:",
			TTL:    24 * time.Hour,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 250 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
		},
		Run: RunConfig{
			MaxSteps:      5,
			Timeout:       5 * time.Minute,
			StopPredicate: "contains-none",
			EmptyPolicy:   "answer",
		},
		Log: LogConfig{
			Format: "terminal",
		},
	}
}

// SetDefaults registers every default with v so that environment variables
// and config files can override any key
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	// Model defaults
	v.SetDefault("model.provider", defaults.Model.Provider)
	v.SetDefault("model.name", defaults.Model.Name)
	v.SetDefault("model.api_key", defaults.Model.APIKey)
	v.SetDefault("model.base_url", defaults.Model.BaseURL)
	v.SetDefault("model.temperature", defaults.Model.Temperature)
	v.SetDefault("model.max_tokens", defaults.Model.MaxTokens)
	v.SetDefault("model.thinking_budget", defaults.Model.ThinkingBudget)
	v.SetDefault("model.think", defaults.Model.Think)
	v.SetDefault("model.rate_limit_tpm", defaults.Model.RateLimitTPM)
	v.SetDefault("model.max_tpm", defaults.Model.MaxTPM)

	// Search defaults
	v.SetDefault("search.provider", defaults.Search.Provider)
	v.SetDefault("search.api_key", defaults.Search.APIKey)
	v.SetDefault("search.depth", defaults.Search.Depth)
	v.SetDefault("search.max_results", defaults.Search.MaxResults)
	v.SetDefault("search.fetch", defaults.Search.Fetch)
	v.SetDefault("search.mongo.uri", defaults.Search.Mongo.URI)
	v.SetDefault("search.mongo.database", defaults.Search.Mongo.Database)
	v.SetDefault("search.mongo.collection", defaults.Search.Mongo.Collection)
	v.SetDefault("search.mongo.timeout", defaults.Search.Mongo.Timeout)

	// Cache defaults
	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.addr", defaults.Cache.Addr)
	v.SetDefault("cache.password", defaults.Cache.Password)
	v.SetDefault("cache.db", defaults.Cache.DB)
	v.SetDefault("cache.prefix", defaults.Cache.Prefix)
	v.SetDefault("cache.ttl", defaults.Cache.TTL)

	// Retry defaults
	v.SetDefault("retry.max_attempts", defaults.Retry.MaxAttempts)
	v.SetDefault("retry.initial_backoff", defaults.Retry.InitialBackoff)
	v.SetDefault("retry.max_backoff", defaults.Retry.MaxBackoff)

	// Run defaults
	v.SetDefault("run.max_steps", defaults.Run.MaxSteps)
	v.SetDefault("run.timeout", defaults.Run.Timeout)
	v.SetDefault("run.stop_predicate", defaults.Run.StopPredicate)
	v.SetDefault("run.empty_policy", defaults.Run.EmptyPolicy)
	v.SetDefault("run.best_effort", defaults.Run.BestEffort)
	v.SetDefault("run.index_summary", defaults.Run.IndexSummary)

	// Log defaults
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("log.debug", defaults.Log.Debug)
}

// Load reads the configuration from v into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "multistep")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".multistep"
	}
	return filepath.Join(home, ".config", "multistep")
}
