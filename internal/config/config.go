// Package config handles configuration loading for Investa.
// It supports YAML config files, a local .env file and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/seenimoa/investa/pkg/models"
)

// Config represents the complete application configuration.
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"     yaml:"llm"`
	Data    DataConfig    `mapstructure:"data"    yaml:"data"`
	Usage   UsageConfig   `mapstructure:"usage"   yaml:"usage"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Report  ReportConfig  `mapstructure:"report"  yaml:"report"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// LLMConfig holds language-model provider configuration.
type LLMConfig struct {
	Provider     string  `mapstructure:"provider"      yaml:"provider"` // "groq", "openai", "ollama", "anthropic", "gemini"
	GroqKey      string  `mapstructure:"groq_key"      yaml:"groq_key"`
	OpenAIKey    string  `mapstructure:"openai_key"    yaml:"openai_key"`
	AnthropicKey string  `mapstructure:"anthropic_key" yaml:"anthropic_key"`
	GeminiKey    string  `mapstructure:"gemini_key"    yaml:"gemini_key"`
	BaseURL      string  `mapstructure:"base_url"      yaml:"base_url"` // overrides the provider endpoint
	OllamaURL    string  `mapstructure:"ollama_url"    yaml:"ollama_url"`
	Model        string  `mapstructure:"model"         yaml:"model"`
	Temperature  float64 `mapstructure:"temperature"   yaml:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"    yaml:"max_tokens"`
	TimeoutSec   int     `mapstructure:"timeout_sec"   yaml:"timeout_sec"`
}

// Timeout returns the request timeout for a single completion.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// DataConfig holds market-data and news provider settings.
type DataConfig struct {
	YahooBaseURL          string  `mapstructure:"yahoo_base_url"          yaml:"yahoo_base_url"`
	YahooCookieURL        string  `mapstructure:"yahoo_cookie_url"        yaml:"yahoo_cookie_url"` // empty disables the crumb handshake
	NewsFeedURL           string  `mapstructure:"news_feed_url"           yaml:"news_feed_url"`    // %s is replaced by the query
	NewsLimit             int     `mapstructure:"news_limit"              yaml:"news_limit"`
	CacheTTL              int     `mapstructure:"cache_ttl"               yaml:"cache_ttl"` // seconds
	ParallelFetch         bool    `mapstructure:"parallel_fetch"          yaml:"parallel_fetch"`
	RequestsPerSecond     float64 `mapstructure:"requests_per_second"     yaml:"requests_per_second"`
	MaxRecommendationRows int     `mapstructure:"max_recommendation_rows" yaml:"max_recommendation_rows"`
	TimeoutSec            int     `mapstructure:"timeout_sec"             yaml:"timeout_sec"`
}

// CacheTTLDuration returns the memoization lifetime.
func (c DataConfig) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// Timeout returns the HTTP timeout for provider calls.
func (c DataConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// UsageConfig holds the per-user quota.
type UsageConfig struct {
	DailyLimit int `mapstructure:"daily_limit" yaml:"daily_limit"`
}

// StorageConfig holds the credential store location.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ReportConfig holds report defaults.
type ReportConfig struct {
	Template  string `mapstructure:"template"   yaml:"template"`
	Period    string `mapstructure:"period"     yaml:"period"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
	File   string `mapstructure:"file"   yaml:"file"`   // optional log file path
}

// DefaultNewsFeedURL searches Google News RSS.
const DefaultNewsFeedURL = "https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en"

const envPrefix = "INVESTA"

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.investa/config.yaml (home directory)
//  3. /etc/investa/config.yaml (system)
//
// A .env file in the working directory is loaded first; it never replaces
// variables already set in the environment.
// Format: INVESTA_<SECTION>_<KEY>, e.g., INVESTA_LLM_GROQ_KEY
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".investa"))
	v.AddConfigPath("/etc/investa")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "groq", "openai", "ollama", "anthropic", "gemini":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.Usage.DailyLimit < 1 {
		return fmt.Errorf("usage.daily_limit must be positive, got %d", c.Usage.DailyLimit)
	}
	if c.Data.NewsLimit < 1 || c.Data.NewsLimit > models.MaxNewsItems {
		return fmt.Errorf("data.news_limit must be between 1 and %d, got %d", models.MaxNewsItems, c.Data.NewsLimit)
	}
	if _, err := models.ParsePeriod(c.Report.Period); err != nil {
		return fmt.Errorf("report.period: %w", err)
	}
	if !strings.Contains(c.Data.NewsFeedURL, "%s") {
		return fmt.Errorf("data.news_feed_url must contain %%s: %q", c.Data.NewsFeedURL)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.ollama_url", "http://localhost:11434/v1")
	v.SetDefault("llm.model", "llama-3.1-8b-instant")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout_sec", 120)

	// Data defaults
	v.SetDefault("data.yahoo_base_url", "https://query2.finance.yahoo.com")
	v.SetDefault("data.yahoo_cookie_url", "https://fc.yahoo.com")
	v.SetDefault("data.news_feed_url", DefaultNewsFeedURL)
	v.SetDefault("data.news_limit", models.MaxNewsItems)
	v.SetDefault("data.cache_ttl", 3600) // 1 hour
	v.SetDefault("data.parallel_fetch", false)
	v.SetDefault("data.requests_per_second", 2.0)
	v.SetDefault("data.max_recommendation_rows", 20)
	v.SetDefault("data.timeout_sec", 30)

	v.SetDefault("usage.daily_limit", 5)

	v.SetDefault("storage.path", "~/.investa/data")

	v.SetDefault("report.template", "Executive Summary")
	v.SetDefault("report.period", string(models.DefaultPeriod))
	v.SetDefault("report.output_dir", ".")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
// The prefixed form wins; the provider's conventional name fills a missing key.
func overrideFromEnv(cfg *Config) {
	apply := func(dst *string, prefixed, conventional string) {
		if key := os.Getenv(prefixed); key != "" {
			*dst = key
			return
		}
		if *dst == "" {
			*dst = os.Getenv(conventional)
		}
	}
	apply(&cfg.LLM.GroqKey, envPrefix+"_LLM_GROQ_KEY", "GROQ_API_KEY")
	apply(&cfg.LLM.OpenAIKey, envPrefix+"_LLM_OPENAI_KEY", "OPENAI_API_KEY")
	apply(&cfg.LLM.AnthropicKey, envPrefix+"_LLM_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	apply(&cfg.LLM.GeminiKey, envPrefix+"_LLM_GEMINI_KEY", "GEMINI_API_KEY")
}

// loadDotEnv loads KEY=VALUE pairs from path. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func expandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
