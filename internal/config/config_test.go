package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var keyEnvVars = []string{
	"INVESTA_LLM_GROQ_KEY", "INVESTA_LLM_OPENAI_KEY", "INVESTA_LLM_ANTHROPIC_KEY", "INVESTA_LLM_GEMINI_KEY",
	"GROQ_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY",
}

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, e := range keyEnvVars {
		t.Setenv(e, "")
	}
}

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	clearKeyEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.LLM.Provider != "groq" {
		t.Errorf("LLM.Provider: got %q, want %q", cfg.LLM.Provider, "groq")
	}
	if cfg.LLM.Model != "llama-3.1-8b-instant" {
		t.Errorf("LLM.Model: got %q", cfg.LLM.Model)
	}
	if cfg.LLM.MaxTokens != 4096 {
		t.Errorf("LLM.MaxTokens: got %d, want 4096", cfg.LLM.MaxTokens)
	}
	if cfg.LLM.Timeout().Seconds() != 120 {
		t.Errorf("LLM.Timeout: got %v", cfg.LLM.Timeout())
	}

	if cfg.Data.CacheTTLDuration().Hours() != 1 {
		t.Errorf("Data.CacheTTL: got %v, want 1h", cfg.Data.CacheTTLDuration())
	}
	if cfg.Data.NewsLimit != 5 {
		t.Errorf("Data.NewsLimit: got %d, want 5", cfg.Data.NewsLimit)
	}
	if cfg.Data.ParallelFetch {
		t.Error("Data.ParallelFetch should default to false")
	}
	if cfg.Data.MaxRecommendationRows != 20 {
		t.Errorf("Data.MaxRecommendationRows: got %d", cfg.Data.MaxRecommendationRows)
	}
	if cfg.Data.NewsFeedURL != DefaultNewsFeedURL {
		t.Errorf("Data.NewsFeedURL: got %q", cfg.Data.NewsFeedURL)
	}

	if cfg.Usage.DailyLimit != 5 {
		t.Errorf("Usage.DailyLimit: got %d, want 5", cfg.Usage.DailyLimit)
	}
	if cfg.Report.Template != "Executive Summary" {
		t.Errorf("Report.Template: got %q", cfg.Report.Template)
	}
	if cfg.Report.Period != "1y" {
		t.Errorf("Report.Period: got %q", cfg.Report.Period)
	}
	if strings.HasPrefix(cfg.Storage.Path, "~") {
		t.Errorf("Storage.Path should be expanded, got %q", cfg.Storage.Path)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port: got %d, want 8080", cfg.API.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

// ── LoadFromFile ──

func TestLoadFromFile(t *testing.T) {
	clearKeyEnv(t)

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "test_config.yaml")
	content := []byte(`
llm:
  provider: "anthropic"
  model: "claude-sonnet-4-5"
  anthropic_key: "test_key_12345678901234"
  temperature: 0.1
data:
  news_limit: 3
  parallel_fetch: true
  cache_ttl: 60
usage:
  daily_limit: 10
storage:
  path: "/tmp/investa-test"
report:
  template: "Detailed"
  period: "5y"
api:
  port: 9090
logging:
  level: "debug"
  format: "json"
`)
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("LLM.Provider: got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.ProviderKey() != "test_key_12345678901234" {
		t.Errorf("ProviderKey: got %q", cfg.LLM.ProviderKey())
	}
	if cfg.Data.NewsLimit != 3 || !cfg.Data.ParallelFetch || cfg.Data.CacheTTL != 60 {
		t.Errorf("Data: got %+v", cfg.Data)
	}
	if cfg.Usage.DailyLimit != 10 {
		t.Errorf("Usage.DailyLimit: got %d", cfg.Usage.DailyLimit)
	}
	if cfg.Storage.Path != "/tmp/investa-test" {
		t.Errorf("Storage.Path: got %q", cfg.Storage.Path)
	}
	if cfg.Report.Template != "Detailed" || cfg.Report.Period != "5y" {
		t.Errorf("Report: got %+v", cfg.Report)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port: got %d, want 9090", cfg.API.Port)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format: got %q", cfg.Logging.Format)
	}
	// Unset keys keep the defaults.
	if cfg.Data.MaxRecommendationRows != 20 {
		t.Errorf("Data.MaxRecommendationRows: got %d", cfg.Data.MaxRecommendationRows)
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("LoadFromFile() with nonexistent path should return error")
	}
}

// ── overrideFromEnv ──

func TestOverrideFromEnv(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk_conventional_123456")
	t.Setenv("INVESTA_LLM_OPENAI_KEY", "sk-prefixed-1234567890")
	t.Setenv("OPENAI_API_KEY", "sk-conventional-0987654")

	cfg := &Config{}
	cfg.LLM.AnthropicKey = "from-config-file-123"
	overrideFromEnv(cfg)

	if cfg.LLM.GroqKey != "gsk_conventional_123456" {
		t.Errorf("GroqKey: got %q", cfg.LLM.GroqKey)
	}
	if cfg.LLM.OpenAIKey != "sk-prefixed-1234567890" {
		t.Errorf("prefixed variable should win, got %q", cfg.LLM.OpenAIKey)
	}
	if cfg.LLM.AnthropicKey != "from-config-file-123" {
		t.Errorf("config value should survive, got %q", cfg.LLM.AnthropicKey)
	}
}

func TestDotEnvFile(t *testing.T) {
	clearKeyEnv(t)
	os.Unsetenv("GEMINI_API_KEY")
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("GEMINI_API_KEY=gem-from-dotenv-12345\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("GEMINI_API_KEY") })

	if got := os.Getenv("GEMINI_API_KEY"); got != "gem-from-dotenv-12345" {
		t.Errorf("GEMINI_API_KEY: got %q", got)
	}
	if err := loadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}

// ── Validate ──

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LLM:    LLMConfig{Provider: "groq"},
			Data:   DataConfig{NewsLimit: 5, NewsFeedURL: DefaultNewsFeedURL},
			Usage:  UsageConfig{DailyLimit: 5},
			Report: ReportConfig{Period: "1y"},
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"provider", func(c *Config) { c.LLM.Provider = "mystery" }},
		{"limit", func(c *Config) { c.Usage.DailyLimit = 0 }},
		{"news", func(c *Config) { c.Data.NewsLimit = 6 }},
		{"period", func(c *Config) { c.Report.Period = "3d" }},
		{"feed", func(c *Config) { c.Data.NewsFeedURL = "https://example.com/rss" }},
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("baseline should validate: %v", err)
	}
	for _, tt := range tests {
		c := valid()
		tt.mutate(c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

// ── Keys ──

func TestCheckAPIKeys(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk_abcdefghijklmnop")

	cfg := &Config{LLM: LLMConfig{
		Provider:  "groq",
		GroqKey:   "gsk_abcdefghijklmnop",
		GeminiKey: "short",
	}}
	keys := CheckAPIKeys(cfg)
	if len(keys) != 4 {
		t.Fatalf("expected 4 keys, got %d", len(keys))
	}
	groq := keys[0]
	if !groq.IsSet || groq.Source != KeySourceEnv || !groq.Active {
		t.Errorf("groq status: %+v", groq)
	}
	if groq.Masked != "gsk...nop" {
		t.Errorf("Masked: got %q", groq.Masked)
	}
	if keys[1].IsSet || keys[1].Source != KeySourceNone {
		t.Errorf("openai status: %+v", keys[1])
	}
	if keys[3].Source != KeySourceConfig || keys[3].Masked != "***" {
		t.Errorf("gemini status: %+v", keys[3])
	}
}
