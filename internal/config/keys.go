package config

import "os"

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name   string       `json:"name"`
	Source APIKeySource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "gsk...abc"
	Active bool         `json:"active"`           // used by the configured provider
}

// CheckAPIKeys returns the status of every supported language-model key.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	keys := []KeyStatus{
		checkKey("Groq API Key", cfg.LLM.GroqKey, envPrefix+"_LLM_GROQ_KEY", "GROQ_API_KEY"),
		checkKey("OpenAI API Key", cfg.LLM.OpenAIKey, envPrefix+"_LLM_OPENAI_KEY", "OPENAI_API_KEY"),
		checkKey("Anthropic API Key", cfg.LLM.AnthropicKey, envPrefix+"_LLM_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"),
		checkKey("Gemini API Key", cfg.LLM.GeminiKey, envPrefix+"_LLM_GEMINI_KEY", "GEMINI_API_KEY"),
	}
	active := map[string]int{"groq": 0, "openai": 1, "anthropic": 2, "gemini": 3}
	if i, ok := active[cfg.LLM.Provider]; ok {
		keys[i].Active = true
	}
	return keys
}

// ProviderKey returns the API key for the configured provider.
// Ollama needs none and returns "".
func (c LLMConfig) ProviderKey() string {
	switch c.Provider {
	case "groq":
		return c.GroqKey
	case "openai":
		return c.OpenAIKey
	case "anthropic":
		return c.AnthropicKey
	case "gemini":
		return c.GeminiKey
	default:
		return ""
	}
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value string, envVars ...string) KeyStatus {
	status := KeyStatus{
		Name:  name,
		IsSet: value != "",
	}

	if value == "" {
		status.Source = KeySourceNone
		return status
	}

	status.Source = KeySourceConfig
	for _, env := range envVars {
		if os.Getenv(env) == value {
			status.Source = KeySourceEnv
			break
		}
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
