package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seenimoa/investa/internal/config"
)

// ════════════════════════════════════════════════════════════════════
// provider.go: types and helpers
// ════════════════════════════════════════════════════════════════════

func TestMessageConstructors(t *testing.T) {
	sys := SystemMessage("You are helpful.")
	if sys.Role != RoleSystem || sys.Content != "You are helpful." {
		t.Fatalf("SystemMessage: got %+v", sys)
	}
	user := UserMessage("hello")
	if user.Role != RoleUser || user.Content != "hello" {
		t.Fatalf("UserMessage: got %+v", user)
	}
	asst := AssistantMessage("hi there")
	if asst.Role != RoleAssistant || asst.Content != "hi there" {
		t.Fatalf("AssistantMessage: got %+v", asst)
	}
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		SystemMessage("persona"),
		UserMessage("q"),
		SystemMessage("ignored"),
		AssistantMessage("a"),
	})
	if system != "persona" {
		t.Errorf("system = %q", system)
	}
	if len(rest) != 2 || rest[0].Role != RoleUser || rest[1].Role != RoleAssistant {
		t.Errorf("rest = %+v", rest)
	}
}

func TestResolveOptions(t *testing.T) {
	cfg := ProviderConfig{Model: "base", Temperature: 0.3, MaxTokens: 100}
	if got := cfg.resolve(nil); got.Model != "base" || got.MaxTokens != 100 {
		t.Errorf("nil opts: %+v", got)
	}
	got := cfg.resolve(&ChatOptions{Model: "override", MaxTokens: 50})
	if got.Model != "override" || got.MaxTokens != 50 || got.Temperature != 0.3 {
		t.Errorf("override: %+v", got)
	}
}

func TestResponseString(t *testing.T) {
	r := &Response{
		Provider: "groq", Model: "llama",
		Content: strings.Repeat("x", 150),
		Usage:   Usage{TotalTokens: 42},
		Latency: 1500 * time.Millisecond,
	}
	s := r.String()
	if !strings.Contains(s, "[groq/llama]") || !strings.Contains(s, "42 tokens") || !strings.Contains(s, "...") {
		t.Errorf("String() = %s", s)
	}
}

// ════════════════════════════════════════════════════════════════════
// factory.go
// ════════════════════════════════════════════════════════════════════

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		want    string
		wantErr error
	}{
		{"groq", config.LLMConfig{Provider: "groq", GroqKey: "gsk"}, ProviderGroq, nil},
		{"openai", config.LLMConfig{Provider: "openai", OpenAIKey: "sk"}, ProviderOpenAI, nil},
		{"ollama without key", config.LLMConfig{Provider: "ollama", OllamaURL: "http://localhost:11434/v1"}, ProviderOllama, nil},
		{"anthropic", config.LLMConfig{Provider: "anthropic", AnthropicKey: "ak"}, ProviderAnthropic, nil},
		{"gemini", config.LLMConfig{Provider: "gemini", GeminiKey: "gk"}, ProviderGemini, nil},
		{"groq missing key", config.LLMConfig{Provider: "groq"}, "", ErrNoAPIKey},
		{"anthropic missing key", config.LLMConfig{Provider: "anthropic"}, "", ErrNoAPIKey},
		{"gemini missing key", config.LLMConfig{Provider: "gemini"}, "", ErrNoAPIKey},
		{"unknown", config.LLMConfig{Provider: "mystery"}, "", ErrUnknownProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(context.Background(), tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if p.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.want)
			}
		})
	}
}

func TestModelDefaultsPerBackend(t *testing.T) {
	a, err := NewAnthropicProvider(ProviderConfig{APIKey: "k", Model: "llama-3.1-8b-instant"})
	if err != nil {
		t.Fatal(err)
	}
	if a.cfg.Model != DefaultAnthropicModel {
		t.Errorf("anthropic model = %q", a.cfg.Model)
	}
	g, err := NewGeminiProvider(context.Background(), ProviderConfig{APIKey: "k", Model: "gemini-1.5-pro"})
	if err != nil {
		t.Fatal(err)
	}
	if g.cfg.Model != "gemini-1.5-pro" {
		t.Errorf("gemini model = %q", g.cfg.Model)
	}
	if defaultBaseURL(ProviderGroq) != GroqBaseURL || defaultBaseURL(ProviderOpenAI) != OpenAIBaseURL {
		t.Error("unexpected default base URLs")
	}
}

// ════════════════════════════════════════════════════════════════════
// openai.go
// ════════════════════════════════════════════════════════════════════

func TestOpenAIChat(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1717400000,
			"model": "llama-3.1-8b-instant",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "# NVIDIA: Investment Report"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
		}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(ProviderGroq, ProviderConfig{APIKey: "gsk-test", BaseURL: srv.URL, Model: "llama-3.1-8b-instant"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Chat(context.Background(), []Message{SystemMessage("persona"), UserMessage("Stock: NVDA")}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if resp.Content != "# NVIDIA: Investment Report" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 150 || resp.Provider != ProviderGroq {
		t.Errorf("resp = %+v", resp)
	}
	if auth != "Bearer gsk-test" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.Model != "llama-3.1-8b-instant" || len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("request = %+v", got)
	}
}

func TestOpenAIChatNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(ProviderOpenAI, ProviderConfig{APIKey: "sk", BaseURL: srv.URL, Model: "gpt-4o"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Chat(context.Background(), []Message{UserMessage("hi")}, nil); err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server called %d times, want exactly 1", n)
	}
}

func TestOpenAIChatNoMessages(t *testing.T) {
	p, _ := NewOpenAIProvider(ProviderOllama, ProviderConfig{})
	if _, err := p.Chat(context.Background(), nil, nil); !errors.Is(err, ErrNoMessages) {
		t.Errorf("err = %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// anthropic.go
// ════════════════════════════════════════════════════════════════════

func TestAnthropicChat(t *testing.T) {
	type textBlock struct {
		Text string `json:"text"`
	}
	type message struct {
		Role string `json:"role"`
	}
	var got struct {
		Model    string      `json:"model"`
		System   []textBlock `json:"system"`
		Messages []message   `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "### Overview"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	p, err := NewAnthropicProvider(ProviderConfig{APIKey: "ak", BaseURL: srv.URL, Model: "claude-sonnet-4-20250514"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Chat(context.Background(), []Message{SystemMessage("persona"), UserMessage("Stock: NVDA")}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "### Overview" || resp.Usage.TotalTokens != 15 {
		t.Errorf("resp = %+v", resp)
	}
	if len(got.System) != 1 || got.System[0].Text != "persona" {
		t.Errorf("system not sent separately: %+v", got.System)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestAnthropicChatOnlySystem(t *testing.T) {
	p, _ := NewAnthropicProvider(ProviderConfig{APIKey: "ak"})
	if _, err := p.Chat(context.Background(), []Message{SystemMessage("x")}, nil); !errors.Is(err, ErrNoMessages) {
		t.Errorf("err = %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// gemini.go
// ════════════════════════════════════════════════════════════════════

func TestToGeminiContents(t *testing.T) {
	contents := toGeminiContents([]Message{UserMessage("q"), AssistantMessage("a")})
	if len(contents) != 2 {
		t.Fatalf("len = %d", len(contents))
	}
	if contents[0].Role != "user" || contents[1].Role != "model" {
		t.Errorf("roles = %q, %q", contents[0].Role, contents[1].Role)
	}
	if contents[0].Parts[0].Text != "q" {
		t.Errorf("text = %q", contents[0].Parts[0].Text)
	}
}
