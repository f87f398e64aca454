// Package api: configuration endpoints.
package api

import (
	"net/http"

	"github.com/seenimoa/investa/internal/config"
)

// ConfigView is the non-sensitive part of the running configuration.
type ConfigView struct {
	LLM struct {
		Provider    string  `json:"provider"`
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
	} `json:"llm"`
	Data struct {
		NewsLimit             int     `json:"news_limit"`
		CacheTTL              int     `json:"cache_ttl"`
		ParallelFetch         bool    `json:"parallel_fetch"`
		RequestsPerSecond     float64 `json:"requests_per_second"`
		MaxRecommendationRows int     `json:"max_recommendation_rows"`
	} `json:"data"`
	DailyLimit int `json:"daily_limit"`
	Report     struct {
		Template string `json:"template"`
		Period   string `json:"period"`
	} `json:"report"`
}

// newConfigView copies the displayable settings out of cfg. API keys and
// endpoints are never included.
func newConfigView(cfg *config.Config) ConfigView {
	var v ConfigView
	v.LLM.Provider = cfg.LLM.Provider
	v.LLM.Model = cfg.LLM.Model
	v.LLM.Temperature = cfg.LLM.Temperature
	v.LLM.MaxTokens = cfg.LLM.MaxTokens
	v.Data.NewsLimit = cfg.Data.NewsLimit
	v.Data.CacheTTL = cfg.Data.CacheTTL
	v.Data.ParallelFetch = cfg.Data.ParallelFetch
	v.Data.RequestsPerSecond = cfg.Data.RequestsPerSecond
	v.Data.MaxRecommendationRows = cfg.Data.MaxRecommendationRows
	v.DailyLimit = cfg.Usage.DailyLimit
	v.Report.Template = cfg.Report.Template
	v.Report.Period = cfg.Report.Period
	return v
}

// handleGetConfig returns the running configuration without secrets.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    newConfigView(s.cfg),
	})
}

// handleGetConfigKeys returns the status of all sensitive API keys.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckAPIKeys(s.cfg),
	})
}
