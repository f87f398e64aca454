// Package app wires configuration into the services shared by the CLI and
// the HTTP API.
package app

import (
	"context"
	"fmt"
	"net/http/cookiejar"

	"github.com/ternarybob/arbor"

	"github.com/seenimoa/investa/internal/auth"
	"github.com/seenimoa/investa/internal/config"
	"github.com/seenimoa/investa/internal/datasource"
	"github.com/seenimoa/investa/internal/fetch"
	"github.com/seenimoa/investa/internal/infra"
	"github.com/seenimoa/investa/internal/llm"
	"github.com/seenimoa/investa/internal/logging"
	"github.com/seenimoa/investa/internal/pipeline"
	"github.com/seenimoa/investa/internal/prompt"
	"github.com/seenimoa/investa/internal/report"
	"github.com/seenimoa/investa/internal/storage"
	"github.com/seenimoa/investa/internal/usage"
)

// App holds the long-lived services of one process.
type App struct {
	Config   *config.Config
	Store    *storage.Store
	Auth     *auth.Service
	Gate     *usage.Gate
	Fetcher  *fetch.Fetcher
	Pipeline *pipeline.Pipeline
	Logger   arbor.ILogger
}

// Option adjusts how Build wires the services.
type Option func(*options)

type options struct {
	provider     llm.Provider
	pipelineOpts []pipeline.Option
}

// WithProvider uses p instead of the provider named in the config.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithPipelineOptions appends options to the pipeline, e.g. an observer.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(o *options) { o.pipelineOpts = append(o.pipelineOpts, opts...) }
}

// Build creates every service from cfg. The LLM provider is created eagerly
// so a missing API key fails at startup rather than after a quota unit is spent.
func Build(ctx context.Context, cfg *config.Config, logger arbor.ILogger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger = logging.OrSilent(logger)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := storage.Open(cfg.Storage.Path, logger)
	if err != nil {
		return nil, err
	}

	provider := o.provider
	if provider == nil {
		provider, err = llm.New(ctx, cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("LLM setup failed: %w", err)
		}
	}

	// The jar keeps Yahoo's session cookie for the crumb handshake.
	jar, _ := cookiejar.New(nil)
	client := infra.NewHTTPClient(cfg.Data.Timeout())
	client.Jar = jar
	limiter := infra.NewRateLimiter(cfg.Data.RequestsPerSecond, 1)

	market := datasource.NewYFinance(
		datasource.WithBaseURL(cfg.Data.YahooBaseURL),
		datasource.WithCookieURL(cfg.Data.YahooCookieURL),
		datasource.WithHTTPClient(client),
		datasource.WithRateLimiter(limiter),
	)
	news := datasource.NewRSSNews(cfg.Data.NewsFeedURL,
		datasource.WithNewsHTTPClient(client),
		datasource.WithNewsRateLimiter(limiter),
	)

	fetcher := fetch.New(market, news, infra.NewMemo(cfg.Data.CacheTTLDuration()),
		fetch.WithNewsLimit(cfg.Data.NewsLimit),
		fetch.WithLogger(logger),
	)

	gate := usage.NewGate(store, cfg.Usage.DailyLimit, usage.WithLogger(logger))
	generator := report.NewGenerator(provider, report.WithGeneratorLogger(logger))

	popts := []pipeline.Option{
		pipeline.WithParallelFetch(cfg.Data.ParallelFetch),
		pipeline.WithAssembler(prompt.NewAssembler(
			prompt.WithMaxRecommendationRows(cfg.Data.MaxRecommendationRows),
		)),
		pipeline.WithLogger(logger),
	}
	popts = append(popts, o.pipelineOpts...)

	logger.Debug().
		Str("provider", provider.Name()).
		Str("store", store.Path()).
		Bool("parallel_fetch", cfg.Data.ParallelFetch).
		Msg("Services ready")

	return &App{
		Config:   cfg,
		Store:    store,
		Auth:     auth.NewService(store, auth.WithLogger(logger)),
		Gate:     gate,
		Fetcher:  fetcher,
		Pipeline: pipeline.New(fetcher, generator, gate, popts...),
		Logger:   logger,
	}, nil
}

// Login verifies credentials. It is a convenience for callers that only hold an App.
func (a *App) Login(ctx context.Context, username, password string) (auth.Identity, error) {
	return a.Auth.Login(ctx, username, password)
}
