package fetch

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/seenimoa/investa/internal/datasource"
	"github.com/seenimoa/investa/internal/infra"
	"github.com/seenimoa/investa/internal/logging"
	"github.com/seenimoa/investa/pkg/models"
)

// Source identifiers, used as memo key prefixes and in notices.
const (
	SourceCompanyInfo     = "company_info"
	SourceNews            = "news"
	SourceRecommendations = "recommendations"
	SourceHistory         = "history"
)

var errNoProvider = errors.New("no provider configured")

// Fetcher exposes one memoized, failure-isolated accessor per data source.
// It is safe for concurrent use; memoized payloads are shared and must be treated as read-only.
type Fetcher struct {
	market    datasource.MarketData
	news      datasource.NewsSearch
	memo      *infra.Memo
	newsLimit int
	logger    arbor.ILogger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithNewsLimit caps the number of news items requested.
func WithNewsLimit(n int) Option {
	return func(f *Fetcher) { f.newsLimit = n }
}

// WithLogger sets the logger used for failure reports.
func WithLogger(l arbor.ILogger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New builds a Fetcher. A nil memo gets a fresh one with the default TTL.
func New(market datasource.MarketData, news datasource.NewsSearch, memo *infra.Memo, opts ...Option) *Fetcher {
	if memo == nil {
		memo = infra.NewMemo(infra.DefaultTTL)
	}
	f := &Fetcher{
		market:    market,
		news:      news,
		memo:      memo,
		newsLimit: models.MaxNewsItems,
	}
	for _, o := range opts {
		o(f)
	}
	if f.newsLimit <= 0 || f.newsLimit > models.MaxNewsItems {
		f.newsLimit = models.MaxNewsItems
	}
	f.logger = logging.OrSilent(f.logger)
	return f
}

// CompanyInfo returns the fundamentals map for ticker.
func (f *Fetcher) CompanyInfo(ctx context.Context, ticker string) Result[models.CompanyProfile] {
	return guard(ctx, f, SourceCompanyInfo, ticker, infra.Key(SourceCompanyInfo, ticker),
		func(ctx context.Context) (models.CompanyProfile, error) {
			if f.market == nil {
				return nil, errNoProvider
			}
			return f.market.CompanyInfo(ctx, ticker)
		})
}

// News returns at most the configured number of news items for ticker.
func (f *Fetcher) News(ctx context.Context, ticker string) Result[[]models.NewsItem] {
	key := infra.Key(SourceNews, ticker, strconv.Itoa(f.newsLimit))
	return guard(ctx, f, SourceNews, ticker, key,
		func(ctx context.Context) ([]models.NewsItem, error) {
			if f.news == nil {
				return nil, errNoProvider
			}
			items, err := f.news.Search(ctx, ticker, f.newsLimit)
			if len(items) > f.newsLimit {
				items = items[:f.newsLimit]
			}
			return items, err
		})
}

// Recommendations returns the analyst rating history for ticker.
func (f *Fetcher) Recommendations(ctx context.Context, ticker string) Result[[]models.RecommendationRecord] {
	return guard(ctx, f, SourceRecommendations, ticker, infra.Key(SourceRecommendations, ticker),
		func(ctx context.Context) ([]models.RecommendationRecord, error) {
			if f.market == nil {
				return nil, errNoProvider
			}
			return f.market.Recommendations(ctx, ticker)
		})
}

// History returns price bars for ticker over period.
func (f *Fetcher) History(ctx context.Context, ticker string, period models.Period) Result[[]models.OHLCV] {
	return guard(ctx, f, SourceHistory, ticker, infra.Key(SourceHistory, ticker, string(period)),
		func(ctx context.Context) ([]models.OHLCV, error) {
			if f.market == nil {
				return nil, errNoProvider
			}
			return f.market.History(ctx, ticker, period)
		})
}

// guard runs call through the memo and converts any error or panic into Unavailable.
// Panics are recovered inside the memoized call so waiters sharing it see an error.
func guard[T any](ctx context.Context, f *Fetcher, source, ticker, key string, call func(context.Context) (T, error)) Result[T] {
	safe := func(ctx context.Context) (v T, err error) {
		defer func() {
			if r := recover(); r != nil {
				f.logger.Error().
					Str("source", source).
					Str("ticker", ticker).
					Str("panic", fmt.Sprintf("%v", r)).
					Msg("Recovered from panic in fetcher")
				err = fmt.Errorf("%s: internal error: %v", source, r)
			}
		}()
		return call(ctx)
	}

	v, err := infra.Memoize(ctx, f.memo, key, safe)
	if err != nil {
		f.logger.Warn().
			Str("source", source).
			Str("ticker", ticker).
			Err(err).
			Msg("Fetch failed")
		return Unavailable[T](err.Error())
	}
	return Available(v)
}
