// Package datasource provides the external market-data and news providers.
// Providers never cache; memoization lives in the fetch layer.
package datasource

import (
	"context"
	"errors"

	"github.com/seenimoa/investa/pkg/models"
)

// MarketData is a provider of fundamentals, rating history and price bars.
// Field presence varies by symbol and is never guaranteed.
type MarketData interface {
	// Name returns the human-readable name of this data source.
	Name() string

	// CompanyInfo returns the flattened fundamentals map for ticker.
	CompanyInfo(ctx context.Context, ticker string) (models.CompanyProfile, error)

	// Recommendations returns analyst rating changes, most recent first.
	Recommendations(ctx context.Context, ticker string) ([]models.RecommendationRecord, error)

	// History returns price bars covering period.
	History(ctx context.Context, ticker string, period models.Period) ([]models.OHLCV, error)
}

// NewsSearch is a keyword news search provider.
type NewsSearch interface {
	Name() string

	// Search returns at most limit items in the provider's relevance order.
	Search(ctx context.Context, keyword string, limit int) ([]models.NewsItem, error)
}

// --- Sentinel errors ---

// ErrTickerNotFound is returned when a ticker cannot be resolved.
var ErrTickerNotFound = errors.New("ticker not found")

// ErrUpstream is returned when a provider answers with an error payload.
var ErrUpstream = errors.New("upstream error")
