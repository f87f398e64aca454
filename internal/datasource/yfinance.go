package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/seenimoa/investa/internal/infra"
	"github.com/seenimoa/investa/pkg/models"
)

// DefaultYahooBaseURL is the Yahoo Finance JSON API host.
const DefaultYahooBaseURL = "https://query2.finance.yahoo.com"

// profileModules are the quoteSummary modules merged into a CompanyProfile,
// in precedence order: a key already set by an earlier module is kept.
var profileModules = []string{
	"price",
	"summaryDetail",
	"financialData",
	"defaultKeyStatistics",
	"assetProfile",
}

// YFinance implements MarketData using the Yahoo Finance JSON API.
type YFinance struct {
	baseURL   string
	cookieURL string
	client    *http.Client
	limiter   *infra.RateLimiter

	crumbMu sync.Mutex
	crumb   string
}

// YFinanceOption configures a YFinance source.
type YFinanceOption func(*YFinance)

// WithBaseURL points the source at another API host (tests, proxies).
func WithBaseURL(u string) YFinanceOption {
	return func(y *YFinance) { y.baseURL = strings.TrimRight(u, "/") }
}

// WithCookieURL sets the page that issues the session cookie for the crumb
// handshake. An empty URL skips the handshake.
func WithCookieURL(u string) YFinanceOption {
	return func(y *YFinance) { y.cookieURL = u }
}

// WithHTTPClient replaces the HTTP client. It should carry a cookie jar
// when the crumb handshake is enabled.
func WithHTTPClient(c *http.Client) YFinanceOption {
	return func(y *YFinance) { y.client = c }
}

// WithRateLimiter throttles outbound calls.
func WithRateLimiter(rl *infra.RateLimiter) YFinanceOption {
	return func(y *YFinance) { y.limiter = rl }
}

// NewYFinance creates a new Yahoo Finance data source.
func NewYFinance(opts ...YFinanceOption) *YFinance {
	jar, _ := cookiejar.New(nil)
	client := infra.NewHTTPClient(30 * time.Second)
	client.Jar = jar

	y := &YFinance{
		baseURL: DefaultYahooBaseURL,
		client:  client,
		limiter: infra.NewRateLimiter(2, 2),
	}
	for _, o := range opts {
		o(y)
	}
	return y
}

// Name returns the data source name.
func (y *YFinance) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance v8 chart types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
}

type yfIndicators struct {
	Quote    []yfOHLCV    `json:"quote"`
	AdjClose []yfAdjClose `json:"adjclose"`
}

type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yfAdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Public methods ---

// CompanyInfo returns the merged quoteSummary fundamentals for ticker.
func (y *YFinance) CompanyInfo(ctx context.Context, ticker string) (models.CompanyProfile, error) {
	result, err := y.quoteSummary(ctx, ticker, profileModules)
	if err != nil {
		return nil, fmt.Errorf("yfinance company info %s: %w", ticker, err)
	}
	return flattenProfile(result), nil
}

// Recommendations returns the analyst upgrade/downgrade history for ticker.
func (y *YFinance) Recommendations(ctx context.Context, ticker string) ([]models.RecommendationRecord, error) {
	result, err := y.quoteSummary(ctx, ticker, []string{"upgradeDowngradeHistory"})
	if err != nil {
		return nil, fmt.Errorf("yfinance recommendations %s: %w", ticker, err)
	}
	return parseRecommendations(result.Get("upgradeDowngradeHistory.history")), nil
}

// History returns OHLCV bars from the chart API for period.
func (y *YFinance) History(ctx context.Context, ticker string, period models.Period) ([]models.OHLCV, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("yfinance history %s: unsupported period %q", ticker, period)
	}
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s&events=div%%2Csplit",
		y.baseURL, url.PathEscape(ticker), period, period.Interval())
	data, err := infra.DoGet(ctx, y.client, endpoint, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("yfinance chart %s: %w", ticker, err)
	}

	var resp yfChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse yfinance chart: %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
	}
	return parseYFCandles(resp.Chart.Result[0]), nil
}

// --- quoteSummary plumbing ---

func (y *YFinance) quoteSummary(ctx context.Context, ticker string, modules []string) (gjson.Result, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, err
	}

	q := url.Values{}
	q.Set("modules", strings.Join(modules, ","))
	if crumb := y.ensureCrumb(ctx); crumb != "" {
		q.Set("crumb", crumb)
	}
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s", y.baseURL, url.PathEscape(ticker), q.Encode())

	data, err := infra.DoGet(ctx, y.client, endpoint, map[string]string{"Accept": "application/json"})
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("parse quoteSummary: invalid JSON")
	}

	if desc := gjson.GetBytes(data, "quoteSummary.error.description"); desc.Exists() {
		if strings.Contains(strings.ToLower(desc.String()), "not found") {
			return gjson.Result{}, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
		}
		return gjson.Result{}, fmt.Errorf("%w: %s", ErrUpstream, desc.String())
	}
	result := gjson.GetBytes(data, "quoteSummary.result.0")
	if !result.Exists() {
		return gjson.Result{}, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
	}
	return result, nil
}

// ensureCrumb performs the cookie/crumb handshake once per source.
// Failures leave the crumb empty; the next call tries again.
func (y *YFinance) ensureCrumb(ctx context.Context) string {
	if y.cookieURL == "" {
		return ""
	}
	y.crumbMu.Lock()
	defer y.crumbMu.Unlock()
	if y.crumb != "" {
		return y.crumb
	}

	// The cookie page answers 404 but still sets the session cookie.
	_, _ = infra.DoGet(ctx, y.client, y.cookieURL, nil)

	body, err := infra.DoGet(ctx, y.client, y.baseURL+"/v1/test/getcrumb", map[string]string{"Accept": "text/plain"})
	if err != nil {
		return ""
	}
	crumb := strings.TrimSpace(string(body))
	if crumb == "" || strings.ContainsAny(crumb, "<{ ") {
		return ""
	}
	y.crumb = crumb
	return crumb
}

// --- Helpers ---

// flattenProfile merges the module objects of a quoteSummary result into one map.
// Yahoo wraps numbers as {"raw": 1.5, "fmt": "1.50"}; raw wins, fmt is a fallback.
func flattenProfile(result gjson.Result) models.CompanyProfile {
	profile := models.CompanyProfile{}
	for _, module := range profileModules {
		result.Get(module).ForEach(func(key, value gjson.Result) bool {
			k := key.String()
			if _, ok := profile.Get(k); ok {
				return true
			}
			if v, ok := scalar(value); ok {
				profile[k] = v
			}
			return true
		})
	}
	return profile
}

// scalar converts a quoteSummary field into text. Arrays and empty objects are skipped.
func scalar(v gjson.Result) (string, bool) {
	switch v.Type {
	case gjson.String:
		return v.String(), true
	case gjson.Number:
		return models.FormatNumber(v.Raw), true
	case gjson.True:
		return "true", true
	case gjson.False:
		return "false", true
	case gjson.JSON:
		if !v.IsObject() {
			return "", false
		}
		if raw := v.Get("raw"); raw.Exists() {
			return scalar(raw)
		}
		if f := v.Get("fmt"); f.Exists() {
			return f.String(), true
		}
		if lf := v.Get("longFmt"); lf.Exists() {
			return lf.String(), true
		}
	}
	return "", false
}

// yahooActions maps rating-change codes onto report verbs.
var yahooActions = map[string]string{
	"up":   models.ActionUpgraded,
	"down": models.ActionDowngraded,
	"main": models.ActionMaintained,
	"init": models.ActionInitiated,
	"reit": models.ActionReiterated,
}

func normalizeAction(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if a, ok := yahooActions[code]; ok {
		return a
	}
	return code
}

func parseRecommendations(history gjson.Result) []models.RecommendationRecord {
	var out []models.RecommendationRecord
	history.ForEach(func(_, row gjson.Result) bool {
		rec := models.RecommendationRecord{
			Firm:      row.Get("firm").String(),
			Action:    normalizeAction(row.Get("action").String()),
			FromGrade: row.Get("fromGrade").String(),
			ToGrade:   row.Get("toGrade").String(),
		}
		if ts := row.Get("epochGradeDate").Int(); ts > 0 {
			rec.Date = time.Unix(ts, 0).UTC()
		}
		if !rec.Empty() {
			out = append(out, rec)
		}
		return true
	})
	return out
}

func parseYFCandles(result yfChartResult) []models.OHLCV {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}

	q := result.Indicators.Quote[0]
	var adjCloses []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjCloses = result.Indicators.AdjClose[0].AdjClose
	}

	candles := make([]models.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Bars without a close are placeholders for halted sessions.
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		c := models.OHLCV{
			Timestamp: time.Unix(ts, 0).UTC(),
			Close:     *q.Close[i],
		}
		if i < len(q.Open) && q.Open[i] != nil {
			c.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			c.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			c.Low = *q.Low[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			c.Volume = *q.Volume[i]
		}
		if i < len(adjCloses) && adjCloses[i] != nil {
			c.AdjClose = *adjCloses[i]
		}
		candles = append(candles, c)
	}
	return candles
}
