package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/seenimoa/investa/internal/infra"
	"github.com/seenimoa/investa/pkg/models"
)

const quoteSummaryJSON = `{
  "quoteSummary": {
    "result": [{
      "price": {
        "symbol": "NVDA",
        "shortName": "NVIDIA Corporation",
        "currency": "USD",
        "regularMarketPrice": {"raw": 120.5, "fmt": "120.50"},
        "marketCap": {"raw": 2.96e12, "fmt": "2.96T", "longFmt": "2,960,000,000,000"}
      },
      "summaryDetail": {
        "trailingPE": {"raw": 70.12, "fmt": "70.12"},
        "fiftyTwoWeekLow": {"raw": 39.23, "fmt": "39.23"},
        "currency": "EUR",
        "dividendYield": {}
      },
      "financialData": {
        "currentPrice": {"raw": 120.4},
        "recommendationKey": "buy",
        "numberOfAnalystOpinions": {"raw": 52, "fmt": "52"},
        "grossMargins": {"raw": 0.755, "fmt": "75.50%"}
      },
      "defaultKeyStatistics": {
        "trailingEps": {"raw": 1.71},
        "enterpriseValue": {"raw": 2940000000000}
      },
      "assetProfile": {
        "sector": "Technology",
        "city": "Santa Clara",
        "fullTimeEmployees": 29600,
        "companyOfficers": [{"name": "Jensen Huang"}]
      }
    }],
    "error": null
  }
}`

const upgradeHistoryJSON = `{
  "quoteSummary": {
    "result": [{
      "upgradeDowngradeHistory": {
        "history": [
          {"epochGradeDate": 1717372800, "firm": "Morgan Stanley", "toGrade": "Overweight", "fromGrade": "Overweight", "action": "main"},
          {"epochGradeDate": 1717200000, "firm": "BofA", "toGrade": "Buy", "fromGrade": "Neutral", "action": "up"},
          {"epochGradeDate": 1717113600, "firm": "HSBC", "toGrade": "Hold", "fromGrade": "Buy", "action": "down"},
          {"epochGradeDate": 1717027200, "firm": "Rosenblatt", "toGrade": "Buy", "fromGrade": "", "action": "init"}
        ]
      }
    }],
    "error": null
  }
}`

const chartJSON = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "NVDA", "currency": "USD"},
      "timestamp": [1700000000, 1700086400, 1700172800],
      "indicators": {
        "quote": [{
          "open":   [100.0, 101.0, null],
          "high":   [105.0, 106.0, null],
          "low":    [98.0, 99.0, null],
          "close":  [103.0, 104.0, null],
          "volume": [1000, 2000, null]
        }],
        "adjclose": [{"adjclose": [102.5, 103.5, null]}]
      }
    }],
    "error": null
  }
}`

func newYahooServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v10/finance/quoteSummary/MISSING"):
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"quoteSummary":{"result":null,"error":{"code":"Not Found","description":"Quote not found for symbol: MISSING"}}}`))
		case strings.HasPrefix(r.URL.Path, "/v10/finance/quoteSummary/EMPTY"):
			w.Write([]byte(`{"quoteSummary":{"result":[],"error":null}}`))
		case strings.HasPrefix(r.URL.Path, "/v10/finance/quoteSummary/"):
			if strings.Contains(r.URL.Query().Get("modules"), "upgradeDowngradeHistory") {
				w.Write([]byte(upgradeHistoryJSON))
				return
			}
			w.Write([]byte(quoteSummaryJSON))
		case strings.HasPrefix(r.URL.Path, "/v8/finance/chart/"):
			if r.URL.Query().Get("range") == "" || r.URL.Query().Get("interval") == "" {
				t.Errorf("chart request missing range/interval: %s", r.URL.RawQuery)
			}
			w.Write([]byte(chartJSON))
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestYFinance(srv *httptest.Server, opts ...YFinanceOption) *YFinance {
	base := []YFinanceOption{WithBaseURL(srv.URL), WithRateLimiter(infra.NewRateLimiter(0, 0))}
	return NewYFinance(append(base, opts...)...)
}

func TestYFinanceCompanyInfo(t *testing.T) {
	srv := newYahooServer(t)
	defer srv.Close()
	y := newTestYFinance(srv)

	p, err := y.CompanyInfo(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("CompanyInfo: %v", err)
	}

	tests := map[string]string{
		"symbol":                  "NVDA",
		"shortName":               "NVIDIA Corporation",
		"currency":                "USD", // price module wins over summaryDetail
		"regularMarketPrice":      "120.5",
		"marketCap":               "2960000000000",
		"trailingPE":              "70.12",
		"currentPrice":            "120.4",
		"recommendationKey":       "buy",
		"numberOfAnalystOpinions": "52",
		"grossMargins":            "0.755",
		"trailingEps":             "1.71",
		"enterpriseValue":         "2940000000000",
		"sector":                  "Technology",
		"fullTimeEmployees":       "29600",
	}
	for k, want := range tests {
		if got := p[k]; got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
	if _, ok := p["companyOfficers"]; ok {
		t.Error("arrays should not be flattened")
	}
	if _, ok := p["dividendYield"]; ok {
		t.Error("empty objects should be skipped")
	}
}

func TestYFinanceCompanyInfoNotFound(t *testing.T) {
	srv := newYahooServer(t)
	defer srv.Close()
	y := newTestYFinance(srv)

	_, err := y.CompanyInfo(context.Background(), "MISSING")
	if err == nil {
		t.Fatal("expected error")
	}
	var httpErr *infra.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected wrapped 404, got %v", err)
	}

	_, err = y.CompanyInfo(context.Background(), "EMPTY")
	if !errors.Is(err, ErrTickerNotFound) {
		t.Errorf("expected ErrTickerNotFound, got %v", err)
	}
}

func TestYFinanceCrumbHandshake(t *testing.T) {
	var sawCrumb atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/cookie", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "A3", Value: "session", Path: "/"})
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/v1/test/getcrumb", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("A3"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("crumb123"))
	})
	mux.HandleFunc("/v10/finance/quoteSummary/", func(w http.ResponseWriter, r *http.Request) {
		sawCrumb.Store(r.URL.Query().Get("crumb"))
		w.Write([]byte(quoteSummaryJSON))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	y := newTestYFinance(srv, WithCookieURL(srv.URL+"/cookie"))
	if _, err := y.CompanyInfo(context.Background(), "NVDA"); err != nil {
		t.Fatal(err)
	}
	if got, _ := sawCrumb.Load().(string); got != "crumb123" {
		t.Errorf("crumb = %q, want crumb123", got)
	}
}

func TestYFinanceRecommendations(t *testing.T) {
	srv := newYahooServer(t)
	defer srv.Close()
	y := newTestYFinance(srv)

	recs, err := y.Recommendations(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("Recommendations: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %d", len(recs))
	}
	wantActions := []string{models.ActionMaintained, models.ActionUpgraded, models.ActionDowngraded, models.ActionInitiated}
	for i, want := range wantActions {
		if recs[i].Action != want {
			t.Errorf("recs[%d].Action = %q, want %q", i, recs[i].Action, want)
		}
	}
	if recs[1].Firm != "BofA" || recs[1].FromGrade != "Neutral" || recs[1].ToGrade != "Buy" {
		t.Errorf("unexpected record: %+v", recs[1])
	}
	if recs[0].Date.Format("2006-01-02") != "2024-06-03" {
		t.Errorf("date = %s", recs[0].Date.Format("2006-01-02"))
	}

	ud := models.UpgradesDowngrades(recs, 2)
	if len(ud) != 2 || ud[0].Firm != "BofA" || ud[1].Firm != "HSBC" {
		t.Errorf("unexpected upgrades/downgrades: %+v", ud)
	}
}

func TestYFinanceHistory(t *testing.T) {
	srv := newYahooServer(t)
	defer srv.Close()
	y := newTestYFinance(srv)

	bars, err := y.History(context.Background(), "NVDA", models.Period1Y)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars (null close dropped), got %d", len(bars))
	}
	if bars[0].Open != 100 || bars[0].Close != 103 || bars[0].Volume != 1000 || bars[0].AdjClose != 102.5 {
		t.Errorf("unexpected bar: %+v", bars[0])
	}

	if _, err := y.History(context.Background(), "NVDA", models.Period("3d")); err == nil {
		t.Error("expected error for unsupported period")
	}
}

func TestNormalizeAction(t *testing.T) {
	tests := map[string]string{
		"up":     models.ActionUpgraded,
		"DOWN":   models.ActionDowngraded,
		" main ": models.ActionMaintained,
		"init":   models.ActionInitiated,
		"reit":   models.ActionReiterated,
		"other":  "other",
	}
	for in, want := range tests {
		if got := normalizeAction(in); got != want {
			t.Errorf("normalizeAction(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestScalar(t *testing.T) {
	tests := []struct {
		json string
		want string
		ok   bool
	}{
		{`"text"`, "text", true},
		{`1.5e3`, "1500", true},
		{`true`, "true", true},
		{`{"raw": 0.25, "fmt": "25%"}`, "0.25", true},
		{`{"fmt": "N/A"}`, "N/A", true},
		{`{}`, "", false},
		{`[1,2]`, "", false},
		{`null`, "", false},
	}
	for _, tt := range tests {
		got, ok := scalar(gjson.Parse(tt.json))
		if got != tt.want || ok != tt.ok {
			t.Errorf("scalar(%s) = %q,%v; want %q,%v", tt.json, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseYFCandlesEmpty(t *testing.T) {
	if candles := parseYFCandles(yfChartResult{}); candles != nil {
		t.Fatalf("expected nil candles for empty result, got %d", len(candles))
	}
}
