package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/seenimoa/investa/internal/infra"
	"github.com/seenimoa/investa/pkg/models"
)

type stubMarket struct {
	mu        sync.Mutex
	calls     map[string]int
	infoErr   error
	panicRecs bool
}

func (s *stubMarket) count(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[name]++
}

func (s *stubMarket) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *stubMarket) Name() string { return "stub" }

func (s *stubMarket) CompanyInfo(ctx context.Context, ticker string) (models.CompanyProfile, error) {
	s.count("info")
	if s.infoErr != nil {
		return nil, s.infoErr
	}
	return models.CompanyProfile{"symbol": ticker, "sector": "Technology"}, nil
}

func (s *stubMarket) Recommendations(ctx context.Context, ticker string) ([]models.RecommendationRecord, error) {
	s.count("recs")
	if s.panicRecs {
		panic("malformed table")
	}
	return []models.RecommendationRecord{{Firm: "BofA", Action: models.ActionUpgraded, ToGrade: "Buy"}}, nil
}

func (s *stubMarket) History(ctx context.Context, ticker string, period models.Period) ([]models.OHLCV, error) {
	s.count("history:" + string(period))
	return []models.OHLCV{{Close: 1}}, nil
}

type stubNews struct {
	calls int
	limit int
	err   error
}

func (s *stubNews) Name() string { return "stub news" }

func (s *stubNews) Search(ctx context.Context, keyword string, limit int) ([]models.NewsItem, error) {
	s.calls++
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	items := make([]models.NewsItem, 8)
	for i := range items {
		items[i] = models.NewsItem{Title: keyword}
	}
	return items, nil
}

func TestResult(t *testing.T) {
	a := Available(3)
	if v, ok := a.Get(); !ok || v != 3 || !a.IsAvailable() {
		t.Errorf("Available = %+v", a)
	}
	u := Unavailable[int]("down")
	if u.IsAvailable() || u.Reason != "down" {
		t.Errorf("Unavailable = %+v", u)
	}
	if Unavailable[string]("").Reason == "" {
		t.Error("empty reason should get a default")
	}
}

func TestMemoizedWithinTTL(t *testing.T) {
	market := &stubMarket{}
	f := New(market, &stubNews{}, infra.NewMemo(time.Hour))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if r := f.CompanyInfo(ctx, "NVDA"); !r.IsAvailable() {
			t.Fatalf("CompanyInfo unavailable: %s", r.Reason)
		}
	}
	if market.Calls("info") != 1 {
		t.Errorf("provider called %d times, want 1", market.Calls("info"))
	}

	f.CompanyInfo(ctx, "AAPL")
	if market.Calls("info") != 2 {
		t.Errorf("different ticker should miss, calls = %d", market.Calls("info"))
	}
}

func TestMemoExpiresAfterTTL(t *testing.T) {
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	market := &stubMarket{}
	f := New(market, nil, infra.NewMemo(time.Hour, infra.WithClock(clock)))
	ctx := context.Background()

	f.History(ctx, "NVDA", models.Period1Y)
	now = now.Add(30 * time.Minute)
	f.History(ctx, "NVDA", models.Period1Y)
	if got := market.Calls("history:1y"); got != 1 {
		t.Errorf("within TTL: calls = %d, want 1", got)
	}

	now = now.Add(31 * time.Minute)
	f.History(ctx, "NVDA", models.Period1Y)
	if got := market.Calls("history:1y"); got != 2 {
		t.Errorf("after TTL: calls = %d, want 2", got)
	}

	f.History(ctx, "NVDA", models.Period5Y)
	if got := market.Calls("history:5y"); got != 1 {
		t.Errorf("period is part of the key, calls = %d", got)
	}
}

func TestFailureBecomesUnavailable(t *testing.T) {
	market := &stubMarket{infoErr: errors.New("HTTP 500")}
	f := New(market, nil, nil)
	ctx := context.Background()

	r := f.CompanyInfo(ctx, "NVDA")
	if r.IsAvailable() {
		t.Fatal("expected Unavailable")
	}
	if r.Reason != "HTTP 500" {
		t.Errorf("Reason = %q", r.Reason)
	}

	f.CompanyInfo(ctx, "NVDA")
	if market.Calls("info") != 2 {
		t.Errorf("failures must not be memoized, calls = %d", market.Calls("info"))
	}
}

func TestPanicBecomesUnavailable(t *testing.T) {
	market := &stubMarket{panicRecs: true}
	f := New(market, nil, nil)

	r := f.Recommendations(context.Background(), "NVDA")
	if r.IsAvailable() {
		t.Fatal("expected Unavailable after panic")
	}
	if r.Reason == "" {
		t.Error("expected a reason")
	}

	// Siblings are unaffected.
	if info := f.CompanyInfo(context.Background(), "NVDA"); !info.IsAvailable() {
		t.Errorf("CompanyInfo should still succeed: %s", info.Reason)
	}
}

func TestNewsCapped(t *testing.T) {
	news := &stubNews{}
	f := New(nil, news, nil, WithNewsLimit(3))

	r := f.News(context.Background(), "NVDA")
	items, ok := r.Get()
	if !ok {
		t.Fatalf("News unavailable: %s", r.Reason)
	}
	if len(items) != 3 {
		t.Errorf("expected 3 items, got %d", len(items))
	}
	if news.limit != 3 {
		t.Errorf("provider asked for %d items, want 3", news.limit)
	}

	f2 := New(nil, &stubNews{}, nil, WithNewsLimit(50))
	items, _ = f2.News(context.Background(), "NVDA").Get()
	if len(items) != models.MaxNewsItems {
		t.Errorf("limit above cap should clamp to %d, got %d", models.MaxNewsItems, len(items))
	}
}

func TestMissingProvider(t *testing.T) {
	f := New(nil, nil, nil)
	ctx := context.Background()
	if f.CompanyInfo(ctx, "NVDA").IsAvailable() ||
		f.News(ctx, "NVDA").IsAvailable() ||
		f.Recommendations(ctx, "NVDA").IsAvailable() ||
		f.History(ctx, "NVDA", models.Period1Y).IsAvailable() {
		t.Error("missing providers should yield Unavailable")
	}
}
