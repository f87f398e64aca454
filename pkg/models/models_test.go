package models

import (
	"testing"
	"time"
)

// ── Period Tests ──

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{"", Period1Y, false},
		{"1y", Period1Y, false},
		{" YTD ", PeriodYTD, false},
		{"10y", Period10Y, false},
		{"max", PeriodMax, false},
		{"1d", "", true},
		{"forever", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePeriod(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePeriod(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePeriod(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPeriodsAllValid(t *testing.T) {
	if len(Periods) != 9 {
		t.Fatalf("expected 9 periods, got %d", len(Periods))
	}
	for _, p := range Periods {
		if !p.Valid() {
			t.Errorf("period %q should be valid", p)
		}
		if p.Interval() == "" {
			t.Errorf("period %q has no interval", p)
		}
	}
	if Period10Y.Interval() != "1wk" || Period1Mo.Interval() != "1d" {
		t.Error("unexpected interval mapping")
	}
}

func TestNormalizeTicker(t *testing.T) {
	if got := NormalizeTicker("  nvda "); got != "NVDA" {
		t.Errorf("NormalizeTicker = %q, want NVDA", got)
	}
}

// ── CompanyProfile Tests ──

func TestIsFalsy(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"0", true},
		{"0.00", true},
		{"false", true},
		{"null", true},
		{"None", true},
		{"1", false},
		{"-0.5", false},
		{"Technology", false},
		{"0x", false},
	}
	for _, tt := range tests {
		if got := IsFalsy(tt.in); got != tt.want {
			t.Errorf("IsFalsy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCompanyProfileFirst(t *testing.T) {
	p := CompanyProfile{
		"regularMarketPrice": "0",
		"currentPrice":       "120.5",
		"sector":             "Technology",
	}
	v, ok := p.First("regularMarketPrice", "currentPrice")
	if !ok || v != "120.5" {
		t.Errorf("First = %q,%v; want 120.5,true", v, ok)
	}
	if _, ok := p.First("marketCap", "enterpriseValue"); ok {
		t.Error("First should miss when every key is absent")
	}
	if _, ok := p.Get("regularMarketPrice"); ok {
		t.Error("zero value should be treated as absent")
	}
}

func TestCompanyProfileEmpty(t *testing.T) {
	if !(CompanyProfile{}).Empty() {
		t.Error("empty map should be Empty")
	}
	if !(CompanyProfile{"a": "", "b": "0"}).Empty() {
		t.Error("all-falsy profile should be Empty")
	}
	if (CompanyProfile{"a": "x"}).Empty() {
		t.Error("profile with a value should not be Empty")
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[string]string{
		"3.12e12": "3120000000000",
		"120.50":  "120.5",
		"42":      "42",
		"n/a":     "n/a",
		"-0.0125": "-0.0125",
	}
	for in, want := range tests {
		if got := FormatNumber(in); got != want {
			t.Errorf("FormatNumber(%q) = %q, want %q", in, got, want)
		}
	}
}

// ── Recommendation Tests ──

func TestUpgradesDowngrades(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC) }
	recs := []RecommendationRecord{
		{Date: day(1), Firm: "A", Action: ActionMaintained},
		{Date: day(2), Firm: "B", Action: ActionUpgraded, ToGrade: "Buy"},
		{Date: day(3), Firm: "C", Action: ActionInitiated},
		{Date: day(4), Firm: "D", Action: ActionDowngraded, ToGrade: "Hold"},
		{Date: day(5), Firm: "E", Action: ActionUpgraded, ToGrade: "Outperform"},
	}

	got := UpgradesDowngrades(recs, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Firm != "B" || got[1].Firm != "D" {
		t.Errorf("unexpected order: %s, %s", got[0].Firm, got[1].Firm)
	}

	if all := UpgradesDowngrades(recs, 0); len(all) != 3 {
		t.Errorf("limit 0 should return all 3 matches, got %d", len(all))
	}
	if none := UpgradesDowngrades(recs[:1], 2); len(none) != 0 {
		t.Errorf("expected no matches, got %d", len(none))
	}
}

func TestUpgradesDowngradesSkipsMissingFirm(t *testing.T) {
	recs := []RecommendationRecord{
		{Action: ActionUpgraded, ToGrade: "Buy"},
		{Firm: "A", Action: ActionDowngraded, ToGrade: "Hold"},
		{Firm: "B", Action: ActionUpgraded, ToGrade: "Buy"},
	}
	got := UpgradesDowngrades(recs, 2)
	if len(got) != 2 || got[0].Firm != "A" || got[1].Firm != "B" {
		t.Errorf("unexpected rows: %+v", got)
	}
	if only := UpgradesDowngrades(recs[:1], 2); len(only) != 0 {
		t.Errorf("firm-less rows should not count, got %d", len(only))
	}
}

func TestEmptyHelpers(t *testing.T) {
	if !(NewsItem{}).Empty() || (NewsItem{Title: "x"}).Empty() {
		t.Error("NewsItem.Empty mismatch")
	}
	if !(RecommendationRecord{}).Empty() || (RecommendationRecord{Firm: "x"}).Empty() {
		t.Error("RecommendationRecord.Empty mismatch")
	}
}
