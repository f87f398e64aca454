// Package models defines the core data structures used throughout Investa.
package models

import (
	"fmt"
	"strings"
	"time"
)

// OHLCV represents a single candlestick bar of price data.
type OHLCV struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	AdjClose  float64   `json:"adj_close,omitempty"`
}

// Period is the span of price history requested from the market-data provider.
type Period string

const (
	Period1Mo Period = "1mo"
	Period3Mo Period = "3mo"
	Period6Mo Period = "6mo"
	Period1Y  Period = "1y"
	Period2Y  Period = "2y"
	Period5Y  Period = "5y"
	Period10Y Period = "10y"
	PeriodYTD Period = "ytd"
	PeriodMax Period = "max"
)

// DefaultPeriod is used when no period is requested.
const DefaultPeriod = Period1Y

// Periods lists the supported history periods in selector order.
var Periods = []Period{
	Period1Mo, Period3Mo, Period6Mo, Period1Y, Period2Y,
	Period5Y, Period10Y, PeriodYTD, PeriodMax,
}

// Valid reports whether p is one of the supported periods.
func (p Period) Valid() bool {
	for _, v := range Periods {
		if v == p {
			return true
		}
	}
	return false
}

// Interval returns the bar size used when fetching history for the period.
// Long spans use weekly bars to keep the series small.
func (p Period) Interval() string {
	switch p {
	case Period5Y, Period10Y, PeriodMax:
		return "1wk"
	default:
		return "1d"
	}
}

// ParsePeriod converts s into a Period. The empty string yields DefaultPeriod.
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultPeriod, nil
	}
	p := Period(s)
	if !p.Valid() {
		return "", fmt.Errorf("unsupported period %q", s)
	}
	return p, nil
}

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
