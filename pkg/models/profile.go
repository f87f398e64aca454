package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CompanyProfile maps provider field names (e.g. "trailingPE", "sector") to their
// textual values. Numbers are stored in plain decimal notation.
// Absent and falsy values are treated the same way by every reader.
type CompanyProfile map[string]string

// Get returns the value for key when it is present and truthy.
func (p CompanyProfile) Get(key string) (string, bool) {
	v, ok := p[key]
	if !ok || IsFalsy(v) {
		return "", false
	}
	return v, true
}

// First returns the first truthy value among keys, in order.
func (p CompanyProfile) First(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := p.Get(k); ok {
			return v, true
		}
	}
	return "", false
}

// Empty reports whether the profile holds no truthy value at all.
func (p CompanyProfile) Empty() bool {
	for _, v := range p {
		if !IsFalsy(v) {
			return false
		}
	}
	return true
}

// IsFalsy reports whether v carries no information: blank, "false", "null"
// or a numeric zero.
func IsFalsy(v string) bool {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "", "false", "null", "none", "nan":
		return true
	}
	if d, err := decimal.NewFromString(v); err == nil {
		return d.IsZero()
	}
	return false
}

// FormatNumber renders a raw JSON number without exponent notation.
// Non-numeric input is returned unchanged.
func FormatNumber(raw string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return d.String()
}
