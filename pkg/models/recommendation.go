package models

import "time"

// Analyst rating actions as rendered in reports.
const (
	ActionUpgraded   = "upgraded"
	ActionDowngraded = "downgraded"
	ActionMaintained = "maintained"
	ActionInitiated  = "initiated"
	ActionReiterated = "reiterated"
)

// RecommendationRecord is one analyst rating change.
type RecommendationRecord struct {
	Date      time.Time `json:"date"`
	Firm      string    `json:"firm"`
	Action    string    `json:"action"`
	FromGrade string    `json:"from_grade,omitempty"`
	ToGrade   string    `json:"to_grade,omitempty"`
}

// Empty reports whether the record carries no displayable field.
func (r RecommendationRecord) Empty() bool {
	return r.Date.IsZero() && r.Firm == "" && r.Action == "" && r.FromGrade == "" && r.ToGrade == ""
}

// UpgradesDowngrades returns the first limit records whose action is an upgrade
// or a downgrade, keeping their original order. Records without a firm are
// skipped before the limit applies. A non-positive limit returns all.
func UpgradesDowngrades(records []RecommendationRecord, limit int) []RecommendationRecord {
	var out []RecommendationRecord
	for _, r := range records {
		if r.Action != ActionUpgraded && r.Action != ActionDowngraded {
			continue
		}
		if r.Firm == "" {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
