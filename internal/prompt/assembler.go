// Package prompt merges fetcher results into the research document handed
// to the report generator.
package prompt

import (
	"fmt"
	"strings"

	"github.com/seenimoa/investa/internal/fetch"
	"github.com/seenimoa/investa/pkg/models"
)

// Section names, in document order.
const (
	SectionCompanyInfo        = "company_info"
	SectionNews               = "news"
	SectionRecommendations    = "recommendations"
	SectionUpgradesDowngrades = "upgrades_downgrades"
)

// Separator terminates every rendered section.
const Separator = "---\n"

// DefaultUpgradeLimit is how many upgrades/downgrades are quoted.
const DefaultUpgradeLimit = 2

// Inputs are the fetcher results for one ticker.
type Inputs struct {
	CompanyInfo     fetch.Result[models.CompanyProfile]
	News            fetch.Result[[]models.NewsItem]
	Recommendations fetch.Result[[]models.RecommendationRecord]
}

// Section is one rendered block of the document.
type Section struct {
	Name string
	Text string
}

// Assembler renders Inputs into a prompt document with a fixed section order.
type Assembler struct {
	maxRows      int
	upgradeLimit int
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithMaxRecommendationRows caps the recommendation table. Zero means no cap.
func WithMaxRecommendationRows(n int) Option {
	return func(a *Assembler) { a.maxRows = n }
}

// WithUpgradeLimit sets how many upgrades/downgrades are quoted.
func WithUpgradeLimit(n int) Option {
	return func(a *Assembler) { a.upgradeLimit = n }
}

// NewAssembler creates an assembler.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{upgradeLimit: DefaultUpgradeLimit}
	for _, o := range opts {
		o(a)
	}
	if a.maxRows < 0 {
		a.maxRows = 0
	}
	if a.upgradeLimit <= 0 {
		a.upgradeLimit = DefaultUpgradeLimit
	}
	return a
}

// Sections returns the rendered non-empty sections in document order.
// Unavailable sources and sources without content contribute nothing.
func (a *Assembler) Sections(in Inputs) []Section {
	var out []Section
	add := func(name, text string) {
		if text != "" {
			out = append(out, Section{Name: name, Text: text})
		}
	}

	if p, ok := in.CompanyInfo.Get(); ok {
		add(SectionCompanyInfo, companyInfoSection(p))
	}
	if items, ok := in.News.Get(); ok {
		add(SectionNews, newsSection(items))
	}
	if recs, ok := in.Recommendations.Get(); ok {
		add(SectionRecommendations, recommendationsSection(recs, a.maxRows))
		add(SectionUpgradesDowngrades, upgradesSection(models.UpgradesDowngrades(recs, a.upgradeLimit)))
	}
	return out
}

// Assemble concatenates the rendered sections. It returns "" when nothing is available.
func (a *Assembler) Assemble(in Inputs) string {
	var b strings.Builder
	for _, s := range a.Sections(in) {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Assemble renders in with default options.
func Assemble(in Inputs) string {
	return NewAssembler().Assemble(in)
}

// --- Company info ---

type profileField struct {
	label    string
	keys     []string // fallback chain, first truthy wins
	currency bool
}

var profileFields = []profileField{
	{label: "Name", keys: []string{"shortName", "longName"}},
	{label: "Symbol", keys: []string{"symbol"}},
	{label: "Current Stock Price", keys: []string{"regularMarketPrice", "currentPrice"}, currency: true},
	{label: "Market Cap", keys: []string{"marketCap", "enterpriseValue"}, currency: true},
	{label: "Sector", keys: []string{"sector"}},
	{label: "Industry", keys: []string{"industry"}},
	{label: "Address", keys: []string{"address1"}},
	{label: "City", keys: []string{"city"}},
	{label: "State", keys: []string{"state"}},
	{label: "Zip", keys: []string{"zip"}},
	{label: "Country", keys: []string{"country"}},
	{label: "EPS", keys: []string{"trailingEps"}},
	{label: "P/E Ratio", keys: []string{"trailingPE"}},
	{label: "52 Week Low", keys: []string{"fiftyTwoWeekLow"}},
	{label: "52 Week High", keys: []string{"fiftyTwoWeekHigh"}},
	{label: "50 Day Average", keys: []string{"fiftyDayAverage"}},
	{label: "200 Day Average", keys: []string{"twoHundredDayAverage"}},
	{label: "Website", keys: []string{"website"}},
	{label: "Summary", keys: []string{"longBusinessSummary"}},
	{label: "Analyst Recommendation", keys: []string{"recommendationKey"}},
	{label: "Number Of Analyst Opinions", keys: []string{"numberOfAnalystOpinions"}},
	{label: "Employees", keys: []string{"fullTimeEmployees"}},
	{label: "Total Cash", keys: []string{"totalCash"}},
	{label: "Free Cash flow", keys: []string{"freeCashflow"}},
	{label: "Operating Cash flow", keys: []string{"operatingCashflow"}},
	{label: "EBITDA", keys: []string{"ebitda"}},
	{label: "Revenue Growth", keys: []string{"revenueGrowth"}},
	{label: "Gross Margins", keys: []string{"grossMargins"}},
	{label: "Ebitda Margins", keys: []string{"ebitdaMargins"}},
}

func companyInfoSection(p models.CompanyProfile) string {
	currency, ok := p.Get("currency")
	if !ok {
		currency = "USD"
	}

	var lines strings.Builder
	for _, f := range profileFields {
		v, ok := p.First(f.keys...)
		if !ok {
			continue
		}
		if f.currency {
			v += " " + currency
		}
		fmt.Fprintf(&lines, "  - %s: %s\n\n", f.label, v)
	}
	if lines.Len() == 0 {
		return ""
	}
	return "This section contains information about the company.\n\n" +
		"## Company Info\n\n" + lines.String() + Separator
}

// --- News ---

func newsSection(items []models.NewsItem) string {
	var body strings.Builder
	for _, n := range items {
		if n.Empty() {
			continue
		}
		if n.Title != "" {
			fmt.Fprintf(&body, "#### %s\n\n", n.Title)
		}
		if n.Date != "" {
			fmt.Fprintf(&body, "  - Date: %s\n\n", n.Date)
		}
		if n.URL != "" {
			fmt.Fprintf(&body, "  - Link: %s\n\n", n.URL)
		}
		if n.Source != "" {
			fmt.Fprintf(&body, "  - Source: %s\n\n", n.Source)
		}
		body.WriteString(n.Body)
		body.WriteString("\n\n")
	}
	if body.Len() == 0 {
		return ""
	}
	return "This section contains the most recent news articles about the company.\n\n" +
		"## Company News\n\n\n" + body.String() + Separator
}

// --- Recommendations ---

func recommendationsSection(recs []models.RecommendationRecord, maxRows int) string {
	table := recommendationTable(recs, maxRows)
	if table == "" {
		return ""
	}
	return "## Analyst Recommendations\n\n" +
		"This table outlines the most recent analyst recommendations for the stock.\n\n" +
		table + "\n" + Separator
}

// recommendationTable renders recs as a markdown pipe table.
func recommendationTable(recs []models.RecommendationRecord, maxRows int) string {
	var rows strings.Builder
	n := 0
	for _, r := range recs {
		if r.Empty() {
			continue
		}
		if maxRows > 0 && n == maxRows {
			break
		}
		date := ""
		if !r.Date.IsZero() {
			date = r.Date.Format("2006-01-02")
		}
		fmt.Fprintf(&rows, "| %s | %s | %s | %s | %s |\n",
			cell(date), cell(r.Firm), cell(r.Action), cell(r.FromGrade), cell(r.ToGrade))
		n++
	}
	if n == 0 {
		return ""
	}
	return "| Date | Firm | Action | From Grade | To Grade |\n" +
		"|:-----|:-----|:-------|:-----------|:---------|\n" +
		rows.String()
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// --- Upgrades / downgrades ---

func upgradesSection(recs []models.RecommendationRecord) string {
	var lines strings.Builder
	for _, r := range recs {
		if r.ToGrade == "" {
			fmt.Fprintf(&lines, "- %s %s the stock.\n", r.Firm, r.Action)
			continue
		}
		fmt.Fprintf(&lines, "- %s %s the stock to %s.\n", r.Firm, r.Action, r.ToGrade)
	}
	if lines.Len() == 0 {
		return ""
	}
	return "## Upgrades/Downgrades\n\n" +
		"This section outlines the most recent upgrades and downgrades for the stock.\n\n" +
		lines.String() + "\n" + Separator
}
