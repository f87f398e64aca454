package report

import (
	"fmt"
	"sort"
	"strings"
)

// Template names offered by the report selector.
const (
	TemplateStandard         = "Standard"
	TemplateDetailed         = "Detailed"
	TemplateExecutiveSummary = "Executive Summary"
)

// DefaultTemplate is used when no template is requested.
const DefaultTemplate = TemplateExecutiveSummary

// Template is a report format the model is asked to follow. Every template
// keeps the same eight sections and the generation-time footer.
type Template struct {
	Name   string
	Format string
}

const coreMetrics = `### Core Metrics
{provide a summary of core metrics and show the latest data}
- Current price: {current price}
- 52-week high: {52-week high}
- 52-week low: {52-week low}
- Market Cap: {Market Cap} in billions
- P/E Ratio: {P/E Ratio}
- Earnings per Share: {EPS}
- 50-day average: {50-day average}
- 200-day average: {200-day average}
- Analyst Recommendations: {buy, hold, sell} (number of analysts)
`

const standardFormat = `# [Company Name]: Investment Report

### Overview
{give a brief introduction of the company and why the user should read this report}
{make this section engaging and create a hook for the reader}

` + coreMetrics + `
### Financial Performance
{provide a detailed analysis of the company's financial performance}

### Growth Prospects
{analyze the company's growth prospects and future potential}

### News and Updates
{summarize relevant news that can impact the stock price}

### Upgrades and Downgrades
{share 2 upgrades or downgrades including the firm, and what they upgraded/downgraded to}
{this should be a paragraph not a table}

### Summary
{give a summary of the report and what are the key takeaways}

### Recommendation
{provide a recommendation on the stock along with a thorough reasoning}

Report generated on: {current_time}
`

const detailedFormat = `# [Company Name]: Investment Report

### Overview
{give a thorough introduction of the company, its business model and competitive position}
{make this section engaging and create a hook for the reader}

` + coreMetrics + `
### Financial Performance
{provide an in-depth analysis of revenue, margins, cash flow and balance sheet strength}
{compare the latest figures with prior periods where the data allows}

### Growth Prospects
{analyze growth drivers, market opportunities and the main risks to the outlook}

### News and Updates
{summarize each relevant news item and explain how it can impact the stock price}

### Upgrades and Downgrades
{share 2 upgrades or downgrades including the firm, and what they upgraded/downgraded to}
{this should be a paragraph not a table}

### Summary
{give a detailed summary of the report and list the key takeaways}

### Recommendation
{provide a recommendation on the stock along with a thorough reasoning, covering upside and downside scenarios}

Report generated on: {current_time}
`

const executiveFormat = `# [Company Name]: Investment Report

### Overview
{give a two or three sentence introduction of the company and why it matters now}

` + coreMetrics + `
### Financial Performance
{summarize the financial performance in a short paragraph}

### Growth Prospects
{state the main growth prospects in a short paragraph}

### News and Updates
{list only the news that can move the stock price}

### Upgrades and Downgrades
{share 2 upgrades or downgrades including the firm, and what they upgraded/downgraded to}
{this should be a paragraph not a table}

### Summary
{give the key takeaways in a few lines}

### Recommendation
{state clearly whether to invest or not, with a concise reasoning}

Report generated on: {current_time}
`

var templates = map[string]Template{
	TemplateStandard:         {Name: TemplateStandard, Format: standardFormat},
	TemplateDetailed:         {Name: TemplateDetailed, Format: detailedFormat},
	TemplateExecutiveSummary: {Name: TemplateExecutiveSummary, Format: executiveFormat},
}

// LookupTemplate returns the template called name, matching case-insensitively.
// An empty name yields the default template.
func LookupTemplate(name string) (Template, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultTemplate
	}
	for k, t := range templates {
		if strings.EqualFold(k, strings.TrimSpace(name)) {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("unknown report template %q (choose one of: %s)",
		name, strings.Join(TemplateNames(), ", "))
}

// TemplateNames lists the available template names in sorted order.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for k := range templates {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
