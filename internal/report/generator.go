// Package report turns an assembled research document into an analyst
// report. It builds the model prompt, renders the returned markdown to PDF
// and draws price history as SVG.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/seenimoa/investa/internal/llm"
	"github.com/seenimoa/investa/internal/logging"
)

// TimeLayout formats the generation time given to the model.
const TimeLayout = "2006-01-02 15:04:05"

// Persona is the analyst role the model plays.
const Persona = "You are a Senior Investment Analyst for Goldman Sachs tasked with producing a research report for a very important client."

// Instructions are joined into the system message in this order.
var Instructions = []string{
	"You will be provided with a stock and information from junior researchers.",
	"Carefully read the research and generate a final - Goldman Sachs worthy investment report.",
	"Make your report engaging, informative, and well-structured.",
	"When you share numbers, make sure to include the units (e.g., millions/billions) and currency.",
	"REMEMBER: This report is for a very important client, so the quality of the report is important.",
	"Make sure your report is properly formatted in md and follows the <report_format> provided below.",
	"IMPORTANT: Make sure to say whether to invest in the given stock or not.",
}

var errNoProvider = errors.New("report: no LLM provider configured")

// Generator asks an LLM for a markdown report. One call per report, no retry.
type Generator struct {
	provider llm.Provider
	opts     *llm.ChatOptions
	now      func() time.Time
	logger   arbor.ILogger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithChatOptions overrides model parameters per request.
func WithChatOptions(o llm.ChatOptions) GeneratorOption {
	return func(g *Generator) { g.opts = &o }
}

// WithNow sets the clock used for the "Current Time" line.
func WithNow(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// WithGeneratorLogger sets the logger.
func WithGeneratorLogger(l arbor.ILogger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator creates a generator backed by provider.
func NewGenerator(provider llm.Provider, opts ...GeneratorOption) *Generator {
	g := &Generator{provider: provider, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	g.logger = logging.OrSilent(g.logger)
	return g
}

// SystemPrompt is the fixed persona, instruction list and report format.
func SystemPrompt(tmpl Template) string {
	return Persona + "\n\n" +
		"Instructions: " + strings.Join(Instructions, ", ") + "\n\n" +
		"Report Format:\n" + tmpl.Format
}

// UserPrompt carries the stock symbol, the research document and the current time.
func UserPrompt(ticker, document string, now time.Time) string {
	return fmt.Sprintf("Stock: %s\n\nCompany Information: %s\n\nCurrent Time : %s\n\n",
		ticker, document, now.Format(TimeLayout))
}

// Generate returns the model's markdown for ticker. An empty document is
// still sent; the model then reports on what little it was given.
func (g *Generator) Generate(ctx context.Context, ticker, document string, tmpl Template) (string, error) {
	if g.provider == nil {
		return "", errNoProvider
	}
	if tmpl.Format == "" {
		tmpl = templates[DefaultTemplate]
	}

	messages := []llm.Message{
		llm.SystemMessage(SystemPrompt(tmpl)),
		llm.UserMessage(UserPrompt(ticker, document, g.now())),
	}

	resp, err := g.provider.Chat(ctx, messages, g.opts)
	if err != nil {
		return "", fmt.Errorf("generate report for %s: %w", ticker, err)
	}

	g.logger.Info().
		Str("ticker", ticker).
		Str("provider", resp.Provider).
		Str("model", resp.Model).
		Int("tokens", resp.Usage.TotalTokens).
		Dur("latency", resp.Latency).
		Msg("Report generated")
	return resp.Content, nil
}
