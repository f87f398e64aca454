// Package pipeline runs one report request end to end: quota check, data
// fetch, prompt assembly, generation and optional PDF rendering.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/investa/internal/auth"
	"github.com/seenimoa/investa/internal/fetch"
	"github.com/seenimoa/investa/internal/logging"
	"github.com/seenimoa/investa/internal/prompt"
	"github.com/seenimoa/investa/internal/report"
	"github.com/seenimoa/investa/internal/usage"
	"github.com/seenimoa/investa/pkg/models"
)

// DefaultTicker is researched when the request names none.
const DefaultTicker = "NVDA"

// NoUpgradesMessage is the info notice for recommendations without any
// upgrade or downgrade.
const NoUpgradesMessage = "No recent upgrades or downgrades available."

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid request")

// GenerationError means the model call failed. No report is produced.
type GenerationError struct {
	Ticker string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("an error occurred while generating the report for %s: %v", e.Ticker, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Request is one report run.
type Request struct {
	Ticker   string        `json:"ticker"`
	Template string        `json:"template,omitempty"`
	Period   models.Period `json:"period,omitempty"`
	PDF      bool          `json:"pdf,omitempty"`
	Chart    bool          `json:"chart,omitempty"`
}

// Notice levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Notice is a non-blocking message shown next to the report.
type Notice struct {
	Stage   string `json:"stage"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Result is the outcome of a successful run. RenderErr is set when the PDF
// was requested but could not be built; Markdown is still valid then.
type Result struct {
	Ticker      string          `json:"ticker"`
	Template    string          `json:"template"`
	Period      models.Period   `json:"period"`
	Markdown    string          `json:"markdown"`
	Prompt      string          `json:"-"`
	Notices     []Notice        `json:"notices"`
	PDF         []byte          `json:"-"`
	PDFName     string          `json:"pdf_name,omitempty"`
	RenderErr   error           `json:"-"`
	History     []models.OHLCV  `json:"-"`
	Chart       string          `json:"chart,omitempty"`
	Usage       usage.Status    `json:"usage"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Fetcher is the data access the pipeline needs.
type Fetcher interface {
	CompanyInfo(ctx context.Context, ticker string) fetch.Result[models.CompanyProfile]
	News(ctx context.Context, ticker string) fetch.Result[[]models.NewsItem]
	Recommendations(ctx context.Context, ticker string) fetch.Result[[]models.RecommendationRecord]
	History(ctx context.Context, ticker string, period models.Period) fetch.Result[[]models.OHLCV]
}

// Pipeline wires the stages together. It is safe for concurrent use.
type Pipeline struct {
	fetcher   Fetcher
	assembler *prompt.Assembler
	generator *report.Generator
	gate      *usage.Gate
	parallel  bool
	chartCfg  report.ChartConfig
	observer  Observer
	now       func() time.Time
	logger    arbor.ILogger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithParallelFetch runs the fetchers concurrently.
func WithParallelFetch(on bool) Option {
	return func(p *Pipeline) { p.parallel = on }
}

// WithAssembler replaces the default prompt assembler.
func WithAssembler(a *prompt.Assembler) Option {
	return func(p *Pipeline) { p.assembler = a }
}

// WithObserver receives stage events.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithChartConfig sets chart rendering parameters.
func WithChartConfig(cfg report.ChartConfig) Option {
	return func(p *Pipeline) { p.chartCfg = cfg }
}

// WithClock sets the clock used for generation time and PDF names.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(l arbor.ILogger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline.
func New(fetcher Fetcher, generator *report.Generator, gate *usage.Gate, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:   fetcher,
		generator: generator,
		gate:      gate,
		chartCfg:  report.DefaultChartConfig(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	if p.assembler == nil {
		p.assembler = prompt.NewAssembler()
	}
	p.logger = logging.OrSilent(p.logger)
	return p
}

// fetched holds one run's fetcher results.
type fetched struct {
	info    fetch.Result[models.CompanyProfile]
	news    fetch.Result[[]models.NewsItem]
	recs    fetch.Result[[]models.RecommendationRecord]
	history fetch.Result[[]models.OHLCV]
}

// Run executes req for id. Quota and authentication failures stop the run
// before any fetch. A *GenerationError is returned with a nil Result.
func (p *Pipeline) Run(ctx context.Context, id auth.Identity, req Request) (*Result, error) {
	if !id.Authenticated() {
		return nil, auth.ErrUnauthenticated
	}

	ticker := models.NormalizeTicker(req.Ticker)
	if ticker == "" {
		ticker = DefaultTicker
	}
	tmpl, err := report.LookupTemplate(req.Template)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	period, err := models.ParsePeriod(string(req.Period))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if _, err := p.gate.CheckAndReserve(ctx, id); err != nil {
		return nil, err
	}
	status, err := p.gate.RecordUse(ctx, id)
	if err != nil {
		return nil, err
	}

	start := p.now()
	p.logger.Info().
		Str("username", id.Username).
		Str("ticker", ticker).
		Str("template", tmpl.Name).
		Str("usage", status.String()).
		Msg("Report run started")

	res := &Result{
		Ticker:   ticker,
		Template: tmpl.Name,
		Period:   period,
		Usage:    status,
	}
	run := &run{p: p, res: res, ticker: ticker}

	var f fetched
	if p.parallel {
		f = run.fetchParallel(ctx, period, req.Chart)
	} else {
		f = run.fetchSequential(ctx, period, req.Chart)
	}

	in := prompt.Inputs{CompanyInfo: f.info, News: f.news, Recommendations: f.recs}
	run.upgrades(in)
	res.Prompt = p.assembler.Assemble(in)

	if req.Chart {
		run.chart(f.history)
	}

	run.emit(StageGenerate, StateRunning, "")
	md, err := p.generator.Generate(ctx, ticker, res.Prompt, tmpl)
	if err != nil {
		run.emit(StageGenerate, StateError, err.Error())
		p.logger.Error().Str("ticker", ticker).Err(err).Msg("Report generation failed")
		return nil, &GenerationError{Ticker: ticker, Err: err}
	}
	run.emit(StageGenerate, StateComplete, "")
	res.Markdown = md
	res.GeneratedAt = p.now()

	if req.PDF {
		run.renderPDF()
	}

	p.logger.Info().
		Str("ticker", ticker).
		Int("notices", len(res.Notices)).
		Dur("duration", p.now().Sub(start)).
		Msg("Report run finished")
	return res, nil
}

// run carries per-request state between stages.
type run struct {
	p      *Pipeline
	res    *Result
	ticker string
}

func (r *run) emit(stage Stage, state State, detail string) {
	if r.p.observer == nil {
		return
	}
	r.p.observer(Event{
		Stage:  stage,
		State:  state,
		Label:  stage.Label(state),
		Detail: detail,
		Ticker: r.ticker,
		Time:   r.p.now(),
	})
}

func (r *run) notice(stage Stage, level, msg string) {
	r.res.Notices = append(r.res.Notices, Notice{Stage: string(stage), Level: level, Message: msg})
}

// settle reports the outcome of one fetch stage.
func (r *run) settle(stage Stage, available bool, reason string) {
	if available {
		r.emit(stage, StateComplete, "")
		return
	}
	r.emit(stage, StateError, reason)
	r.notice(stage, LevelError, fmt.Sprintf("An error occurred while retrieving %s: %s", stage.Noun(), reason))
}

func (r *run) fetchStages(chart bool) []Stage {
	stages := []Stage{StageCompanyInfo, StageNews, StageRecommendations}
	if chart {
		stages = append(stages, StageHistory)
	}
	return stages
}

func (r *run) fetchSequential(ctx context.Context, period models.Period, chart bool) fetched {
	var f fetched
	fetcher := r.p.fetcher

	r.emit(StageCompanyInfo, StateRunning, "")
	f.info = fetcher.CompanyInfo(ctx, r.ticker)
	r.settle(StageCompanyInfo, f.info.IsAvailable(), f.info.Reason)

	r.emit(StageNews, StateRunning, "")
	f.news = fetcher.News(ctx, r.ticker)
	r.settle(StageNews, f.news.IsAvailable(), f.news.Reason)

	r.emit(StageRecommendations, StateRunning, "")
	f.recs = fetcher.Recommendations(ctx, r.ticker)
	r.settle(StageRecommendations, f.recs.IsAvailable(), f.recs.Reason)

	if chart {
		r.emit(StageHistory, StateRunning, "")
		f.history = fetcher.History(ctx, r.ticker, period)
		r.settle(StageHistory, f.history.IsAvailable(), f.history.Reason)
	}
	return f
}

// fetchParallel runs the fetchers concurrently. Events and notices are
// still reported in section order once all of them return.
func (r *run) fetchParallel(ctx context.Context, period models.Period, chart bool) fetched {
	var f fetched
	fetcher := r.p.fetcher

	for _, s := range r.fetchStages(chart) {
		r.emit(s, StateRunning, "")
	}

	// Fetchers never return errors; the group only waits.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f.info = fetcher.CompanyInfo(gctx, r.ticker)
		return nil
	})
	g.Go(func() error {
		f.news = fetcher.News(gctx, r.ticker)
		return nil
	})
	g.Go(func() error {
		f.recs = fetcher.Recommendations(gctx, r.ticker)
		return nil
	})
	if chart {
		g.Go(func() error {
			f.history = fetcher.History(gctx, r.ticker, period)
			return nil
		})
	}
	_ = g.Wait()

	r.settle(StageCompanyInfo, f.info.IsAvailable(), f.info.Reason)
	r.settle(StageNews, f.news.IsAvailable(), f.news.Reason)
	r.settle(StageRecommendations, f.recs.IsAvailable(), f.recs.Reason)
	if chart {
		r.settle(StageHistory, f.history.IsAvailable(), f.history.Reason)
	}
	return f
}

// upgrades notes when available recommendations contain no upgrade or downgrade.
func (r *run) upgrades(in prompt.Inputs) {
	recs, ok := in.Recommendations.Get()
	if !ok {
		return
	}
	r.emit(StageUpgrades, StateRunning, "")
	if len(models.UpgradesDowngrades(recs, prompt.DefaultUpgradeLimit)) == 0 {
		r.notice(StageUpgrades, LevelInfo, NoUpgradesMessage)
	}
	r.emit(StageUpgrades, StateComplete, "")
}

func (r *run) chart(history fetch.Result[[]models.OHLCV]) {
	bars, ok := history.Get()
	if !ok || len(bars) == 0 {
		return
	}
	r.res.History = bars
	r.res.Chart = report.CandlestickSVG(r.ticker, bars, r.p.chartCfg)
}

func (r *run) renderPDF() {
	r.emit(StagePDF, StateRunning, "")
	data, err := report.RenderPDF(r.res.Markdown)
	if err != nil {
		r.res.RenderErr = err
		r.emit(StagePDF, StateError, err.Error())
		r.notice(StagePDF, LevelError, "An error occurred while generating the PDF: "+err.Error())
		return
	}
	r.res.PDF = data
	r.res.PDFName = report.FileName(r.ticker, r.p.now())
	r.emit(StagePDF, StateComplete, "")
}

// Errors returns the error-level notices.
func (res *Result) Errors() []Notice {
	var out []Notice
	for _, n := range res.Notices {
		if n.Level == LevelError {
			out = append(out, n)
		}
	}
	return out
}

// NoticeText joins all notice messages, one per line.
func (res *Result) NoticeText() string {
	lines := make([]string, len(res.Notices))
	for i, n := range res.Notices {
		lines[i] = n.Message
	}
	return strings.Join(lines, "\n")
}
