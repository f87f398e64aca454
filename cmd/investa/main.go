// Command investa generates single-ticker investment research reports.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/seenimoa/investa/api"
	"github.com/seenimoa/investa/internal/app"
	"github.com/seenimoa/investa/internal/auth"
	"github.com/seenimoa/investa/internal/config"
	"github.com/seenimoa/investa/internal/logging"
	"github.com/seenimoa/investa/internal/pipeline"
	"github.com/seenimoa/investa/internal/report"
	"github.com/seenimoa/investa/internal/usage"
	"github.com/seenimoa/investa/pkg/models"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger
var (
	cfg    *config.Config
	logger arbor.ILogger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "investa",
	Short: "Investa: AI investment reports for a single ticker",
	Long: `Investa gathers company fundamentals, recent news and analyst ratings
for a ticker, asks a language model for an investment report and renders
it on screen or as a PDF. Each user may generate a limited number of
reports per day.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		logger = logging.New(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// credentialFlags adds --username and --password to cmd.
func credentialFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("username", "u", os.Getenv("INVESTA_USERNAME"), "account username (env INVESTA_USERNAME)")
	cmd.Flags().StringP("password", "p", "", "account password (env INVESTA_PASSWORD)")
}

func credentials(cmd *cobra.Command) (string, string) {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("INVESTA_PASSWORD")
	}
	return username, password
}

// login builds the services and verifies the command's credentials.
func login(cmd *cobra.Command, opts ...app.Option) (*app.App, auth.Identity, error) {
	a, err := app.Build(cmd.Context(), cfg, logger, opts...)
	if err != nil {
		return nil, auth.Identity{}, err
	}
	username, password := credentials(cmd)
	id, err := a.Login(cmd.Context(), username, password)
	if err != nil {
		return nil, auth.Identity{}, err
	}
	return a, id, nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Investa %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Signup Command ---

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.Build(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		username, password := credentials(cmd)
		if _, err := a.Auth.Signup(cmd.Context(), username, password); err != nil {
			return err
		}
		fmt.Println("Account created successfully! Please log in.")
		return nil
	},
}

func init() {
	credentialFlags(signupCmd)
}

// --- Usage Command ---

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show how many reports you generated today",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, id, err := login(cmd)
		if err != nil {
			return err
		}
		st, err := a.Gate.Status(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("Welcome, %s!\n", id.Username)
		fmt.Printf("Reports generated today: %s\n", st)
		return nil
	},
}

func init() {
	credentialFlags(usageCmd)
}

// --- Report Command ---

var reportCmd = &cobra.Command{
	Use:   "report [ticker]",
	Short: "Generate an investment report for a ticker",
	Long: `Generate an investment report for a ticker (default NVDA).

Examples:
  investa report AAPL -u alice -p secret
  investa report MSFT --template Detailed --pdf --out ./reports
  investa report --chart --period 6mo`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	credentialFlags(reportCmd)
	reportCmd.Flags().String("template", "", fmt.Sprintf("report template (%s)", strings.Join(report.TemplateNames(), ", ")))
	reportCmd.Flags().String("period", "", "historical data period (1mo, 3mo, 6mo, 1y, 2y, 5y, 10y, ytd, max)")
	reportCmd.Flags().Bool("pdf", false, "write the report as a PDF")
	reportCmd.Flags().Bool("chart", false, "write a candlestick chart of the price history as SVG")
	reportCmd.Flags().String("out", "", "output directory for PDF and chart files (default: report.output_dir)")
	reportCmd.Flags().Bool("raw", false, "print the markdown without terminal styling")
	reportCmd.Flags().BoolP("quiet", "q", false, "do not print stage progress")
}

func runReport(cmd *cobra.Command, args []string) error {
	ticker := pipeline.DefaultTicker
	if len(args) == 1 {
		ticker = args[0]
	}
	tmpl, _ := cmd.Flags().GetString("template")
	if tmpl == "" {
		tmpl = cfg.Report.Template
	}
	period, _ := cmd.Flags().GetString("period")
	if period == "" {
		period = cfg.Report.Period
	}
	wantPDF, _ := cmd.Flags().GetBool("pdf")
	wantChart, _ := cmd.Flags().GetBool("chart")
	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = cfg.Report.OutputDir
	}
	raw, _ := cmd.Flags().GetBool("raw")
	quiet, _ := cmd.Flags().GetBool("quiet")

	var opts []app.Option
	if !quiet {
		opts = append(opts, app.WithPipelineOptions(pipeline.WithObserver(printEvent)))
	}
	a, id, err := login(cmd, opts...)
	if err != nil {
		return err
	}

	st, err := a.Gate.Status(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Reports generated today: %s\n", st)

	res, err := a.Pipeline.Run(cmd.Context(), id, pipeline.Request{
		Ticker:   ticker,
		Template: tmpl,
		Period:   models.Period(period),
		PDF:      wantPDF,
		Chart:    wantChart,
	})
	if errors.Is(err, usage.ErrQuotaExceeded) {
		return fmt.Errorf("you have reached your daily limit of %d reports, please try again tomorrow", a.Gate.Limit())
	}
	if err != nil {
		return err
	}

	for _, n := range res.Notices {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", n.Level, n.Message)
	}

	if err := printMarkdown(res.Markdown, raw); err != nil {
		return err
	}

	if wantChart && res.Chart != "" {
		name := fmt.Sprintf("%s_%s_Chart.svg", res.Ticker, res.Period)
		if err := writeOutput(outDir, name, []byte(res.Chart)); err != nil {
			return err
		}
	}
	if wantPDF && res.RenderErr == nil {
		if err := writeOutput(outDir, res.PDFName, res.PDF); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "Reports generated today: %s\n", res.Usage)
	return nil
}

// printEvent prints stage progress to stderr so stdout carries only the report.
func printEvent(e pipeline.Event) {
	switch e.State {
	case pipeline.StateRunning:
		fmt.Fprintf(os.Stderr, "… %s\n", e.Label)
	case pipeline.StateComplete:
		fmt.Fprintf(os.Stderr, "✔ %s\n", e.Label)
	}
}

func printMarkdown(md string, raw bool) error {
	if raw {
		fmt.Println(md)
		return nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		// The plain text is still useful.
		fmt.Println(md)
		return nil
	}
	fmt.Print(out)
	return nil
}

func writeOutput(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "Saved %s\n", path)
	return nil
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		hub := api.NewWSHub()
		a, err := app.Build(context.Background(), cfg, logger,
			app.WithPipelineOptions(pipeline.WithObserver(hub.Observer())))
		if err != nil {
			return err
		}
		api.Version = version
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("Starting Investa API server on %s\n", addr)
		return api.NewServer(a, hub).ListenAndServe(addr)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  Investa System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    LLM Provider:  %s (model: %s)\n", cfg.LLM.Provider, cfg.LLM.Model)
		fmt.Printf("    Daily Limit:   %d reports\n", cfg.Usage.DailyLimit)
		fmt.Printf("    Cache TTL:     %s\n", cfg.Data.CacheTTLDuration())
		fmt.Printf("    Store:         %s\n", cfg.Storage.Path)
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		if err := cfg.Validate(); err != nil {
			fmt.Printf("    Problem:       %v\n", err)
		}
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			if k.Active {
				status += "  ← active"
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
