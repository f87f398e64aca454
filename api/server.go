// Package api provides the HTTP REST API server for Investa.
//
// It exposes endpoints for signup, usage, report generation, PDF download,
// price charts and WebSocket streaming of pipeline progress.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ternarybob/arbor"

	"github.com/seenimoa/investa/internal/app"
	"github.com/seenimoa/investa/internal/auth"
	"github.com/seenimoa/investa/internal/config"
	"github.com/seenimoa/investa/internal/logging"
	"github.com/seenimoa/investa/internal/pipeline"
	"github.com/seenimoa/investa/internal/report"
	"github.com/seenimoa/investa/internal/usage"
	"github.com/seenimoa/investa/pkg/models"
)

// Version is reported by the health endpoint. Set by the binary at startup.
var Version = "dev"

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	app    *app.App
	wsHub  *WSHub
	logger arbor.ILogger
}

// NewServer creates a configured API server over a. The hub should be the
// one whose Observer was given to the pipeline, so progress reaches clients.
func NewServer(a *app.App, hub *WSHub) *Server {
	if hub == nil {
		hub = NewWSHub()
	}
	srv := &Server{
		cfg:    a.Config,
		app:    a,
		wsHub:  hub,
		logger: logging.OrSilent(a.Logger),
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("API server listening")
	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-done:
	}
	s.logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Accounts
		r.Post("/signup", s.handleSignup)
		r.Get("/usage", s.handleUsage)

		// Reports
		r.Get("/templates", s.handleTemplates)
		r.Post("/report", s.handleReport)
		r.Post("/report/pdf", s.handleReportPDF)
		r.Get("/chart/{ticker}", s.handleChart)

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// requestLogger logs one line per request through arbor.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SignupRequest is the body for POST /api/v1/signup.
type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ReportRequest is the body for POST /api/v1/report and /report/pdf.
type ReportRequest struct {
	Ticker   string `json:"ticker"`
	Template string `json:"template,omitempty"`
	Period   string `json:"period,omitempty"`
	Chart    bool   `json:"chart,omitempty"`
}

// TemplatesResponse lists the selector choices.
type TemplatesResponse struct {
	Templates       []string        `json:"templates"`
	DefaultTemplate string          `json:"default_template"`
	Periods         []models.Period `json:"periods"`
	DefaultPeriod   models.Period   `json:"default_period"`
	DefaultTicker   string          `json:"default_ticker"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":     "ok",
			"version":    Version,
			"ws_clients": s.wsHub.ClientCount(),
			"time":       time.Now().Format(time.RFC3339),
		},
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.app.Auth.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    map[string]string{"username": id.Username, "message": "Account created successfully! Please log in."},
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	st, err := s.app.Gate.Status(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: st})
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: TemplatesResponse{
			Templates:       report.TemplateNames(),
			DefaultTemplate: report.DefaultTemplate,
			Periods:         models.Periods,
			DefaultPeriod:   models.DefaultPeriod,
			DefaultTicker:   pipeline.DefaultTicker,
		},
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runReport(w, r, false)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: res})
}

// handleReportPDF runs the pipeline and returns the PDF as an attachment.
// When rendering fails the report text is returned with a 500 so it stays
// available to the client.
func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runReport(w, r, true)
	if !ok {
		return
	}
	if res.RenderErr != nil {
		writeJSON(w, http.StatusInternalServerError, APIResponse{
			Success: false,
			Data:    res,
			Error:   "An error occurred while generating the PDF: " + res.RenderErr.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.PDFName))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.PDF)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.PDF); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write PDF response")
	}
}

func (s *Server) runReport(w http.ResponseWriter, r *http.Request, pdf bool) (*pipeline.Result, bool) {
	id, ok := s.authenticate(w, r)
	if !ok {
		return nil, false
	}

	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	res, err := s.app.Pipeline.Run(r.Context(), id, pipeline.Request{
		Ticker:   req.Ticker,
		Template: req.Template,
		Period:   models.Period(req.Period),
		PDF:      pdf,
		Chart:    req.Chart,
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return nil, false
	}

	s.wsHub.Broadcast(WSMessage{
		Type:   "report_complete",
		Ticker: res.Ticker,
		Data: map[string]interface{}{
			"ticker":  res.Ticker,
			"usage":   res.Usage,
			"notices": len(res.Notices),
		},
	})
	return res, true
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}

	ticker := models.NormalizeTicker(chi.URLParam(r, "ticker"))
	period, err := models.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	history := s.app.Fetcher.History(r.Context(), ticker, period)
	bars, ok := history.Get()
	if !ok {
		writeError(w, http.StatusBadGateway, "An error occurred while retrieving historical data: "+history.Reason)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report.CandlestickSVG(ticker, bars, report.DefaultChartConfig())))
}

// authenticate verifies HTTP basic credentials. It writes a 401 and returns
// false when they are missing or wrong.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	username, password, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="investa"`)
		writeError(w, http.StatusUnauthorized, auth.ErrUnauthenticated.Error())
		return auth.Identity{}, false
	}
	id, err := s.app.Auth.Login(r.Context(), username, password)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Basic realm="investa"`)
		writeError(w, statusFor(err), err.Error())
		return auth.Identity{}, false
	}
	return id, true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var genErr *pipeline.GenerationError
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword),
		errors.Is(err, pipeline.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, usage.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.As(err, &genErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
