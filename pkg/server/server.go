// Package server exposes the analysis pipelines, raw generation and the cost
// ledger over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pario-ai/readq/pkg/ai"
	"github.com/pario-ai/readq/pkg/analysis"
	"github.com/pario-ai/readq/pkg/budget"
	"github.com/pario-ai/readq/pkg/cost"
	"github.com/pario-ai/readq/pkg/models"
	"github.com/pario-ai/readq/pkg/registry"
)

const maxBodyBytes = 1 << 20

// Server is the readq HTTP API.
type Server struct {
	listen   string
	svc      *ai.Service
	analyzer *analysis.Analyzer
	costs    *cost.Tracker
	enforcer *budget.Enforcer
	log      zerolog.Logger
	metrics  http.Handler
	mux      *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics serves h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// New creates a Server wired with all dependencies.
func New(listen string, svc *ai.Service, an *analysis.Analyzer, costs *cost.Tracker, enf *budget.Enforcer, opts ...Option) *Server {
	s := &Server{
		listen:   listen,
		svc:      svc,
		analyzer: an,
		costs:    costs,
		enforcer: enf,
		log:      zerolog.Nop(),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	s.mux.HandleFunc("POST /v1/topics", s.handleTopics)
	s.mux.HandleFunc("POST /v1/tags", s.handleTags)
	s.mux.HandleFunc("POST /v1/generate", s.handleGenerate)
	s.mux.HandleFunc("GET /v1/cost", s.handleCost)
	s.mux.HandleFunc("GET /v1/cost/history", s.handleHistory)
	s.mux.HandleFunc("GET /v1/models", s.handleModels)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.log.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", rec.status).
		Dur("latency", time.Since(start)).
		Msg("request")
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("listen", s.listen).Msg("readq api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type analyzeResponse struct {
	Success  bool                        `json:"success"`
	Analysis *models.ContentAnalysisData `json:"analysis,omitempty"`
	Error    string                      `json:"error,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var in analysis.AnalyzeURLInput
	if !decode(w, r, &in) {
		return
	}
	if in.URL == "" {
		writeJSONError(w, http.StatusBadRequest, "url is required")
		return
	}
	if in.ItemID == "" {
		in.ItemID = "item_" + uuid.NewString()
	}
	if !s.withinBudget(w) {
		return
	}

	out := s.analyzer.AnalyzeURL(r.Context(), in)
	resp := analyzeResponse{Success: out.Success, Error: out.Error}
	if out.Analysis != nil {
		d := out.Analysis.ToData()
		resp.Analysis = &d
	}
	writeJSON(w, statusFor(out.Success), resp)
}

type topicsRequest struct {
	ItemID    string                      `json:"itemId"`
	Title     string                      `json:"title"`
	URL       string                      `json:"url,omitempty"`
	Analysis  *models.ContentAnalysisData `json:"analysis,omitempty"`
	UserNotes string                      `json:"userNotes,omitempty"`
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	var req topicsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeJSONError(w, http.StatusBadRequest, "title is required")
		return
	}
	in := analysis.NoteTopicsInput{ItemID: req.ItemID, Title: req.Title, URL: req.URL, UserNotes: req.UserNotes}
	if req.Analysis != nil {
		in.Analysis = &models.ContentAnalysis{Summary: req.Analysis.Summary, KeyInsights: req.Analysis.KeyInsights}
	}
	if !s.withinBudget(w) {
		return
	}

	out := s.analyzer.SuggestNoteTopics(r.Context(), in)
	writeJSON(w, statusFor(out.Success), out)
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	var in analysis.SuggestTagsInput
	if !decode(w, r, &in) {
		return
	}
	if in.Content == "" {
		writeJSONError(w, http.StatusBadRequest, "content is required")
		return
	}
	if !s.withinBudget(w) {
		return
	}

	out := s.analyzer.SuggestTags(r.Context(), in)
	writeJSON(w, statusFor(out.Success), out)
}

type generateRequest struct {
	Prompt      string         `json:"prompt"`
	System      string         `json:"system,omitempty"`
	Feature     models.Feature `json:"feature,omitempty"`
	Model       string         `json:"model,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   *int           `json:"max_tokens,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.Feature != "" && !req.Feature.Valid() {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown feature %q", req.Feature))
		return
	}

	opts := &models.RequestOptions{Model: req.Model, Temperature: req.Temperature, MaxTokens: req.MaxTokens}
	spend := s.enforcer.Spend()

	var (
		resp  models.ProviderResponse
		err   error
		route models.FeatureModel
	)
	if req.Feature != "" {
		route = s.svc.FeatureConfig(req.Feature)
		resp, err = s.svc.SimpleGenerateForFeature(r.Context(), req.Feature, req.Prompt, req.System, opts, &spend)
	} else {
		route = models.FeatureModel{Provider: s.svc.Settings().Provider, Model: s.svc.CurrentModel()}
		resp, err = s.svc.SimpleGenerate(r.Context(), req.Prompt, req.System, opts, &spend)
	}
	if err != nil {
		writeBudgetError(w, err)
		return
	}
	if req.Model != "" {
		route.Model = req.Model
	}
	if resp.Success && resp.Tokens() > 0 {
		in, out := analysis.SplitTokens(resp.Tokens())
		s.costs.TrackUsage(string(route.Provider), route.Model, in, out, req.Feature)
	}
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

type costResponse struct {
	Summary models.CostSummary  `json:"summary"`
	Budget  models.BudgetStatus `json:"budget"`
}

func (s *Server) handleCost(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, costResponse{
		Summary: s.costs.Summary(),
		Budget:  s.enforcer.Status(s.svc.Settings().BudgetLimit),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.costs.History(limit))
}

type modelEntry struct {
	Key string `json:"key"`
	registry.ModelConfig
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	keys := registry.Keys()
	out := make([]modelEntry, 0, len(keys))
	for _, k := range keys {
		_, m, _ := registry.Lookup(k)
		out = append(out, modelEntry{Key: k, ModelConfig: m})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"provider":  s.svc.Settings().Provider,
		"available": s.svc.AvailableProviders(),
	})
}

// withinBudget rejects the request with 402 once the period spend has
// reached the configured limit.
func (s *Server) withinBudget(w http.ResponseWriter) bool {
	if err := s.enforcer.Check(s.svc.Settings().BudgetLimit); err != nil {
		writeBudgetError(w, err)
		return false
	}
	return true
}

func writeBudgetError(w http.ResponseWriter, err error) {
	var be *budget.ExceededError
	if errors.As(err, &be) {
		writeJSONError(w, http.StatusPaymentRequired, be.Error())
		return
	}
	writeJSONError(w, http.StatusInternalServerError, err.Error())
}

func statusFor(success bool) int {
	if success {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"readq_error","code":%d}}`, message, code)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
