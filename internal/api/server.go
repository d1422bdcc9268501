// Package api exposes the engine over HTTP: data preparation, training,
// evaluation, classification and the normative verdicts used for labelling.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"dga-engine/internal/dga"
	"dga-engine/internal/metrics"
	"dga-engine/internal/ml"
	"dga-engine/internal/normative"
	"dga-engine/internal/storage"
)

// maxBatch bounds the readings accepted by one batch request.
const maxBatch = 10000

// defaultMaxBodyBytes caps request bodies when Options.MaxBodyBytes is unset.
const defaultMaxBodyBytes = 32 << 20

// Engine is the part of ml.Service the server drives.
type Engine interface {
	PrepareData(ctx context.Context) (ml.DatasetSummary, error)
	Train(ctx context.Context, nFolds int) (*ml.TrainingResult, error)
	EvaluateAllFolds(ctx context.Context, nFolds int) ([]ml.EvaluationResult, error)
	FeatureImportance(ctx context.Context, kind ml.Kind) ([]ml.FeatureScore, error)
	Classify(ctx context.Context, reading dga.GasReading) (dga.FaultLabel, error)
	ClassifyWithProba(ctx context.Context, reading dga.GasReading) (ml.Prediction, error)
	ClassifyBatch(ctx context.Context, readings []dga.GasReading) ([]dga.FaultLabel, error)
	Compare(ctx context.Context) (ml.ComparisonSummary, error)
	LoadModel() error
	ModelInfo() ml.ModelInfo
}

// SampleStore is the sample repository behind the import endpoints.
type SampleStore interface {
	ListSamples(ctx context.Context) ([]dga.Sample, error)
	Import(ctx context.Context, in io.Reader, defaultTransformer string) (storage.ImportResult, error)
	Count() (int, error)
}

// Options configure the server. Nil fields disable the matching feature.
type Options struct {
	Port         int
	MaxBodyBytes int64
	Gatherer     prometheus.Gatherer
	Metrics      *metrics.MetricsWrapper
}

// Server provides the HTTP API
type Server struct {
	engine  Engine
	rules   *normative.Rules
	samples SampleStore
	opts    Options
	router  *mux.Router
	server  *http.Server
	started time.Time
}

// ClassifyRequest is a single reading to classify.
type ClassifyRequest struct {
	Reading   dga.GasReading `json:"reading"`
	RequestID string         `json:"request_id,omitempty"`
}

// ClassifyResponse carries the label and, on request, the distribution.
type ClassifyResponse struct {
	Label         dga.FaultLabel             `json:"label"`
	Description   string                     `json:"description"`
	Confidence    float64                    `json:"confidence,omitempty"`
	Probabilities map[dga.FaultLabel]float64 `json:"probabilities,omitempty"`
	RequestID     string                     `json:"request_id,omitempty"`
	Latency       float64                    `json:"latency_ms"`
}

// BatchRequest lists readings to classify in order.
type BatchRequest struct {
	Readings []dga.GasReading `json:"readings"`
}

type BatchResponse struct {
	Labels []dga.FaultLabel `json:"labels"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer creates the HTTP server and its routes.
func NewServer(engine Engine, rules *normative.Rules, samples SampleStore, opts Options) *Server {
	s := &Server{
		engine:  engine,
		rules:   rules,
		samples: samples,
		opts:    opts,
		router:  mux.NewRouter(),
		started: time.Now(),
	}
	if s.opts.MaxBodyBytes <= 0 {
		s.opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	s.router.Use(s.observe, s.limitBody)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if opts.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/model", s.handleModelInfo).Methods(http.MethodGet)
	v1.HandleFunc("/model/load", s.handleLoadModel).Methods(http.MethodPost)
	v1.HandleFunc("/dataset/prepare", s.handlePrepare).Methods(http.MethodPost)
	v1.HandleFunc("/train", s.handleTrain).Methods(http.MethodPost)
	v1.HandleFunc("/evaluate", s.handleEvaluate).Methods(http.MethodGet)
	v1.HandleFunc("/importance/{candidate}", s.handleImportance).Methods(http.MethodGet)
	v1.HandleFunc("/compare", s.handleCompare).Methods(http.MethodGet)
	v1.HandleFunc("/classify", s.handleClassify).Methods(http.MethodPost)
	v1.HandleFunc("/classify/batch", s.handleClassifyBatch).Methods(http.MethodPost)
	v1.HandleFunc("/normative/{method}", s.handleNormative).Methods(http.MethodPost)
	if samples != nil {
		v1.HandleFunc("/samples", s.handleListSamples).Methods(http.MethodGet)
		v1.HandleFunc("/samples/import", s.handleImport).Methods(http.MethodPost)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // training runs inside the request
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// observe records request counts and latency per route template.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		if s.opts.Metrics != nil {
			s.opts.Metrics.ObserveRequest(route, rec.status, time.Since(start).Seconds())
		}
		log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dga.ErrInvalidGasValue), errors.Is(err, ml.ErrInvalidFolds):
		return http.StatusBadRequest
	case errors.Is(err, dga.ErrModelNotTrained):
		return http.StatusConflict
	case errors.Is(err, dga.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// limitBody caps every request body; reads past the cap fail with *http.MaxBytesError.
func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// requestStatus maps a body decoding failure to its status code.
func requestStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// intQuery parses an optional integer query parameter; absent means 0.
func intQuery(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return v, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := s.engine.ModelInfo()
	health := map[string]any{
		"status":          "ok",
		"uptime_seconds":  time.Since(s.started).Seconds(),
		"model_available": info.Available,
		"model_state":     info.State,
	}
	if s.opts.Gatherer != nil {
		health["classification_error_rate"] = metrics.ClassificationErrorRate(s.opts.Gatherer)
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ModelInfo())
}

func (s *Server) handleLoadModel(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.LoadModel(); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.ModelInfo())
}

func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.PrepareData(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	folds, err := intQuery(r, "folds")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if r.URL.Query().Has("folds") && folds < 2 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: got %d", ml.ErrInvalidFolds, folds))
		return
	}
	res, err := s.engine.Train(r.Context(), folds)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	folds, err := intQuery(r, "folds")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	results, err := s.engine.EvaluateAllFolds(r.Context(), folds)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleImportance(w http.ResponseWriter, r *http.Request) {
	kind, err := ml.ParseKind(mux.Vars(r)["candidate"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	scores, err := s.engine.FeatureImportance(r.Context(), kind)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.Compare(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ClassifyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, requestStatus(err), err)
		return
	}

	resp := ClassifyResponse{RequestID: req.RequestID}
	if proba, _ := strconv.ParseBool(r.URL.Query().Get("proba")); proba {
		pred, err := s.engine.ClassifyWithProba(r.Context(), req.Reading)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		resp.Label = pred.Label
		resp.Confidence = pred.Confidence
		resp.Probabilities = pred.Probabilities
	} else {
		label, err := s.engine.Classify(r.Context(), req.Reading)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		resp.Label = label
	}
	resp.Description = resp.Label.Description()
	resp.Latency = float64(time.Since(start).Microseconds()) / 1000
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClassifyBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, requestStatus(err), err)
		return
	}
	if len(req.Readings) > maxBatch {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("batch of %d readings exceeds limit %d", len(req.Readings), maxBatch))
		return
	}
	labels, err := s.engine.ClassifyBatch(r.Context(), req.Readings)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, BatchResponse{Labels: labels})
}

func (s *Server) handleNormative(w http.ResponseWriter, r *http.Request) {
	method, err := normative.ParseMethod(mux.Vars(r)["method"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	var reading dga.GasReading
	if err := decode(r, &reading); err != nil {
		writeError(w, requestStatus(err), err)
		return
	}
	diag, err := s.rules.Evaluate(method, reading)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, diag)
}

func (s *Server) handleListSamples(w http.ResponseWriter, r *http.Request) {
	samples, err := s.samples.ListSamples(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if samples == nil {
		samples = []dga.Sample{}
	}
	writeJSON(w, http.StatusOK, samples)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	transformer := r.URL.Query().Get("transformer")
	res, err := s.samples.Import(r.Context(), r.Body, transformer)
	if err != nil {
		writeError(w, requestStatus(err), err)
		return
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.SamplesImportedAdd(res.Imported)
	}
	total, err := s.samples.Count()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res, "stored": total})
}
