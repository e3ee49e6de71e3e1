// Package api exposes the backend over HTTP: window and batch
// classification, clinical analysis of session summaries, stored session
// listing, model metadata, health, and Prometheus metrics. The handlers
// are thin request/response plumbing over the ml, interpret and storage
// packages.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spaxe-dev/Tremor-Pro/internal/interpret"
	"github.com/spaxe-dev/Tremor-Pro/internal/metrics"
	"github.com/spaxe-dev/Tremor-Pro/internal/ml"
	"github.com/spaxe-dev/Tremor-Pro/internal/storage"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// maxBodyBytes bounds request bodies; session summaries and window
// batches are small.
const maxBodyBytes = 4 << 20

// Server is the backend HTTP server.
type Server struct {
	classifier *ml.Service
	store      *storage.Store // nil disables persistence
	interp     *interpret.Client
	metrics    *metrics.Metrics
	server     *http.Server
}

// New wires the HTTP surface. store may be nil; /sessions then reports
// persistence as disabled and /analyze skips saving.
func New(port int, classifier *ml.Service, store *storage.Store, interp *interpret.Client, m *metrics.Metrics) *Server {
	s := &Server{
		classifier: classifier,
		store:      store,
		interp:     interp,
		metrics:    m,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/classify", s.handleClassify)
	mux.HandleFunc("/classify/batch", s.handleClassifyBatch)
	mux.HandleFunc("/sessions", s.handleSessions)
	mux.HandleFunc("/model/info", s.handleModelInfo)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second, // /analyze waits on the LLM chain
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "tremor clinical backend",
	})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Malformed numeric fields are coerced to zero upstream of here by
	// plain JSON decoding; missing keys default the same way.
	var window ml.Window
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&window); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, s.classifier.ClassifyWindow(window))
}

func (s *Server) handleClassifyBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var windows []ml.Window
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&windows); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	if s.metrics != nil {
		s.metrics.BatchWindows.Observe(float64(len(windows)))
	}

	// Degraded conditions come back as an error-shaped result with 200;
	// the contract is a well-formed body, not an HTTP failure.
	writeJSON(w, http.StatusOK, s.classifier.ClassifyBatch(windows))
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, fmt.Sprintf("read request: %v", err), http.StatusBadRequest)
		return
	}

	var summary interpret.SessionSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		http.Error(w, fmt.Sprintf("invalid session summary: %v", err), http.StatusBadRequest)
		return
	}

	report := s.interp.Analyze(r.Context(), summary)

	if s.store != nil {
		rec := storage.SessionRecord{
			ID:              uuid.NewString(),
			CreatedAt:       time.Now().UTC(),
			RawSummary:      body,
			ClinicalSummary: report.ClinicalSummary,
			ConfidenceLevel: report.ConfidenceLevel,
			AdvisoryNote:    report.AdvisoryNote,
			ReportSource:    report.Source,
		}
		if err := s.store.SaveSession(rec); err != nil {
			log.Error().Err(err).Msg("failed to persist session")
			if s.metrics != nil {
				s.metrics.ErrorsTotal.Inc()
			}
		} else if s.metrics != nil {
			s.metrics.SessionsStored.Inc()
		}
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"sessions":    []storage.SessionRecord{},
			"persistence": "disabled",
		})
		return
	}

	sessions, err := s.store.ListSessions(50)
	if err != nil {
		http.Error(w, fmt.Sprintf("list sessions: %v", err), http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []storage.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.classifier.ModelInfo())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
