// Package server exposes the scanner over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/zpam/spamscan/pkg/bayes"
	"github.com/zpam/spamscan/pkg/feedback"
	"github.com/zpam/spamscan/pkg/scanner"
	"github.com/zpam/spamscan/pkg/words"
)

// DefaultMaxBodyBytes caps request bodies when Options leaves it unset.
const DefaultMaxBodyBytes = 1 << 20

// FeedbackStore records verdicts submitted by clients.
type FeedbackStore interface {
	Add(ctx context.Context, text string, prediction bayes.Class, verdict feedback.Verdict) (feedback.Entry, error)
}

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	MaxBodyBytes   int64

	// Nil disables POST /feedback
	Feedback FeedbackStore
}

// Server routes HTTP requests to a scanner.
type Server struct {
	scanner *scanner.Scanner
	opts    Options
	handler http.Handler
}

// New builds the handler tree.
func New(s *scanner.Scanner, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	srv := &Server{scanner: s, opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", srv.handleRoot)
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("POST /scan-email", srv.handleScan)
	mux.HandleFunc("POST /feedback", srv.handleFeedback)
	mux.HandleFunc("GET /words", srv.handleWords)

	srv.handler = withRequestLog(withCORS(opts.AllowedOrigins, mux))
	return srv
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Config holds listener settings.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for at most ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, cfg Config) error {
	httpServer := &http.Server{
		Addr:         cfg.Address,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("address", cfg.Address).Info("HTTP server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "HTTP server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	log.Info("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown failed")
	}
	return nil
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// decode reads a single JSON object, rejecting unknown fields and oversized bodies.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if dec.More() {
		writeError(w, http.StatusBadRequest, "request body must contain a single JSON object")
		return false
	}
	return true
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Spam detection API is running"})
}

type healthResponse struct {
	Status   string    `json:"status"`
	Source   string    `json:"source,omitempty"`
	Version  int64     `json:"model_version"`
	Features int       `json:"features,omitempty"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.scanner.Current()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "loading"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Source:   snap.Source,
		Version:  snap.Version,
		Features: snap.Model.Features(),
		LoadedAt: snap.LoadedAt,
	})
}

type scanRequest struct {
	Text *string `json:"text"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, "field 'text' is required")
		return
	}

	result, err := s.scanner.Scan(*req.Text)
	if errors.Is(err, scanner.ErrNotReady) {
		writeError(w, http.StatusServiceUnavailable, "model not loaded")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type feedbackRequest struct {
	Text       string `json:"text"`
	Prediction string `json:"prediction"`
	Feedback   string `json:"feedback"`
}

type feedbackResponse struct {
	ID         int64     `json:"id"`
	Prediction string    `json:"prediction"`
	Feedback   string    `json:"feedback"`
	Label      string    `json:"label"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if s.opts.Feedback == nil {
		writeError(w, http.StatusNotFound, "feedback capture is disabled")
		return
	}

	var req feedbackRequest
	if !s.decode(w, r, &req) {
		return
	}

	prediction, err := feedback.ParsePrediction(req.Prediction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	verdict, err := feedback.ParseVerdict(req.Feedback)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := s.opts.Feedback.Add(r.Context(), req.Text, prediction, verdict)
	if errors.Is(err, feedback.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.WithError(err).Error("failed to store feedback")
		writeError(w, http.StatusInternalServerError, "failed to store feedback")
		return
	}

	writeJSON(w, http.StatusCreated, feedbackResponse{
		ID:         entry.ID,
		Prediction: entry.Prediction.String(),
		Feedback:   string(entry.Verdict),
		Label:      entry.Label().String(),
		CreatedAt:  entry.CreatedAt,
	})
}

type wordsResponse struct {
	Version int64       `json:"model_version"`
	Count   int         `json:"count"`
	Words   words.Table `json:"words"`
}

func (s *Server) handleWords(w http.ResponseWriter, r *http.Request) {
	snap := s.scanner.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "model not loaded")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	table := snap.Table.Top(limit)
	if table == nil {
		table = words.Table{}
	}
	writeJSON(w, http.StatusOK, wordsResponse{Version: snap.Version, Count: len(table), Words: table})
}
