// Package server exposes the control API used to trigger backups and
// inspect their runs when the process runs as a long-lived service.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/coffersTech/dynamobackup/internal/model"
	"github.com/coffersTech/dynamobackup/internal/registry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodySize bounds a control message.
const maxBodySize = 64 << 10

// Submitter schedules a control message and returns its run ID.
type Submitter interface {
	Submit(ctx context.Context, msg model.Message) (string, error)
}

type ControlServer struct {
	submitter Submitter
	runs      *registry.Store
	gatherer  prometheus.Gatherer
	tokenHash []byte // bcrypt; empty disables auth
	logger    *zap.Logger
	srv       *http.Server
}

func NewControlServer(submitter Submitter, runs *registry.Store, gatherer prometheus.Gatherer, tokenHash string, logger *zap.Logger) *ControlServer {
	return &ControlServer{
		submitter: submitter,
		runs:      runs,
		gatherer:  gatherer,
		tokenHash: []byte(tokenHash),
		logger:    logger,
	}
}

// Handler returns the routes of the control API.
func (s *ControlServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/api/invoke", s.AuthMiddleware(http.HandlerFunc(s.handleInvoke)))
	mux.Handle("/api/runs", s.AuthMiddleware(http.HandlerFunc(s.handleRuns)))
	mux.Handle("/api/runs/", s.AuthMiddleware(http.HandlerFunc(s.handleRunItem)))

	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "ok")
	})

	return mux
}

// Start runs the HTTP server until Shutdown.
func (s *ControlServer) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("control server listening", zap.String("addr", addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *ControlServer) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// AuthMiddleware checks the bearer token against the configured hash.
func (s *ControlServer) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.tokenHash) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="dynamobackup"`)
			http.Error(w, "Unauthorized: Missing token", http.StatusUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword(s.tokenHash, []byte(token)); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="dynamobackup"`)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleInvoke schedules a control message.
// POST /api/invoke
func (s *ControlServer) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxBodySize {
		http.Error(w, "Body too large", http.StatusRequestEntityTooLarge)
		return
	}

	msg, err := model.ParseMessage(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runID, err := s.submitter.Submit(r.Context(), msg)
	if err != nil {
		s.logger.Error("submit failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	s.logger.Info("run submitted",
		zap.String("run_id", runID),
		zap.String("action", string(msg.Action)),
		zap.String("table", msg.TableName),
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// handleRuns lists known runs.
// GET /api/runs
func (s *ControlServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.runs.List())
}

// handleRunItem returns one run.
// GET /api/runs/{id}
func (s *ControlServer) handleRunItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if runID == "" || strings.Contains(runID, "/") {
		http.NotFound(w, r)
		return
	}
	run, ok := s.runs.Get(runID)
	if !ok {
		http.Error(w, registry.ErrRunNotFound.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
