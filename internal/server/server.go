// Package server exposes the orchestrator over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kortex/kortex/internal/agent"
)

// Backend is what the API serves.
type Backend interface {
	ProcessMessage(ctx context.Context, input string) agent.MessageResult
	ListSkills() []agent.SkillView
	SetSkillEnabled(name string, enabled bool) agent.OperationResult
}

// Options configures the HTTP server.
type Options struct {
	Addr      string
	AuthToken string
	Version   string
}

// Server is the HTTP API.
type Server struct {
	backend Backend
	opts    Options
	started time.Time
}

// New creates a server for backend.
func New(backend Backend, opts Options) *Server {
	return &Server{backend: backend, opts: opts, started: time.Now()}
}

type messageRequest struct {
	Message string `json:"message"`
}

type toggleRequest struct {
	Name    string `json:"name"`
	Enabled *bool  `json:"enabled"`
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health stays unauthenticated.
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"version": s.opts.Version,
			"uptime":  time.Since(s.started).Round(time.Second).String(),
		})
	})

	mux.HandleFunc("/api/message", s.authorized(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeError(w, http.StatusBadRequest, "message is required")
			return
		}
		slog.InfoContext(r.Context(), "API message received", "length", len(req.Message))
		writeJSON(w, http.StatusOK, s.backend.ProcessMessage(r.Context(), req.Message))
	}))

	mux.HandleFunc("/api/skills", s.authorized(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, s.backend.ListSkills())
	}))

	mux.HandleFunc("/api/skills/toggle", s.authorized(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req toggleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		if req.Name == "" || req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "name and enabled required")
			return
		}
		writeJSON(w, http.StatusOK, s.backend.SetSkillEnabled(req.Name, *req.Enabled))
	}))

	return cors(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AuthToken != "" {
			token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
			if token != s.opts.AuthToken {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next(w, r)
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, agent.OperationResult{Success: false, Error: msg})
}
