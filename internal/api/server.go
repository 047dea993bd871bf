package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// AppState exposes the poller's state for the API layer.
type AppState interface {
	IsRunning() bool
	LastCycle() CycleStatus
	SnapshotPath() string
}

// CycleStatus summarizes the most recent polling cycle.
type CycleStatus struct {
	CycleID     string    `json:"cycle_id"`
	Timestamp   string    `json:"timestamp"`
	ScopesOK    int       `json:"scopes_ok"`
	ScopesTotal int       `json:"scopes_total"`
	Warnings    []string  `json:"warnings"`
	Rows        int       `json:"rows"`
	Published   bool      `json:"published"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Server is a lightweight HTTP API for monitoring the poller.
type Server struct {
	httpServer *http.Server
	appState   AppState
	log        *zap.Logger
	startedAt  time.Time
}

// NewServer creates a new API server bound to addr.
func NewServer(addr string, appState AppState, log *zap.Logger) *Server {
	s := &Server{
		appState:  appState,
		log:       log,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/snapshot.csv", s.handleSnapshot)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.log.Info("api server listening", zap.String("addr", s.httpServer.Addr))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("api server", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GET /api/health — liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]any{
		"ok":       true,
		"running":  s.appState.IsRunning(),
		"uptime_s": time.Since(s.startedAt).Seconds(),
	})
}

// GET /api/status — last cycle summary.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	cycle := s.appState.LastCycle()
	warnings := cycle.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	s.writeJSON(w, map[string]any{
		"running":      s.appState.IsRunning(),
		"uptime_s":     time.Since(s.startedAt).Seconds(),
		"cycle_id":     cycle.CycleID,
		"timestamp":    cycle.Timestamp,
		"scopes_ok":    cycle.ScopesOK,
		"scopes_total": cycle.ScopesTotal,
		"warnings":     warnings,
		"rows":         cycle.Rows,
		"published":    cycle.Published,
	})
}

// GET /api/snapshot.csv — the current published artifact.
func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	data, err := os.ReadFile(s.appState.SnapshotPath())
	if err != nil {
		http.Error(w, "no snapshot published yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	_, _ = w.Write(data)
}
