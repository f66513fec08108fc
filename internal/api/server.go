// Package api exposes the tracking engine over HTTP: JSON endpoints for
// targets and fall events, a websocket push channel, and an HTML debug
// chart.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hexar-systems/hexar/internal/config"
	"github.com/hexar-systems/hexar/internal/fallstore"
	"github.com/hexar-systems/hexar/internal/monitoring"
	"github.com/hexar-systems/hexar/internal/scan"
	"github.com/hexar-systems/hexar/internal/track"
)

// Server handles the HTTP interface for the tracking engine. It provides
// endpoints for live target state, fall history, and debug visualisation.
type Server struct {
	address string
	tracker *track.Tracker
	runner  *scan.Runner
	store   *fallstore.Store
	alerts  *monitoring.AlertLog
	tuning  *config.TuningConfig
	hub     *Hub
	server  *http.Server
	started time.Time
}

// ServerConfig contains configuration options for the web server. Store
// and Alerts may be nil; the matching endpoints then return 404.
type ServerConfig struct {
	Address string
	Tracker *track.Tracker
	Runner  *scan.Runner
	Store   *fallstore.Store
	Alerts  *monitoring.AlertLog
	Tuning  *config.TuningConfig
}

// NewServer creates a new web server with the provided configuration.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		address: cfg.Address,
		tracker: cfg.Tracker,
		runner:  cfg.Runner,
		store:   cfg.Store,
		alerts:  cfg.Alerts,
		tuning:  cfg.Tuning,
		hub:     NewHub(),
		started: time.Now(),
	}

	s.server = &http.Server{
		Addr:    s.address,
		Handler: s.logRequests(s.setupRoutes()),
	}

	return s
}

// Hub returns the websocket hub so the scan loop can push events into it.
func (s *Server) Hub() *Hub { return s.hub }

// Start begins the HTTP server in a goroutine and handles graceful
// shutdown when the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	go func() {
		monitoring.Logf("api: listening on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("api: server failed: %v", err)
		}
	}()

	<-ctx.Done()
	monitoring.Logf("api: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("api: shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			monitoring.Logf("api: force close error: %v", err)
		}
	}
	return nil
}

// setupRoutes configures the HTTP routes and handlers.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/targets", s.handleTargets)
	mux.HandleFunc("/api/targets/falling", s.handleFallingTargets)
	mux.HandleFunc("/api/trajectory", s.handleTrajectory)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/summaries", s.handleSummaries)
	mux.HandleFunc("/api/alerts", s.handleAlerts)
	mux.HandleFunc("/api/alerts/", s.handleAlertAck)
	mux.HandleFunc("/debug/targets/plot", s.handleTargetPlot)
	mux.HandleFunc("/ws", s.hub.handleWS)

	return mux
}

// logRequests wraps the mux with per-request logging.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		monitoring.Logf("api: %s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("api: encode response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
