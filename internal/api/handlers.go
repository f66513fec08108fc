package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hexar-systems/hexar/internal/version"
)

const defaultTrajectorySteps = 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{
		"status":  "ok",
		"version": version.String(),
		"uptime":  time.Since(s.started).Seconds(),
		"targets": s.tracker.Count(),
	})
}

// handleTargets returns all live targets. Filter by channel with
// ?channel=N.
func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if ch := r.URL.Query().Get("channel"); ch != "" {
		n, err := strconv.ParseUint(ch, 10, 8)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "invalid 'channel' parameter")
			return
		}
		s.writeJSON(w, s.tracker.TargetsByChannel(uint8(n)))
		return
	}

	s.writeJSON(w, s.tracker.Targets())
}

func (s *Server) handleFallingTargets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, s.tracker.FallingTargets())
}

// handleTrajectory returns the ballistic preview for one target.
// Query params:
//   - id (required)
//   - steps (optional, default 20, capped at 200)
func (s *Server) handleTrajectory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		s.writeJSONError(w, http.StatusBadRequest, "missing 'id' parameter")
		return
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid 'id' parameter")
		return
	}

	steps := defaultTrajectorySteps
	if st := r.URL.Query().Get("steps"); st != "" {
		if v, err := strconv.Atoi(st); err == nil && v > 0 && v <= 200 {
			steps = v
		}
	}

	points, ok := s.tracker.Trajectory(uint32(id), steps)
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no target with id %d", id))
		return
	}
	s.writeJSON(w, map[string]any{
		"target_id": id,
		"points":    points,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := map[string]any{
		"targets":          s.tracker.Count(),
		"targets_by_chan":  s.tracker.ChannelCounts(),
		"capacity_drops":   s.tracker.CapacityDrops(),
		"drops_by_channel": s.tracker.CapacityDropsByChannel(),
		"ws_clients":       s.hub.ClientCount(),
	}
	if s.runner != nil {
		resp["scan"] = s.runner.Stats()
	}
	if s.store != nil {
		if n, err := s.store.CountFalls(); err == nil {
			resp["fall_events"] = n
		}
	}
	s.writeJSON(w, resp)
}

// handleConfig returns the active tuning configuration. The shape matches
// the tuning JSON file, so a saved response round-trips as a config file.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.tuning == nil {
		s.writeJSONError(w, http.StatusNotFound, "no tuning config loaded")
		return
	}
	s.writeJSON(w, s.tuning)
}

// handleEvents returns recorded fall events, newest first. Query params:
//   - limit (optional, default 50)
//   - since (optional, RFC 3339)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusNotFound, "no database configured")
		return
	}

	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "invalid 'since' parameter")
			return
		}
		events, err := s.store.FallsSince(t)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("query events: %v", err))
			return
		}
		s.writeJSON(w, events)
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	events, err := s.store.RecentFalls(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("query events: %v", err))
		return
	}
	s.writeJSON(w, events)
}

// handleSummaries returns end-of-life track summaries, newest first.
// Query params:
//   - limit (optional, default 50)
//   - channel (optional)
func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusNotFound, "no database configured")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	if ch := r.URL.Query().Get("channel"); ch != "" {
		n, err := strconv.ParseUint(ch, 10, 8)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "invalid 'channel' parameter")
			return
		}
		summaries, err := s.store.SummariesByChannel(uint8(n), limit)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("query summaries: %v", err))
			return
		}
		s.writeJSON(w, summaries)
		return
	}

	summaries, err := s.store.RecentSummaries(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("query summaries: %v", err))
		return
	}
	s.writeJSON(w, summaries)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.alerts == nil {
		s.writeJSONError(w, http.StatusNotFound, "no alert log configured")
		return
	}

	if r.URL.Query().Get("all") != "" {
		s.writeJSON(w, s.alerts.Recent(100))
		return
	}
	s.writeJSON(w, s.alerts.Active())
}

// handleAlertAck acknowledges an alert: POST /api/alerts/{id}/ack.
func (s *Server) handleAlertAck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.alerts == nil {
		s.writeJSONError(w, http.StatusNotFound, "no alert log configured")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/alerts/")
	idStr, ok := strings.CutSuffix(rest, "/ack")
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "unknown alert action")
		return
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	if !s.alerts.Acknowledge(id) {
		s.writeJSONError(w, http.StatusNotFound, "no such alert")
		return
	}
	s.writeJSON(w, map[string]string{"status": "acknowledged"})
}
