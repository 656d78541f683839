package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"propel/internal/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady checks the database connection.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"database": "ok"}
	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	s.writeJSON(w, r, code, map[string]any{
		"status": status,
		"checks": checks,
	})
}

func (s *Server) handleLastRun(w http.ResponseWriter, r *http.Request) {
	last := s.LastRun()
	if last == nil {
		s.writeJSON(w, r, http.StatusNotFound, map[string]string{"error": "no billing cycle has run yet"})
		return
	}
	s.writeJSON(w, r, http.StatusOK, last)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WarnContext(r.Context(), "Failed to write response", log.FieldError, err)
	}
}
