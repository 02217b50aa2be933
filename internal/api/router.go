package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/settings", s.handleSettings)

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/detected", s.handleDetected)
	r.Get("/api/targets", s.handleTargets)
	r.Get("/api/logs", s.handleLogs)

	r.Get("/api/mapping", s.handleGetMapping)
	r.Post("/api/mapping", s.handleSaveMapping)

	// Controller configuration templates
	r.Get("/api/download/outputs", s.handleDownloadOutputs)
	r.Get("/api/download/inputs", s.handleDownloadInputs)

	r.Get(s.wsPath(), s.handleWebSocket)

	// Controller command endpoint. Static /api routes take precedence.
	r.Get("/{name}/{value}", s.handleCommand)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	return r
}

// wsPath returns the configured WebSocket path.
func (s *Server) wsPath() string {
	if p := s.cfg.WebSocket.Path; p != "" {
		return p
	}
	return "/api/ws"
}
