package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/loxhue-core/internal/bridge"
	"github.com/nerrad567/loxhue-core/internal/command"
	"github.com/nerrad567/loxhue-core/internal/dispatch"
)

// Plain-text command replies.
const (
	replyOK            = "OK"
	replyRecorded      = "Recorded"
	replyReadOnly      = "Read-only"
	replyNotConfigured = "Not Configured"
	replyInvalid       = "Invalid value"
	replyUnavailable   = "Unavailable"
)

// handleCommand is the controller's virtual output target: GET /{name}/{value}.
// Unknown names answer 200 so the controller does not retry them.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	value := chi.URLParam(r, "value")

	result, err := s.bridge.HandleCommand(r.Context(), name, value)
	switch {
	case err == nil && result.Sequence:
		writeText(w, http.StatusOK, fmt.Sprintf("Seq for %d", result.Targets))
	case err == nil:
		writeText(w, http.StatusOK, replyOK)
	case errors.Is(err, bridge.ErrNotConfigured):
		writeText(w, http.StatusServiceUnavailable, replyNotConfigured)
	case errors.Is(err, bridge.ErrUnknownTarget):
		writeText(w, http.StatusOK, replyRecorded)
	case errors.Is(err, bridge.ErrReadOnly):
		writeText(w, http.StatusBadRequest, replyReadOnly)
	case errors.Is(err, command.ErrInvalidValue):
		writeText(w, http.StatusBadRequest, replyInvalid)
	case errors.Is(err, dispatch.ErrNotRunning):
		writeText(w, http.StatusServiceUnavailable, replyUnavailable)
	default:
		s.logger.Error("command failed", "name", name, "value", value, "error", err)
		writeText(w, http.StatusInternalServerError, err.Error())
	}
}
