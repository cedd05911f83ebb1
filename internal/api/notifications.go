package api

import "net/http"

// handleListNotificationLog returns recent notification delivery log entries.
// Accepts an optional ?limit=N query parameter (default 50).
func (s *Server) handleListNotificationLog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.notificationSvc.ListLog(r.Context(), queryLimit(r, 50))
	if err != nil {
		s.logger.Error("listing notification log", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notification log")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
