package httpapi

import (
	"net/http"
	"strconv"
)

// handleStreamActivity authorizes the caller, confirms the session exists,
// then hands the connection to the activity Service for the rest of its
// lifetime — ServeStream owns the response writer from here on.
func (s *Server) handleStreamActivity(w http.ResponseWriter, r *http.Request) {
	projectID, sessionID := s.projectAndSessionID(r)
	if err := s.authorize(r, projectID); err != nil {
		writeError(w, err)
		return
	}
	if _, ok, err := s.store.GetChatSession(r.Context(), projectID, sessionID); err != nil {
		writeError(w, err)
		return
	} else if !ok {
		writeError(w, errNotFound(sessionID))
		return
	}

	lastMessageID, _ := strconv.ParseInt(r.URL.Query().Get("last_message_id"), 10, 64)

	if err := s.activityLog.ServeStream(w, r, projectID, sessionID, lastMessageID); err != nil {
		s.log.Printf("httpapi: activity stream ended for %s/%s: %v", projectID, sessionID, err)
	}
}
