package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) projectAndSessionID(r *http.Request) (string, string) {
	return chi.URLParam(r, "projectID"), chi.URLParam(r, "sessionID")
}

// authorize re-reads the project and enforces project.createdBy == user_id
// (or org membership), the check every one of §6.1's operations performs
// first.
func (s *Server) authorize(r *http.Request, projectID string) error {
	id, err := extractIdentity(r)
	if err != nil {
		return err
	}
	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		return err
	}
	return authorizeProject(id, project)
}

func (s *Server) handleGetPreviewStatus(w http.ResponseWriter, r *http.Request) {
	projectID, sessionID := s.projectAndSessionID(r)
	if err := s.authorize(r, projectID); err != nil {
		writeError(w, err)
		return
	}

	status, err := s.preview.GetPreviewStatus(r.Context(), projectID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewStatusResponse(status))
}

type startPreviewRequest struct {
	EnvVars map[string]string `json:"env_vars,omitempty"`
	Token   string            `json:"token,omitempty"`
}

func (s *Server) handleStartPreview(w http.ResponseWriter, r *http.Request) {
	projectID, sessionID := s.projectAndSessionID(r)
	if err := s.authorize(r, projectID); err != nil {
		writeError(w, err)
		return
	}

	var req startPreviewRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	status, err := s.preview.StartPreview(r.Context(), projectID, sessionID, req.Token, req.EnvVars)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewStatusResponse(status))
}

func (s *Server) handleStopPreview(w http.ResponseWriter, r *http.Request) {
	projectID, sessionID := s.projectAndSessionID(r)
	if err := s.authorize(r, projectID); err != nil {
		writeError(w, err)
		return
	}

	if err := s.preview.StopPreview(r.Context(), projectID, sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
