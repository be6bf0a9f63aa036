package httpapi

import (
	"encoding/json"
	"net/http"
)

type tokenRequest struct {
	Token string `json:"token,omitempty"`
}

func (s *Server) handlePullSessionBranch(w http.ResponseWriter, r *http.Request) {
	projectID, sessionID := s.projectAndSessionID(r)
	if err := s.authorize(r, projectID); err != nil {
		writeError(w, err)
		return
	}

	var req tokenRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := s.sessions.PullSessionBranch(r.Context(), projectID, sessionID, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPullSessionBranchResponse(result))
}

type commitSessionChangesRequest struct {
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
}

func (s *Server) handleCommitSessionChanges(w http.ResponseWriter, r *http.Request) {
	projectID, sessionID := s.projectAndSessionID(r)
	if err := s.authorize(r, projectID); err != nil {
		writeError(w, err)
		return
	}

	var req commitSessionChangesRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	commit, err := s.sessions.CommitSessionChanges(r.Context(), projectID, sessionID, req.Message, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommitResponse(commit))
}

type revertToCommitRequest struct {
	SHA   string `json:"sha"`
	Token string `json:"token,omitempty"`
}

func (s *Server) handleRevertToCommit(w http.ResponseWriter, r *http.Request) {
	projectID, sessionID := s.projectAndSessionID(r)
	if err := s.authorize(r, projectID); err != nil {
		writeError(w, err)
		return
	}

	var req revertToCommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errBadRequest("invalid request body"))
		return
	}

	success, err := s.sessions.RevertToCommit(r.Context(), projectID, sessionID, req.SHA, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: success})
}
