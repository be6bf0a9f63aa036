package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/filopedraz/kosuke-core-sub005/internal/dbprovision"
)

type executeQueryRequest struct {
	Query string `json:"query"`
}

// handleExecuteQuery opens (or reuses) the session's own Postgres database
// and runs a read-only query against it. Nothing here touches the
// control-plane store: execute_query is scoped to the session database
// provisioned for this (project_id, session_id).
func (s *Server) handleExecuteQuery(w http.ResponseWriter, r *http.Request) {
	projectID, sessionID := s.projectAndSessionID(r)
	if err := s.authorize(r, projectID); err != nil {
		writeError(w, err)
		return
	}

	var req executeQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errBadRequest("invalid request body"))
		return
	}

	conn, _, err := s.provisioner.GetConnection(r.Context(), projectID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer conn.Close(r.Context())

	result, err := dbprovision.ExecuteQuery(r.Context(), conn, req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Columns: result.Columns, RowCount: result.RowCount, Data: result.Data})
}
