// Package httpapi exposes the control-plane operations of §6.1 over chi:
// one handler per operation, a single apperr.Kind→status mapping, and the
// Activity Stream's SSE endpoint. Every handler enforces
// project.createdBy == user_id (or org membership) before touching its
// collaborator.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/filopedraz/kosuke-core-sub005/internal/activity"
	"github.com/filopedraz/kosuke-core-sub005/internal/dbprovision"
	"github.com/filopedraz/kosuke-core-sub005/internal/preview"
	"github.com/filopedraz/kosuke-core-sub005/internal/session"
	"github.com/filopedraz/kosuke-core-sub005/internal/store"
)

// Server wires the eight control-plane operations to their collaborators.
type Server struct {
	store       *store.Store
	preview     *preview.Service
	sessions    *session.Manager
	provisioner *dbprovision.Provisioner
	activityLog *activity.Service
	log         *log.Logger
}

// New builds a Server. logger may be nil, in which case a default one is
// created.
func New(st *store.Store, prev *preview.Service, sessions *session.Manager, provisioner *dbprovision.Provisioner, act *activity.Service, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "httpapi ", log.LstdFlags|log.LUTC)
	}
	return &Server{store: st, preview: prev, sessions: sessions, provisioner: provisioner, activityLog: act, log: logger}
}

// Router builds the chi mux for every operation in §6.1.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/projects/{projectID}/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/preview", s.handleGetPreviewStatus)
		r.Post("/preview/start", s.handleStartPreview)
		r.Post("/preview/stop", s.handleStopPreview)
		r.Post("/pull", s.handlePullSessionBranch)
		r.Post("/commit", s.handleCommitSessionChanges)
		r.Post("/revert", s.handleRevertToCommit)
		r.Post("/query", s.handleExecuteQuery)
		r.Get("/activity", s.handleStreamActivity)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
