// Package session implements the Session Manager (C7): it tracks ChatSession
// records (title, branch, activity, merge state) and exposes pull/commit/
// revert by composing the Git Operator (C4) and remote PR introspection.
package session

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
	"github.com/filopedraz/kosuke-core-sub005/internal/config"
	"github.com/filopedraz/kosuke-core-sub005/internal/domain"
	"github.com/filopedraz/kosuke-core-sub005/internal/gitops"
)

// Manager wires the session store to the git operator, remote merge probe,
// and the preview service's restart hook.
type Manager struct {
	cfg      *config.Config
	store    Store
	git      *gitops.Operator
	merge    MergeProbe
	restarts PreviewRestarter
}

// NewManager builds a Manager from its collaborators. merge and restarts may
// be nil: merge-state refresh and restart-on-pull are both best-effort and
// skipped silently when the corresponding collaborator isn't wired.
func NewManager(cfg *config.Config, store Store, git *gitops.Operator, merge MergeProbe, restarts PreviewRestarter) *Manager {
	return &Manager{cfg: cfg, store: store, git: git, merge: merge, restarts: restarts}
}

// EnsureSessionWorkspace satisfies preview.WorkspaceEnsurer: it makes sure
// the project's working tree exists on disk and is checked out onto the
// session's branch, cloning on first use, and records a ChatSession if one
// doesn't exist yet.
func (m *Manager) EnsureSessionWorkspace(ctx context.Context, projectID, sessionID, token string) (string, error) {
	path := m.git.ProjectPath(projectID)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		project, err := m.store.GetProject(ctx, projectID)
		if err != nil {
			return "", err
		}
		if !project.GitBacked() {
			return "", apperr.New(apperr.BadRequest, "project has no linked repository").WithResource(projectID)
		}
		if _, err := m.git.Clone(ctx, project.CloneURL(), projectID, token); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "stat project workspace")
	}

	branch := m.cfg.BranchName(sessionID)
	if err := m.git.CheckoutSessionBranch(ctx, path, branch); err != nil {
		return "", err
	}

	if _, ok, err := m.store.GetChatSession(ctx, projectID, sessionID); err != nil {
		return "", err
	} else if !ok {
		cs := domain.ChatSession{
			ProjectID:      projectID,
			SessionID:      sessionID,
			BranchName:     branch,
			Status:         domain.SessionActive,
			LastActivityAt: time.Now().UTC(),
		}
		if err := m.store.CreateChatSession(ctx, cs); err != nil {
			return "", err
		}
	}

	return path, nil
}

// CreateSession mints a fresh session_id, derives its branch name, and
// persists a new active ChatSession for it.
func (m *Manager) CreateSession(ctx context.Context, projectID, userID, title, description string) (domain.ChatSession, error) {
	suffix, err := rand6()
	if err != nil {
		return domain.ChatSession{}, apperr.Wrap(apperr.Internal, err, "generate session id")
	}
	sessionID := "kosuke-chat-" + suffix

	cs := domain.ChatSession{
		ProjectID:      projectID,
		UserID:         userID,
		SessionID:      sessionID,
		BranchName:     m.cfg.BranchName(sessionID),
		Status:         domain.SessionActive,
		Title:          title,
		Description:    description,
		MessageCount:   0,
		IsDefault:      false,
		LastActivityAt: time.Now().UTC(),
	}
	if err := m.store.CreateChatSession(ctx, cs); err != nil {
		return domain.ChatSession{}, err
	}
	return cs, nil
}

// ListSessions returns a project's sessions ordered by most recent activity,
// opportunistically refreshing merge state for any session whose branch
// hasn't been observed merged yet. A merge-probe failure is logged and never
// fails the listing.
func (m *Manager) ListSessions(ctx context.Context, projectID string) ([]domain.ChatSession, error) {
	sessions, err := m.store.ListChatSessions(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if m.merge != nil {
		project, err := m.store.GetProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if project.GitBacked() {
			for i := range sessions {
				cs := &sessions[i]
				if cs.BranchName == "" || (cs.MergeInfo != nil && cs.MergeInfo.Merged) {
					continue
				}
				info, err := m.merge.FindMergedPR(ctx, project, cs.BranchName)
				if err != nil {
					log.Printf("session: refresh merge state for %s/%s: %v", projectID, cs.SessionID, err)
					continue
				}
				if info.Merged {
					cs.MergeInfo = &info
					if err := m.store.UpdateChatSession(ctx, *cs); err != nil {
						log.Printf("session: persist merge state for %s/%s: %v", projectID, cs.SessionID, err)
					}
				}
			}
		}
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastActivityAt.After(sessions[j].LastActivityAt)
	})
	return sessions, nil
}

// PullResult is what pull_session_branch reports back.
type PullResult struct {
	Changed            bool
	CommitsPulled      int
	PreviousCommit     string
	NewCommit          string
	BranchName         string
	ContainerRestarted bool
	Message            string
}

// PullSessionBranch fast-forward-pulls a session's branch and, if new
// commits landed and a preview container already exists for this session,
// restarts it so the running preview picks up the change.
func (m *Manager) PullSessionBranch(ctx context.Context, projectID, sessionID, token string) (PullResult, error) {
	cs, ok, err := m.store.GetChatSession(ctx, projectID, sessionID)
	if err != nil {
		return PullResult{}, err
	}
	if !ok {
		return PullResult{}, apperr.New(apperr.NotFound, "chat session not found").WithResource(sessionID)
	}

	path := m.git.ProjectPath(projectID)
	gitResult, err := m.git.PullBranch(ctx, path, cs.BranchName)
	if err != nil {
		return PullResult{}, err
	}

	result := PullResult{
		Changed:        gitResult.Changed,
		CommitsPulled:  gitResult.CommitsPulled,
		PreviousCommit: gitResult.PreviousCommit,
		NewCommit:      gitResult.NewCommit,
		BranchName:     gitResult.Branch,
		Message:        fmt.Sprintf("pulled %d commit(s) onto %s", gitResult.CommitsPulled, gitResult.Branch),
	}

	if gitResult.CommitsPulled > 0 && m.restarts != nil {
		status, err := m.restarts.GetPreviewStatus(ctx, projectID, sessionID)
		if err != nil {
			log.Printf("session: check preview status before restart for %s/%s: %v", projectID, sessionID, err)
		} else if status.Exists {
			if _, err := m.restarts.RestartPreviewContainer(ctx, projectID, sessionID); err != nil {
				log.Printf("session: restart preview after pull for %s/%s: %v", projectID, sessionID, err)
			} else {
				result.ContainerRestarted = true
			}
		}
	}

	cs.LastActivityAt = time.Now().UTC()
	if err := m.store.UpdateChatSession(ctx, cs); err != nil {
		log.Printf("session: bump last_activity_at for %s/%s: %v", projectID, sessionID, err)
	}

	return result, nil
}

// CommitSessionChanges is a thin wrapper around the git operator's
// commit_session_changes that additionally bumps the session's activity
// timestamp and message count on a successful commit.
func (m *Manager) CommitSessionChanges(ctx context.Context, projectID, sessionID, message, token string) (*domain.Commit, error) {
	cs, ok, err := m.store.GetChatSession(ctx, projectID, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.NotFound, "chat session not found").WithResource(sessionID)
	}

	commit, err := m.git.CommitChanges(ctx, gitops.CommitOptions{
		SessionPath: m.git.ProjectPath(projectID),
		SessionID:   sessionID,
		Branch:      cs.BranchName,
		Message:     message,
		Token:       token,
	})
	if err != nil {
		return nil, err
	}
	if commit == nil {
		return nil, nil
	}

	cs.LastActivityAt = time.Now().UTC()
	cs.MessageCount++
	if err := m.store.UpdateChatSession(ctx, cs); err != nil {
		log.Printf("session: bump activity after commit for %s/%s: %v", projectID, sessionID, err)
	}

	return &domain.Commit{
		SHA:          commit.SHA,
		Message:      commit.Message,
		URL:          commit.URL,
		FilesChanged: commit.FilesChanged,
		Timestamp:    time.Now().UTC(),
	}, nil
}

// RevertToCommit is a thin wrapper around the git operator's
// revert_to_commit that additionally bumps the session's activity timestamp.
func (m *Manager) RevertToCommit(ctx context.Context, projectID, sessionID, sha, token string) (bool, error) {
	cs, ok, err := m.store.GetChatSession(ctx, projectID, sessionID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, apperr.New(apperr.NotFound, "chat session not found").WithResource(sessionID)
	}

	reverted, err := m.git.RevertToCommit(ctx, m.git.ProjectPath(projectID), sha, token)
	if err != nil {
		return false, err
	}
	if reverted {
		cs.LastActivityAt = time.Now().UTC()
		if err := m.store.UpdateChatSession(ctx, cs); err != nil {
			log.Printf("session: bump activity after revert for %s/%s: %v", projectID, sessionID, err)
		}
	}
	return reverted, nil
}
