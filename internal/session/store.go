package session

import (
	"context"

	"github.com/filopedraz/kosuke-core-sub005/internal/domain"
	"github.com/filopedraz/kosuke-core-sub005/internal/preview"
)

// Store is the relational persistence slice the Session Manager needs.
// Implemented by internal/store; narrowed here so this package's tests can
// run against an in-memory fake instead of a live database.
type Store interface {
	GetProject(ctx context.Context, projectID string) (domain.Project, error)
	GetChatSession(ctx context.Context, projectID, sessionID string) (domain.ChatSession, bool, error)
	CreateChatSession(ctx context.Context, cs domain.ChatSession) error
	ListChatSessions(ctx context.Context, projectID string) ([]domain.ChatSession, error)
	UpdateChatSession(ctx context.Context, cs domain.ChatSession) error
}

// PreviewRestarter is the narrow slice of the Preview Service (C6) that
// pull_session_branch needs: check whether a container exists, and restart
// it in place if so. Satisfied structurally by *preview.Service.
type PreviewRestarter interface {
	GetPreviewStatus(ctx context.Context, projectID, sessionID string) (preview.Status, error)
	RestartPreviewContainer(ctx context.Context, projectID, sessionID string) (preview.Status, error)
}

// MergeProbe refreshes a session branch's merge state against the Git host.
// Kept independent of any particular forge client so this package doesn't
// have to import one just to pass it through.
type MergeProbe interface {
	FindMergedPR(ctx context.Context, project domain.Project, branch string) (domain.MergeInfo, error)
}
