// Package domain holds the entity shapes shared across the control plane
// packages (session, store, httpapi) so none of them has to import another's
// concrete types just to pass a Project or a ChatSession around.
package domain

import "time"

// Project is created by the control plane and soft-destroyed by archiving.
// RepoOwner/RepoName are set iff the project is Git-backed.
type Project struct {
	ID            string
	OrgID         string
	CreatorID     string
	RepoOwner     string
	RepoName      string
	DefaultBranch string
	Archived      bool
}

// GitBacked reports whether the project has a linked repository.
func (p Project) GitBacked() bool {
	return p.RepoOwner != "" && p.RepoName != ""
}

// CloneURL is the HTTPS clone URL for a Git-backed project.
func (p Project) CloneURL() string {
	return "https://github.com/" + p.RepoOwner + "/" + p.RepoName + ".git"
}

// SessionStatus is a ChatSession's lifecycle state.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionArchived SessionStatus = "archived"
)

// MergeInfo records the most recently observed merge state of a session's
// branch, refreshed by probing the Git host for a merged pull request.
type MergeInfo struct {
	Merged   bool
	MergedAt time.Time
	PRNumber int
	PRURL    string
}

// ChatSession is created lazily on a project's first preview or commit.
// BranchName is always derivable from SessionID and a process-wide prefix;
// it is stored denormalized here only for convenient persistence/querying.
type ChatSession struct {
	ID             string
	ProjectID      string
	UserID         string
	SessionID      string // URL-safe, unique within project
	BranchName     string
	Status         SessionStatus
	Title          string
	Description    string
	MessageCount   int
	LastActivityAt time.Time
	IsDefault      bool
	MergeInfo      *MergeInfo
}

// Commit is the ephemeral result of a commit_session_changes/revert_to_commit
// call, produced by the git operator and surfaced through the session
// manager; it is never persisted.
type Commit struct {
	SHA          string
	Message      string
	URL          string
	FilesChanged []string
	Timestamp    time.Time
}

// MessageRole identifies who authored a Message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is one turn of a session's chat transcript. ID is monotonic per
// project, not globally, matching how the activity stream resumes from a
// last_message_id cursor scoped to a single project.
type Message struct {
	ID            int64
	ProjectID     string
	SessionID     string
	Role          MessageRole
	Content       string
	TokensInput   *int
	TokensOutput  *int
	ContextTokens *int
	Timestamp     time.Time
}
