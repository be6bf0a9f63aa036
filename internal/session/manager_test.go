package session

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
	"github.com/filopedraz/kosuke-core-sub005/internal/config"
	"github.com/filopedraz/kosuke-core-sub005/internal/domain"
	"github.com/filopedraz/kosuke-core-sub005/internal/gitops"
	"github.com/filopedraz/kosuke-core-sub005/internal/preview"
)

func runGitT(t *testing.T, repo string, args ...string) string {
	t.Helper()
	full := append([]string{"-C", repo}, args...)
	cmd := exec.Command("git", full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, string(out))
	}
	return string(out)
}

func newBareRemote(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "remote.git")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir remote: %v", err)
	}
	runGitT(t, dir, "init", "--bare", "-q")
	runGitT(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	return dir
}

func newCheckedOutRepo(t *testing.T, remoteURL string) string {
	t.Helper()
	root := t.TempDir()
	runGitT(t, root, "init", "-q")
	runGitT(t, root, "config", "user.email", "test@example.com")
	runGitT(t, root, "config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write readme: %v", err)
	}
	runGitT(t, root, "add", "README.md")
	runGitT(t, root, "commit", "-q", "-m", "initial")
	runGitT(t, root, "branch", "-M", "main")
	runGitT(t, root, "remote", "add", "origin", remoteURL)
	runGitT(t, root, "push", "-q", "-u", "origin", "main")
	return root
}

// fakeStore is an in-memory Store keyed by (project_id, session_id).
type fakeStore struct {
	projects map[string]domain.Project
	sessions map[string]domain.ChatSession
}

func newFakeStore() *fakeStore {
	return &fakeStore{projects: map[string]domain.Project{}, sessions: map[string]domain.ChatSession{}}
}

func key(projectID, sessionID string) string { return projectID + "/" + sessionID }

func (f *fakeStore) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	p, ok := f.projects[projectID]
	if !ok {
		return domain.Project{}, apperr.New(apperr.NotFound, "project not found").WithResource(projectID)
	}
	return p, nil
}

func (f *fakeStore) GetChatSession(ctx context.Context, projectID, sessionID string) (domain.ChatSession, bool, error) {
	cs, ok := f.sessions[key(projectID, sessionID)]
	return cs, ok, nil
}

func (f *fakeStore) CreateChatSession(ctx context.Context, cs domain.ChatSession) error {
	f.sessions[key(cs.ProjectID, cs.SessionID)] = cs
	return nil
}

func (f *fakeStore) ListChatSessions(ctx context.Context, projectID string) ([]domain.ChatSession, error) {
	var out []domain.ChatSession
	for _, cs := range f.sessions {
		if cs.ProjectID == projectID {
			out = append(out, cs)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateChatSession(ctx context.Context, cs domain.ChatSession) error {
	f.sessions[key(cs.ProjectID, cs.SessionID)] = cs
	return nil
}

type fakeRestarter struct {
	existsCalled   bool
	exists         bool
	restartCalled  bool
}

func (f *fakeRestarter) GetPreviewStatus(ctx context.Context, projectID, sessionID string) (preview.Status, error) {
	f.existsCalled = true
	return preview.Status{Exists: f.exists}, nil
}

func (f *fakeRestarter) RestartPreviewContainer(ctx context.Context, projectID, sessionID string) (preview.Status, error) {
	f.restartCalled = true
	return preview.Status{Exists: true, Running: true}, nil
}

func testConfig() *config.Config {
	return &config.Config{SessionBranchPrefix: "kosuke/chat-"}
}

func TestCreateSessionGeneratesIDAndPersistsActive(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(testConfig(), store, gitops.NewOperator(t.TempDir()), nil, nil)

	cs, err := mgr.CreateSession(context.Background(), "proj-1", "user-1", "My session", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !strings.HasPrefix(cs.SessionID, "kosuke-chat-") || len(cs.SessionID) != len("kosuke-chat-")+6 {
		t.Fatalf("unexpected session id: %q", cs.SessionID)
	}
	if cs.BranchName != "kosuke/chat-"+cs.SessionID {
		t.Fatalf("unexpected branch name: %q", cs.BranchName)
	}
	if cs.Status != domain.SessionActive || cs.MessageCount != 0 || cs.IsDefault {
		t.Fatalf("unexpected defaults: %+v", cs)
	}
	if _, ok, _ := store.GetChatSession(context.Background(), "proj-1", cs.SessionID); !ok {
		t.Fatalf("expected session persisted")
	}
}

// TestEnsureSessionWorkspaceChecksOutAndRecordsOnExistingCheckout covers the
// branch of ensure_session_workspace where the project directory already
// exists: it should skip cloning, check out the session branch, and record a
// ChatSession since none exists yet. The clone-on-first-use branch is covered
// directly by gitops.Operator's own Clone tests; domain.Project.CloneURL
// always points at github.com, so there is no way to redirect a real clone
// at a local fixture from this package without reaching into gitops.
func TestEnsureSessionWorkspaceChecksOutAndRecordsOnExistingCheckout(t *testing.T) {
	remote := newBareRemote(t)
	newCheckedOutRepo(t, remote)
	base := t.TempDir()
	op := gitops.NewOperator(base)
	path, err := op.Clone(context.Background(), remote, "proj-1", "token")
	if err != nil {
		t.Fatalf("seed clone: %v", err)
	}

	store := newFakeStore()
	mgr := NewManager(testConfig(), store, op, nil, nil)

	got, err := mgr.EnsureSessionWorkspace(context.Background(), "proj-1", "kosuke-chat-abc123", "token")
	if err != nil {
		t.Fatalf("EnsureSessionWorkspace: %v", err)
	}
	if got != path {
		t.Fatalf("expected existing path %q, got %q", path, got)
	}

	branch := strings.TrimSpace(runGitT(t, path, "rev-parse", "--abbrev-ref", "HEAD"))
	if branch != "kosuke/chat-kosuke-chat-abc123" {
		t.Fatalf("expected session branch checked out, got %q", branch)
	}
	if _, ok, _ := store.GetChatSession(context.Background(), "proj-1", "kosuke-chat-abc123"); !ok {
		t.Fatalf("expected chat session recorded")
	}
}

func TestPullSessionBranchRestartsExistingContainer(t *testing.T) {
	remote := newBareRemote(t)
	repoA := newCheckedOutRepo(t, remote)

	base := t.TempDir()
	repoB := filepath.Join(base, "proj-1")
	runGitT(t, base, "clone", "-q", remote, repoB)
	runGitT(t, repoB, "config", "user.email", "test@example.com")
	runGitT(t, repoB, "config", "user.name", "Test")

	if err := os.WriteFile(filepath.Join(repoA, "second.txt"), []byte("v2"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	runGitT(t, repoA, "add", "second.txt")
	runGitT(t, repoA, "commit", "-q", "-m", "second")
	runGitT(t, repoA, "push", "-q", "origin", "main")

	store := newFakeStore()
	store.sessions[key("proj-1", "kosuke-chat-abc123")] = domain.ChatSession{
		ProjectID: "proj-1", SessionID: "kosuke-chat-abc123", BranchName: "main", Status: domain.SessionActive,
	}
	restarter := &fakeRestarter{exists: true}
	mgr := NewManager(testConfig(), store, gitops.NewOperator(base), nil, restarter)

	result, err := mgr.PullSessionBranch(context.Background(), "proj-1", "kosuke-chat-abc123", "token")
	if err != nil {
		t.Fatalf("PullSessionBranch: %v", err)
	}
	if result.CommitsPulled != 1 {
		t.Fatalf("expected one commit pulled, got %+v", result)
	}
	if !restarter.restartCalled || !result.ContainerRestarted {
		t.Fatalf("expected restart to be triggered, got %+v", result)
	}
}

func TestPullSessionBranchSkipsRestartWhenNoContainer(t *testing.T) {
	remote := newBareRemote(t)
	repoA := newCheckedOutRepo(t, remote)

	base := t.TempDir()
	repoB := filepath.Join(base, "proj-1")
	runGitT(t, base, "clone", "-q", remote, repoB)
	runGitT(t, repoB, "config", "user.email", "test@example.com")
	runGitT(t, repoB, "config", "user.name", "Test")

	if err := os.WriteFile(filepath.Join(repoA, "second.txt"), []byte("v2"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	runGitT(t, repoA, "add", "second.txt")
	runGitT(t, repoA, "commit", "-q", "-m", "second")
	runGitT(t, repoA, "push", "-q", "origin", "main")

	store := newFakeStore()
	store.sessions[key("proj-1", "kosuke-chat-abc123")] = domain.ChatSession{
		ProjectID: "proj-1", SessionID: "kosuke-chat-abc123", BranchName: "main", Status: domain.SessionActive,
	}
	restarter := &fakeRestarter{exists: false}
	mgr := NewManager(testConfig(), store, gitops.NewOperator(base), nil, restarter)

	result, err := mgr.PullSessionBranch(context.Background(), "proj-1", "kosuke-chat-abc123", "token")
	if err != nil {
		t.Fatalf("PullSessionBranch: %v", err)
	}
	if restarter.restartCalled || result.ContainerRestarted {
		t.Fatalf("expected no restart when no container exists, got %+v", result)
	}
}

func TestCommitSessionChangesBumpsMessageCount(t *testing.T) {
	remote := newBareRemote(t)
	repo := newCheckedOutRepo(t, remote)

	base := t.TempDir()
	projectDir := filepath.Join(base, "proj-1")
	if err := os.Rename(repo, projectDir); err != nil {
		t.Fatalf("move repo into project path: %v", err)
	}
	if err := os.WriteFile(filepath.Join(projectDir, "app.go"), []byte("package app\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	store := newFakeStore()
	store.sessions[key("proj-1", "kosuke-chat-abc12345")] = domain.ChatSession{
		ProjectID: "proj-1", SessionID: "kosuke-chat-abc12345", BranchName: "main", MessageCount: 2,
	}
	mgr := NewManager(testConfig(), store, gitops.NewOperator(base), nil, nil)

	commit, err := mgr.CommitSessionChanges(context.Background(), "proj-1", "kosuke-chat-abc12345", "", "token")
	if err != nil {
		t.Fatalf("CommitSessionChanges: %v", err)
	}
	if commit == nil {
		t.Fatalf("expected a commit")
	}
	cs, _, _ := store.GetChatSession(context.Background(), "proj-1", "kosuke-chat-abc12345")
	if cs.MessageCount != 3 {
		t.Fatalf("expected message count bumped to 3, got %d", cs.MessageCount)
	}
}
