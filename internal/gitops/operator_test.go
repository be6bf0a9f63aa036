package gitops

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
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

// newBareRemote creates a bare repository to act as origin, with its HEAD on
// main so clones check out the branch newCheckedOutRepo pushes.
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

// newCheckedOutRepo clones remoteURL, makes an initial commit on main, and
// pushes it so the working tree has an upstream to push against.
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

func TestCheckoutSessionBranchCreatesWhenAbsent(t *testing.T) {
	remote := newBareRemote(t)
	repo := newCheckedOutRepo(t, remote)
	op := NewOperator(t.TempDir())

	if err := op.CheckoutSessionBranch(context.Background(), repo, "kosuke/chat-abc"); err != nil {
		t.Fatalf("CheckoutSessionBranch: %v", err)
	}
	branch := strings.TrimSpace(runGitT(t, repo, "rev-parse", "--abbrev-ref", "HEAD"))
	if branch != "kosuke/chat-abc" {
		t.Fatalf("expected new branch checked out, got %q", branch)
	}
}

func TestCheckoutSessionBranchReusesExisting(t *testing.T) {
	remote := newBareRemote(t)
	repo := newCheckedOutRepo(t, remote)
	runGitT(t, repo, "checkout", "-b", "kosuke/chat-abc")
	runGitT(t, repo, "checkout", "main")
	op := NewOperator(t.TempDir())

	if err := op.CheckoutSessionBranch(context.Background(), repo, "kosuke/chat-abc"); err != nil {
		t.Fatalf("CheckoutSessionBranch: %v", err)
	}
	branch := strings.TrimSpace(runGitT(t, repo, "rev-parse", "--abbrev-ref", "HEAD"))
	if branch != "kosuke/chat-abc" {
		t.Fatalf("expected existing branch reused, got %q", branch)
	}
}

func TestCommitChangesReturnsNilWhenClean(t *testing.T) {
	remote := newBareRemote(t)
	repo := newCheckedOutRepo(t, remote)
	op := NewOperator(t.TempDir())

	commit, err := op.CommitChanges(context.Background(), CommitOptions{
		SessionPath: repo,
		SessionID:   "kosuke-chat-abc12345",
		Branch:      "main",
		Token:       "unused",
	})
	if err != nil {
		t.Fatalf("CommitChanges: %v", err)
	}
	if commit != nil {
		t.Fatalf("expected nil commit with no changes, got %+v", commit)
	}
}

func TestCommitChangesStagesAndPushes(t *testing.T) {
	remote := newBareRemote(t)
	repo := newCheckedOutRepo(t, remote)
	if err := os.WriteFile(filepath.Join(repo, "app.go"), []byte("package app\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	op := NewOperator(t.TempDir())

	commit, err := op.CommitChanges(context.Background(), CommitOptions{
		SessionPath: repo,
		SessionID:   "kosuke-chat-abc12345",
		Branch:      "main",
		Token:       "dummy-token",
	})
	if err != nil {
		t.Fatalf("CommitChanges: %v", err)
	}
	if commit == nil {
		t.Fatalf("expected a commit to be produced")
	}
	if !strings.Contains(commit.Message, "app.go") {
		t.Fatalf("expected message to list changed file, got %q", commit.Message)
	}
	if !strings.Contains(commit.Message, "kosuke-c") {
		t.Fatalf("expected message to include short session id, got %q", commit.Message)
	}

	origin := strings.TrimSpace(runGitT(t, repo, "remote", "get-url", "origin"))
	if origin != remote {
		t.Fatalf("expected origin restored to credential-free form, got %q", origin)
	}

	remoteHead := strings.TrimSpace(runGitT(t, remote, "rev-parse", "main"))
	if remoteHead != commit.SHA {
		t.Fatalf("expected remote main to match pushed commit, got %q want %q", remoteHead, commit.SHA)
	}
}

func TestCommitChangesIgnoresNoiseFiles(t *testing.T) {
	remote := newBareRemote(t)
	repo := newCheckedOutRepo(t, remote)
	if err := os.MkdirAll(filepath.Join(repo, "node_modules", "pkg"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(repo, "node_modules", "pkg", "index.js"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(repo, ".env"), []byte("SECRET=1"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	op := NewOperator(t.TempDir())

	commit, err := op.CommitChanges(context.Background(), CommitOptions{
		SessionPath: repo,
		SessionID:   "kosuke-chat-abc12345",
		Branch:      "main",
		Token:       "dummy-token",
	})
	if err != nil {
		t.Fatalf("CommitChanges: %v", err)
	}
	if commit != nil {
		t.Fatalf("expected ignored-only changes to produce no commit, got %+v", commit)
	}
}

func TestRevertToCommitHardResetsAndForcePushes(t *testing.T) {
	remote := newBareRemote(t)
	repo := newCheckedOutRepo(t, remote)
	firstSHA := strings.TrimSpace(runGitT(t, repo, "rev-parse", "HEAD"))

	if err := os.WriteFile(filepath.Join(repo, "second.txt"), []byte("v2"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	runGitT(t, repo, "add", "second.txt")
	runGitT(t, repo, "commit", "-q", "-m", "second")
	runGitT(t, repo, "push", "-q", "origin", "main")

	op := NewOperator(t.TempDir())
	ok, err := op.RevertToCommit(context.Background(), repo, firstSHA, "dummy-token")
	if err != nil {
		t.Fatalf("RevertToCommit: %v", err)
	}
	if !ok {
		t.Fatalf("expected revert to report success")
	}

	head := strings.TrimSpace(runGitT(t, repo, "rev-parse", "HEAD"))
	if head != firstSHA {
		t.Fatalf("expected HEAD reset to %q, got %q", firstSHA, head)
	}
	origin := strings.TrimSpace(runGitT(t, repo, "remote", "get-url", "origin"))
	if origin != remote {
		t.Fatalf("expected origin restored, got %q", origin)
	}
	remoteHead := strings.TrimSpace(runGitT(t, remote, "rev-parse", "main"))
	if remoteHead != firstSHA {
		t.Fatalf("expected remote main force-pushed to %q, got %q", firstSHA, remoteHead)
	}
}

func TestPullBranchFastForwardsAndCountsCommits(t *testing.T) {
	remote := newBareRemote(t)
	repoA := newCheckedOutRepo(t, remote)

	repoB := t.TempDir()
	runGitT(t, filepath.Dir(repoB), "clone", "-q", remote, repoB)
	runGitT(t, repoB, "config", "user.email", "test@example.com")
	runGitT(t, repoB, "config", "user.name", "Test")

	if err := os.WriteFile(filepath.Join(repoA, "second.txt"), []byte("v2"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	runGitT(t, repoA, "add", "second.txt")
	runGitT(t, repoA, "commit", "-q", "-m", "second")
	runGitT(t, repoA, "push", "-q", "origin", "main")
	newHead := strings.TrimSpace(runGitT(t, repoA, "rev-parse", "HEAD"))

	op := NewOperator(t.TempDir())
	result, err := op.PullBranch(context.Background(), repoB, "main")
	if err != nil {
		t.Fatalf("PullBranch: %v", err)
	}
	if !result.Changed || result.CommitsPulled != 1 {
		t.Fatalf("expected one pulled commit, got %+v", result)
	}
	if result.NewCommit != newHead {
		t.Fatalf("expected new head %q, got %q", newHead, result.NewCommit)
	}
}

func TestPullBranchDivergedReturnsGitConflict(t *testing.T) {
	remote := newBareRemote(t)
	repoA := newCheckedOutRepo(t, remote)

	repoB := t.TempDir()
	runGitT(t, filepath.Dir(repoB), "clone", "-q", remote, repoB)
	runGitT(t, repoB, "config", "user.email", "test@example.com")
	runGitT(t, repoB, "config", "user.name", "Test")

	// repoA pushes a commit origin never sees from repoB's perspective...
	if err := os.WriteFile(filepath.Join(repoA, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	runGitT(t, repoA, "add", "a.txt")
	runGitT(t, repoA, "commit", "-q", "-m", "from a")
	runGitT(t, repoA, "push", "-q", "origin", "main")

	// ...while repoB has its own unpublished local commit, so a fast-forward
	// merge of origin/main is not possible.
	if err := os.WriteFile(filepath.Join(repoB, "b.txt"), []byte("b"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	runGitT(t, repoB, "add", "b.txt")
	runGitT(t, repoB, "commit", "-q", "-m", "from b")

	op := NewOperator(t.TempDir())
	_, err := op.PullBranch(context.Background(), repoB, "main")
	if err == nil {
		t.Fatalf("expected a diverged history to fail")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.GitConflict {
		t.Fatalf("expected GitConflict, got %v", err)
	}
}

func TestCloneRewritesOriginToCredentialFreeForm(t *testing.T) {
	remote := newBareRemote(t)
	base := t.TempDir()
	op := NewOperator(base)

	path, err := op.Clone(context.Background(), remote, "proj-1", "dummy-token")
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if path != filepath.Join(base, "proj-1") {
		t.Fatalf("unexpected clone path: %q", path)
	}
	origin := strings.TrimSpace(runGitT(t, path, "remote", "get-url", "origin"))
	if origin != remote {
		t.Fatalf("expected credential-free origin, got %q", origin)
	}
}
