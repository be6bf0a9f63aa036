// Package gitops wraps the git CLI as a subprocess, the same way the
// platform's other tooling shells out to git rather than linking a Git
// library: clone, branch checkout, commit-and-push, and revert, all scoped
// to a session's working tree and none of it ever persisting a credential
// to disk.
package gitops

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
)

// Operator runs git against working trees rooted under BasePath, one
// directory per project.
type Operator struct {
	BasePath string
}

// NewOperator returns an Operator rooted at basePath (spec's
// projects_base_path).
func NewOperator(basePath string) *Operator {
	return &Operator{BasePath: basePath}
}

// ProjectPath returns the on-disk working tree for a project.
func (o *Operator) ProjectPath(projectID string) string {
	return filepath.Join(o.BasePath, projectID)
}

// Commit describes the result of a successful commit_session_changes call.
// RequestID tags the stage/commit/push sequence that produced it for log
// correlation; it is never part of the wire contract surfaced by C7.
type Commit struct {
	SHA          string
	Message      string
	URL          string
	FilesChanged []string
	RequestID    uuid.UUID
}

var ignoreSubstrings = []string{
	".git/", "node_modules/", ".next/", "dist/", "build/", "__pycache__/", ".DS_Store",
}

var ignoreGlobs = []string{".env", ".env.local", "*.pyc", "*.log"}

// Clone removes any existing checkout for projectID, clones repoURL with
// token embedded in the URL, then immediately rewrites origin to the
// credential-free form so nothing authenticated is ever left on disk.
func (o *Operator) Clone(ctx context.Context, repoURL, projectID, token string) (string, error) {
	target := o.ProjectPath(projectID)
	if err := os.RemoveAll(target); err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "remove existing project checkout")
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "create projects base path")
	}

	authed, err := embedToken(repoURL, token)
	if err != nil {
		return "", apperr.Wrap(apperr.BadRequest, err, "parse repository url")
	}

	if _, err := runGit(ctx, "", "clone", authed, target); err != nil {
		return "", classifyAndWrap(err, "clone", repoURL)
	}

	clean, err := stripCredentials(repoURL)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "sanitize origin url")
	}
	if _, err := runGit(ctx, target, "remote", "set-url", "origin", clean); err != nil {
		return "", classifyAndWrap(err, "rewrite origin", repoURL)
	}
	return target, nil
}

// CheckoutSessionBranch checks out branch if it already exists locally,
// otherwise creates it from the current HEAD.
func (o *Operator) CheckoutSessionBranch(ctx context.Context, repoPath, branch string) error {
	if _, err := runGit(ctx, repoPath, "rev-parse", "--verify", "refs/heads/"+branch); err == nil {
		if _, err := runGit(ctx, repoPath, "checkout", branch); err != nil {
			return classifyAndWrap(err, "checkout branch", "")
		}
		return nil
	}
	if _, err := runGit(ctx, repoPath, "checkout", "-b", branch); err != nil {
		return classifyAndWrap(err, "create branch", "")
	}
	return nil
}

// CommitOptions parameterizes commit_session_changes.
type CommitOptions struct {
	SessionPath string
	SessionID   string
	Branch      string
	Message     string
	Token       string
	RemoteName  string // defaults to "origin"
}

// CommitChanges detects on-disk changes, stages and commits them, and pushes
// under a temporary authenticated origin, always restoring the
// credential-free origin before returning. A nil Commit with a nil error
// means there was nothing to commit.
func (o *Operator) CommitChanges(ctx context.Context, opts CommitOptions) (*Commit, error) {
	requestID := uuid.New()
	remote := opts.RemoteName
	if remote == "" {
		remote = "origin"
	}

	changed, err := o.changedFiles(ctx, opts.SessionPath)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return nil, nil
	}

	if opts.Branch != "" {
		if err := o.CheckoutSessionBranch(ctx, opts.SessionPath, opts.Branch); err != nil {
			return nil, err
		}
	}

	addArgs := append([]string{"add", "--"}, changed...)
	if _, err := runGit(ctx, opts.SessionPath, addArgs...); err != nil {
		return nil, classifyAndWrap(err, "stage changes", "")
	}

	message := opts.Message
	if message == "" {
		message = commitMessage(changed, opts.SessionID, time.Now().UTC())
	}
	if _, err := runGit(ctx, opts.SessionPath, "commit", "-m", message); err != nil {
		return nil, classifyAndWrap(err, "commit", "")
	}

	sha, err := runGit(ctx, opts.SessionPath, "rev-parse", "HEAD")
	if err != nil {
		return nil, classifyAndWrap(err, "resolve commit sha", "")
	}
	sha = strings.TrimSpace(sha)

	cleanOrigin, err := runGit(ctx, opts.SessionPath, "remote", "get-url", remote)
	if err != nil {
		return nil, classifyAndWrap(err, "read origin", "")
	}
	cleanOrigin = strings.TrimSpace(cleanOrigin)

	if err := o.pushWithTemporaryAuth(ctx, opts.SessionPath, remote, cleanOrigin, opts.Token, opts.Branch); err != nil {
		return nil, err
	}

	url, err := commitURL(cleanOrigin, sha)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "build commit url")
	}

	return &Commit{SHA: sha, Message: message, URL: url, FilesChanged: changed, RequestID: requestID}, nil
}

// pushWithTemporaryAuth sets remote to an authenticated URL, pushes the
// branch (creating the upstream if it's missing), and unconditionally
// restores the credential-free URL regardless of how the push turns out.
func (o *Operator) pushWithTemporaryAuth(ctx context.Context, repoPath, remote, cleanOrigin, token, branch string) error {
	authed, err := embedToken(cleanOrigin, token)
	if err != nil {
		return apperr.Wrap(apperr.BadRequest, err, "parse origin url")
	}
	if _, err := runGit(ctx, repoPath, "remote", "set-url", remote, authed); err != nil {
		return classifyAndWrap(err, "set authenticated origin", cleanOrigin)
	}
	defer func() {
		_, _ = runGit(ctx, repoPath, "remote", "set-url", remote, cleanOrigin)
	}()

	pushArgs := []string{"push", remote}
	if branch != "" {
		pushArgs = append(pushArgs, "HEAD:"+branch)
	} else {
		pushArgs = append(pushArgs, "HEAD")
	}
	if _, err := runGit(ctx, repoPath, pushArgs...); err != nil {
		if isMissingUpstream(err) && branch != "" {
			upArgs := []string{"push", "--set-upstream", remote, "HEAD:" + branch}
			if _, err := runGit(ctx, repoPath, upArgs...); err != nil {
				return classifyAndWrap(err, "push with upstream", cleanOrigin)
			}
			return nil
		}
		return classifyAndWrap(err, "push", cleanOrigin)
	}
	return nil
}

// PullResult describes what a fast-forward pull did to a session's branch.
type PullResult struct {
	Changed        bool
	CommitsPulled  int
	PreviousCommit string
	NewCommit      string
	Branch         string
}

// PullBranch fetches origin/branch and fast-forwards the checked-out branch
// onto it. A history that has diverged (the local branch carries commits
// origin doesn't have, or vice versa in a way that isn't a pure
// fast-forward) surfaces as apperr.GitConflict rather than attempting a
// merge: the core never resolves conflicts on a session's behalf.
func (o *Operator) PullBranch(ctx context.Context, sessionPath, branch string) (PullResult, error) {
	previous, err := runGit(ctx, sessionPath, "rev-parse", "HEAD")
	if err != nil {
		return PullResult{}, classifyAndWrap(err, "resolve head before pull", "")
	}
	previous = strings.TrimSpace(previous)

	if _, err := runGit(ctx, sessionPath, "fetch", "origin", branch); err != nil {
		return PullResult{}, classifyAndWrap(err, "fetch", "")
	}
	if _, err := runGit(ctx, sessionPath, "merge", "--ff-only", "origin/"+branch); err != nil {
		return PullResult{}, classifyAndWrap(err, "fast-forward merge", "")
	}

	current, err := runGit(ctx, sessionPath, "rev-parse", "HEAD")
	if err != nil {
		return PullResult{}, classifyAndWrap(err, "resolve head after pull", "")
	}
	current = strings.TrimSpace(current)

	count := 0
	if current != previous {
		out, err := runGit(ctx, sessionPath, "rev-list", "--count", previous+".."+current)
		if err != nil {
			return PullResult{}, classifyAndWrap(err, "count pulled commits", "")
		}
		fmt.Sscanf(strings.TrimSpace(out), "%d", &count)
	}

	return PullResult{
		Changed:        current != previous,
		CommitsPulled:  count,
		PreviousCommit: previous,
		NewCommit:      current,
		Branch:         branch,
	}, nil
}

// RevertToCommit hard-resets the current branch to sha and force-pushes the
// result, restoring the credential-free origin unconditionally.
func (o *Operator) RevertToCommit(ctx context.Context, sessionPath, sha, token string) (bool, error) {
	const remote = "origin"

	if _, err := runGit(ctx, sessionPath, "reset", "--hard", sha); err != nil {
		return false, classifyAndWrap(err, "reset to commit", "")
	}

	branch, err := runGit(ctx, sessionPath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return false, classifyAndWrap(err, "resolve current branch", "")
	}
	branch = strings.TrimSpace(branch)

	cleanOrigin, err := runGit(ctx, sessionPath, "remote", "get-url", remote)
	if err != nil {
		return false, classifyAndWrap(err, "read origin", "")
	}
	cleanOrigin = strings.TrimSpace(cleanOrigin)

	authed, err := embedToken(cleanOrigin, token)
	if err != nil {
		return false, apperr.Wrap(apperr.BadRequest, err, "parse origin url")
	}
	if _, err := runGit(ctx, sessionPath, "remote", "set-url", remote, authed); err != nil {
		return false, classifyAndWrap(err, "set authenticated origin", cleanOrigin)
	}
	defer func() {
		_, _ = runGit(ctx, sessionPath, "remote", "set-url", remote, cleanOrigin)
	}()

	if _, err := runGit(ctx, sessionPath, "push", "--force", remote, "HEAD:"+branch); err != nil {
		return false, classifyAndWrap(err, "force push revert", cleanOrigin)
	}
	return true, nil
}

// changedFiles runs git status and filters the result through the ignore
// rules, returning paths suitable for a `git add --`.
func (o *Operator) changedFiles(ctx context.Context, repoPath string) ([]string, error) {
	out, err := runGit(ctx, repoPath, "status", "--porcelain")
	if err != nil {
		return nil, classifyAndWrap(err, "status", "")
	}
	var changed []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		if arrow := strings.Index(path, " -> "); arrow >= 0 {
			path = path[arrow+4:]
		}
		path = strings.Trim(path, `"`)
		if path == "" || isIgnoredPath(path) {
			continue
		}
		changed = append(changed, path)
	}
	return changed, nil
}

func isIgnoredPath(path string) bool {
	for _, s := range ignoreSubstrings {
		if strings.Contains(path, s) {
			return true
		}
	}
	base := filepath.Base(path)
	for _, g := range ignoreGlobs {
		if ok, _ := filepath.Match(g, base); ok {
			return true
		}
	}
	return false
}

// commitMessage generates the default commit message: the full file list
// when small, collapsed to a count otherwise.
func commitMessage(changed []string, sessionID string, at time.Time) string {
	const prefix = "kosuke: "
	shortSession := sessionID
	if len(shortSession) > 8 {
		shortSession = shortSession[:8]
	}
	var files string
	if len(changed) <= 3 {
		files = strings.Join(changed, ", ")
	} else {
		files = fmt.Sprintf("%d files", len(changed))
	}
	return fmt.Sprintf("%s%s: Modified %s (chat: %s)", prefix, at.Format("2006-01-02T15:04:05Z"), files, shortSession)
}

// runGit runs git with args against repoPath (omitted when empty, for
// pre-clone invocations) and returns stdout+stderr combined on success, with
// trailing whitespace trimmed (leading whitespace is kept, since it is part
// of `status --porcelain`'s status columns). Every returned error has
// credentials stripped from its message.
func runGit(ctx context.Context, repoPath string, args ...string) (string, error) {
	full := args
	if repoPath != "" {
		full = append([]string{"-C", repoPath}, args...)
	}
	cmd := exec.CommandContext(ctx, "git", full...)
	out, err := cmd.CombinedOutput()
	text := SanitizeRemoteURL(strings.TrimRight(string(out), " \t\r\n"))
	if err != nil {
		return text, fmt.Errorf("git %s: %w: %s", args[0], err, text)
	}
	return text, nil
}

func isMissingUpstream(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "has no upstream branch") || strings.Contains(msg, "--set-upstream")
}

// classifyAndWrap maps a git subprocess failure to its apperr.Kind, with the
// remote URL (if any) sanitized before it ever reaches a log line or
// surfaced error string.
func classifyAndWrap(err error, op, remoteURL string) error {
	msg := SanitizeRemoteURL(err.Error())
	kind := apperr.Internal
	switch {
	case strings.Contains(msg, "Authentication failed"),
		strings.Contains(msg, "could not read Username"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "Permission denied"):
		kind = apperr.GitAuthMissing
	case strings.Contains(msg, "non-fast-forward"),
		strings.Contains(msg, "rejected"),
		strings.Contains(msg, "diverged"),
		strings.Contains(msg, "Not possible to fast-forward"):
		kind = apperr.GitConflict
	case strings.Contains(op, "push"):
		kind = apperr.PushFailed
	}
	return apperr.Newf(kind, "git %s: %s", op, msg)
}
