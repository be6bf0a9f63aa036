package gitremote

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
)

// MergeState is what FindMergedPR reports back for a session's branch.
type MergeState struct {
	Merged   bool
	MergedAt time.Time
	PRNumber int
	PRURL    string
}

// FindMergedPR lists pull requests whose head is owner:branch, sorted by
// update time descending, and returns the first one with a non-null
// merged_at. It is used by list_sessions to refresh merge state for
// sessions that haven't recorded one yet; callers are expected to log and
// ignore the error rather than fail the whole listing.
func FindMergedPR(ctx context.Context, client *github.Client, owner, repo, branch string) (MergeState, error) {
	opts := &github.PullRequestListOptions{
		State:       "all",
		Head:        owner + ":" + branch,
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: 20},
	}
	prs, _, err := client.PullRequests.List(ctx, owner, repo, opts)
	if err != nil {
		return MergeState{}, apperr.Wrap(apperr.Internal, err, "list pull requests by head")
	}
	for _, pr := range prs {
		if pr.MergedAt == nil {
			continue
		}
		return MergeState{
			Merged:   true,
			MergedAt: pr.GetMergedAt().Time,
			PRNumber: pr.GetNumber(),
			PRURL:    pr.GetHTMLURL(),
		}, nil
	}
	return MergeState{}, nil
}

// CommitURL builds the web URL for a commit on a tracked repository,
// independent of whatever form the local git remote happens to store.
func CommitURL(baseURL, owner, repo, sha string) string {
	base := baseURL
	if base == "" {
		base = "https://github.com"
	}
	return fmt.Sprintf("%s/%s/%s/commit/%s", base, owner, repo, sha)
}
