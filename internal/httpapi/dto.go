package httpapi

import (
	"github.com/filopedraz/kosuke-core-sub005/internal/domain"
	"github.com/filopedraz/kosuke-core-sub005/internal/preview"
	"github.com/filopedraz/kosuke-core-sub005/internal/session"
)

// previewStatusResponse is get_preview_status / start_preview's output.
type previewStatusResponse struct {
	Running      bool   `json:"running"`
	IsResponding bool   `json:"is_responding"`
	URL          string `json:"url,omitempty"`
}

func toPreviewStatusResponse(s preview.Status) previewStatusResponse {
	return previewStatusResponse{Running: s.Running, IsResponding: s.IsResponding, URL: s.URL}
}

type successResponse struct {
	Success bool `json:"success"`
}

type pullSessionBranchResponse struct {
	Success            bool           `json:"success"`
	ContainerRestarted bool           `json:"container_restarted"`
	PullResult         pullResultWire `json:"pullResult"`
}

type pullResultWire struct {
	Changed        bool   `json:"changed"`
	CommitsPulled  int    `json:"commitsPulled"`
	Message        string `json:"message"`
	PreviousCommit string `json:"previousCommit,omitempty"`
	NewCommit      string `json:"newCommit,omitempty"`
	BranchName     string `json:"branchName"`
}

func toPullSessionBranchResponse(r session.PullResult) pullSessionBranchResponse {
	return pullSessionBranchResponse{
		Success:            true,
		ContainerRestarted: r.ContainerRestarted,
		PullResult: pullResultWire{
			Changed:        r.Changed,
			CommitsPulled:  r.CommitsPulled,
			Message:        r.Message,
			PreviousCommit: r.PreviousCommit,
			NewCommit:      r.NewCommit,
			BranchName:     r.BranchName,
		},
	}
}

// commitResponse is commit_session_changes's output: null when the working
// tree had nothing to commit.
type commitResponse struct {
	SHA          string   `json:"sha"`
	Message      string   `json:"message"`
	URL          string   `json:"url"`
	FilesChanged []string `json:"filesChanged,omitempty"`
}

func toCommitResponse(c *domain.Commit) *commitResponse {
	if c == nil {
		return nil
	}
	return &commitResponse{SHA: c.SHA, Message: c.Message, URL: c.URL, FilesChanged: c.FilesChanged}
}

type queryResponse struct {
	Columns  []string         `json:"columns"`
	RowCount int              `json:"row_count"`
	Data     []map[string]any `json:"data"`
}
