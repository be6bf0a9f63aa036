package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
	"github.com/filopedraz/kosuke-core-sub005/internal/domain"
)

// GetProject loads a project by its opaque id.
func (s *Store) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, org_id, creator_id, repo_owner, repo_name, default_branch, archived
		FROM projects WHERE id = $1`, projectID)

	var p domain.Project
	if err := row.Scan(&p.ID, &p.OrgID, &p.CreatorID, &p.RepoOwner, &p.RepoName, &p.DefaultBranch, &p.Archived); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Project{}, apperr.New(apperr.NotFound, "project not found").WithResource(projectID)
		}
		return domain.Project{}, apperr.Wrap(apperr.Internal, err, "query project")
	}
	return p, nil
}
