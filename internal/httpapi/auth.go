package httpapi

import (
	"net/http"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
	"github.com/filopedraz/kosuke-core-sub005/internal/domain"
)

// identity is what every handler extracts at the top: the opaque user_id
// the identity provider vouched for, and an optional org_id.
type identity struct {
	UserID string
	OrgID  string
}

// extractIdentity reads the caller's identity off the request. The identity
// provider itself sits upstream of this process (an edge proxy, a gateway);
// this layer trusts the two headers it forwards and never re-verifies a
// token.
func extractIdentity(r *http.Request) (identity, error) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		return identity{}, apperr.New(apperr.Unauthorized, "missing X-User-Id")
	}
	return identity{UserID: userID, OrgID: r.Header.Get("X-Org-Id")}, nil
}

// authorizeProject enforces project.createdBy == user_id, or org membership
// when the project and the caller share a non-empty org_id.
func authorizeProject(id identity, project domain.Project) error {
	if project.CreatorID == id.UserID {
		return nil
	}
	if id.OrgID != "" && project.OrgID != "" && id.OrgID == project.OrgID {
		return nil
	}
	return apperr.New(apperr.Unauthorized, "caller does not own this project").WithResource(project.ID)
}
