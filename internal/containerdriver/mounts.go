package containerdriver

import (
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/mount"
)

// WorkspaceMountPlan is the single-container analogue of the teacher's
// multi-member mount plan: one host workspace directory bound into one
// container, instead of a primary-plus-mirror pair shared by an actor and a
// critic.
type WorkspaceMountPlan struct {
	WorkspaceHost string
	MountTarget   string
}

// BuildWorkspaceMounts binds the session's host workspace directory into the
// preview container.
func BuildWorkspaceMounts(plan WorkspaceMountPlan) []mount.Mount {
	host := filepath.Clean(strings.TrimSpace(plan.WorkspaceHost))
	if host == "" || !strings.HasPrefix(host, "/") {
		return nil
	}
	target := filepath.ToSlash(strings.TrimSpace(plan.MountTarget))
	if target == "" || !strings.HasPrefix(target, "/") {
		target = "/workspace"
	}
	return []mount.Mount{{
		Type:   mount.TypeBind,
		Source: host,
		Target: target,
	}}
}
