package containerdriver

import (
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
)

// Labels attached to every preview container, used by ListByLabel /
// ContainerByLabel to discover the single container owned by a session.
const (
	LabelApp       = "app"
	LabelProjectID = "kosuke.project_id"
	LabelSessionID = "kosuke.session_id"
)

const previewAppLabel = "kosuke-preview"

// RunOptions describes everything needed to materialize a preview container
// run spec for a single (project_id, session_id).
type RunOptions struct {
	Name       string
	Image      string
	WorkingDir string
	Env        []string
	ProjectID  string
	SessionID  string

	WorkspaceHost string
	WorkspaceDir  string // mount target inside the container, e.g. "/workspace"

	Network       string
	NetworkAlias  string
	ContainerPort int // port the app listens on inside the container
	HostPort      int // 0 lets the engine pick a free host port (port mode)
	PublishOnHost bool
	ExtraMounts   []mount.Mount
}

// BuildRunSpec renders the Docker Engine API structs for a single preview
// container from RunOptions, the single-container analogue of a two-member
// spec builder: one image, one set of mounts, one set of labels.
func BuildRunSpec(opts RunOptions) (*container.Config, *container.HostConfig, *network.NetworkingConfig, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return nil, nil, nil, apperr.New(apperr.BadRequest, "container name required")
	}
	if strings.TrimSpace(opts.Image) == "" {
		return nil, nil, nil, apperr.New(apperr.BadRequest, "preview image required")
	}
	if strings.TrimSpace(opts.WorkspaceHost) == "" {
		return nil, nil, nil, apperr.New(apperr.BadRequest, "workspace host path required")
	}
	workspaceDir := opts.WorkspaceDir
	if workspaceDir == "" {
		workspaceDir = "/workspace"
	}
	networkName := opts.Network
	if networkName == "" {
		networkName = "kosuke-preview"
	}

	labels := map[string]string{
		LabelApp:       previewAppLabel,
		LabelProjectID: opts.ProjectID,
		LabelSessionID: opts.SessionID,
	}

	var exposed nat.PortSet
	var bindings nat.PortMap
	if opts.ContainerPort > 0 {
		key := nat.Port(fmt.Sprintf("%d/tcp", opts.ContainerPort))
		exposed = nat.PortSet{key: struct{}{}}
		if opts.PublishOnHost {
			hostPort := ""
			if opts.HostPort > 0 {
				hostPort = fmt.Sprintf("%d", opts.HostPort)
			}
			bindings = nat.PortMap{key: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: hostPort}}}
		}
	}

	cfg := &container.Config{
		Image:        opts.Image,
		WorkingDir:   opts.WorkingDir,
		Env:          opts.Env,
		Labels:       labels,
		ExposedPorts: exposed,
	}
	if cfg.WorkingDir == "" {
		cfg.WorkingDir = workspaceDir
	}

	mounts := BuildWorkspaceMounts(WorkspaceMountPlan{
		WorkspaceHost: opts.WorkspaceHost,
		MountTarget:   workspaceDir,
	})
	mounts = append(mounts, opts.ExtraMounts...)

	hostCfg := &container.HostConfig{
		RestartPolicy: container.RestartPolicy{Name: "unless-stopped"},
		Mounts:        mounts,
		PortBindings:  bindings,
	}

	netCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			networkName: {Aliases: []string{aliasOrName(opts.NetworkAlias, opts.Name)}},
		},
	}

	return cfg, hostCfg, netCfg, nil
}

func aliasOrName(alias, name string) string {
	if strings.TrimSpace(alias) != "" {
		return alias
	}
	return name
}
