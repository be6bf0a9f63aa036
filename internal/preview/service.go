// Package preview implements the Preview Service (C6): the per-session
// container state machine that turns a session's workspace into a running,
// reachable dev server, and keeps it idempotent across duplicate starts,
// restarts, and stops.
package preview

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/docker/docker/api/types"

	"github.com/filopedraz/kosuke-core-sub005/internal/config"
	"github.com/filopedraz/kosuke-core-sub005/internal/containerdriver"
	"github.com/filopedraz/kosuke-core-sub005/internal/lockmap"
	"github.com/filopedraz/kosuke-core-sub005/internal/router"
)

// WorkspaceEnsurer is the narrow slice of the Session Manager (C7) that
// start_preview needs: make sure the session's working tree exists on disk,
// cloning and branching it if this is the first time.
type WorkspaceEnsurer interface {
	EnsureSessionWorkspace(ctx context.Context, projectID, sessionID, token string) (sessionPath string, err error)
}

// Engine is the slice of the Container Driver (C3) the Preview Service
// needs, accepted as an interface so it can be exercised against a fake in
// tests instead of a live container engine.
type Engine interface {
	ContainerByLabel(ctx context.Context, labels map[string]string) (string, *types.ContainerJSON, error)
	Restart(ctx context.Context, name string, timeout time.Duration) error
	EnsureImage(ctx context.Context, ref string) error
	Run(ctx context.Context, opts containerdriver.RunOptions) (containerdriver.Inspection, error)
	Stop(ctx context.Context, name string, grace time.Duration) error
	Remove(ctx context.Context, name string) error
	Inspect(ctx context.Context, name string) (containerdriver.Inspection, error)
	ListPreviewContainers(ctx context.Context) ([]types.Container, error)
	RemoveContainer(ctx context.Context, nameOrID string, force bool) error
}

const (
	stopGrace     = 10 * time.Second
	restartGrace  = 30 * time.Second
	healthTimeout = 3 * time.Second
)

// Status is what get_preview_status and start_preview/restart return.
type Status struct {
	Exists       bool // a container is present, running or not
	Running      bool
	IsResponding bool
	URL          string
}

// Service orchestrates the preview container state machine for every
// (project_id, session_id) pair, serialized through a keyed lock map.
type Service struct {
	cfg       *config.Config
	client    Engine
	adapter   router.Adapter
	workspace WorkspaceEnsurer
	locks     *lockmap.Map
	health    *http.Client
}

// NewService wires the Preview Service from its collaborators.
func NewService(cfg *config.Config, client Engine, adapter router.Adapter, workspace WorkspaceEnsurer) *Service {
	return &Service{
		cfg:       cfg,
		client:    client,
		adapter:   adapter,
		workspace: workspace,
		locks:     lockmap.New(),
		health:    &http.Client{Timeout: healthTimeout},
	}
}

func (s *Service) labels(projectID, sessionID string) map[string]string {
	return map[string]string{
		containerdriver.LabelProjectID: projectID,
		containerdriver.LabelSessionID: sessionID,
	}
}

// GetPreviewStatus inspects whatever container (if any) is labeled for this
// session, recovers its URL through the router adapter, and probes it for
// health when it's running.
func (s *Service) GetPreviewStatus(ctx context.Context, projectID, sessionID string) (Status, error) {
	_, info, err := s.client.ContainerByLabel(ctx, s.labels(projectID, sessionID))
	if err != nil {
		return Status{}, err
	}
	if info == nil {
		return Status{}, nil
	}

	url, _ := s.adapter.URLFromContainer(info)
	running := info.State != nil && info.State.Running
	if !running {
		return Status{Exists: true, Running: false, URL: url}, nil
	}

	internal := containerInternalURL(info)
	responding := s.probeHealth(ctx, internal)
	return Status{Exists: true, Running: true, IsResponding: responding, URL: url}, nil
}

// StartPreview ensures the session workspace exists, then either restarts an
// already-existing container for this session or creates and runs a new
// one. Duplicate concurrent calls for the same (project_id, session_id)
// converge to a single container.
func (s *Service) StartPreview(ctx context.Context, projectID, sessionID, token string, envVars map[string]string) (Status, error) {
	unlock := s.locks.Lock(lockmap.Key(projectID, sessionID))
	defer unlock()
	return s.startLocked(ctx, projectID, sessionID, token, envVars)
}

func (s *Service) startLocked(ctx context.Context, projectID, sessionID, token string, envVars map[string]string) (Status, error) {
	sessionPath, err := s.workspace.EnsureSessionWorkspace(ctx, projectID, sessionID, token)
	if err != nil {
		return Status{}, err
	}

	containerName := s.cfg.ContainerName(projectID, sessionID)

	if id, info, err := s.client.ContainerByLabel(ctx, s.labels(projectID, sessionID)); err != nil {
		return Status{}, err
	} else if id != "" {
		if err := s.client.Restart(ctx, containerName, restartGrace); err != nil {
			return Status{}, err
		}
		url, _ := s.adapter.URLFromContainer(info)
		return Status{Exists: true, Running: true, URL: url}, nil
	}

	branch := s.cfg.BranchName(sessionID)
	route, err := s.adapter.PrepareRun(projectID, sessionID, containerName, branch)
	if err != nil {
		return Status{}, err
	}

	image := s.selectImage(sessionPath)
	if err := s.client.EnsureImage(ctx, image); err != nil {
		return Status{}, err
	}

	env := s.buildEnv(envVars, projectID, sessionID)

	opts := containerdriver.RunOptions{
		Name:          containerName,
		Image:         image,
		Env:           env,
		ProjectID:     projectID,
		SessionID:     sessionID,
		WorkspaceHost: s.cfg.HostWorkspaceDir + "/" + projectID,
		WorkspaceDir:  "/workspace",
		Network:       s.cfg.PreviewNetwork,
		NetworkAlias:  containerName,
		ContainerPort: router.PreviewContainerPort,
		PublishOnHost: route.Mode == router.ModePort,
		HostPort:      route.Port,
	}

	inspection, err := s.client.Run(ctx, opts)
	if err != nil {
		return Status{}, err
	}

	url := route.URL
	if recovered, ok := s.adapter.URLFromContainer(inspection.Info); ok {
		url = recovered
	}
	return Status{Exists: true, Running: true, URL: url}, nil
}

// StopPreview stops and removes the session's container. Absent is a
// success, not a NotFound error: stop is idempotent.
func (s *Service) StopPreview(ctx context.Context, projectID, sessionID string) error {
	unlock := s.locks.Lock(lockmap.Key(projectID, sessionID))
	defer unlock()

	containerName := s.cfg.ContainerName(projectID, sessionID)
	if err := s.client.Stop(ctx, containerName, stopGrace); err != nil {
		return err
	}
	return s.client.Remove(ctx, containerName)
}

// RestartPreviewContainer restarts the session's container in place,
// falling back to a full start_preview if no container exists yet.
func (s *Service) RestartPreviewContainer(ctx context.Context, projectID, sessionID string) (Status, error) {
	unlock := s.locks.Lock(lockmap.Key(projectID, sessionID))
	defer unlock()

	containerName := s.cfg.ContainerName(projectID, sessionID)
	inspection, err := s.client.Inspect(ctx, containerName)
	if err != nil {
		return Status{}, err
	}
	if inspection.State == containerdriver.StateAbsent {
		return s.startLocked(ctx, projectID, sessionID, "", nil)
	}
	if err := s.client.Restart(ctx, containerName, restartGrace); err != nil {
		return Status{}, err
	}
	inspection, err = s.client.Inspect(ctx, containerName)
	if err != nil {
		return Status{}, err
	}
	url, _ := s.adapter.URLFromContainer(inspection.Info)
	return Status{Exists: true, Running: true, URL: url}, nil
}

func (s *Service) probeHealth(ctx context.Context, internalURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, internalURL+s.cfg.PreviewHealthPath, nil)
	if err != nil {
		return false
	}
	resp, err := s.health.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (s *Service) buildEnv(envVars map[string]string, projectID, sessionID string) []string {
	merged := make(map[string]string, len(envVars)+3)
	for k, v := range envVars {
		merged[k] = v
	}
	if dbName, ok := s.cfg.DBName(projectID, sessionID); ok {
		merged["DATABASE_URL"] = fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
			s.cfg.PostgresUser, s.cfg.PostgresPassword, s.cfg.PostgresHost, s.cfg.PostgresPort, dbName)
	}
	merged["PORT"] = fmt.Sprintf("%d", router.PreviewContainerPort)
	if s.cfg.PreviewResendKey != "" {
		merged["RESEND_API_KEY"] = s.cfg.PreviewResendKey
	}

	env := make([]string, 0, len(merged))
	for k, v := range merged {
		env = append(env, k+"="+v)
	}
	return env
}

// containerInternalURL is the address reachable from the orchestrator's own
// network, independent of whichever public URL the router adapter exposes:
// the container's own network alias on preview_network.
func containerInternalURL(info *types.ContainerJSON) string {
	if info == nil || info.Config == nil {
		return ""
	}
	return fmt.Sprintf("http://%s:%d", strings.TrimPrefix(info.Name, "/"), router.PreviewContainerPort)
}

// ReconcileOrphans removes every container carrying the preview app label
// whose creation time is at least maxAge in the past, running or not; it does
// not look at the session labels. A container whose removal fails is skipped.
// It returns the ids it removed, and is a periodic-housekeeping hook the
// caller is responsible for scheduling.
func (s *Service) ReconcileOrphans(ctx context.Context, maxAge time.Duration) ([]string, error) {
	containers, err := s.client.ListPreviewContainers(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	cutoff := time.Now().Add(-maxAge).Unix()
	for _, c := range containers {
		if c.Created > cutoff {
			continue
		}
		if err := s.client.RemoveContainer(ctx, c.ID, true); err != nil {
			continue
		}
		removed = append(removed, c.ID)
	}
	return removed, nil
}
