package containerdriver

import (
	"context"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
)

// State is the engine-observed lifecycle state of a single container,
// independent of the preview-level state machine in the preview package.
type State string

const (
	StateAbsent  State = "absent"
	StateCreated State = "created"
	StateRunning State = "running"
	StateExited  State = "exited"
)

// Inspection is the narrow view of container state the preview service
// needs: whether it exists, whether it's running, and its id/ports.
type Inspection struct {
	ID    string
	State State
	Info  *types.ContainerJSON
}

// EnsureImage pulls image if it isn't already present locally. Pulls are
// best-effort idempotent: a locally cached image is left untouched.
func (c *Client) EnsureImage(ctx context.Context, ref string) error {
	_, _, err := c.api.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return nil
	}
	reader, pullErr := c.api.ImagePull(ctx, ref, image.PullOptions{})
	if pullErr != nil {
		return apperr.Wrap(apperr.EngineUnavailable, pullErr, "pull preview image").WithResource(ref)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

// Inspect resolves a preview container's current state by deterministic
// name, without falling back to label discovery.
func (c *Client) Inspect(ctx context.Context, name string) (Inspection, error) {
	id, info, err := c.ContainerByName(ctx, name)
	if err != nil {
		return Inspection{}, err
	}
	if id == "" {
		return Inspection{State: StateAbsent}, nil
	}
	state := StateCreated
	if info.State != nil {
		if info.State.Running {
			state = StateRunning
		} else if info.State.Status == "exited" {
			state = StateExited
		}
	}
	return Inspection{ID: id, State: state, Info: info}, nil
}

// Run ensures the network exists, creates the container if absent, and
// starts it. If a container with the same name already exists it is reused
// (started if not running) rather than recreated, preserving identity
// across a preview restart.
func (c *Client) Run(ctx context.Context, opts RunOptions) (Inspection, error) {
	existing, err := c.Inspect(ctx, opts.Name)
	if err != nil {
		return Inspection{}, err
	}
	if existing.State == StateRunning {
		return existing, nil
	}
	if existing.State == StateCreated || existing.State == StateExited {
		if err := c.StartContainer(ctx, existing.ID); err != nil {
			return Inspection{}, err
		}
		return c.Inspect(ctx, opts.Name)
	}

	if _, err := c.EnsureNetwork(ctx, opts.Network, nil); err != nil {
		return Inspection{}, err
	}
	cfg, hostCfg, netCfg, err := BuildRunSpec(opts)
	if err != nil {
		return Inspection{}, err
	}
	id, err := c.CreateContainer(ctx, cfg, hostCfg, netCfg, opts.Name)
	if err != nil {
		return Inspection{}, err
	}
	if err := c.StartContainer(ctx, id); err != nil {
		return Inspection{}, err
	}
	return c.Inspect(ctx, opts.Name)
}

// Stop stops a preview container by name and leaves it present but not
// running, so a subsequent Run restarts rather than recreates it.
func (c *Client) Stop(ctx context.Context, name string, grace time.Duration) error {
	return c.StopContainer(ctx, name, grace)
}

// Remove stops (if needed) and removes a preview container by name,
// releasing its identity entirely.
func (c *Client) Remove(ctx context.Context, name string) error {
	return c.RemoveContainer(ctx, name, true)
}

// Restart restarts a preview container in place, preserving its mounts,
// labels, and name.
func (c *Client) Restart(ctx context.Context, name string, timeout time.Duration) error {
	return c.RestartContainer(ctx, name, timeout)
}

// ListPreviewContainers lists every container carrying the preview app
// label, used by orphan reconciliation.
func (c *Client) ListPreviewContainers(ctx context.Context) ([]types.Container, error) {
	return c.ListByLabel(ctx, map[string]string{LabelApp: previewAppLabel})
}
