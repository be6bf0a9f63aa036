// Package containerdriver is a thin, typed wrapper over a container engine
// (Docker Engine API) implementing component C3 of the preview orchestrator:
// create, start, stop, remove, inspect, restart, and list-by-label, all
// addressed by deterministic container name or label filter.
package containerdriver

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
)

// Client wraps the Docker Engine API client with the narrow surface the
// preview orchestrator needs.
type Client struct {
	api *client.Client
}

// NewClient connects to the local container engine, trying the standard
// Docker socket first and falling back to a Colima/Docker-Desktop-style
// auto-detected host when DOCKER_HOST isn't explicitly set.
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, apperr.Wrap(apperr.EngineUnavailable, err, "create docker client")
	}
	if pingErr := pingClient(cli); pingErr == nil {
		return &Client{api: cli}, nil
	} else if os.Getenv("DOCKER_HOST") != "" {
		_ = cli.Close()
		return nil, apperr.Wrap(apperr.EngineUnavailable, pingErr, "ping docker engine")
	}
	_ = cli.Close()
	if host, ok := AutoDockerHost(); ok {
		alt, altErr := client.NewClientWithOpts(client.WithHost(host), client.WithAPIVersionNegotiation())
		if altErr == nil {
			if pingErr := pingClient(alt); pingErr == nil {
				return &Client{api: alt}, nil
			}
			_ = alt.Close()
		}
	}
	return nil, apperr.New(apperr.EngineUnavailable, "no reachable container engine")
}

func pingClient(cli *client.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := cli.Ping(ctx)
	return err
}

// Close releases the underlying engine connection.
func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}

// EnsureNetwork creates the named bridge network if it doesn't already
// exist, returning its id either way.
func (c *Client) EnsureNetwork(ctx context.Context, name string, labels map[string]string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", apperr.New(apperr.BadRequest, "network name required")
	}
	args := filters.NewArgs()
	args.Add("name", name)
	list, err := c.api.NetworkList(ctx, types.NetworkListOptions{Filters: args})
	if err != nil {
		return "", translateEngineErr(err, name)
	}
	for _, item := range list {
		if item.Name == name {
			return item.ID, nil
		}
	}
	resp, err := c.api.NetworkCreate(ctx, name, types.NetworkCreate{
		CheckDuplicate: true,
		Driver:         "bridge",
		Labels:         labels,
	})
	if err != nil {
		return "", translateEngineErr(err, name)
	}
	return resp.ID, nil
}

// ContainerByName inspects a container addressed by its deterministic name.
// Returns ("", nil, nil) when the container doesn't exist.
func (c *Client) ContainerByName(ctx context.Context, name string) (string, *types.ContainerJSON, error) {
	if strings.TrimSpace(name) == "" {
		return "", nil, apperr.New(apperr.BadRequest, "container name required")
	}
	info, err := c.api.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", nil, nil
		}
		return "", nil, translateEngineErr(err, name)
	}
	return info.ID, &info, nil
}

// ContainerByLabel performs deterministic discovery of the preview container
// for a (project_id, session_id) pair via label filtering, preferring a
// running container over an exited one when more than one matches.
func (c *Client) ContainerByLabel(ctx context.Context, labels map[string]string) (string, *types.ContainerJSON, error) {
	list, err := c.ListByLabel(ctx, labels)
	if err != nil {
		return "", nil, err
	}
	if len(list) == 0 {
		return "", nil, nil
	}
	selected := list[0]
	for _, item := range list {
		if item.State == "running" {
			selected = item
			break
		}
	}
	info, err := c.api.ContainerInspect(ctx, selected.ID)
	if err != nil {
		return "", nil, translateEngineErr(err, selected.ID)
	}
	return info.ID, &info, nil
}

// ListByLabel lists all containers (running or not) matching every given
// label, deterministically.
func (c *Client) ListByLabel(ctx context.Context, labels map[string]string) ([]types.Container, error) {
	args := filters.NewArgs()
	for key, val := range labels {
		if key == "" || val == "" {
			continue
		}
		args.Add("label", key+"="+val)
	}
	list, err := c.api.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, translateEngineErr(err, "")
	}
	return list, nil
}

// CreateContainer creates (but does not start) a container from the given
// spec pieces.
func (c *Client) CreateContainer(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig, name string) (string, error) {
	resp, err := c.api.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", apperr.Wrap(apperr.NotFound, err, "create container: image not found").WithResource(name)
		}
		if isConflictErr(err) {
			return "", apperr.Wrap(apperr.Conflict, err, "create container: name already in use").WithResource(name)
		}
		return "", translateEngineErr(err, name)
	}
	return resp.ID, nil
}

// StartContainer starts a previously created container.
func (c *Client) StartContainer(ctx context.Context, containerID string) error {
	if strings.TrimSpace(containerID) == "" {
		return apperr.New(apperr.BadRequest, "container id required")
	}
	if err := c.api.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return translateEngineErr(err, containerID)
	}
	return nil
}

// StopContainer stops a container by name or id, sending SIGTERM and
// escalating to SIGKILL after grace elapses. Idempotent: a container that
// does not exist is treated as already stopped.
func (c *Client) StopContainer(ctx context.Context, nameOrID string, grace time.Duration) error {
	if strings.TrimSpace(nameOrID) == "" {
		return apperr.New(apperr.BadRequest, "container name required")
	}
	seconds := int(grace.Seconds())
	err := c.api.ContainerStop(ctx, nameOrID, container.StopOptions{Timeout: &seconds})
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return translateEngineErr(err, nameOrID)
	}
	return nil
}

// RemoveContainer removes a container by name or id. Idempotent: a missing
// container is treated as success.
func (c *Client) RemoveContainer(ctx context.Context, nameOrID string, force bool) error {
	if strings.TrimSpace(nameOrID) == "" {
		return apperr.New(apperr.BadRequest, "container name required")
	}
	err := c.api.ContainerRemove(ctx, nameOrID, container.RemoveOptions{Force: force, RemoveVolumes: true})
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return translateEngineErr(err, nameOrID)
	}
	return nil
}

// RestartContainer restarts a container in place, preserving its identity
// (name, labels, mounts).
func (c *Client) RestartContainer(ctx context.Context, nameOrID string, timeout time.Duration) error {
	if strings.TrimSpace(nameOrID) == "" {
		return apperr.New(apperr.BadRequest, "container id required")
	}
	seconds := int(timeout.Seconds())
	if err := c.api.ContainerRestart(ctx, nameOrID, container.StopOptions{Timeout: &seconds}); err != nil {
		return translateEngineErr(err, nameOrID)
	}
	return nil
}

// HostPortFor returns the host port bound to the given container port, used
// by the port-mode router to recover a preview's URL from an inspect
// payload.
func (c *Client) HostPortFor(info *types.ContainerJSON, containerPort int, protocol string) (string, bool) {
	if info == nil || info.NetworkSettings == nil {
		return "", false
	}
	if protocol == "" {
		protocol = "tcp"
	}
	key := nat.Port(portKey(containerPort, protocol))
	bindings, ok := info.NetworkSettings.Ports[key]
	if !ok {
		return "", false
	}
	for _, binding := range bindings {
		if strings.TrimSpace(binding.HostPort) != "" {
			return binding.HostPort, true
		}
	}
	return "", false
}

func portKey(port int, protocol string) string {
	return itoa(port) + "/" + protocol
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func isConflictErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Conflict")
}

func translateEngineErr(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.Timeout, err, "container engine call timed out").WithResource(resource)
	}
	if errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.Cancelled, err, "container engine call cancelled").WithResource(resource)
	}
	if client.IsErrNotFound(err) {
		return apperr.Wrap(apperr.NotFound, err, "container resource not found").WithResource(resource)
	}
	if client.IsErrConnectionFailed(err) {
		return apperr.Wrap(apperr.EngineUnavailable, err, "container engine unavailable").WithResource(resource)
	}
	return apperr.Wrap(apperr.Internal, err, "container engine error").WithResource(resource)
}
