// Package router implements the Router Adapter: a pluggable strategy that
// decides how a preview container becomes reachable, and recovers that same
// URL deterministically from an already-running container so a restart
// never changes a preview's address.
package router

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/docker/docker/api/types"

	"github.com/filopedraz/kosuke-core-sub005/internal/config"
	"github.com/filopedraz/kosuke-core-sub005/internal/containerdriver"
)

// Mode names a router strategy.
type Mode string

const (
	ModePort  Mode = "port"
	ModeProxy Mode = "proxy"
)

// PreviewContainerPort is the port the preview app listens on inside every
// container, regardless of router mode.
const PreviewContainerPort = 3000

const (
	labelProjectID = containerdriver.LabelProjectID
	labelSessionID = containerdriver.LabelSessionID
	labelBranch    = "kosuke.branch"
	labelHostRule  = "kosuke.route.host_rule"
	labelTLS       = "kosuke.route.tls_resolver"
	labelPort      = "kosuke.route.internal_port"
	labelNetwork   = "kosuke.route.network"
)

// RouteInfo is what PrepareRun returns for a new container. StartPreview
// surfaces its URL; GetPreviewStatus does not keep it and recovers the URL
// through URLFromContainer instead.
type RouteInfo struct {
	URL       string
	Mode      Mode
	Port      int    // set in port mode
	Subdomain string // set in proxy mode
	Labels    map[string]string
}

// Adapter is the capability set every router strategy implements. It is
// passed into the preview service as a value — no inheritance, no type
// switch at the call site.
type Adapter interface {
	Mode() Mode
	PrepareRun(projectID, sessionID, containerName, branch string) (RouteInfo, error)
	URLFromContainer(info *types.ContainerJSON) (string, bool)
}

// New builds the adapter named by cfg.RouterMode.
func New(cfg *config.Config) (Adapter, error) {
	switch cfg.RouterMode {
	case config.RouterModePort:
		return &portAdapter{cfg: cfg}, nil
	case config.RouterModeProxy:
		return &proxyAdapter{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("router: unknown mode %q", cfg.RouterMode)
	}
}

type portAdapter struct {
	cfg *config.Config
}

func (a *portAdapter) Mode() Mode { return ModePort }

// PrepareRun draws a uniformly random port in [start, end]. The Container
// Driver asks the engine to publish on that exact host port; a port that is
// already bound makes the container run fail, and the preview service returns
// that error without drawing another port.
func (a *portAdapter) PrepareRun(projectID, sessionID, containerName, branch string) (RouteInfo, error) {
	port := randomPort(a.cfg.PortRangeStart, a.cfg.PortRangeEnd)
	labels := map[string]string{
		labelProjectID: projectID,
		labelSessionID: sessionID,
		labelBranch:    branch,
	}
	return RouteInfo{
		URL:    fmt.Sprintf("http://localhost:%d", port),
		Mode:   ModePort,
		Port:   port,
		Labels: labels,
	}, nil
}

func (a *portAdapter) URLFromContainer(info *types.ContainerJSON) (string, bool) {
	hostPort, ok := hostPortFor(info, PreviewContainerPort)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("http://localhost:%s", hostPort), true
}

func randomPort(start, end int) int {
	if end <= start {
		return start
	}
	return start + rand.Intn(end-start+1)
}

type proxyAdapter struct {
	cfg *config.Config
}

func (a *proxyAdapter) Mode() Mode { return ModeProxy }

// PrepareRun computes the subdomain per the naming rules in config.Subdomain
// and returns the labels that declare the proxy route to whatever ingress
// controller watches container labels.
func (a *proxyAdapter) PrepareRun(projectID, sessionID, containerName, branch string) (RouteInfo, error) {
	subdomain := a.cfg.Subdomain(projectID, sessionID)
	labels := map[string]string{
		labelProjectID: projectID,
		labelSessionID: sessionID,
		labelBranch:    branch,
		labelHostRule:  "Host(`" + subdomain + "`)",
		labelTLS:       "letsencrypt",
		labelPort:      fmt.Sprintf("%d", PreviewContainerPort),
		labelNetwork:   a.cfg.PreviewNetwork,
	}
	return RouteInfo{
		URL:       "https://" + subdomain,
		Mode:      ModeProxy,
		Subdomain: subdomain,
		Labels:    labels,
	}, nil
}

// URLFromContainer re-derives the subdomain from the kosuke.project_id and
// kosuke.session_id labels on the inspected container, so URL recovery is
// deterministic and survives a restart without re-running PrepareRun.
func (a *proxyAdapter) URLFromContainer(info *types.ContainerJSON) (string, bool) {
	if info == nil || info.Config == nil {
		return "", false
	}
	projectID := strings.TrimSpace(info.Config.Labels[labelProjectID])
	sessionID := strings.TrimSpace(info.Config.Labels[labelSessionID])
	if projectID == "" || sessionID == "" {
		return "", false
	}
	subdomain := a.cfg.Subdomain(projectID, sessionID)
	return "https://" + subdomain, true
}

func hostPortFor(info *types.ContainerJSON, containerPort int) (string, bool) {
	var c containerdriver.Client
	return c.HostPortFor(info, containerPort, "tcp")
}
