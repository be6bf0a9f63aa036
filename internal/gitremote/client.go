// Package gitremote talks to the Git hosting provider: the external
// collaborator that owns repository creation, PR lookup, and commit
// rendering. It builds GitHub App installation-scoped clients and caches
// them for the lifetime of the process.
package gitremote

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v66/github"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
)

// App holds the GitHub App identity the core authenticates as when it needs
// to act on behalf of an installation (PR lookup, branch/commit
// introspection). The App's private key is process-level configuration, not
// a per-session credential: the short-lived tokens the spec describes are
// what installation clients mint per call, never persisted.
type App struct {
	AppID         int64
	PrivateKeyPEM []byte
	BaseURL       string
	Slug          string
}

// NewApp builds an App from its PEM-encoded private key.
func NewApp(appID int64, privateKeyPEM []byte, slug, baseURL string) (*App, error) {
	if len(strings.TrimSpace(string(privateKeyPEM))) == 0 {
		return nil, apperr.New(apperr.BadRequest, "github app private key is empty")
	}
	return &App{
		AppID:         appID,
		PrivateKeyPEM: privateKeyPEM,
		Slug:          slug,
		BaseURL:       strings.TrimRight(baseURL, "/"),
	}, nil
}

// InstallationClient mints a GitHub client authenticated as a specific
// installation. The transport handles token refresh internally; nothing
// about the resulting token is ever written to disk.
func (a *App) InstallationClient(installationID int64) (*github.Client, error) {
	tr, err := ghinstallation.New(http.DefaultTransport, a.AppID, installationID, a.PrivateKeyPEM)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "build installation transport")
	}
	return github.NewClient(&http.Client{Transport: tr}), nil
}

// InstallURL is the link an org visits to install the app.
func (a *App) InstallURL() string {
	return fmt.Sprintf("https://github.com/apps/%s/installations/new", a.Slug)
}

// AppClientCache caches one *github.Client per installation id so repeated
// operations against the same installation don't re-mint a JWT transport on
// every call.
type AppClientCache struct {
	app *App

	mu      sync.Mutex
	clients map[int64]*github.Client
}

// NewAppClientCache builds an empty cache backed by app.
func NewAppClientCache(app *App) *AppClientCache {
	return &AppClientCache{app: app, clients: make(map[int64]*github.Client)}
}

// Get returns the cached client for installationID, building and caching one
// on first use.
func (c *AppClientCache) Get(installationID int64) (*github.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[installationID]; ok {
		return client, nil
	}
	client, err := c.app.InstallationClient(installationID)
	if err != nil {
		return nil, err
	}
	c.clients[installationID] = client
	return client, nil
}
