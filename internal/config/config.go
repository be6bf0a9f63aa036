// Package config loads the process-wide immutable configuration for the
// preview and session orchestrator and derives deterministic resource names
// from (project_id, session_id).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RouterMode selects which Router Adapter strategy the process runs.
type RouterMode string

const (
	RouterModePort  RouterMode = "port"
	RouterModeProxy RouterMode = "proxy"
)

// Config is loaded once at startup and never mutated afterward. Every
// component that needs a setting receives it through its constructor rather
// than reading the environment itself.
type Config struct {
	BunPreviewImage    string
	PythonPreviewImage string

	PortRangeStart int
	PortRangeEnd   int

	RouterMode        RouterMode
	PreviewBaseDomain string

	PreviewNetwork        string
	PreviewResourcePrefix string
	PreviewHealthPath     string

	HostWorkspaceDir string

	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string

	SessionBranchPrefix string
	ProjectsBasePath    string

	PreviewResendKey string // optional: injected into preview containers as RESEND_API_KEY when set

	ListenAddr string

	// GitHub App wiring is optional: when GitHubAppID is 0 the process runs
	// without merge-state refresh (session.Manager's merge probe stays nil).
	GitHubAppID             int64
	GitHubAppPrivateKeyPath string
	GitHubAppSlug           string
	GitHubAppBaseURL        string
	GitHubAppInstallationID int64

	ControlPlaneDSN    string
	ControlPlaneDBPool int32
}

// AdminDSN builds the administrative connection string dbprovision uses to
// create/inspect per-session databases, from the same POSTGRES_* options
// every other component reads.
func (c *Config) AdminDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}

// Load reads every required option from the environment and fails fast if
// any is absent or malformed.
func Load() (*Config, error) {
	cfg := &Config{
		BunPreviewImage:       env("BUN_PREVIEW_IMAGE", ""),
		PythonPreviewImage:    env("PYTHON_PREVIEW_IMAGE", ""),
		RouterMode:            RouterMode(env("ROUTER_MODE", "port")),
		PreviewBaseDomain:     env("PREVIEW_BASE_DOMAIN", ""),
		PreviewNetwork:        env("PREVIEW_NETWORK", ""),
		PreviewResourcePrefix: env("PREVIEW_RESOURCE_PREFIX", ""),
		PreviewHealthPath:     env("PREVIEW_HEALTH_PATH", "/"),
		HostWorkspaceDir:      env("HOST_WORKSPACE_DIR", ""),
		PostgresHost:          env("POSTGRES_HOST", ""),
		PostgresDB:            env("POSTGRES_DB", ""),
		PostgresUser:          env("POSTGRES_USER", ""),
		PostgresPassword:      env("POSTGRES_PASSWORD", ""),
		SessionBranchPrefix:   env("SESSION_BRANCH_PREFIX", "kosuke/chat-"),
		ProjectsBasePath:      env("PROJECTS_BASE_PATH", ""),
		PreviewResendKey:      env("PREVIEW_RESEND_KEY", ""),
		ListenAddr:            env("LISTEN_ADDR", ":8090"),

		GitHubAppPrivateKeyPath: env("GITHUB_APP_PRIVATE_KEY_PATH", ""),
		GitHubAppSlug:           env("GITHUB_APP_SLUG", ""),
		GitHubAppBaseURL:        env("GITHUB_APP_BASE_URL", ""),

		ControlPlaneDSN: env("CONTROL_PLANE_DSN", ""),
	}

	var err error
	if cfg.PortRangeStart, err = envInt("PORT_RANGE_START", 0); err != nil {
		return nil, err
	}
	if cfg.PortRangeEnd, err = envInt("PORT_RANGE_END", 0); err != nil {
		return nil, err
	}
	if cfg.PostgresPort, err = envInt("POSTGRES_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.GitHubAppID, err = envInt64("GITHUB_APP_ID", 0); err != nil {
		return nil, err
	}
	if cfg.GitHubAppInstallationID, err = envInt64("GITHUB_APP_INSTALLATION_ID", 0); err != nil {
		return nil, err
	}
	controlPlanePool, err := envInt("CONTROL_PLANE_DB_POOL", 10)
	if err != nil {
		return nil, err
	}
	cfg.ControlPlaneDBPool = int32(controlPlanePool)

	if missing := cfg.missingRequired(); len(missing) > 0 {
		return nil, fmt.Errorf("config: missing required options: %s", strings.Join(missing, ", "))
	}
	if cfg.RouterMode != RouterModePort && cfg.RouterMode != RouterModeProxy {
		return nil, fmt.Errorf("config: ROUTER_MODE must be %q or %q, got %q", RouterModePort, RouterModeProxy, cfg.RouterMode)
	}
	if cfg.RouterMode == RouterModeProxy && cfg.PreviewBaseDomain == "" {
		return nil, fmt.Errorf("config: PREVIEW_BASE_DOMAIN is required when ROUTER_MODE=proxy")
	}
	if cfg.RouterMode == RouterModePort && cfg.PortRangeStart > cfg.PortRangeEnd {
		return nil, fmt.Errorf("config: PORT_RANGE_START (%d) must be <= PORT_RANGE_END (%d)", cfg.PortRangeStart, cfg.PortRangeEnd)
	}

	return cfg, nil
}

func (c *Config) missingRequired() []string {
	var missing []string
	add := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	add("BUN_PREVIEW_IMAGE", c.BunPreviewImage)
	add("PYTHON_PREVIEW_IMAGE", c.PythonPreviewImage)
	add("PREVIEW_NETWORK", c.PreviewNetwork)
	add("PREVIEW_RESOURCE_PREFIX", c.PreviewResourcePrefix)
	add("HOST_WORKSPACE_DIR", c.HostWorkspaceDir)
	add("POSTGRES_HOST", c.PostgresHost)
	add("POSTGRES_DB", c.PostgresDB)
	add("POSTGRES_USER", c.PostgresUser)
	add("PROJECTS_BASE_PATH", c.ProjectsBasePath)
	add("CONTROL_PLANE_DSN", c.ControlPlaneDSN)
	if c.PortRangeStart == 0 {
		missing = append(missing, "PORT_RANGE_START")
	}
	if c.PortRangeEnd == 0 {
		missing = append(missing, "PORT_RANGE_END")
	}
	return missing
}

func env(key, def string) string {
	if v := os.Getenv(key); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", key, raw)
	}
	return n, nil
}

func envInt64(key string, def int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", key, raw)
	}
	return n, nil
}
