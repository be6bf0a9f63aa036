// Command server runs the preview and session control plane: it wires the
// container engine, git operator, session database provisioner, and
// relational store into the chi-routed HTTP surface defined in
// internal/httpapi.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/filopedraz/kosuke-core-sub005/internal/activity"
	"github.com/filopedraz/kosuke-core-sub005/internal/config"
	"github.com/filopedraz/kosuke-core-sub005/internal/containerdriver"
	"github.com/filopedraz/kosuke-core-sub005/internal/dbprovision"
	"github.com/filopedraz/kosuke-core-sub005/internal/domain"
	"github.com/filopedraz/kosuke-core-sub005/internal/gitops"
	"github.com/filopedraz/kosuke-core-sub005/internal/gitremote"
	"github.com/filopedraz/kosuke-core-sub005/internal/httpapi"
	"github.com/filopedraz/kosuke-core-sub005/internal/preview"
	"github.com/filopedraz/kosuke-core-sub005/internal/router"
	"github.com/filopedraz/kosuke-core-sub005/internal/session"
	"github.com/filopedraz/kosuke-core-sub005/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "orchestrator ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	st, err := store.Open(ctx, cfg.ControlPlaneDSN, cfg.ControlPlaneDBPool)
	if err != nil {
		logger.Fatalf("control plane store: %v", err)
	}
	defer st.Close()

	dockerClient, err := containerdriver.NewClient()
	if err != nil {
		logger.Fatalf("container engine client: %v", err)
	}
	defer dockerClient.Close()

	adapter, err := router.New(cfg)
	if err != nil {
		logger.Fatalf("router adapter: %v", err)
	}

	gitOperator := gitops.NewOperator(cfg.ProjectsBasePath)
	provisioner := dbprovision.NewProvisioner(cfg.AdminDSN(), cfg)

	// A typed-nil *mergeProbeAdapter must never be handed to NewManager
	// directly: boxed in the session.MergeProbe interface it would compare
	// non-nil, and every merge-state call would panic on a nil receiver.
	var mergeProbe session.MergeProbe
	if mp := buildMergeProbe(cfg, logger); mp != nil {
		mergeProbe = mp
	}

	sessions := session.NewManager(cfg, st, gitOperator, mergeProbe, nil)
	previewService := preview.NewService(cfg, dockerClient, adapter, sessions)
	// PullSessionBranch restarts an existing preview after new commits land;
	// wire that hook in now that previewService exists (session.Manager took
	// a nil PreviewRestarter above to break the construction cycle).
	sessions = session.NewManager(cfg, st, gitOperator, mergeProbe, previewService)

	activityService := activity.NewService(st)

	api := httpapi.New(st, previewService, sessions, provisioner, activityService, logger)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // the Activity Stream holds connections open indefinitely
	}

	logger.Printf("listening on %s", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

// mergeProbeAdapter satisfies session.MergeProbe by resolving a single
// process-wide GitHub App installation to a client and delegating to
// gitremote.FindMergedPR. Multi-installation routing (one installation per
// org) would need a persisted org_id → installation_id mapping this
// control plane doesn't model yet; see DESIGN.md.
type mergeProbeAdapter struct {
	clients        *gitremote.AppClientCache
	installationID int64
}

func (m *mergeProbeAdapter) FindMergedPR(ctx context.Context, project domain.Project, branch string) (domain.MergeInfo, error) {
	client, err := m.clients.Get(m.installationID)
	if err != nil {
		return domain.MergeInfo{}, err
	}
	state, err := gitremote.FindMergedPR(ctx, client, project.RepoOwner, project.RepoName, branch)
	if err != nil {
		return domain.MergeInfo{}, err
	}
	return domain.MergeInfo{
		Merged:   state.Merged,
		MergedAt: state.MergedAt,
		PRNumber: state.PRNumber,
		PRURL:    state.PRURL,
	}, nil
}

// buildMergeProbe wires a merge probe only when a GitHub App is configured;
// otherwise session.Manager runs with merge-state refresh disabled, which
// it tolerates by design (see session.NewManager's doc comment).
func buildMergeProbe(cfg *config.Config, logger *log.Logger) *mergeProbeAdapter {
	if cfg.GitHubAppID == 0 || cfg.GitHubAppInstallationID == 0 {
		logger.Printf("github app not configured, merge-state refresh disabled")
		return nil
	}
	keyPEM, err := os.ReadFile(cfg.GitHubAppPrivateKeyPath)
	if err != nil {
		logger.Printf("github app private key unreadable, merge-state refresh disabled: %v", err)
		return nil
	}
	app, err := gitremote.NewApp(cfg.GitHubAppID, keyPEM, cfg.GitHubAppSlug, cfg.GitHubAppBaseURL)
	if err != nil {
		logger.Printf("github app init failed, merge-state refresh disabled: %v", err)
		return nil
	}
	return &mergeProbeAdapter{clients: gitremote.NewAppClientCache(app), installationID: cfg.GitHubAppInstallationID}
}
