package app

import (
	"log/slog"

	"github.com/vairlabs/vair-api/internal/avatar"
	"github.com/vairlabs/vair-api/internal/config"
	"github.com/vairlabs/vair-api/internal/heygen"
	"github.com/vairlabs/vair-api/internal/httpapi"
	"github.com/vairlabs/vair-api/internal/observability"
	"github.com/vairlabs/vair-api/internal/session"
)

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Store
	Upstream     *heygen.Client
	Orchestrator *avatar.Orchestrator
	Metrics      *observability.Metrics
}

// Build wires the session store, upstream client, orchestrator and HTTP API.
func Build(cfg config.Config, logger *slog.Logger) *BuildResult {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	sessions := session.NewStore(cfg.SessionTTL)
	sessions.SetEvictHook(func(sess *session.Session) {
		logger.Info("session expired", "local_session_id", sess.LocalID)
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.Count()))
	})

	upstream := heygen.NewClient(cfg.HeyGenBaseURL, cfg.HeyGenAPIKey, cfg.UpstreamTimeout, logger, metrics)

	orchestrator := avatar.New(sessions, upstream, avatar.BrowserViewer{}, logger, metrics, avatar.Options{
		DefaultAvatarID: cfg.DefaultAvatarID,
		DefaultQuality:  cfg.DefaultQuality,
		ViewerBaseURL:   cfg.ViewerBaseURL,
	})

	api := httpapi.New(cfg, orchestrator, logger)

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Sessions:     sessions,
		Upstream:     upstream,
		Orchestrator: orchestrator,
		Metrics:      metrics,
	}
}
