// Package gateway is the HTTP surface of the Nova Gateway.
//
// DESIGN: One Gateway wires the whole request path together:
//
//	client → middleware → handler → hook pipeline → router → upstream
//
// New() builds every collaborator from configuration; Start()/Shutdown()
// manage the http.Server lifecycle; Reload() swaps the deployment table of
// the running router without dropping in-flight requests.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/remodlai/nova-gateway/internal/config"
	"github.com/remodlai/nova-gateway/internal/hooks"
	"github.com/remodlai/nova-gateway/internal/hooks/builtin"
	"github.com/remodlai/nova-gateway/internal/monitoring"
	"github.com/remodlai/nova-gateway/internal/pipeline"
	"github.com/remodlai/nova-gateway/internal/router"
	"github.com/remodlai/nova-gateway/internal/upstream"
)

// Version is stamped by the build; the health endpoint reports it.
var Version = "dev"

// Gateway is the HTTP server and its wired collaborators.
type Gateway struct {
	cfg    *config.Config
	server *http.Server

	logger        *monitoring.Logger
	requestLogger *monitoring.RequestLogger
	metrics       *monitoring.MetricsCollector
	telemetry     *monitoring.Tracker
	alerts        *monitoring.AlertManager

	registry *hooks.Registry
	pipeline *pipeline.Pipeline
	notifier *pipeline.Notifier
	router   *router.Router
	upstream *upstream.Client

	rateLimiter *rateLimiter
	startedAt   time.Time
}

// New builds a gateway from validated configuration.
func New(cfg *config.Config) (*Gateway, error) {
	logger := monitoring.New(monitoring.LoggerConfig{
		Level:  cfg.Monitoring.LogLevel,
		Format: cfg.Monitoring.LogFormat,
		Output: cfg.Monitoring.LogOutput,
	})

	metrics := monitoring.NewMetricsCollector()

	telemetry, err := monitoring.NewTracker(monitoring.TelemetryConfig{
		Enabled:     cfg.Monitoring.TelemetryEnabled,
		LogPath:     cfg.Monitoring.TelemetryPath,
		LogToStdout: cfg.Monitoring.LogToStdout,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	alerts := monitoring.NewAlertManager(logger, monitoring.AlertConfig{
		HighLatencyThreshold: cfg.Monitoring.HighLatencyThreshold.Std(),
		WebhookURL:           cfg.Monitoring.AlertWebhookURL,
		WebhookMinInterval:   cfg.Monitoring.AlertWebhookMinInterval.Std(),
	})

	registry, err := builtin.BuildRegistry(cfg.Hooks, builtin.Deps{Metrics: metrics})
	if err != nil {
		return nil, fmt.Errorf("hooks: %w", err)
	}

	rt, err := router.New(cfg.Router, cfg.Models)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	notifier := pipeline.NewNotifier(registry, 0)

	g := &Gateway{
		cfg:           cfg,
		logger:        logger,
		requestLogger: monitoring.NewRequestLogger(logger),
		metrics:       metrics,
		telemetry:     telemetry,
		alerts:        alerts,
		registry:      registry,
		pipeline:      pipeline.New(registry, notifier, metrics),
		notifier:      notifier,
		router:        rt,
		upstream:      upstream.NewClient(),
		startedAt:     time.Now(),
	}

	if cfg.Server.RateLimit.Enabled {
		g.rateLimiter = newRateLimiter(cfg.Server.RateLimit.RequestsPerMinute, cfg.Server.RateLimit.Burst)
	}

	g.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      g.buildHandler(),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	return g, nil
}

// buildHandler assembles routes and the middleware chain. Middleware order,
// outermost first: panic recovery, rate limit, logging, security.
func (g *Gateway) buildHandler() http.Handler {
	mux := http.NewServeMux()

	for path, callType := range callTypeRoutes {
		mux.Handle(path, g.handleCall(callType))
	}
	mux.HandleFunc("/health", g.handleHealth)
	mux.Handle("/metrics", g.metrics.Handler())

	var handler http.Handler = mux
	handler = g.security(handler)
	handler = g.loggingMiddleware(handler)
	handler = g.rateLimit(handler)
	handler = g.panicRecovery(handler)
	return handler
}

// Handler returns the fully assembled HTTP handler, middleware included.
// Useful for mounting the gateway under an existing server.
func (g *Gateway) Handler() http.Handler {
	return g.server.Handler
}

// Start runs the HTTP server until Shutdown.
func (g *Gateway) Start() error {
	log.Info().
		Str("addr", g.server.Addr).
		Str("strategy", g.router.Strategy()).
		Int("deployments", g.router.Registry().Len()).
		Int("hooks", g.registry.Len()).
		Msg("gateway_listening")
	return g.server.ListenAndServe()
}

// Shutdown stops the server and releases every collaborator: in-flight
// requests drain first, then the failure notifier, telemetry writer, router
// stores and closable hooks.
func (g *Gateway) Shutdown(ctx context.Context) error {
	err := g.server.Shutdown(ctx)

	g.notifier.Stop()
	if cerr := g.telemetry.Close(); cerr != nil {
		log.Warn().Err(cerr).Msg("telemetry_close_failed")
	}
	if cerr := g.router.Close(); cerr != nil {
		log.Warn().Err(cerr).Msg("router_close_failed")
	}
	for _, h := range g.registry.Hooks() {
		if closer, ok := h.(io.Closer); ok {
			if cerr := closer.Close(); cerr != nil {
				log.Warn().Err(cerr).Str("hook", h.Name()).Msg("hook_close_failed")
			}
		}
	}
	return err
}

// Reload swaps the deployment table from a freshly loaded configuration.
// Strategy and hook changes require a restart; only the model pool reloads.
func (g *Gateway) Reload(cfg *config.Config) error {
	return g.router.Reload(cfg.Models)
}

// handleHealth reports liveness plus a routing summary.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	reg := g.router.Registry()
	g.writeJSON(w, http.StatusOK, healthStatus{
		Status:        "ok",
		Version:       Version,
		UptimeSeconds: int64(time.Since(g.startedAt).Seconds()),
		Models:        reg.Models(),
		Deployments:   reg.Len(),
		Strategy:      g.router.Strategy(),
		Hooks:         g.registry.Len(),
	})
}
