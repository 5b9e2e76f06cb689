// Package api is chatflow's HTTP surface (spec §6): inbound webhook
// intake, the minimal admin rule CRUD surface, the sync-groups and
// reprocess operator hooks, health, metrics, and the /events real-time
// channel.
package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/fcamachol/chatflow/pkg/config"
	"github.com/fcamachol/chatflow/pkg/database"
	"github.com/fcamachol/chatflow/pkg/fanout"
	"github.com/fcamachol/chatflow/pkg/metrics"
	"github.com/fcamachol/chatflow/pkg/queue"
	"github.com/fcamachol/chatflow/pkg/recovery"
	"github.com/fcamachol/chatflow/pkg/rules"
	"github.com/fcamachol/chatflow/pkg/webhook"
)

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg           *config.Config
	dbClient      *database.Client
	gw            Gateway
	webhookSecret string

	webhook     *webhook.Adapter
	rules       *rules.Engine
	recovery    *recovery.Sweeper
	workerPool  *queue.WorkerPool
	connManager *fanout.Manager
	groupSyncer GroupSyncer
	metrics     *metrics.Registry
}

// NewServer creates a new API server with Echo v5, wiring every component
// the routes in setupRoutes dispatch to.
func NewServer(
	cfg *config.Config,
	dbClient *database.Client,
	gw Gateway,
	adapter *webhook.Adapter,
	ruleEngine *rules.Engine,
	sweeper *recovery.Sweeper,
	workerPool *queue.WorkerPool,
	connManager *fanout.Manager,
	groupSyncer GroupSyncer,
	metricsRegistry *metrics.Registry,
) *Server {
	e := echo.New()

	s := &Server{
		echo:          e,
		cfg:           cfg,
		dbClient:      dbClient,
		gw:            gw,
		webhookSecret: cfg.Webhook.Secret,
		webhook:       adapter,
		rules:         ruleEngine,
		recovery:      sweeper,
		workerPool:    workerPool,
		connManager:   connManager,
		groupSyncer:   groupSyncer,
		metrics:       metricsRegistry,
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers every route spec §6 names.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	s.echo.GET("/events", s.eventsHandler)

	// Both path shapes spec §6 allows: one webhook per instance, and an
	// optional per-event-type path the provider may post to instead.
	s.echo.POST("/webhook/:instance", s.webhookHandler)
	s.echo.POST("/webhook/:instance/:eventType", s.webhookHandler)

	s.echo.POST("/rules", s.createRuleHandler)
	s.echo.PUT("/rules/:id", s.updateRuleHandler)
	s.echo.DELETE("/rules/:id", s.deleteRuleHandler)

	s.echo.POST("/admin/sync-groups/:instance", s.syncGroupsHandler)
	s.echo.POST("/admin/reprocess", s.reprocessHandler)
}

// Start starts the HTTP server on the given address and blocks until the
// server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener. Used
// by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health by aggregating database reachability,
// worker-pool health, and the realtime connection count. It reports no
// queue depth, processing rate, or error rate.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	if _, err := database.Health(reqCtx, s.dbClient.DB); err != nil {
		status = healthStatusUnhealthy
		checks["database"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
	} else {
		checks["database"] = HealthCheck{Status: healthStatusHealthy}
	}

	if s.workerPool != nil {
		poolHealth := s.workerPool.Health()
		if poolHealth != nil && !poolHealth.IsHealthy {
			if status == healthStatusHealthy {
				status = healthStatusDegraded
			}
			checks["worker_pool"] = HealthCheck{Status: healthStatusDegraded}
		} else {
			checks["worker_pool"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	if s.connManager != nil {
		checks["realtime_connections"] = HealthCheck{
			Status:  healthStatusHealthy,
			Message: strconv.Itoa(s.connManager.ActiveConnections()) + " connections",
		}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, &HealthResponse{Status: status, Checks: checks})
}
