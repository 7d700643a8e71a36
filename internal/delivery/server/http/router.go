// Package http serves the agent team API over gin.
package http

import (
	"net/http"
	"strings"
	"time"

	"agentteam/internal/shared/logging"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIPrefix is the base path of every agent team route.
const APIPrefix = "/api/agent-team"

const defaultHeartbeat = 30 * time.Second

// NewRouter builds the gin engine with all endpoints.
func NewRouter(deps RouterDeps, cfg RouterConfig) *gin.Engine {
	if strings.EqualFold(strings.TrimSpace(cfg.Environment), "production") {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := logging.NewComponentLogger("Router")
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeat
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware(cfg.AllowedOrigins))
	engine.Use(LoggingMiddleware(logger))
	engine.Use(ObservabilityMiddleware(deps.Obs))

	team := newTeamHandler(deps.Runtime)
	stream := newStreamHandler(deps.Bus, deps.Obs, cfg.HeartbeatInterval)
	tools := newToolHandler(deps.Tools)

	engine.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok", "version": cfg.Version}
		if cfg.Degraded != nil {
			if degraded := cfg.Degraded(); len(degraded) > 0 {
				body["status"] = "degraded"
				body["degraded"] = degraded
			}
		}
		c.JSON(http.StatusOK, body)
	})
	if deps.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := engine.Group(APIPrefix)
	{
		api.GET("/templates", team.listTemplates)
		api.GET("/instances", team.listInstances)
		api.GET("/instances/:id", team.getInstance)
		api.GET("/missions", team.listMissions)
		api.GET("/approvals", team.listApprovals)

		api.POST("/spawn", team.spawn)
		api.POST("/instance/:id/cancel", team.cancelInstance)
		api.POST("/instance/:id/usage", team.reportUsage)
		api.POST("/instance/:id/complete", team.complete)
		api.POST("/instance/:id/fail", team.fail)
		api.POST("/instance/:id/tool-check", team.checkTool)
		api.POST("/mission/:id/cancel", team.cancelMission)
		api.POST("/engine/events", team.engineEvent)

		api.POST("/approvals/spawn/:id/approve", team.resolveSpawn(true))
		api.POST("/approvals/spawn/:id/deny", team.resolveSpawn(false))
		api.POST("/approvals/tool/:id/approve", team.resolveTool(true))
		api.POST("/approvals/tool/:id/deny", team.resolveTool(false))

		api.GET("/tools", tools.list)
		api.POST("/tools/:name", tools.invoke)

		api.GET("/events", stream.serveSSE)
		api.GET("/events/ws", stream.serveWebSocket)
		api.GET("/events/stats", stream.stats)
	}
	return engine
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Log-Id", "X-Session-Id"}
	cfg.ExposeHeaders = []string{"X-Log-Id"}
	cfg.AllowWebSockets = true
	return cors.New(cfg)
}
