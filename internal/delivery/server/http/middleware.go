package http

import (
	"strings"
	"time"

	"agentteam/internal/infra/observability"
	"agentteam/internal/shared/logging"
	id "agentteam/internal/shared/utils/id"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func resolveLogID(c *gin.Context) string {
	for _, header := range []string{"X-Log-Id", "X-Request-Id", "X-Correlation-Id"} {
		if value := strings.TrimSpace(c.GetHeader(header)); value != "" {
			return value
		}
	}
	return ""
}

// LoggingMiddleware assigns a log id to the request context and logs the
// request line.
func LoggingMiddleware(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		logID := id.LogIDFromContext(ctx)
		if logID == "" {
			logID = resolveLogID(c)
			if logID == "" {
				logID = id.NewLogID()
			}
			ctx = id.WithLogID(ctx, logID)
		}
		if sessionID := strings.TrimSpace(c.GetHeader("X-Session-Id")); sessionID != "" {
			ctx = id.WithSessionID(ctx, sessionID)
		}
		c.Header("X-Log-Id", logID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		logging.FromContext(ctx, logger).Info("%s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

// ObservabilityMiddleware wraps each request in a span and records request
// metrics by route template.
func ObservabilityMiddleware(obs *observability.Observability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if obs == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := obs.Tracer.Tracer().Start(c.Request.Context(), "agent_team.http "+c.Request.Method+" "+route)
		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
		)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
		span.End()
		obs.Metrics.RecordHTTPServerRequest(ctx, c.Request.Method, route, status, time.Since(start))
	}
}
