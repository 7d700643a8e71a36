package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agentteam/internal/app/eventbus"
	"agentteam/internal/infra/observability"
	"agentteam/internal/shared/logging"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

type streamHandler struct {
	bus       *eventbus.Bus
	obs       *observability.Observability
	heartbeat time.Duration
	upgrader  websocket.Upgrader
	logger    logging.Logger
}

func newStreamHandler(bus *eventbus.Bus, obs *observability.Observability, heartbeat time.Duration) *streamHandler {
	return &streamHandler{
		bus:       bus,
		obs:       obs,
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are enforced by the CORS middleware.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logging.NewComponentLogger("EventStream"),
	}
}

func (h *streamHandler) metrics() *observability.MetricsCollector {
	if h.obs == nil {
		return nil
	}
	return h.obs.Metrics
}

// subscribe opens a subscription for ?sessionID=, replaying history when
// ?replay=true is set on a session scope.
func (h *streamHandler) subscribe(c *gin.Context) *eventbus.Subscription {
	filter := eventbus.Filter{SessionID: strings.TrimSpace(c.Query("sessionID"))}
	replay, _ := strconv.ParseBool(c.Query("replay"))
	if replay && filter.SessionID != "" {
		return h.bus.SubscribeWithReplay(filter)
	}
	return h.bus.Subscribe(filter)
}

func (h *streamHandler) serveSSE(c *gin.Context) {
	if h.bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "event stream unavailable"})
		return
	}
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming unsupported"})
		return
	}
	ctx := c.Request.Context()
	sub := h.subscribe(c)
	defer sub.Close()

	h.metrics().StreamOpened(ctx, "sse")
	defer h.metrics().StreamClosed(ctx, "sse")

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	fmt.Fprint(c.Writer, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(c.Writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("encode %s: %v", event.Type, err)
				continue
			}
			frame := sse.Event{Id: strconv.FormatUint(event.Seq, 10), Event: string(event.Type), Data: string(data)}
			if err := sse.Encode(c.Writer, frame); err != nil {
				return
			}
			flusher.Flush()
			h.metrics().RecordStreamMessage(ctx, "sse", string(event.Type))
		}
	}
}

func (h *streamHandler) serveWebSocket(c *gin.Context) {
	if h.bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "event stream unavailable"})
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	sub := h.subscribe(c)
	defer sub.Close()
	h.metrics().StreamOpened(ctx, "websocket")
	defer h.metrics().StreamClosed(ctx, "websocket")

	// Reads only detect the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-sub.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(wsWriteWait))
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("websocket write failed: %v", err)
				return
			}
			h.metrics().RecordStreamMessage(ctx, "websocket", string(event.Type))
		}
	}
}

func (h *streamHandler) stats(c *gin.Context) {
	if h.bus == nil {
		c.JSON(http.StatusOK, eventbus.Stats{})
		return
	}
	c.JSON(http.StatusOK, h.bus.Stats())
}
