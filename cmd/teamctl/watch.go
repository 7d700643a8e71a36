package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// version is stamped at build time.
var version = "dev"

type streamEvent struct {
	Type       string         `json:"type"`
	Seq        uint64         `json:"seq"`
	Properties map[string]any `json:"properties"`
}

func (c *cli) watchCommand() *cobra.Command {
	var (
		sessionID string
		replay    bool
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream orchestration events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.watch(ctx, sessionID, replay, limit)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "only events for this session")
	cmd.Flags().BoolVar(&replay, "replay", false, "replay buffered history first")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many events (0 streams until interrupted)")
	return cmd
}

func (c *cli) watch(ctx context.Context, sessionID string, replay bool, limit int) error {
	target, err := c.api.streamURL(sessionID, replay)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", target, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		case <-done:
		}
	}()

	for seen := 0; limit <= 0 || seen < limit; seen++ {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if c.format() == "json" {
			if _, err := fmt.Fprintln(c.out, string(raw)); err != nil {
				return err
			}
			continue
		}
		var event streamEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return errors.New("malformed event: " + err.Error())
		}
		fmt.Fprintln(c.out, formatEvent(event))
	}
	return nil
}

func formatEvent(event streamEvent) string {
	prop := func(key string) string {
		if v, ok := event.Properties[key].(string); ok {
			return v
		}
		return ""
	}
	line := fmt.Sprintf("%s %s", gray(fmt.Sprintf("#%d", event.Seq)), eventTypeText(event.Type))
	if id := prop("missionID"); id != "" {
		line += " mission=" + id
	}
	if id := prop("instanceID"); id != "" {
		line += " instance=" + id
	}
	if id := prop("parentInstanceID"); id != "" {
		line += " parent=" + id
	}
	if reason := prop("reason"); reason != "" {
		line += " reason=" + truncate(reason, 60)
	}
	if code := prop("code"); code != "" {
		line += " code=" + code
	}
	return line
}

func eventTypeText(typ string) string {
	switch {
	case containsAny(typ, "denied", "failed", "exhausted"):
		return red(typ)
	case containsAny(typ, "cancelled"):
		return gray(typ)
	case containsAny(typ, "approval", "queued"):
		return yellow(typ)
	case containsAny(typ, "completed", "started", "spawned", "approved"):
		return green(typ)
	}
	return cyan(typ)
}
