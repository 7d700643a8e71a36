package audit

import (
	"context"
	"encoding/json"
	"fmt"

	domain "agentteam/internal/domain/agentteam"

	"github.com/jackc/pgx/v5/pgxpool"
)

const eventsTable = "agent_team_events"

// PostgresSink stores every event in Postgres. The pool is owned by the caller.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink wraps an existing pool.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

// EnsureSchema creates the events table if needed.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("audit store not initialized")
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + eventsTable + ` (
    id BIGSERIAL PRIMARY KEY,
    seq BIGINT NOT NULL,
    event_type TEXT NOT NULL,
    mission_id TEXT NOT NULL DEFAULT '',
    instance_id TEXT NOT NULL DEFAULT '',
    parent_instance_id TEXT NOT NULL DEFAULT '',
    session_id TEXT NOT NULL DEFAULT '',
    run_id TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    event_ts TIMESTAMPTZ NOT NULL,
    properties JSONB
);`,
		`CREATE INDEX IF NOT EXISTS idx_agent_team_events_mission ON ` + eventsTable + ` (mission_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_agent_team_events_instance ON ` + eventsTable + ` (instance_id, seq);`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Write inserts one event.
func (s *PostgresSink) Write(ctx context.Context, e domain.Event) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("audit store not initialized")
	}
	props, err := json.Marshal(e.Properties())
	if err != nil {
		return fmt.Errorf("encode event properties: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO `+eventsTable+` (
    seq, event_type, mission_id, instance_id, parent_instance_id,
    session_id, run_id, source, event_ts, properties
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb)
`,
		int64(e.Seq),
		string(e.Type),
		e.MissionID,
		e.InstanceID,
		e.ParentInstanceID,
		e.SessionID,
		e.RunID,
		string(e.Source),
		e.Timestamp,
		props,
	)
	return err
}

// CountByMission returns how many events were stored for a mission.
func (s *PostgresSink) CountByMission(ctx context.Context, missionID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+eventsTable+` WHERE mission_id = $1`, missionID).Scan(&n)
	return n, err
}

// Close is a no-op; the pool outlives the sink.
func (s *PostgresSink) Close() error { return nil }
