package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	domain "agentteam/internal/domain/agentteam"
)

// Row is one line of the JSONL audit log.
type Row struct {
	Type             domain.EventType `json:"type"`
	Seq              uint64           `json:"seq"`
	MissionID        string           `json:"missionID"`
	InstanceID       string           `json:"instanceID"`
	ParentInstanceID string           `json:"parentInstanceID,omitempty"`
	Role             string           `json:"role,omitempty"`
	TemplateID       string           `json:"templateID,omitempty"`
	SessionID        string           `json:"sessionID"`
	SkillHash        string           `json:"skillHash,omitempty"`
	Status           string           `json:"status,omitempty"`
	Reason           string           `json:"reason,omitempty"`
	TimestampMs      int64            `json:"timestampMs"`
}

// FileSink appends spawn.approved and instance.* events to a JSONL file.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileSink opens path for appending, creating parent directories.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &FileSink{file: f, enc: json.NewEncoder(f)}, nil
}

// Audited reports whether the file sink records the event type.
func Audited(t domain.EventType) bool {
	return t == domain.EventSpawnApproved || strings.HasPrefix(string(t), "agent_team.instance.")
}

// Write appends one row when the event is audited.
func (s *FileSink) Write(_ context.Context, e domain.Event) error {
	if !Audited(e.Type) {
		return nil
	}
	row := Row{
		Type:             e.Type,
		Seq:              e.Seq,
		MissionID:        e.MissionID,
		InstanceID:       e.InstanceID,
		ParentInstanceID: e.ParentInstanceID,
		SessionID:        e.SessionID,
		TimestampMs:      e.Timestamp.UnixMilli(),
		Role:             payloadString(e.Payload, "role"),
		TemplateID:       payloadString(e.Payload, "templateID"),
		SkillHash:        payloadString(e.Payload, "skillHash"),
		Status:           payloadString(e.Payload, "status"),
		Reason:           payloadString(e.Payload, "reason"),
	}
	if sid := payloadString(e.Payload, "instanceSessionID"); sid != "" {
		row.SessionID = sid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(row)
}

// Close flushes and closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func payloadString(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}
