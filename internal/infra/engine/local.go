package engine

import (
	"context"

	"agentteam/internal/app/agentteam"
	"agentteam/internal/shared/logging"
	"agentteam/internal/shared/utils/id"
)

// Local accepts every session immediately. It is used when no engine URL is
// configured; usage and completion then arrive through the callback API.
type Local struct {
	logger logging.Logger
}

// NewLocal builds a Local launcher.
func NewLocal(logger logging.Logger) *Local {
	return &Local{logger: logging.OrNop(logger)}
}

// Launch returns a fresh run id.
func (l *Local) Launch(_ context.Context, req agentteam.LaunchRequest) (string, error) {
	runID := id.NewRunID()
	l.logger.Info("local session accepted: instance=%s session=%s run=%s", req.InstanceID, req.SessionID, runID)
	return runID, nil
}

// Cancel records the request.
func (l *Local) Cancel(_ context.Context, sessionID string) error {
	l.logger.Info("local session cancelled: session=%s", sessionID)
	return nil
}
