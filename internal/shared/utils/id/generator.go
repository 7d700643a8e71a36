package id

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// Strategy identifies the identifier generation algorithm to use.
type Strategy int

const (
	// StrategyKSUID generates lexicographically sortable identifiers using KSUID.
	StrategyKSUID Strategy = iota
	// StrategyUUIDv7 generates time-ordered identifiers using UUID version 7.
	StrategyUUIDv7
)

const (
	prefixSession  = "session"
	prefixInstance = "ins"
	prefixApproval = "spawn"
	prefixToolAppr = "toolapr"
	prefixRun      = "run"
	prefixMission  = "mission"
	prefixLog      = "log"
	prefixRequest  = "req"
)

// DefaultMissionID is used when a spawn request omits the mission.
const DefaultMissionID = "mission-default"

var defaultGenerator = &Generator{strategy: StrategyKSUID}

// Generator produces prefixed identifiers for orchestration records.
type Generator struct {
	mu       sync.RWMutex
	strategy Strategy
}

// SetStrategy configures the generation strategy for the default generator.
func SetStrategy(strategy Strategy) {
	defaultGenerator.mu.Lock()
	defaultGenerator.strategy = strategy
	defaultGenerator.mu.Unlock()
}

// NewSessionID returns an identifier for an execution session.
func NewSessionID() string { return defaultGenerator.newIdentifier(prefixSession) }

// NewInstanceID returns an identifier for an agent instance.
func NewInstanceID() string { return defaultGenerator.newIdentifier(prefixInstance) }

// NewApprovalID returns an identifier for a pending spawn approval.
func NewApprovalID() string { return defaultGenerator.newIdentifier(prefixApproval) }

// NewToolApprovalID returns an identifier for a pending tool approval.
func NewToolApprovalID() string { return defaultGenerator.newIdentifier(prefixToolAppr) }

// NewRunID returns an identifier for a session run.
func NewRunID() string { return defaultGenerator.newIdentifier(prefixRun) }

// NewRequestID returns an identifier that ties a spawn request to its outcome events.
func NewRequestID() string { return defaultGenerator.newIdentifier(prefixRequest) }

// NewMissionID returns an identifier for a mission created without an explicit id.
func NewMissionID() string { return defaultGenerator.newIdentifier(prefixMission) }

func (g *Generator) newIdentifier(prefix string) string {
	g.mu.RLock()
	strategy := g.strategy
	g.mu.RUnlock()

	var body string
	switch strategy {
	case StrategyUUIDv7:
		if v7, err := uuid.NewV7(); err == nil {
			body = v7.String()
			break
		}
		body = ksuid.New().String()
	default:
		body = ksuid.New().String()
	}
	return fmt.Sprintf("%s-%s", prefix, body)
}

// NewLogID returns a request correlation identifier.
func NewLogID() string { return defaultGenerator.newIdentifier(prefixLog) }

// NewKSUID exposes raw KSUID generation for callers that need unprefixed identifiers.
func NewKSUID() string {
	return ksuid.New().String()
}
