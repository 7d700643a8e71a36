package agentteam

import (
	"sync"
	"time"

	domain "agentteam/internal/domain/agentteam"
)

// missionShard owns one mission and its instance tree. Every mutation of the
// mission, its ledger or its instances happens under mu, which also orders the
// events the mission emits.
type missionShard struct {
	mu        sync.Mutex
	mission   domain.Mission
	ledger    *domain.Ledger
	instances map[string]*domain.Instance
	// children maps a parent id to its children in creation order. Roots are
	// stored under the empty key.
	children map[string][]string
	// started is closed when the instance leaves queued.
	started map[string]chan struct{}
	// toolParts remembers engine tool parts already counted, per instance.
	toolParts map[string]map[string]struct{}
}

func newMissionShard(id string, budget domain.BudgetLimit, now time.Time) *missionShard {
	return &missionShard{
		mission: domain.Mission{
			ID:        id,
			Status:    domain.MissionActive,
			Budget:    budget,
			CreatedAt: now,
		},
		ledger:    domain.NewLedger(budget, now),
		instances: make(map[string]*domain.Instance),
		children:  make(map[string][]string),
		started:   make(map[string]chan struct{}),
		toolParts: make(map[string]map[string]struct{}),
	}
}

// counts returns the totals used by max_agents and max_concurrent.
func (s *missionShard) counts() (total, active int) {
	for _, inst := range s.instances {
		total++
		if !inst.Status.Terminal() {
			active++
		}
	}
	return total, active
}

func (s *missionShard) addInstance(inst *domain.Instance) {
	s.instances[inst.ID] = inst
	s.children[inst.ParentInstanceID] = append(s.children[inst.ParentInstanceID], inst.ID)
	s.mission.InstanceIDs = append(s.mission.InstanceIDs, inst.ID)
	s.started[inst.ID] = make(chan struct{})
	s.ledger.Open(inst.ID, inst.Budget)
}

func (s *missionShard) markStarted(instanceID string) {
	if ch, ok := s.started[instanceID]; ok {
		close(ch)
		delete(s.started, instanceID)
	}
}

// subtree returns ids under root in post-order: children before parents,
// siblings in creation order. Terminal intermediate nodes are still walked.
func (s *missionShard) subtree(rootID string) []string {
	var out []string
	var visit func(id string)
	visit = func(id string) {
		for _, child := range s.children[id] {
			visit(child)
		}
		out = append(out, id)
	}
	visit(rootID)
	return out
}

// all returns every instance of the mission in post-order over all roots.
func (s *missionShard) all() []string {
	var out []string
	for _, root := range s.children[""] {
		out = append(out, s.subtree(root)...)
	}
	return out
}

// store indexes mission shards and routes instance and session ids to them.
type store struct {
	mu              sync.RWMutex
	missions        map[string]*missionShard
	order           []string
	instanceMission map[string]string
	sessionInstance map[string]string
}

func newStore() *store {
	return &store{
		missions:        make(map[string]*missionShard),
		instanceMission: make(map[string]string),
		sessionInstance: make(map[string]string),
	}
}

func (s *store) mission(id string) (*missionShard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shard, ok := s.missions[id]
	return shard, ok
}

func (s *store) getOrCreateMission(id string, budget domain.BudgetLimit, now time.Time) *missionShard {
	s.mu.Lock()
	defer s.mu.Unlock()
	if shard, ok := s.missions[id]; ok {
		return shard
	}
	shard := newMissionShard(id, budget, now)
	s.missions[id] = shard
	s.order = append(s.order, id)
	return shard
}

func (s *store) shardForInstance(instanceID string) (*missionShard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	missionID, ok := s.instanceMission[instanceID]
	if !ok {
		return nil, false
	}
	shard, ok := s.missions[missionID]
	return shard, ok
}

func (s *store) instanceForSession(sessionID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	instanceID, ok := s.sessionInstance[sessionID]
	return instanceID, ok
}

func (s *store) index(inst *domain.Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instanceMission[inst.ID] = inst.MissionID
	if inst.SessionID != "" {
		s.sessionInstance[inst.SessionID] = inst.ID
	}
}

// shards returns missions in creation order.
func (s *store) shards() []*missionShard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*missionShard, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.missions[id])
	}
	return out
}
