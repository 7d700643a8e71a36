package agentteam

import (
	"fmt"
	"time"
)

// Exhaustion describes a rejected reservation.
type Exhaustion struct {
	Dimension Dimension
	// Mission is true when the mission aggregate, not the instance, ran out.
	Mission bool
}

// ExhaustedBy returns the value reported in exhaustion events.
func (e Exhaustion) ExhaustedBy() string {
	if e.Mission {
		return e.Dimension.MissionScoped()
	}
	return string(e.Dimension)
}

type account struct {
	limit     BudgetLimit
	usage     Usage
	startedAt time.Time
	closed    bool
}

// Ledger tracks usage against limits for one mission and its instances.
// Every reservation is checked before it is applied; a rejected reservation
// leaves all counters untouched.
type Ledger struct {
	missionLimit BudgetLimit
	missionStart time.Time
	rollup       Usage
	accounts     map[string]*account
}

// NewLedger creates a ledger for a mission with the given aggregate limit.
func NewLedger(missionLimit BudgetLimit, missionStart time.Time) *Ledger {
	return &Ledger{
		missionLimit: missionLimit,
		missionStart: missionStart,
		accounts:     make(map[string]*account),
	}
}

// Open registers an instance with zero usage.
func (l *Ledger) Open(instanceID string, limit BudgetLimit) {
	if _, ok := l.accounts[instanceID]; ok {
		return
	}
	l.accounts[instanceID] = &account{limit: limit}
}

// Start records when the instance began running; duration is measured from here.
func (l *Ledger) Start(instanceID string, at time.Time) {
	if acct, ok := l.accounts[instanceID]; ok && acct.startedAt.IsZero() {
		acct.startedAt = at
	}
}

// Close stops accepting reservations for the instance. Its usage stays in the rollup.
func (l *Ledger) Close(instanceID string) {
	if acct, ok := l.accounts[instanceID]; ok {
		acct.closed = true
	}
}

// Reserve applies delta to the instance and the mission rollup, or returns
// the exhausted dimension without applying anything.
func (l *Ledger) Reserve(instanceID string, delta Usage, now time.Time) (*Exhaustion, error) {
	acct, ok := l.accounts[instanceID]
	if !ok {
		return nil, fmt.Errorf("reserve %s: %w", instanceID, ErrInstanceNotFound)
	}
	if acct.closed {
		return nil, fmt.Errorf("reserve %s: %w", instanceID, ErrInstanceClosed)
	}
	if delta.negative() {
		return nil, fmt.Errorf("reserve %s: %w", instanceID, ErrNegativeUsage)
	}
	if err := l.CheckInvariants(); err != nil {
		return nil, err
	}

	if dim, over := exceeds(acct.limit, acct.usage.Add(delta), l.elapsed(acct, now)); over {
		return &Exhaustion{Dimension: dim}, nil
	}
	if dim, over := exceeds(l.missionLimit, l.rollup.Add(delta), now.Sub(l.missionStart)); over {
		return &Exhaustion{Dimension: dim, Mission: true}, nil
	}

	acct.usage = acct.usage.Add(delta)
	l.rollup = l.rollup.Add(delta)
	return nil, nil
}

func (l *Ledger) elapsed(acct *account, now time.Time) time.Duration {
	if acct.startedAt.IsZero() {
		return 0
	}
	return now.Sub(acct.startedAt)
}

// Usage returns the counters for one instance.
func (l *Ledger) Usage(instanceID string) (Usage, bool) {
	acct, ok := l.accounts[instanceID]
	if !ok {
		return Usage{}, false
	}
	return acct.usage, true
}

// Elapsed returns how long the instance has been running.
func (l *Ledger) Elapsed(instanceID string, now time.Time) time.Duration {
	acct, ok := l.accounts[instanceID]
	if !ok {
		return 0
	}
	return l.elapsed(acct, now)
}

// Rollup returns the mission aggregate.
func (l *Ledger) Rollup() Usage {
	return l.rollup
}

// MissionLimit returns the mission aggregate ceiling.
func (l *Ledger) MissionLimit() BudgetLimit {
	return l.missionLimit
}

// Remaining returns the unspent part of an instance's own limit.
func (l *Ledger) Remaining(instanceID string, now time.Time) (BudgetLimit, bool) {
	acct, ok := l.accounts[instanceID]
	if !ok {
		return BudgetLimit{}, false
	}
	return acct.limit.Remaining(acct.usage, l.elapsed(acct, now)), true
}

// Headroom returns what is left of the mission aggregate.
func (l *Ledger) Headroom(now time.Time) BudgetLimit {
	return l.missionLimit.Remaining(l.rollup, now.Sub(l.missionStart))
}

// CheckInvariants verifies the rollup equals the sum of instance usage.
func (l *Ledger) CheckInvariants() error {
	var sum Usage
	for _, acct := range l.accounts {
		sum = sum.Add(acct.usage)
	}
	if !sum.Equal(l.rollup) {
		return fmt.Errorf("%w: rollup %+v, instances %+v", ErrRollupDiverged, l.rollup, sum)
	}
	return nil
}
