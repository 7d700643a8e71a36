// Package eventbus fans orchestration events out to live subscribers.
//
// Each subscriber owns an unbounded queue drained by its own goroutine, so a
// slow reader never blocks publishers or other readers and never loses or
// reorders events while it stays subscribed.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"agentteam/internal/domain/agentteam"
	"agentteam/internal/shared/async"
	"agentteam/internal/shared/logging"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Filter selects events for a subscription. An empty SessionID is global.
type Filter struct {
	SessionID string
}

// Match reports whether the event belongs to the filter scope.
func (f Filter) Match(e agentteam.Event) bool {
	return f.SessionID == "" || f.SessionID == e.SessionID
}

// Stats is a snapshot of bus counters.
type Stats struct {
	Published         int64 `json:"published"`
	Delivered         int64 `json:"delivered"`
	ActiveSubscribers int64 `json:"activeSubscribers"`
	TotalSubscribers  int64 `json:"totalSubscribers"`
	HistorySessions   int   `json:"historySessions"`
}

type busMetrics struct {
	published         atomic.Int64
	delivered         atomic.Int64
	activeSubscribers atomic.Int64
	totalSubscribers  atomic.Int64
}

// Bus is an ordered publish/subscribe channel.
type Bus struct {
	mu         sync.Mutex
	seq        uint64
	nextSubID  uint64
	subs       map[uint64]*Subscription
	history    *lru.Cache[string, []agentteam.Event]
	perSession int
	clock      func() time.Time
	closed     bool

	logger  logging.Logger
	metrics busMetrics
}

// Option customizes a Bus.
type Option func(*Bus)

// WithHistory keeps up to perSession recent events for up to sessions sessions.
// Zero sessions disables replay.
func WithHistory(sessions, perSession int) Option {
	return func(b *Bus) {
		if sessions <= 0 || perSession <= 0 {
			b.history = nil
			return
		}
		cache, err := lru.New[string, []agentteam.Event](sessions)
		if err != nil {
			return
		}
		b.history = cache
		b.perSession = perSession
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger logging.Logger) Option {
	return func(b *Bus) { b.logger = logging.OrNop(logger) }
}

// WithClock overrides the timestamp source for events published without one.
func WithClock(clock func() time.Time) Option {
	return func(b *Bus) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// New creates a bus with a default history of 256 sessions x 500 events.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[uint64]*Subscription),
		clock:  time.Now,
		logger: logging.NewComponentLogger("EventBus"),
	}
	WithHistory(256, 500)(b)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish stamps the event with a sequence number (and a timestamp when
// missing) and enqueues it for every matching subscriber. It never blocks on
// subscribers.
func (b *Bus) Publish(e agentteam.Event) agentteam.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return e
	}
	b.seq++
	e.Seq = b.seq
	if e.Timestamp.IsZero() {
		e.Timestamp = b.clock()
	}
	b.metrics.published.Add(1)

	if b.history != nil && e.SessionID != "" {
		events, _ := b.history.Get(e.SessionID)
		events = append(events, e)
		if len(events) > b.perSession {
			events = append([]agentteam.Event(nil), events[len(events)-b.perSession:]...)
		}
		b.history.Add(e.SessionID, events)
	}

	for _, sub := range b.subs {
		if sub.filter.Match(e) {
			sub.enqueue(e)
		}
	}
	b.logger.Debug("published %s seq=%d mission=%s instance=%s", e.Type, e.Seq, e.MissionID, e.InstanceID)
	return e
}

// Subscribe registers a live subscriber. Events published before the call are
// not delivered.
func (b *Bus) Subscribe(filter Filter) *Subscription {
	return b.subscribe(filter, false)
}

// SubscribeWithReplay registers a session subscriber that first receives the
// retained history for the session, then live events, with no gap between them.
func (b *Bus) SubscribeWithReplay(filter Filter) *Subscription {
	return b.subscribe(filter, true)
}

func (b *Bus) subscribe(filter Filter, replay bool) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSubID++
	sub := newSubscription(b, b.nextSubID, filter)
	if b.closed {
		sub.shutdown()
		close(sub.out)
		return sub
	}
	if replay && filter.SessionID != "" && b.history != nil {
		if events, ok := b.history.Peek(filter.SessionID); ok {
			for _, e := range events {
				sub.enqueue(e)
			}
		}
	}
	b.subs[sub.id] = sub
	b.metrics.activeSubscribers.Add(1)
	b.metrics.totalSubscribers.Add(1)
	async.Go(b.logger, "eventbus-subscriber", sub.pump)
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		b.metrics.activeSubscribers.Add(-1)
	}
	b.mu.Unlock()
}

// History returns the retained events for a session.
func (b *Bus) History(sessionID string) []agentteam.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.history == nil {
		return nil
	}
	events, _ := b.history.Peek(sessionID)
	return append([]agentteam.Event(nil), events...)
}

// Stats returns a snapshot of bus counters.
func (b *Bus) Stats() Stats {
	historySessions := 0
	b.mu.Lock()
	if b.history != nil {
		historySessions = b.history.Len()
	}
	b.mu.Unlock()
	return Stats{
		Published:         b.metrics.published.Load(),
		Delivered:         b.metrics.delivered.Load(),
		ActiveSubscribers: b.metrics.activeSubscribers.Load(),
		TotalSubscribers:  b.metrics.totalSubscribers.Load(),
		HistorySessions:   historySessions,
	}
}

// Close stops all subscriptions. Further publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

// Consume calls fn for each event until ctx is done or the subscription closes.
// Errors from fn are logged and do not stop consumption.
func Consume(ctx context.Context, sub *Subscription, logger logging.Logger, fn func(agentteam.Event) error) {
	logger = logging.OrNop(logger)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := fn(e); err != nil {
				logger.Warn("event consumer failed on %s seq=%d: %v", e.Type, e.Seq, err)
			}
		}
	}
}
