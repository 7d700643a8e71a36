package eventbus

import (
	"sync"

	"agentteam/internal/domain/agentteam"
)

// Subscription is one live reader of the bus.
type Subscription struct {
	id     uint64
	filter Filter
	bus    *Bus

	mu     sync.Mutex
	queue  []agentteam.Event
	signal chan struct{}
	done   chan struct{}
	out    chan agentteam.Event
	once   sync.Once
}

func newSubscription(bus *Bus, id uint64, filter Filter) *Subscription {
	return &Subscription{
		id:     id,
		filter: filter,
		bus:    bus,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan agentteam.Event),
	}
}

// Events returns the ordered event stream. It is closed after Close.
func (s *Subscription) Events() <-chan agentteam.Event {
	return s.out
}

// Filter returns the subscription scope.
func (s *Subscription) Filter() Filter {
	return s.filter
}

// Done is closed once the subscription stops.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close detaches the subscription; queued but undelivered events are discarded.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
	s.shutdown()
}

func (s *Subscription) shutdown() {
	s.once.Do(func() { close(s.done) })
}

func (s *Subscription) enqueue(e agentteam.Event) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, e := range batch {
			select {
			case s.out <- e:
				s.bus.metrics.delivered.Add(1)
			case <-s.done:
				return
			}
		}

		select {
		case <-s.signal:
		case <-s.done:
			return
		}
	}
}
