package dispatch

import "sync"

const (
	// subscriberBufferSize is the channel buffer for each event subscriber.
	// Events are dropped if a subscriber falls this far behind.
	subscriberBufferSize = 64

	// maxClosedMarkers bounds how many finished runs keep a closed marker.
	maxClosedMarkers = 1024
)

// TaskEvent reports the settlement of one task within a run.
type TaskEvent struct {
	Index  int    `json:"index"`
	Status string `json:"status"`
	Kind   string `json:"kind"`
}

// EventBroker fans task settlement events out to per-run subscribers.
// It is safe for concurrent use.
//
// Closed runs are retained as markers so that late subscribers receive a
// closed channel instead of blocking forever. Only the most recent
// maxClosedMarkers markers are kept.
type EventBroker struct {
	mu     sync.Mutex
	topics map[string]*eventTopic
	closed []string
}

type eventTopic struct {
	subs   map[int]chan TaskEvent
	nextID int
	closed bool
}

// NewEventBroker creates a new event broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{
		topics: make(map[string]*eventTopic),
	}
}

// Subscribe returns a channel that receives events for the given run and an
// unsubscribe function. If the run has already finished, the returned
// channel is immediately closed.
func (b *EventBroker) Subscribe(runID string) (<-chan TaskEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok {
		t = &eventTopic{subs: make(map[int]chan TaskEvent)}
		b.topics[runID] = t
	}

	ch := make(chan TaskEvent, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends an event to all subscribers of the given run.
// Events are dropped for subscribers whose buffers are full.
func (b *EventBroker) Publish(runID string, ev TaskEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
			// Drop event for slow subscribers to avoid blocking aggregation.
		}
	}
}

// Close signals that no more events will be published for the given run.
// All subscriber channels are closed and future Subscribe calls return a
// closed channel.
func (b *EventBroker) Close(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok {
		t = &eventTopic{subs: make(map[int]chan TaskEvent)}
		b.topics[runID] = t
	}
	if t.closed {
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}

	b.closed = append(b.closed, runID)
	if len(b.closed) > maxClosedMarkers {
		delete(b.topics, b.closed[0])
		b.closed = b.closed[1:]
	}
}
