package engine

import "sync"

// Event type names published during a scheduling run.
const (
	EventProgress = "progress"
	EventConflict = "conflict"
	EventDone     = "done"
	EventError    = "error"
)

// Event is one run notification delivered to subscribers. Data is the
// JSON-serialisable payload for the event type.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// subscriberBufferSize is the channel buffer for each run subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// Broker manages per-run event streaming to subscribers. It is safe for
// concurrent use.
//
// Closed topics are retained as markers so that late subscribers (those
// subscribing after a run finishes) receive a closed channel instead of
// blocking forever.
type Broker struct {
	mu     sync.Mutex
	topics map[string]*runTopic
}

type runTopic struct {
	subs   map[int]chan Event
	nextID int
	closed bool
	last   *Event // terminal event, replayed to late subscribers
}

// NewBroker creates a new run event broker.
func NewBroker() *Broker {
	return &Broker{
		topics: make(map[string]*runTopic),
	}
}

// Open registers a run topic so subscribers can find it before its first
// event is published.
func (b *Broker) Open(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[runID]; !ok {
		b.topics[runID] = &runTopic{subs: make(map[int]chan Event)}
	}
}

// Subscribe returns a channel that receives events for the given run and an
// unsubscribe function. If the run has already finished, the terminal event
// (if any) is delivered and the channel is closed.
func (b *Broker) Subscribe(runID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok {
		t = &runTopic{subs: make(map[int]chan Event)}
		b.topics[runID] = t
	}

	ch := make(chan Event, subscriberBufferSize)
	if t.closed {
		if t.last != nil {
			ch <- *t.last
		}
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

// Publish sends an event to all subscribers of the given run. Events are
// dropped for subscribers whose buffers are full so the placement loop never
// blocks on a slow consumer.
func (b *Broker) Publish(runID string, ev Event) {
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
		}
	}
}

// Close marks the run finished, recording terminal as the event replayed to
// late subscribers. terminal may be nil. All subscriber channels receive the
// terminal event and are closed.
func (b *Broker) Close(runID string, terminal *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok {
		b.topics[runID] = &runTopic{subs: make(map[int]chan Event), closed: true, last: terminal}
		return
	}

	t.closed = true
	t.last = terminal
	for id, ch := range t.subs {
		if terminal != nil {
			select {
			case ch <- *terminal:
			default:
			}
		}
		close(ch)
		delete(t.subs, id)
	}
}

// Known reports whether the broker has seen the given run.
func (b *Broker) Known(runID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.topics[runID]
	return ok
}
