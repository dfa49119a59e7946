// Package events fans job state changes out to in-process subscribers and,
// optionally, to NATS.
package events

import (
	"sync"
	"time"

	"adforge/internal/domain"
	"adforge/internal/infra"
)

// EventType names a job state change.
type EventType string

const (
	EventJobCreated    EventType = "job.created"
	EventJobProcessing EventType = "job.processing"
	EventJobCompleted  EventType = "job.completed"
	EventJobFailed     EventType = "job.failed"

	// DefaultBuffer is the subscriber channel size used when none is given.
	DefaultBuffer = 64
)

// JobEvent carries a snapshot of the job after the change.
type JobEvent struct {
	Type EventType  `json:"type"`
	Job  domain.Job `json:"job"`
	At   time.Time  `json:"at"`
}

// TypeFor maps a job status to the event announcing it.
func TypeFor(status domain.JobStatus) EventType {
	switch status {
	case domain.JobStatusProcessing:
		return EventJobProcessing
	case domain.JobStatusCompleted:
		return EventJobCompleted
	case domain.JobStatusFailed:
		return EventJobFailed
	default:
		return EventJobCreated
	}
}

// Bus delivers every published event to every subscriber. Publishing never
// blocks: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan JobEvent
	nextID int
	closed bool
	logger *infra.Logger
}

func NewBus(logger *infra.Logger) *Bus {
	return &Bus{subs: make(map[int]chan JobEvent), logger: infra.LoggerOrDiscard(logger)}
}

// Subscribe returns a channel of events and a function that ends the
// subscription and closes the channel. It is safe to call the function more
// than once.
func (b *Bus) Subscribe(buffer int) (<-chan JobEvent, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan JobEvent, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

func (b *Bus) Publish(ev JobEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn().
				Int("subscriber", id).
				Str("event", string(ev.Type)).
				Str("job_id", ev.Job.ID).
				Msg("events: subscriber buffer full, event dropped")
		}
	}
}

// Close ends every subscription. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Subscribers reports the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
