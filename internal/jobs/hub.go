package jobs

import (
	"context"
	"log/slog"
	"sync"

	"talkvault/internal/events"
	"talkvault/internal/logging"
)

const subscriberBuffer = 64

// Hub delivers events to the subscribers of each job. Delivery never blocks
// the publisher: a subscriber whose buffer is full misses the event, except
// terminal events, which replace the oldest buffered one.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[chan events.Event]struct{}
	closed bool
	logger *slog.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[chan events.Event]struct{}),
		logger: logging.NewComponentLogger(logger, "jobs"),
	}
}

// Subscribe returns a channel receiving the events of jobID. The channel is
// closed after the job's terminal event, on Unsubscribe, or on Close.
func (h *Hub) Subscribe(jobID string) <-chan events.Event {
	ch := make(chan events.Event, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	set, ok := h.subs[jobID]
	if !ok {
		set = make(map[chan events.Event]struct{})
		h.subs[jobID] = set
	}
	set[ch] = struct{}{}
	return ch
}

// Unsubscribe detaches ch from jobID and closes it.
func (h *Hub) Unsubscribe(jobID string, ch <-chan events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[jobID] {
		if sub == ch {
			delete(h.subs[jobID], sub)
			close(sub)
		}
	}
	if len(h.subs[jobID]) == 0 {
		delete(h.subs, jobID)
	}
}

// Subscribers returns the number of subscribers of jobID.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}

// Broadcast sends event to every subscriber of its job.
func (h *Hub) Broadcast(event events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	terminal := event.Terminal()
	for ch := range h.subs[event.JobID] {
		h.deliver(ch, event, terminal)
		if terminal {
			close(ch)
		}
	}
	if terminal {
		delete(h.subs, event.JobID)
	}
}

func (h *Hub) deliver(ch chan events.Event, event events.Event, terminal bool) {
	select {
	case ch <- event:
		return
	default:
	}
	if !terminal {
		h.logger.Debug("subscriber lagging, event dropped",
			logging.String(logging.FieldJobID, event.JobID),
			logging.String("status", string(event.Status)),
		)
		return
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- event:
	default:
	}
}

// Publish implements events.Publisher.
func (h *Hub) Publish(_ context.Context, event events.Event) error {
	h.Broadcast(event)
	return nil
}

// Close closes every subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for jobID, set := range h.subs {
		for ch := range set {
			close(ch)
		}
		delete(h.subs, jobID)
	}
	return nil
}
