package events

import (
	"log"
	"sync"
	"time"
)

// Domain event types relayed to connected clients.
const (
	TournamentCreated = "tournament_created"
	TournamentStarted = "tournament_started"
	MatchResult       = "match_result"
	PaymentReceived   = "payment_received"
)

// Event is the wire envelope pushed to subscribers.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	At   time.Time   `json:"at"`
}

// Hub fans domain events out to subscribers. Delivery is fire-and-forget:
// a slow or gone subscriber never blocks Publish, and a missed delivery
// never affects the transaction that produced the event.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe registers a buffered subscriber channel. The returned cancel
// func must be called when the consumer goes away.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan Event, 16)
	h.subs[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

// Publish broadcasts an event to all current subscribers. Events for
// subscribers with full buffers are dropped.
func (h *Hub) Publish(eventType string, data interface{}) {
	ev := Event{Type: eventType, Data: data, At: time.Now().UTC()}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("[events] dropped %s event for slow subscriber", eventType)
		}
	}
}

// SubscriberCount is used by the health endpoint.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
