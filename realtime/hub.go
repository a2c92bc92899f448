// Package realtime fans out room-scoped events to SSE subscribers and relays.
package realtime

import (
	"log"
	"sync"
	"time"
)

// Broadcaster is what workflow services publish state changes through.
type Broadcaster interface {
	Publish(room, event string, payload any)
}

type Message struct {
	Room  string    `json:"room"`
	Event string    `json:"event"`
	Data  any       `json:"data"`
	At    time.Time `json:"at"`
}

// Hub is an in-process pub/sub keyed by room name.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscription]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{rooms: make(map[string]map[*Subscription]struct{}), buffer: buffer}
}

// Subscription receives messages for its rooms on C until Close.
type Subscription struct {
	C <-chan Message

	ch    chan Message
	hub   *Hub
	rooms []string
	once  sync.Once
}

func (h *Hub) Subscribe(rooms ...string) *Subscription {
	ch := make(chan Message, h.buffer)
	sub := &Subscription{C: ch, ch: ch, hub: h, rooms: rooms}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range rooms {
		subs, ok := h.rooms[room]
		if !ok {
			subs = make(map[*Subscription]struct{})
			h.rooms[room] = subs
		}
		subs[sub] = struct{}{}
	}
	return sub
}

// Close detaches the subscription and closes C. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		for _, room := range s.rooms {
			if subs, ok := h.rooms[room]; ok {
				delete(subs, s)
				if len(subs) == 0 {
					delete(h.rooms, room)
				}
			}
		}
		close(s.ch)
		h.mu.Unlock()
	})
}

// Publish never blocks: a subscriber whose buffer is full misses the message.
func (h *Hub) Publish(room, event string, payload any) {
	msg := Message{Room: room, Event: event, Data: payload, At: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.rooms[room] {
		select {
		case sub.ch <- msg:
		default:
			log.Printf("⚠️ [HUB] Dropped %s for slow subscriber in room %s", event, room)
		}
	}
}

func (h *Hub) SubscriberCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Multi publishes to every broadcaster in order.
type Multi []Broadcaster

func (m Multi) Publish(room, event string, payload any) {
	for _, b := range m {
		if b != nil {
			b.Publish(room, event, payload)
		}
	}
}
