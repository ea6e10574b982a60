// Package notify fans timer events out to the clients of each user.
package notify

import (
	"sync"
	"time"

	"studytimer/backend/internal/logging"
	"studytimer/backend/internal/timer"
)

const (
	EventPhaseChanged = "phase"

	subscriberBuffer = 8
)

type Event struct {
	Type       string                 `json:"type"`
	UserID     string                 `json:"-"`
	Transition *timer.PhaseTransition `json:"transition,omitempty"`
	At         time.Time              `json:"at"`
}

// Hub delivers events to per-user subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe returns the event channel for userID and a cancel func that must
// be called once the subscriber goes away.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan Event]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[event.UserID] {
		select {
		case ch <- event:
		default:
			logging.Logger.Debug("dropping event for slow subscriber", "user_id", event.UserID, "type", event.Type)
		}
	}
}

func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

// Notifier adapts the hub to a single user's timer.
func (h *Hub) Notifier(userID string) timer.PhaseNotifier {
	return userNotifier{hub: h, userID: userID}
}

type userNotifier struct {
	hub    *Hub
	userID string
}

func (n userNotifier) PhaseChanged(transition timer.PhaseTransition) {
	n.hub.Publish(Event{
		Type:       EventPhaseChanged,
		UserID:     n.userID,
		Transition: &transition,
		At:         transition.At,
	})
}
