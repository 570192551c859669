package chat

import (
	"sync"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Casting/internal/store"
)

// Hub fans messages out to in-process subscribers keyed by user.
type Hub struct {
	mu   sync.RWMutex
	next int
	subs map[uuid.UUID]map[int]func(*store.Message)
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[int]func(*store.Message))}
}

// Subscribe registers fn for messages sent to or by userID. The returned
// func removes the subscription and is safe to call more than once.
func (h *Hub) Subscribe(userID uuid.UUID, fn func(*store.Message)) func() {
	h.mu.Lock()
	h.next++
	id := h.next
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[int]func(*store.Message))
	}
	h.subs[userID][id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[userID], id)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
		})
	}
}

// Publish delivers m to the receiver's and the sender's subscribers.
// Callbacks run outside the lock.
func (h *Hub) Publish(m *store.Message) {
	h.mu.RLock()
	var fns []func(*store.Message)
	for _, uid := range []uuid.UUID{m.ReceiverID, m.SenderID} {
		for _, fn := range h.subs[uid] {
			fns = append(fns, fn)
		}
		if m.ReceiverID == m.SenderID {
			break
		}
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		cp := *m
		fn(&cp)
	}
}

func (h *Hub) Count(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
