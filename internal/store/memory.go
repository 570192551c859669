package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Store held in process memory. It backs local development
// runs without a database and the service tests.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[uuid.UUID]*User
	clients   map[uuid.UUID]*ClientProfile
	dancers   map[uuid.UUID]*Dancer
	requests  map[uuid.UUID]*CastingRequest
	purchases map[uuid.UUID]*CreditPurchase
	unlocks   map[uuid.UUID]map[uuid.UUID]*ContactUnlock
	messages  []*Message

	now  func() time.Time
	last time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[uuid.UUID]*User),
		clients:   make(map[uuid.UUID]*ClientProfile),
		dancers:   make(map[uuid.UUID]*Dancer),
		requests:  make(map[uuid.UUID]*CastingRequest),
		purchases: make(map[uuid.UUID]*CreditPurchase),
		unlocks:   make(map[uuid.UUID]map[uuid.UUID]*ContactUnlock),
		now:       time.Now,
	}
}

func (s *MemoryStore) Close() error { return nil }

// stamp returns a strictly increasing timestamp so records created in the
// same clock tick still sort in insertion order. Callers hold mu.
func (s *MemoryStore) stamp() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// --- Users ---

func (s *MemoryStore) CreateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if _, ok := s.users[u.ID]; ok {
		return ErrConflict
	}
	u.CreatedAt = s.stamp()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUsers(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]*User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = u.Name
	existing.Phone = u.Phone
	existing.Role = u.Role
	existing.UpdatedAt = s.stamp()
	u.Credits = existing.Credits
	u.UpdatedAt = existing.UpdatedAt
	return nil
}

func (s *MemoryStore) GetClientProfile(_ context.Context, userID uuid.UUID) (*ClientProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.clients[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpsertClientProfile(_ context.Context, p *ClientProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = s.stamp()
	cp := *p
	s.clients[p.UserID] = &cp
	return nil
}

// --- Dancers ---

func (s *MemoryStore) UpsertDancer(_ context.Context, d *Dancer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.stamp()
	for _, existing := range s.dancers {
		if d.UserID != uuid.Nil && existing.UserID == d.UserID {
			d.ID = existing.ID
			d.CreatedAt = existing.CreatedAt
			break
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	cp := *d
	s.dancers[d.ID] = &cp
	return nil
}

func (s *MemoryStore) GetDancer(_ context.Context, id uuid.UUID) (*Dancer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dancers[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) GetDancerByUser(_ context.Context, userID uuid.UUID) (*Dancer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.dancers {
		if d.UserID == userID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

// ListDancers orders by rating descending, then newest first.
func (s *MemoryStore) ListDancers(_ context.Context, filter DancerFilter) ([]*Dancer, error) {
	s.mu.RLock()
	var out []*Dancer
	for _, d := range s.dancers {
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		if filter.Genre != "" && !containsFold(d.Genres, filter.Genre) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (s *MemoryStore) SetDancerStatus(_ context.Context, id uuid.UUID, status DancerStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dancers[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = status
	d.UpdatedAt = s.stamp()
	return nil
}

// --- Casting requests ---

func (s *MemoryStore) CreateRequest(_ context.Context, r *CastingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = s.stamp()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *MemoryStore) GetRequest(_ context.Context, id uuid.UUID) (*CastingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

// ListRequests orders newest first.
func (s *MemoryStore) ListRequests(_ context.Context, filter RequestFilter) ([]*CastingRequest, error) {
	s.mu.RLock()
	var out []*CastingRequest
	for _, r := range s.requests {
		if filter.UserID != nil && r.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (s *MemoryStore) SetRequestStatus(_ context.Context, id uuid.UUID, status RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = s.stamp()
	return nil
}

func (s *MemoryStore) GetRequestStats(_ context.Context, userID uuid.UUID) (*RequestStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &RequestStats{}
	for _, r := range s.requests {
		if r.UserID != userID {
			continue
		}
		switch r.Status {
		case RequestPending:
			stats.Pending++
		case RequestApproved:
			stats.Approved++
		case RequestRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

// --- Credits ---

func (s *MemoryStore) UnlockContact(_ context.Context, userID, dancerID uuid.UUID, cost int) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return false, 0, ErrNotFound
	}
	if _, done := s.unlocks[userID][dancerID]; done {
		return false, u.Credits, nil
	}
	if u.Credits < cost {
		return false, u.Credits, ErrInsufficientCredits
	}
	u.Credits -= cost
	if s.unlocks[userID] == nil {
		s.unlocks[userID] = make(map[uuid.UUID]*ContactUnlock)
	}
	s.unlocks[userID][dancerID] = &ContactUnlock{
		UserID:    userID,
		DancerID:  dancerID,
		Cost:      cost,
		CreatedAt: s.stamp(),
	}
	return true, u.Credits, nil
}

func (s *MemoryStore) IsUnlocked(_ context.Context, userID, dancerID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.unlocks[userID][dancerID]
	return ok, nil
}

func (s *MemoryStore) ListUnlocks(_ context.Context, userID uuid.UUID) ([]*ContactUnlock, error) {
	s.mu.RLock()
	var out []*ContactUnlock
	for _, u := range s.unlocks[userID] {
		cp := *u
		out = append(out, &cp)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CreatePurchase(_ context.Context, p *CreditPurchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[p.UserID]; !ok {
		return ErrNotFound
	}
	p.ID = uuid.New()
	p.CreatedAt = s.stamp()
	cp := *p
	s.purchases[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetPurchase(_ context.Context, id uuid.UUID) (*CreditPurchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.purchases[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) SetPurchaseExternalID(_ context.Context, id uuid.UUID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[id]
	if !ok {
		return ErrNotFound
	}
	p.ExternalID = externalID
	return nil
}

func (s *MemoryStore) CompletePurchase(_ context.Context, id uuid.UUID) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[id]
	if !ok {
		return false, 0, ErrNotFound
	}
	u, ok := s.users[p.UserID]
	if !ok {
		return false, 0, ErrNotFound
	}
	if p.Status == PurchaseCompleted {
		return false, u.Credits, nil
	}
	now := s.stamp()
	p.Status = PurchaseCompleted
	p.CompletedAt = &now
	u.Credits += p.Credits
	return true, u.Credits, nil
}

func (s *MemoryStore) ListPurchases(_ context.Context, userID uuid.UUID) ([]*CreditPurchase, error) {
	s.mu.RLock()
	var out []*CreditPurchase
	for _, p := range s.purchases {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ExpirePendingPurchases(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.purchases {
		if p.Status == PurchasePending && p.CreatedAt.Before(olderThan) {
			p.Status = PurchaseExpired
			n++
		}
	}
	return n, nil
}

// --- Messages ---

func (s *MemoryStore) CreateMessage(_ context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.New()
	m.CreatedAt = s.stamp()
	cp := *m
	s.messages = append(s.messages, &cp)
	return nil
}

func (s *MemoryStore) GetMessage(_ context.Context, id uuid.UUID) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

// ListConversation returns the most recent limit messages between two users,
// oldest first.
func (s *MemoryStore) ListConversation(_ context.Context, userID, partnerID uuid.UUID, limit int) ([]*Message, error) {
	s.mu.RLock()
	var out []*Message
	for _, m := range s.messages {
		if (m.SenderID == userID && m.ReceiverID == partnerID) || (m.SenderID == partnerID && m.ReceiverID == userID) {
			cp := *m
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// ListMessagesForUser returns every message the user sent or received,
// newest first.
func (s *MemoryStore) ListMessagesForUser(_ context.Context, userID uuid.UUID) ([]*Message, error) {
	s.mu.RLock()
	var out []*Message
	for _, m := range s.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			cp := *m
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			m.IsRead = true
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) MarkConversationRead(_ context.Context, receiverID, senderID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.ReceiverID == receiverID && m.SenderID == senderID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountUnread(_ context.Context, receiverID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.messages {
		if m.ReceiverID == receiverID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
