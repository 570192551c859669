// Package chat implements direct messages between clients and dancers,
// with realtime delivery through a Hub shared across instances over NATS.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Casting/internal/hermes"
	"github.com/MikeSquared-Agency/Casting/internal/metrics"
	"github.com/MikeSquared-Agency/Casting/internal/store"
)

const (
	DefaultHistoryLimit = 50
	MaxMessageLength    = 2000
	unknownUser         = "Unknown User"
)

var (
	ErrEmptyMessage      = errors.New("message content is required")
	ErrMessageTooLong    = errors.New("message content is too long")
	ErrSelfMessage       = errors.New("cannot send a message to yourself")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrForbidden         = errors.New("only the receiver can mark a message read")
)

type Store interface {
	store.Users
	store.Messages
}

type Partner struct {
	ID   uuid.UUID  `json:"id"`
	Name string     `json:"name"`
	Role store.Role `json:"role,omitempty"`
}

type Conversation struct {
	Partner     Partner        `json:"partner"`
	LastMessage *store.Message `json:"last_message"`
	UnreadCount int            `json:"unread_count"`
}

type Service struct {
	store      Store
	hub        *Hub
	hermes     hermes.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
	instanceID string
}

func NewService(s Store, hub *Hub, h hermes.Client, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:      s,
		hub:        hub,
		hermes:     h,
		metrics:    m,
		logger:     logger,
		instanceID: uuid.NewString(),
	}
}

func (s *Service) Hub() *Hub { return s.hub }

func (s *Service) Send(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*store.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	if senderID == receiverID {
		return nil, ErrSelfMessage
	}

	receiver, err := s.store.GetUser(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("get receiver: %w", err)
	}
	if receiver == nil {
		return nil, ErrRecipientNotFound
	}

	m := &store.Message{SenderID: senderID, ReceiverID: receiverID, Content: content}
	if err := s.store.CreateMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	s.metrics.IncMessagesSent()
	s.hub.Publish(m)
	if s.hermes != nil {
		if err := s.hermes.Publish(hermes.SubjectMessageCreated(receiverID.String()), s.event(m)); err != nil {
			s.logger.Warn("failed to publish message event", "message_id", m.ID, "error", err)
		}
	}
	return m, nil
}

// History returns up to limit messages between userID and partnerID, oldest
// first, and marks the partner's messages to userID as read.
func (s *Service) History(ctx context.Context, userID, partnerID uuid.UUID, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	msgs, err := s.store.ListConversation(ctx, userID, partnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	if _, err := s.store.MarkConversationRead(ctx, userID, partnerID); err != nil {
		return nil, fmt.Errorf("mark conversation read: %w", err)
	}
	for _, m := range msgs {
		if m.ReceiverID == userID {
			m.IsRead = true
		}
	}
	if msgs == nil {
		msgs = []*store.Message{}
	}
	return msgs, nil
}

func (s *Service) Conversations(ctx context.Context, userID uuid.UUID) ([]Conversation, error) {
	msgs, err := s.store.ListMessagesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	byPartner := make(map[uuid.UUID]*Conversation)
	var order []uuid.UUID
	for _, m := range msgs {
		partnerID := m.SenderID
		if partnerID == userID {
			partnerID = m.ReceiverID
		}
		c, ok := byPartner[partnerID]
		if !ok {
			c = &Conversation{Partner: Partner{ID: partnerID, Name: unknownUser}, LastMessage: m}
			byPartner[partnerID] = c
			order = append(order, partnerID)
		} else if m.CreatedAt.After(c.LastMessage.CreatedAt) {
			c.LastMessage = m
		}
		if m.ReceiverID == userID && !m.IsRead {
			c.UnreadCount++
		}
	}

	users, err := s.store.GetUsers(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("get partners: %w", err)
	}

	out := make([]Conversation, 0, len(order))
	for _, id := range order {
		c := byPartner[id]
		if u := users[id]; u != nil {
			if u.Name != "" {
				c.Partner.Name = u.Name
			}
			c.Partner.Role = u.Role
		}
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessage.CreatedAt.After(out[j].LastMessage.CreatedAt)
	})
	return out, nil
}

func (s *Service) Unread(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, messageID uuid.UUID) error {
	m, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}
	if m == nil {
		return ErrMessageNotFound
	}
	if m.ReceiverID != userID {
		return ErrForbidden
	}
	if m.IsRead {
		return nil
	}
	if err := s.store.MarkRead(ctx, messageID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// StartBridge feeds the hub with messages sent through other instances.
func (s *Service) StartBridge() error {
	if s.hermes == nil {
		return nil
	}
	return s.hermes.Subscribe(hermes.SubjectAllMessages, s.handleRemote)
}

func (s *Service) handleRemote(subject string, data []byte) {
	var evt hermes.MessageEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		s.logger.Warn("invalid message event", "subject", subject, "error", err)
		return
	}
	if evt.Origin == s.instanceID {
		return
	}
	m, err := messageFromEvent(evt)
	if err != nil {
		s.logger.Warn("invalid message event", "subject", subject, "error", err)
		return
	}
	s.hub.Publish(m)
}

func (s *Service) event(m *store.Message) hermes.MessageEvent {
	return hermes.MessageEvent{
		ID:         m.ID.String(),
		SenderID:   m.SenderID.String(),
		ReceiverID: m.ReceiverID.String(),
		Content:    m.Content,
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt,
		Origin:     s.instanceID,
	}
}

func messageFromEvent(evt hermes.MessageEvent) (*store.Message, error) {
	id, err := uuid.Parse(evt.ID)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	sender, err := uuid.Parse(evt.SenderID)
	if err != nil {
		return nil, fmt.Errorf("sender_id: %w", err)
	}
	receiver, err := uuid.Parse(evt.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("receiver_id: %w", err)
	}
	return &store.Message{
		ID:         id,
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    evt.Content,
		IsRead:     evt.IsRead,
		CreatedAt:  evt.CreatedAt,
	}, nil
}
