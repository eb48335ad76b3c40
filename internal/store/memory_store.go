package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Zwubman/software-company-sub002/internal/domain"
)

// MemoryStore is an in-memory implementation of MessageStore. Suitable for
// development and tests; single-instance only.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*memoryConversation // conversation id -> state
	byUser        map[string]string              // user id -> conversation id
}

type memoryConversation struct {
	mu           sync.Mutex
	conv         domain.Conversation
	messages     []domain.Message
	nonces       map[string]int // "senderID:nonce" -> index into messages
	watermarks   map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*memoryConversation),
		byUser:        make(map[string]string),
	}
}

func (s *MemoryStore) EnsureConversation(ctx context.Context, userID string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byUser[userID]; ok {
		conv := s.conversations[id].conv
		return &conv, nil
	}

	mc := &memoryConversation{
		conv: domain.Conversation{
			ID:        uuid.New().String(),
			UserID:    userID,
			CreatedAt: time.Now().UTC(),
		},
		nonces:     make(map[string]int),
		watermarks: make(map[string]int64),
	}
	s.conversations[mc.conv.ID] = mc
	s.byUser[userID] = mc.conv.ID

	conv := mc.conv
	return &conv, nil
}

func (s *MemoryStore) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	mc, err := s.get(conversationID)
	if err != nil {
		return nil, err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	conv := mc.conv
	return &conv, nil
}

func (s *MemoryStore) Append(ctx context.Context, conversationID, senderID string, senderRole domain.Role, body, nonce string) (*domain.Message, bool, error) {
	mc, err := s.get(conversationID)
	if err != nil {
		return nil, false, err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := senderID + ":" + nonce
	if idx, ok := mc.nonces[key]; ok {
		msg := mc.messages[idx]
		return &msg, true, nil
	}

	mc.conv.LastSequence++
	msg := domain.Message{
		ConversationID: conversationID,
		Sequence:       mc.conv.LastSequence,
		SenderID:       senderID,
		SenderRole:     senderRole,
		Body:           body,
		Nonce:          nonce,
		DeliveryState:  domain.DeliveryPersisted,
		CreatedAt:      time.Now().UTC(),
	}
	mc.messages = append(mc.messages, msg)
	mc.nonces[key] = len(mc.messages) - 1

	return &msg, false, nil
}

func (s *MemoryStore) ListSince(ctx context.Context, conversationID string, sinceSequence int64, limit int) ([]domain.Message, error) {
	mc, err := s.get(conversationID)
	if err != nil {
		return nil, err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	out := make([]domain.Message, 0)
	for _, msg := range mc.messages {
		if msg.Sequence <= sinceSequence {
			continue
		}
		out = append(out, msg)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) GetAll(ctx context.Context, conversationID string) ([]domain.Message, error) {
	return s.ListSince(ctx, conversationID, 0, 0)
}

func (s *MemoryStore) MarkDelivered(ctx context.Context, conversationID string, upToSequence int64) error {
	mc, err := s.get(conversationID)
	if err != nil {
		return err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	for i := range mc.messages {
		if mc.messages[i].Sequence > upToSequence {
			break
		}
		if mc.messages[i].DeliveryState == domain.DeliveryPersisted {
			mc.messages[i].DeliveryState = domain.DeliveryDelivered
		}
	}
	return nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, conversationID, participantID string, upToSequence int64) (int64, error) {
	mc, err := s.get(conversationID)
	if err != nil {
		return 0, err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if current := mc.watermarks[participantID]; upToSequence <= current {
		return current, nil
	}
	mc.watermarks[participantID] = upToSequence

	for i := range mc.messages {
		if mc.messages[i].Sequence > upToSequence {
			break
		}
		if mc.messages[i].SenderID != participantID {
			mc.messages[i].DeliveryState = domain.DeliveryRead
		}
	}
	return upToSequence, nil
}

func (s *MemoryStore) GetWatermark(ctx context.Context, conversationID, participantID string) (int64, error) {
	mc, err := s.get(conversationID)
	if err != nil {
		return 0, err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.watermarks[participantID], nil
}

func (s *MemoryStore) get(conversationID string) (*memoryConversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mc, ok := s.conversations[conversationID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return mc, nil
}
