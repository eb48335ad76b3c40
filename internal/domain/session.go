package domain

import (
	"sync"
	"time"
)

// Session holds the mutable state of one live channel: who it belongs to and
// which conversation it is attached to. A user channel is bound to its own
// conversation at auth time; an agent channel attaches via join and may switch.
type Session struct {
	ID             string
	ParticipantID  string
	DisplayName    string
	Role           Role
	Authenticated  bool
	ConversationID string
	ConnectedAt    time.Time
	LastActiveAt   time.Time
	mu             sync.RWMutex
}

func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		ConnectedAt:  now,
		LastActiveAt: now,
	}
}

func (s *Session) Authenticate(participantID, displayName string, role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ParticipantID = participantID
	s.DisplayName = displayName
	s.Role = role
	s.Authenticated = true
	s.LastActiveAt = time.Now()
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Authenticated
}

func (s *Session) AttachConversation(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ConversationID = conversationID
	s.LastActiveAt = time.Now()
}

func (s *Session) DetachConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ConversationID = ""
	s.LastActiveAt = time.Now()
}

func (s *Session) GetConversation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ConversationID
}

func (s *Session) IsAttached() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ConversationID != ""
}

func (s *Session) GetParticipantID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ParticipantID
}

func (s *Session) GetRole() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Role
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
