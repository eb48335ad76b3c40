package domain

import "time"

// Role identifies which side of a support conversation a participant is on.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// DeliveryState tracks how far a persisted message has progressed.
// The state only ever moves forward.
type DeliveryState string

const (
	DeliveryPersisted DeliveryState = "persisted"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryRead      DeliveryState = "read"
)

// Conversation pairs one end user with the support channel. There is exactly
// one conversation per user; it is created lazily on first contact and never
// deleted. LastSequence is the sequence counter for the conversation, advanced
// only inside the store's append path.
type Conversation struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	LastSequence int64     `json:"last_sequence"`
	CreatedAt    time.Time `json:"created_at"`
}

// Message is an immutable chat message. Sequence is assigned server-side,
// strictly increasing and gapless within a conversation. CreatedAt is the
// server clock; client timestamps are never authoritative.
type Message struct {
	ConversationID string        `json:"conversation_id"`
	Sequence       int64         `json:"sequence"`
	SenderID       string        `json:"sender_id"`
	SenderRole     Role          `json:"sender_role"`
	Body           string        `json:"body"`
	Nonce          string        `json:"nonce"`
	DeliveryState  DeliveryState `json:"delivery_state"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Watermark is the highest sequence a participant has read in a conversation.
// It never decreases.
type Watermark struct {
	ConversationID string    `json:"conversation_id"`
	ParticipantID  string    `json:"participant_id"`
	Sequence       int64     `json:"sequence"`
	UpdatedAt      time.Time `json:"updated_at"`
}
