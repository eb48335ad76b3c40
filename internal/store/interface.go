package store

import (
	"context"

	"github.com/Zwubman/software-company-sub002/internal/domain"
)

// MessageStore is the durable log of conversations, messages and read
// watermarks. Append is the single point of sequence assignment: concurrent
// appends on the same conversation are serialized by the implementation, so
// sequences are strictly increasing and gapless.
type MessageStore interface {
	// EnsureConversation returns the user's conversation, creating it if this
	// is the user's first contact. Exactly one conversation exists per user.
	EnsureConversation(ctx context.Context, userID string) (*domain.Conversation, error)

	// GetConversation returns a conversation by id, or
	// domain.ErrConversationNotFound.
	GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)

	// Append persists a new message and assigns it the next sequence number.
	// A resubmission with a previously seen (senderID, nonce) pair returns the
	// original message and duplicate=true instead of appending again.
	Append(ctx context.Context, conversationID, senderID string, senderRole domain.Role, body, nonce string) (msg *domain.Message, duplicate bool, err error)

	// ListSince returns messages with sequence > sinceSequence in ascending
	// order. limit <= 0 means no limit.
	ListSince(ctx context.Context, conversationID string, sinceSequence int64, limit int) ([]domain.Message, error)

	// GetAll returns every message of the conversation in ascending order.
	GetAll(ctx context.Context, conversationID string) ([]domain.Message, error)

	// MarkDelivered advances still-persisted messages up to upToSequence to
	// the delivered state. Forward-only and idempotent.
	MarkDelivered(ctx context.Context, conversationID string, upToSequence int64) error

	// MarkRead advances the participant's read watermark. A request below the
	// stored watermark is a no-op; the effective watermark is returned.
	// Messages from the other side at or below the watermark move to the read
	// state.
	MarkRead(ctx context.Context, conversationID, participantID string, upToSequence int64) (int64, error)

	// GetWatermark returns the participant's read watermark, 0 if never read.
	GetWatermark(ctx context.Context, conversationID, participantID string) (int64, error)
}
