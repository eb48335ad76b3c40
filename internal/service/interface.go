package service

import (
	"context"

	"github.com/Zwubman/software-company-sub002/internal/domain"
	"github.com/Zwubman/software-company-sub002/internal/hub"
)

// ChatService drives the delivery protocol for one channel: authentication,
// submission, acknowledgment, read receipts and replay.
type ChatService interface {
	HandleAuth(ctx context.Context, ch *hub.Channel, token string) error
	HandleJoin(ctx context.Context, ch *hub.Channel, conversationID string) error
	HandleSubmit(ctx context.Context, ch *hub.Channel, body, nonce string) error
	HandleAck(ctx context.Context, ch *hub.Channel, sequence int64) error
	HandleRead(ctx context.Context, ch *hub.Channel, upToSequence int64) error
	HandleReplay(ctx context.Context, ch *hub.Channel, sinceSequence int64) error
	HandleDisconnect(ctx context.Context, ch *hub.Channel) error
	Start(ctx context.Context) error
	Stop() error
}

// HistoryService serves the request/response message log used for initial
// page load, before the live channel is up.
type HistoryService interface {
	GetHistory(ctx context.Context, conversationID string, after int64, limit int) (*domain.HistoryPage, error)
	ConversationFor(ctx context.Context, conversationID string) (*domain.Conversation, error)
}
