package events

import (
	"context"

	"github.com/Zwubman/software-company-sub002/internal/domain"
)

// Publisher emits chat events for downstream consumers (archival, analytics).
// Publication happens after the message is durable and never sits on the
// submit acknowledgment path; a failed publish is logged, not surfaced to the
// sender.
type Publisher interface {
	PublishMessagePersisted(ctx context.Context, msg *domain.Message) error
	PublishRead(ctx context.Context, wm *domain.Watermark) error
	Close() error
}

// Event kinds on the wire.
const (
	KindMessagePersisted = "chat.message.persisted"
	KindRead             = "chat.read"
)

// Envelope is the serialized event form.
type Envelope struct {
	Kind      string            `json:"kind"`
	Message   *domain.Message   `json:"message,omitempty"`
	Watermark *domain.Watermark `json:"watermark,omitempty"`
}
