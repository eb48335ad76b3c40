package events

import (
	"context"

	"github.com/Zwubman/software-company-sub002/internal/domain"
)

// NoopPublisher discards events. Used when no Kafka brokers are configured.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (*NoopPublisher) PublishMessagePersisted(ctx context.Context, msg *domain.Message) error {
	return nil
}

func (*NoopPublisher) PublishRead(ctx context.Context, wm *domain.Watermark) error {
	return nil
}

func (*NoopPublisher) Close() error {
	return nil
}
