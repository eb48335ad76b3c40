package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/Zwubman/software-company-sub002/internal/domain"
)

// NoopHistoryCache misses on every lookup. Used when Redis is not configured.
type NoopHistoryCache struct{}

func NewNoopHistoryCache() *NoopHistoryCache {
	return &NoopHistoryCache{}
}

func (*NoopHistoryCache) BuildKey(conversationID string, after int64, limit int) string {
	return fmt.Sprintf("%s:%d:%d", conversationID, after, limit)
}

func (*NoopHistoryCache) Get(ctx context.Context, key string) (*domain.HistoryPage, error) {
	return nil, ErrCacheMiss
}

func (*NoopHistoryCache) Set(ctx context.Context, key string, page *domain.HistoryPage, ttl time.Duration) error {
	return nil
}

func (*NoopHistoryCache) Close() error {
	return nil
}
