package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Zwubman/software-company-sub002/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// HistoryCache caches pages of the history endpoint. Only complete pages are
// worth caching; the tail of a conversation changes with every message.
type HistoryCache interface {
	BuildKey(conversationID string, after int64, limit int) string
	Get(ctx context.Context, key string) (*domain.HistoryPage, error)
	Set(ctx context.Context, key string, page *domain.HistoryPage, ttl time.Duration) error
	Close() error
}
