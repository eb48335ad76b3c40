package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Zwubman/software-company-sub002/internal/cache"
	"github.com/Zwubman/software-company-sub002/internal/domain"
	"github.com/Zwubman/software-company-sub002/internal/store"
	"github.com/Zwubman/software-company-sub002/pkg/log"
)

type historyServiceImpl struct {
	store    store.MessageStore
	cache    cache.HistoryCache
	cacheTTL time.Duration
	sf       singleflight.Group
}

func NewHistoryService(st store.MessageStore, hc cache.HistoryCache, cacheTTL time.Duration) HistoryService {
	return &historyServiceImpl{
		store:    st,
		cache:    hc,
		cacheTTL: cacheTTL,
	}
}

func (s *historyServiceImpl) ConversationFor(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	return s.store.GetConversation(ctx, conversationID)
}

func (s *historyServiceImpl) GetHistory(ctx context.Context, conversationID string, after int64, limit int) (*domain.HistoryPage, error) {
	if limit <= 0 {
		return s.fetch(ctx, conversationID, after, limit)
	}

	key := s.cache.BuildKey(conversationID, after, limit)

	// Collapse concurrent requests for the same page.
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		return s.fetchWithCache(ctx, conversationID, after, limit, key)
	})
	if err != nil {
		return nil, err
	}

	page, ok := result.(*domain.HistoryPage)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	return page, nil
}

func (s *historyServiceImpl) fetchWithCache(ctx context.Context, conversationID string, after int64, limit int, key string) (*domain.HistoryPage, error) {
	cached, err := s.cache.Get(ctx, key)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache get error")
	}

	page, err := s.fetch(ctx, conversationID, after, limit)
	if err != nil {
		return nil, err
	}

	// Only complete pages are immutable; the tail grows with every message,
	// so caching it would serve stale history.
	if page.HasMore {
		go func() {
			cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.cache.Set(cacheCtx, key, page, s.cacheTTL); err != nil {
				l := log.L()
				l.Warn().Err(err).Msg("cache set error")
			}
		}()
	}

	return page, nil
}

func (s *historyServiceImpl) fetch(ctx context.Context, conversationID string, after int64, limit int) (*domain.HistoryPage, error) {
	fetchLimit := limit
	if fetchLimit > 0 {
		fetchLimit++ // one extra row decides has_more
	}

	messages, err := s.store.ListSince(ctx, conversationID, after, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	page := &domain.HistoryPage{Messages: messages}
	if limit > 0 && len(messages) > limit {
		page.Messages = messages[:limit]
		page.HasMore = true
	}
	return page, nil
}
