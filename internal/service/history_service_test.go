package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Zwubman/software-company-sub002/internal/cache"
	"github.com/Zwubman/software-company-sub002/internal/domain"
	"github.com/Zwubman/software-company-sub002/internal/store"
)

// recordingCache stores pages in memory and counts operations.
type recordingCache struct {
	mu    sync.Mutex
	pages map[string]*domain.HistoryPage
	gets  int
	sets  int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{pages: make(map[string]*domain.HistoryPage)}
}

func (c *recordingCache) BuildKey(conversationID string, after int64, limit int) string {
	return fmt.Sprintf("%s:%d:%d", conversationID, after, limit)
}

func (c *recordingCache) Get(ctx context.Context, key string) (*domain.HistoryPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if page, ok := c.pages[key]; ok {
		return page, nil
	}
	return nil, cache.ErrCacheMiss
}

func (c *recordingCache) Set(ctx context.Context, key string, page *domain.HistoryPage, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.pages[key] = page
	return nil
}

func (c *recordingCache) Close() error { return nil }

func (c *recordingCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

func seedConversation(t *testing.T, st store.MessageStore, count int) string {
	t.Helper()
	conv, err := st.EnsureConversation(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ensure conversation: %v", err)
	}
	for i := 0; i < count; i++ {
		if _, _, err := st.Append(context.Background(), conv.ID, "user-1", domain.RoleUser, "m", nonce(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	return conv.ID
}

func TestGetHistoryPagesThrough(t *testing.T) {
	st := store.NewMemoryStore()
	convID := seedConversation(t, st, 5)
	svc := NewHistoryService(st, cache.NewNoopHistoryCache(), time.Minute)

	var got []int64
	after := int64(0)
	for {
		page, err := svc.GetHistory(context.Background(), convID, after, 2)
		if err != nil {
			t.Fatalf("get history: %v", err)
		}
		for _, m := range page.Messages {
			got = append(got, m.Sequence)
		}
		if !page.HasMore {
			break
		}
		after = page.NextAfter()
	}

	want := []int64{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("sequences = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sequences = %v, want %v", got, want)
		}
	}
}

func TestGetHistoryUnlimited(t *testing.T) {
	st := store.NewMemoryStore()
	convID := seedConversation(t, st, 3)
	svc := NewHistoryService(st, cache.NewNoopHistoryCache(), time.Minute)

	page, err := svc.GetHistory(context.Background(), convID, 0, 0)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(page.Messages) != 3 || page.HasMore {
		t.Errorf("got %d messages (has_more=%v), want 3 complete", len(page.Messages), page.HasMore)
	}
}

func TestGetHistoryCachesOnlyCompletePages(t *testing.T) {
	st := store.NewMemoryStore()
	convID := seedConversation(t, st, 3)
	rc := newRecordingCache()
	svc := NewHistoryService(st, rc, time.Minute)

	// First page is full with more behind it: cacheable.
	page, err := svc.GetHistory(context.Background(), convID, 0, 2)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if !page.HasMore {
		t.Fatal("expected has_more on first page")
	}
	waitForSets(t, rc, 1)

	// The tail page must not be cached: it grows with the next message.
	tail, err := svc.GetHistory(context.Background(), convID, page.NextAfter(), 2)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if tail.HasMore {
		t.Fatal("tail page reported has_more")
	}
	time.Sleep(50 * time.Millisecond)
	if rc.setCount() != 1 {
		t.Errorf("cache sets = %d, want 1", rc.setCount())
	}

	// The cached page is served without another store read.
	again, err := svc.GetHistory(context.Background(), convID, 0, 2)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(again.Messages) != 2 || again.Messages[0].Sequence != 1 {
		t.Errorf("unexpected cached page: %+v", again)
	}
}

func TestGetHistoryUnknownConversation(t *testing.T) {
	svc := NewHistoryService(store.NewMemoryStore(), cache.NewNoopHistoryCache(), time.Minute)

	if _, err := svc.GetHistory(context.Background(), "missing", 0, 10); err == nil {
		t.Error("expected error for unknown conversation")
	}
}

func waitForSets(t *testing.T, rc *recordingCache, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rc.setCount() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("cache sets = %d, want %d", rc.setCount(), want)
}
