package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Zwubman/software-company-sub002/internal/domain"
	"github.com/Zwubman/software-company-sub002/pkg/database"
)

func newGormStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := database.New(&database.Config{
		Driver:   "sqlite",
		FilePath: filepath.Join(t.TempDir(), "chat.db"),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	s := NewGormStore(db)
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

// runStores runs a subtest against every MessageStore implementation.
func runStores(t *testing.T, fn func(t *testing.T, s MessageStore)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("gorm", func(t *testing.T) {
		fn(t, newGormStore(t))
	})
}

func mustConversation(t *testing.T, s MessageStore, userID string) *domain.Conversation {
	t.Helper()
	conv, err := s.EnsureConversation(context.Background(), userID)
	if err != nil {
		t.Fatalf("ensure conversation: %v", err)
	}
	return conv
}

func TestEnsureConversationOnePerUser(t *testing.T) {
	runStores(t, func(t *testing.T, s MessageStore) {
		first := mustConversation(t, s, "user-1")
		second := mustConversation(t, s, "user-1")
		if first.ID != second.ID {
			t.Errorf("expected one conversation per user, got %s and %s", first.ID, second.ID)
		}

		other := mustConversation(t, s, "user-2")
		if other.ID == first.ID {
			t.Error("different users must not share a conversation")
		}
	})
}

func TestAppendAssignsGaplessSequences(t *testing.T) {
	runStores(t, func(t *testing.T, s MessageStore) {
		ctx := context.Background()
		conv := mustConversation(t, s, "user-1")

		for i := 1; i <= 5; i++ {
			msg, dup, err := s.Append(ctx, conv.ID, "user-1", domain.RoleUser, fmt.Sprintf("msg %d", i), fmt.Sprintf("nonce-%d", i))
			if err != nil {
				t.Fatalf("append %d: %v", i, err)
			}
			if dup {
				t.Fatalf("append %d: unexpected duplicate", i)
			}
			if msg.Sequence != int64(i) {
				t.Errorf("append %d: sequence = %d, want %d", i, msg.Sequence, i)
			}
			if msg.DeliveryState != domain.DeliveryPersisted {
				t.Errorf("append %d: state = %s, want %s", i, msg.DeliveryState, domain.DeliveryPersisted)
			}
		}

		all, err := s.GetAll(ctx, conv.ID)
		if err != nil {
			t.Fatalf("get all: %v", err)
		}
		if len(all) != 5 {
			t.Fatalf("got %d messages, want 5", len(all))
		}
		for i, msg := range all {
			if msg.Sequence != int64(i+1) {
				t.Errorf("message %d: sequence = %d, want %d", i, msg.Sequence, i+1)
			}
		}
	})
}

func TestAppendNonceIdempotent(t *testing.T) {
	runStores(t, func(t *testing.T, s MessageStore) {
		ctx := context.Background()
		conv := mustConversation(t, s, "user-1")

		first, dup, err := s.Append(ctx, conv.ID, "user-1", domain.RoleUser, "Hi", "nonce-a")
		if err != nil || dup {
			t.Fatalf("first append: dup=%v err=%v", dup, err)
		}

		second, dup, err := s.Append(ctx, conv.ID, "user-1", domain.RoleUser, "Hi", "nonce-a")
		if err != nil {
			t.Fatalf("resubmit: %v", err)
		}
		if !dup {
			t.Error("resubmit with same nonce should report duplicate")
		}
		if second.Sequence != first.Sequence {
			t.Errorf("resubmit sequence = %d, want original %d", second.Sequence, first.Sequence)
		}

		all, _ := s.GetAll(ctx, conv.ID)
		if len(all) != 1 {
			t.Errorf("got %d persisted messages, want 1", len(all))
		}

		// Same nonce from a different sender is a distinct message.
		agent, dup, err := s.Append(ctx, conv.ID, "agent-1", domain.RoleAgent, "Hello", "nonce-a")
		if err != nil || dup {
			t.Fatalf("agent append: dup=%v err=%v", dup, err)
		}
		if agent.Sequence != first.Sequence+1 {
			t.Errorf("agent sequence = %d, want %d", agent.Sequence, first.Sequence+1)
		}
	})
}

func TestAppendUnknownConversation(t *testing.T) {
	runStores(t, func(t *testing.T, s MessageStore) {
		_, _, err := s.Append(context.Background(), "missing", "user-1", domain.RoleUser, "hi", "n")
		if err == nil {
			t.Fatal("expected error for unknown conversation")
		}
	})
}

func TestListSince(t *testing.T) {
	runStores(t, func(t *testing.T, s MessageStore) {
		ctx := context.Background()
		conv := mustConversation(t, s, "user-1")
		for i := 1; i <= 10; i++ {
			if _, _, err := s.Append(ctx, conv.ID, "user-1", domain.RoleUser, "m", fmt.Sprintf("n-%d", i)); err != nil {
				t.Fatalf("append: %v", err)
			}
		}

		tests := []struct {
			name  string
			since int64
			limit int
			want  []int64
		}{
			{"all", 0, 0, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
			{"since middle", 7, 0, []int64{8, 9, 10}},
			{"since last", 10, 0, nil},
			{"beyond last", 99, 0, nil},
			{"limited", 2, 3, []int64{3, 4, 5}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := s.ListSince(ctx, conv.ID, tt.since, tt.limit)
				if err != nil {
					t.Fatalf("list since: %v", err)
				}
				if len(got) != len(tt.want) {
					t.Fatalf("got %d messages, want %d", len(got), len(tt.want))
				}
				for i, msg := range got {
					if msg.Sequence != tt.want[i] {
						t.Errorf("message %d: sequence = %d, want %d", i, msg.Sequence, tt.want[i])
					}
				}
			})
		}
	})
}

func TestMarkReadMonotonic(t *testing.T) {
	runStores(t, func(t *testing.T, s MessageStore) {
		ctx := context.Background()
		conv := mustConversation(t, s, "user-1")
		for i := 1; i <= 6; i++ {
			if _, _, err := s.Append(ctx, conv.ID, "agent-1", domain.RoleAgent, "m", fmt.Sprintf("n-%d", i)); err != nil {
				t.Fatalf("append: %v", err)
			}
		}

		got, err := s.MarkRead(ctx, conv.ID, "user-1", 5)
		if err != nil {
			t.Fatalf("mark read: %v", err)
		}
		if got != 5 {
			t.Errorf("watermark = %d, want 5", got)
		}

		// A lower request never regresses the watermark.
		got, err = s.MarkRead(ctx, conv.ID, "user-1", 3)
		if err != nil {
			t.Fatalf("mark read: %v", err)
		}
		if got != 5 {
			t.Errorf("watermark after lower request = %d, want 5", got)
		}

		wm, err := s.GetWatermark(ctx, conv.ID, "user-1")
		if err != nil {
			t.Fatalf("get watermark: %v", err)
		}
		if wm != 5 {
			t.Errorf("stored watermark = %d, want 5", wm)
		}

		// The other side's messages up to the watermark are now read.
		all, _ := s.GetAll(ctx, conv.ID)
		for _, msg := range all {
			want := domain.DeliveryRead
			if msg.Sequence > 5 {
				want = domain.DeliveryPersisted
			}
			if msg.DeliveryState != want {
				t.Errorf("message %d: state = %s, want %s", msg.Sequence, msg.DeliveryState, want)
			}
		}
	})
}

func TestWatermarkUnreadIsZero(t *testing.T) {
	runStores(t, func(t *testing.T, s MessageStore) {
		conv := mustConversation(t, s, "user-1")
		wm, err := s.GetWatermark(context.Background(), conv.ID, "user-1")
		if err != nil {
			t.Fatalf("get watermark: %v", err)
		}
		if wm != 0 {
			t.Errorf("watermark = %d, want 0", wm)
		}
	})
}

func TestMarkDelivered(t *testing.T) {
	runStores(t, func(t *testing.T, s MessageStore) {
		ctx := context.Background()
		conv := mustConversation(t, s, "user-1")
		for i := 1; i <= 4; i++ {
			if _, _, err := s.Append(ctx, conv.ID, "user-1", domain.RoleUser, "m", fmt.Sprintf("n-%d", i)); err != nil {
				t.Fatalf("append: %v", err)
			}
		}

		if err := s.MarkDelivered(ctx, conv.ID, 2); err != nil {
			t.Fatalf("mark delivered: %v", err)
		}
		// Repeating is harmless.
		if err := s.MarkDelivered(ctx, conv.ID, 2); err != nil {
			t.Fatalf("mark delivered again: %v", err)
		}

		all, _ := s.GetAll(ctx, conv.ID)
		for _, msg := range all {
			want := domain.DeliveryDelivered
			if msg.Sequence > 2 {
				want = domain.DeliveryPersisted
			}
			if msg.DeliveryState != want {
				t.Errorf("message %d: state = %s, want %s", msg.Sequence, msg.DeliveryState, want)
			}
		}
	})
}

func TestConcurrentAppendsStayGapless(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	conv := mustConversation(t, s, "user-1")

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				nonce := fmt.Sprintf("w%d-n%d", w, i)
				if _, _, err := s.Append(ctx, conv.ID, "user-1", domain.RoleUser, "m", nonce); err != nil {
					t.Errorf("append: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	all, err := s.GetAll(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != writers*perWriter {
		t.Fatalf("got %d messages, want %d", len(all), writers*perWriter)
	}
	for i, msg := range all {
		if msg.Sequence != int64(i+1) {
			t.Fatalf("message %d: sequence = %d, want %d (gap or reorder)", i, msg.Sequence, i+1)
		}
	}
}
