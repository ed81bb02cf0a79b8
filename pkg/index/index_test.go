package index

import (
	"context"
	"testing"

	"github.com/harrisonrobin/taskmind/pkg/kv"
)

type countingStore struct {
	*kv.MemoryStore
	saves int
}

func (c *countingStore) Save(ctx context.Context, key, value string) error {
	c.saves++
	return c.MemoryStore.Save(ctx, key, value)
}

func TestIndexPersistsThroughKV(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{MemoryStore: kv.NewMemoryStore()}

	idx, err := Load(ctx, backend)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := idx.Get("task-1"); got != "" {
		t.Fatalf("expected empty mapping, got %q", got)
	}

	idx.Set("task-1", "evt-1")
	idx.Set("task-2", "evt-2")
	idx.Remove("task-2")
	if err := idx.Save(ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := Load(ctx, backend)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := reloaded.Get("task-1"); got != "evt-1" {
		t.Errorf("expected evt-1, got %q", got)
	}
	if got := reloaded.Get("task-2"); got != "" {
		t.Errorf("removed mapping came back: %q", got)
	}
}

func TestSaveSkipsCleanIndex(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{MemoryStore: kv.NewMemoryStore()}

	idx, _ := Load(ctx, backend)
	idx.Set("a", "1")
	_ = idx.Save(ctx)
	idx.Set("a", "1")
	_ = idx.Save(ctx)

	if backend.saves != 1 {
		t.Errorf("expected 1 write, got %d", backend.saves)
	}
}

func TestLoadRejectsCorruptIndex(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemoryStore()
	_ = backend.Save(ctx, kv.KeyCalendarIndex, "not json")

	if _, err := Load(ctx, backend); err == nil {
		t.Fatal("expected decode error")
	}
}
