// Package index maps task ids to the calendar events mirroring them.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/harrisonrobin/taskmind/pkg/kv"
)

type EventIndex struct {
	Mappings map[string]string `json:"mappings"`
	store    kv.Store
	mu       sync.RWMutex
	dirty    bool
}

// Load reads the index from store. A missing key yields an empty index.
func Load(ctx context.Context, store kv.Store) (*EventIndex, error) {
	idx := &EventIndex{
		Mappings: make(map[string]string),
		store:    store,
	}

	raw, ok, err := store.Load(ctx, kv.KeyCalendarIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to load event index: %w", err)
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &idx.Mappings); err != nil {
			return nil, fmt.Errorf("failed to decode event index: %w", err)
		}
	}
	return idx, nil
}

// Save writes the index back if anything changed since the last save.
func (idx *EventIndex) Save(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}

	blob, err := json.Marshal(idx.Mappings)
	if err != nil {
		return err
	}
	if err := idx.store.Save(ctx, kv.KeyCalendarIndex, string(blob)); err != nil {
		return fmt.Errorf("failed to save event index: %w", err)
	}
	idx.dirty = false
	return nil
}

func (idx *EventIndex) Get(taskID string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.Mappings[taskID]
}

func (idx *EventIndex) Set(taskID, eventID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.Mappings[taskID] != eventID {
		idx.Mappings[taskID] = eventID
		idx.dirty = true
	}
}

// Entries returns a copy of the task id to event id mappings.
func (idx *EventIndex) Entries() map[string]string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string]string, len(idx.Mappings))
	for k, v := range idx.Mappings {
		out[k] = v
	}
	return out
}

func (idx *EventIndex) Remove(taskID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.Mappings[taskID]; exists {
		delete(idx.Mappings, taskID)
		idx.dirty = true
	}
}
