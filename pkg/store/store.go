package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harrisonrobin/taskmind/pkg/events"
	"github.com/harrisonrobin/taskmind/pkg/kv"
	"github.com/harrisonrobin/taskmind/pkg/logger"
	"github.com/harrisonrobin/taskmind/pkg/metrics"
	"github.com/harrisonrobin/taskmind/pkg/model"
)

var ErrTaskNotFound = errors.New("task not found")

// Uploader is the cloud backup collaborator.
type Uploader interface {
	Upload(ctx context.Context, blob []byte, filename string) error
}

// Store owns the task list. Every mutation is a full-list write through
// the kv backend followed by a change event.
type Store struct {
	kv  kv.Store
	bus *events.Bus

	mu    sync.RWMutex
	tasks []model.Task

	backup        Uploader
	backupName    string
	backupEnabled func() bool
	backupTimeout time.Duration
	pending       sync.WaitGroup
}

func New(backend kv.Store, bus *events.Bus) *Store {
	if bus == nil {
		bus = events.NewBus(0)
	}
	return &Store{kv: backend, bus: bus, backupTimeout: 30 * time.Second}
}

// SetBackup mirrors every saved list to u while enabled reports true.
func (s *Store) SetBackup(u Uploader, filename string, enabled func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backup = u
	s.backupName = filename
	s.backupEnabled = enabled
}

// Load reads the persisted list. Records repeating an earlier id are dropped.
func (s *Store) Load(ctx context.Context) error {
	raw, ok, err := s.kv.Load(ctx, kv.KeyTasks)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	var tasks []model.Task
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
			return fmt.Errorf("failed to decode stored tasks: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(tasks))
	clean := tasks[:0]
	for _, t := range tasks {
		if _, dup := seen[t.ID]; dup {
			logger.Warn("dropping stored task with duplicate id", "id", t.ID, "title", t.Title)
			continue
		}
		seen[t.ID] = struct{}{}
		clean = append(clean, t)
	}

	s.mu.Lock()
	s.tasks = clean
	s.mu.Unlock()
	metrics.StoredTasks.Set(float64(len(clean)))
	return nil
}

// Tasks returns a copy of the current list.
func (s *Store) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

func (s *Store) Subscribe(fn events.Subscriber) func() {
	return s.bus.Subscribe(fn)
}

// Apply merges incoming into the list and persists the result.
func (s *Store) Apply(ctx context.Context, incoming []model.Task, mode Mode) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := Merge(s.tasks, incoming, mode)
	evt := events.TasksMerged
	if mode == ModeReplace {
		evt = events.TasksReplaced
	}
	if err := s.commit(ctx, next, evt, map[string]any{"incoming": len(incoming), "total": len(next)}); err != nil {
		return nil, err
	}
	out := make([]model.Task, len(next))
	copy(out, next)
	return out, nil
}

// Toggle flips isCompleted on the task with id.
func (s *Store) Toggle(ctx context.Context, id string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, t := range s.tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	next := make([]model.Task, len(s.tasks))
	copy(next, s.tasks)
	next[idx].IsCompleted = !next[idx].IsCompleted

	if err := s.commit(ctx, next, events.TaskToggled, map[string]any{"id": id, "isCompleted": next[idx].IsCompleted}); err != nil {
		return model.Task{}, err
	}
	return next[idx], nil
}

// Clear empties the list. It is the only destructive operation.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, []model.Task{}, events.TasksCleared, nil)
}

// Flush waits for in-flight backups.
func (s *Store) Flush() {
	s.pending.Wait()
}

// commit must be called with s.mu held.
func (s *Store) commit(ctx context.Context, next []model.Task, evt events.Type, data map[string]any) error {
	if next == nil {
		next = []model.Task{}
	}
	blob, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}
	if err := s.kv.Save(ctx, kv.KeyTasks, string(blob)); err != nil {
		return fmt.Errorf("failed to save tasks: %w", err)
	}
	s.tasks = next
	metrics.StoredTasks.Set(float64(len(next)))
	s.bus.Publish(evt, data)

	if s.backup != nil && len(next) > 0 && (s.backupEnabled == nil || s.backupEnabled()) {
		s.startBackup(blob)
	}
	return nil
}

func (s *Store) startBackup(blob []byte) {
	u, name, timeout := s.backup, s.backupName, s.backupTimeout
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := u.Upload(ctx, blob, name); err != nil {
			logger.Warn("backup upload failed", "file", name, "error", err)
			return
		}
		logger.Debug("backup uploaded", "file", name, "bytes", len(blob))
	}()
}
