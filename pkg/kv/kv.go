// Package kv holds the key-value persistence backends the task list and
// settings are written through. Every write replaces the whole value.
package kv

import (
	"context"
	"fmt"
	"sync"
)

// Logical keys used by the application.
const (
	KeyTasks         = "taskmind_tasks"
	KeySettings      = "taskmind_settings"
	KeyCalendarIndex = "taskmind_calendar_index"
)

// Store is a last-write-wins string store.
type Store interface {
	// Load returns the stored value and whether the key exists.
	Load(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, value string) error
}

// Options selects and configures a backend.
type Options struct {
	Backend       string
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string
	SQLitePath    string
}

// Open builds the backend named by opts.Backend. The returned close function
// is never nil.
func Open(ctx context.Context, opts Options) (Store, func(), error) {
	switch opts.Backend {
	case "", "file":
		s, err := NewFileStore(opts.Dir)
		return s, func() {}, err
	case "redis":
		s, err := NewRedisStore(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		if err != nil {
			return nil, func() {}, err
		}
		return s, func() { s.Close() }, nil
	case "postgres":
		s, err := NewPostgresStore(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, func() {}, err
		}
		return s, s.Close, nil
	case "sqlite":
		s, err := NewSQLiteStore(ctx, opts.SQLitePath)
		if err != nil {
			return nil, func() {}, err
		}
		return s, func() { s.Close() }, nil
	case "memory":
		return NewMemoryStore(), func() {}, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// MemoryStore keeps values in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Load(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Save(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
