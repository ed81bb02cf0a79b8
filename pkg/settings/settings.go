// Package settings persists the user's settings blob through a kv backend.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/harrisonrobin/taskmind/pkg/kv"
	"github.com/harrisonrobin/taskmind/pkg/model"
)

// Repo caches the last loaded or saved settings.
type Repo struct {
	kv kv.Store

	mu      sync.RWMutex
	current model.Settings
}

func NewRepo(backend kv.Store) *Repo {
	return &Repo{kv: backend, current: model.DefaultSettings()}
}

// Load reads the stored settings, falling back to defaults when none exist.
func (r *Repo) Load(ctx context.Context) (model.Settings, error) {
	raw, ok, err := r.kv.Load(ctx, kv.KeySettings)
	if err != nil {
		return model.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	s := model.DefaultSettings()
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return model.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
		}
	}

	r.mu.Lock()
	r.current = s
	r.mu.Unlock()
	return s, nil
}

// Save writes s as the whole settings blob.
func (r *Repo) Save(ctx context.Context, s model.Settings) error {
	blob, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := r.kv.Save(ctx, kv.KeySettings, string(blob)); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	r.mu.Lock()
	r.current = s
	r.mu.Unlock()
	return nil
}

// Update applies fn to the current settings and saves the result.
func (r *Repo) Update(ctx context.Context, fn func(*model.Settings) error) (model.Settings, error) {
	s := r.Current()
	if err := fn(&s); err != nil {
		return model.Settings{}, err
	}
	if err := r.Save(ctx, s); err != nil {
		return model.Settings{}, err
	}
	return s, nil
}

func (r *Repo) Current() model.Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// BackupEnabled is suitable for store.Store.SetBackup.
func (r *Repo) BackupEnabled() bool {
	return r.Current().BackupEnabled()
}
