// Package pipeline runs fetch → aggregate → extract → merge.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harrisonrobin/taskmind/pkg/auth"
	"github.com/harrisonrobin/taskmind/pkg/corpus"
	"github.com/harrisonrobin/taskmind/pkg/events"
	"github.com/harrisonrobin/taskmind/pkg/extract"
	"github.com/harrisonrobin/taskmind/pkg/logger"
	"github.com/harrisonrobin/taskmind/pkg/metrics"
	"github.com/harrisonrobin/taskmind/pkg/model"
	"github.com/harrisonrobin/taskmind/pkg/settings"
	"github.com/harrisonrobin/taskmind/pkg/source"
	"github.com/harrisonrobin/taskmind/pkg/store"
	"golang.org/x/sync/singleflight"
)

// Extractor turns a corpus into tasks.
type Extractor interface {
	Extract(ctx context.Context, corpus string, policy model.Policy) ([]model.Task, error)
}

// Report describes one run.
type Report struct {
	Stats model.Stats
	// NoContent is set when every source was empty and extraction was skipped.
	NoContent bool
	// Shared is set when this caller joined a sync that was already running.
	Shared bool
	// Extracted holds the tasks the model returned in this run.
	Extracted []model.Task
	// Total is the list length after merging.
	Total int
}

// Syncer owns the one-at-a-time execution of pipeline runs.
type Syncer struct {
	Provider     auth.Provider
	Fetchers     []source.Fetcher
	Engine       Extractor
	Store        *store.Store
	Settings     *settings.Repo
	Bus          *events.Bus
	EnvKey       string
	Mode         store.Mode
	FetchTimeout time.Duration

	flight singleflight.Group
	runMu  sync.Mutex
}

// Sync scans the configured sources. Concurrent callers share the in-flight run.
func (s *Syncer) Sync(ctx context.Context) (Report, error) {
	v, err, shared := s.flight.Do("sync", func() (any, error) {
		return s.runSync(context.WithoutCancel(ctx))
	})
	report, _ := v.(Report)
	report.Shared = shared
	return report, err
}

// Analyze extracts tasks from text and merges them with append-dedup.
func (s *Syncer) Analyze(ctx context.Context, text string) (Report, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	fetchers := []source.Fetcher{source.Text{Body: text}}
	results := source.FetchAll(ctx, auth.Credential{}, fetchers, 0)
	report, err := s.extractAndMerge(ctx, results, store.ModeAppendDedup)
	s.record("analyze", err, report)
	return report, err
}

func (s *Syncer) runSync(ctx context.Context) (Report, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.publish(events.SyncStarted, nil)
	report, err := s.scan(ctx)
	s.record("sync", err, report)

	data := map[string]any{
		"emailsScanned": report.Stats.EmailsScanned,
		"chatsScanned":  report.Stats.ChatsScanned,
		"tasksFound":    report.Stats.TasksFound,
		"noContent":     report.NoContent,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	s.publish(events.SyncFinished, data)
	return report, err
}

func (s *Syncer) scan(ctx context.Context) (Report, error) {
	if s.policy().Credential == "" {
		return Report{}, extract.ErrMissingCredential
	}

	cred, err := s.Provider.Credential(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("google credential: %w", err)
	}

	results := source.FetchAll(ctx, cred, s.Fetchers, s.FetchTimeout)
	mode := s.Mode
	if mode == "" {
		mode = store.ModeReplace
	}
	return s.extractAndMerge(ctx, results, mode)
}

func (s *Syncer) extractAndMerge(ctx context.Context, results []source.Result, mode store.Mode) (Report, error) {
	var report Report
	for _, r := range results {
		metrics.SourceFetches.WithLabelValues(r.Label, metrics.Outcome(r.OK)).Inc()
		switch r.Label {
		case source.LabelGmail:
			report.Stats.EmailsScanned += r.Blob.Items
		case source.LabelChat:
			report.Stats.ChatsScanned += r.Blob.Items
		}
	}

	text, err := corpus.Aggregate(results)
	if errors.Is(err, corpus.ErrNoContent) {
		logger.Info("no content available from any source")
		report.NoContent = true
		report.Total = len(s.Store.Tasks())
		return report, nil
	}
	if err != nil {
		return report, err
	}

	start := time.Now()
	tasks, err := s.Engine.Extract(ctx, text, s.policy())
	metrics.ExtractionSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return report, err
	}
	metrics.TasksExtracted.Add(float64(len(tasks)))
	report.Stats.TasksFound = len(tasks)
	report.Extracted = tasks

	merged, err := s.Store.Apply(ctx, tasks, mode)
	if err != nil {
		return report, err
	}
	report.Total = len(merged)

	logger.Info("run complete",
		"mode", string(mode),
		"emails", report.Stats.EmailsScanned,
		"chats", report.Stats.ChatsScanned,
		"found", report.Stats.TasksFound,
		"total", report.Total,
	)
	return report, nil
}

func (s *Syncer) policy() model.Policy {
	if s.Settings == nil {
		return model.DefaultSettings().Policy(s.EnvKey)
	}
	return s.Settings.Current().Policy(s.EnvKey)
}

func (s *Syncer) publish(t events.Type, data map[string]any) {
	if s.Bus != nil {
		s.Bus.Publish(t, data)
	}
}

func (s *Syncer) record(kind string, err error, report Report) {
	result := "ok"
	switch {
	case errors.Is(err, extract.ErrMissingCredential):
		result = "missing_credential"
	case err != nil:
		result = "failed"
	case report.NoContent:
		result = "no_content"
	}
	metrics.Runs.WithLabelValues(kind, result).Inc()
	if err != nil {
		logger.Warn("run failed", "kind", kind, "error", err)
	}
}
