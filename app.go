package main

import (
	"context"
	"fmt"

	"github.com/harrisonrobin/taskmind/pkg/auth"
	"github.com/harrisonrobin/taskmind/pkg/config"
	"github.com/harrisonrobin/taskmind/pkg/events"
	"github.com/harrisonrobin/taskmind/pkg/extract"
	"github.com/harrisonrobin/taskmind/pkg/google"
	"github.com/harrisonrobin/taskmind/pkg/kv"
	"github.com/harrisonrobin/taskmind/pkg/logger"
	"github.com/harrisonrobin/taskmind/pkg/pipeline"
	"github.com/harrisonrobin/taskmind/pkg/settings"
	"github.com/harrisonrobin/taskmind/pkg/source"
	"github.com/harrisonrobin/taskmind/pkg/store"
)

// app holds everything a command needs, built once from config.
type app struct {
	cfg      *config.Config
	authDir  string
	kv       kv.Store
	bus      *events.Bus
	provider auth.Provider
	settings *settings.Repo
	store    *store.Store
	syncer   *pipeline.Syncer

	closeKV func()
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Log.Level, cfg.Log.JSON)

	authDir, err := config.GetXdgHome()
	if err != nil {
		return nil, fmt.Errorf("could not find path to configuration directory: %w", err)
	}

	backend, closeKV, err := kv.Open(ctx, kv.Options{
		Backend:       cfg.Storage.Backend,
		Dir:           cfg.Storage.Dir,
		RedisAddr:     cfg.Storage.RedisAddr,
		RedisPassword: cfg.Storage.RedisPassword,
		RedisDB:       cfg.Storage.RedisDB,
		DatabaseURL:   cfg.Storage.DatabaseURL,
		SQLitePath:    cfg.Storage.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}

	a := &app{cfg: cfg, authDir: authDir, kv: backend, closeKV: closeKV, bus: events.NewBus(0)}

	if cfg.Account.AccessToken != "" {
		a.provider = auth.StaticProvider{AccessToken: cfg.Account.AccessToken, Enhanced: cfg.Account.Enhanced()}
	} else {
		a.provider = &auth.OAuthProvider{Dir: authDir, Enhanced: cfg.Account.Enhanced()}
	}

	a.settings = settings.NewRepo(backend)
	if _, err := a.settings.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.store = store.New(backend, a.bus)
	if err := a.store.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.store.SetBackup(&google.DriveBackup{Provider: a.provider}, cfg.Backup.Filename, a.settings.BackupEnabled)

	mode, err := store.ParseMode(cfg.Sync.Mode)
	if err != nil {
		a.Close()
		return nil, err
	}

	var fetchers []source.Fetcher
	if cfg.Sources.Gmail {
		fetchers = append(fetchers, &google.GmailFetcher{MaxItems: cfg.Sources.MaxItems})
	}
	if cfg.Sources.Chat {
		fetchers = append(fetchers, &google.ChatFetcher{MaxItems: cfg.Sources.MaxItems})
	}

	a.syncer = &pipeline.Syncer{
		Provider:     a.provider,
		Fetchers:     fetchers,
		Engine:       extract.NewEngine(extract.NewGemini(cfg.Gemini.Model), cfg.Gemini.Timeout),
		Store:        a.store,
		Settings:     a.settings,
		Bus:          a.bus,
		EnvKey:       cfg.Gemini.APIKey,
		Mode:         mode,
		FetchTimeout: cfg.Sources.Timeout,
	}
	return a, nil
}

// Close waits for pending backups and releases storage.
func (a *app) Close() {
	if a.store != nil {
		a.store.Flush()
	}
	a.bus.Close()
	a.closeKV()
}
