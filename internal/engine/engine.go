// Package engine wires the filter store, matchers, synchronizer and
// preferences into one value that host applications talk to. Every piece
// of state hangs off an Engine; there are no package level singletons.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/bnema/adblock-engine/internal/catalog"
	"github.com/bnema/adblock-engine/internal/database"
	"github.com/bnema/adblock-engine/internal/elemhide"
	"github.com/bnema/adblock-engine/internal/fetcher"
	"github.com/bnema/adblock-engine/internal/matcher"
	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/notification"
	"github.com/bnema/adblock-engine/internal/observability"
	"github.com/bnema/adblock-engine/internal/prefs"
	"github.com/bnema/adblock-engine/internal/repository"
	"github.com/bnema/adblock-engine/internal/scheduler"
	"github.com/bnema/adblock-engine/internal/signature"
	"github.com/bnema/adblock-engine/internal/store"
	"github.com/bnema/adblock-engine/internal/synchronizer"
	"github.com/bnema/adblock-engine/internal/version"
)

// Options configures an Engine. Only Config is required.
type Options struct {
	Config models.Config

	// Fetcher overrides the HTTP fetcher built from Config.HTTP
	Fetcher synchronizer.Fetcher
	// Notifications overrides the file source from Config.Subscriptions
	Notifications notification.Source
	// Catalog overrides the embedded recommendation catalog
	Catalog *catalog.Catalog
	// App identifies the host application for notification targeting
	App    models.AppInfo
	Logger *slog.Logger
}

// Engine is the facade over all components
type Engine struct {
	db            *database.DB
	store         *store.Store
	matcher       *matcher.Matcher
	hider         *elemhide.ElementHider
	sync          *synchronizer.Synchronizer
	scheduler     *scheduler.Scheduler
	prefs         *prefs.Store
	notifications *notification.Manager
	catalog       *catalog.Catalog
	verifier      *signature.Verifier
	logger        *slog.Logger

	// aaMu serializes acceptable ads toggles
	aaMu      sync.Mutex
	closeOnce sync.Once
}

// New opens the database, loads the persisted state and builds the
// indexes. The first start seeds the lists configured in Config.Lists.
func New(ctx context.Context, opts Options) (*Engine, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := database.New(cfg.Database, observability.WithComponent(logger, "database"))
	if err != nil {
		return nil, err
	}
	if err := repository.AutoMigrate(db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	e := &Engine{
		db:       db,
		matcher:  matcher.New().WithLogger(observability.WithComponent(logger, "matcher")),
		hider:    elemhide.New().WithLogger(observability.WithComponent(logger, "elemhide")),
		verifier: signature.New().WithLogger(observability.WithComponent(logger, "signature")),
		catalog:  opts.Catalog,
		logger:   logger,
	}
	if e.catalog == nil {
		e.catalog = catalog.Default()
	}

	e.prefs = prefs.New(prefs.Defaults(cfg), repository.NewPreferenceRepository(db.DB)).
		WithLogger(observability.WithComponent(logger, "prefs"))
	if err := e.prefs.Load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	e.store = store.New(repository.NewSubscriptionRepository(db.DB), observability.WithComponent(logger, "store"))
	e.store.Subscribe(func(subs []models.Subscription) {
		e.matcher.Rebuild(subs)
		e.hider.Rebuild(subs)
	})
	if err := e.store.Load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	f := opts.Fetcher
	if f == nil {
		f = fetcher.New(cfg.HTTP).WithLogger(observability.WithComponent(logger, "fetcher"))
	}
	e.sync = synchronizer.New(e.store, f, synchronizer.Options{
		DefaultExpiration: cfg.Sync.DefaultExpiration,
		Logger:            observability.WithComponent(logger, "synchronizer"),
	})

	e.scheduler = scheduler.New(e.store, e.sync, cfg.Sync).
		WithLogger(observability.WithComponent(logger, "scheduler")).
		WithEnabled(func() bool { return e.prefs.Bool(prefs.KeyAutoUpdate) })

	source := opts.Notifications
	if source == nil {
		source = notification.FileSource{Path: cfg.Subscriptions.NotificationsFile}
	}
	app := opts.App
	if app.Application == "" {
		app.Application = version.ApplicationName
		app.ApplicationVersion = version.Version
	}
	if app.Platform == "" {
		app.Platform = runtime.GOOS
	}
	e.notifications = notification.New(source, repository.NewNotificationStateRepository(db.DB), notification.Options{
		App:     app,
		Locale:  func() string { return e.prefs.String(prefs.KeyLocale) },
		Ignored: func() []string { return e.prefs.Strings(prefs.KeyNotificationsIgnored) },
		Logger:  observability.WithComponent(logger, "notification"),
	})
	if err := e.notifications.Load(ctx); err != nil {
		// A broken notification file must not keep the engine from starting
		logger.Warn("failed to load notifications", slog.Any("error", err))
	}

	if err := e.firstRun(ctx, cfg); err != nil {
		e.Close()
		return nil, err
	}

	logger.Info("engine ready",
		slog.Int("subscriptions", e.store.Len()),
		slog.Int("blocking_filters", e.matcher.Stats().Blocking))
	return e, nil
}

// firstRun seeds the configured lists once per database
func (e *Engine) firstRun(ctx context.Context, cfg models.Config) error {
	if e.prefs.Bool(prefs.KeyFirstRunDone) {
		return nil
	}

	for _, l := range cfg.EnabledLists() {
		sub := models.NewSubscription(l.URL)
		sub.Title = l.Name
		if err := e.AddSubscriptionToList(ctx, sub); err != nil && !errors.Is(err, models.ErrDuplicateSubscription) {
			return fmt.Errorf("seeding list %s: %w", l.Name, err)
		}
	}
	return e.prefs.Set(ctx, prefs.KeyFirstRunDone, true)
}

// Start begins periodic update checks
func (e *Engine) Start(ctx context.Context) error {
	return e.scheduler.Start(ctx)
}

// Close stops background work and closes the database
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.scheduler.Stop()
		e.sync.Close()
		if err := e.db.Close(); err != nil {
			e.logger.Warn("failed to close database", slog.Any("error", err))
		}
	})
}

// Wait blocks until running downloads are finished
func (e *Engine) Wait() {
	e.sync.Wait()
}

// CheckUpdates downloads every expired subscription now
func (e *Engine) CheckUpdates(ctx context.Context) (int, error) {
	return e.scheduler.CheckNow(ctx)
}

// OnUpdateResult registers a callback for finished downloads
func (e *Engine) OnUpdateResult(fn func(synchronizer.Result)) {
	e.sync.OnResult(fn)
}

// Stats summarizes the engine state
type Stats struct {
	Subscriptions int                    `json:"subscriptions"`
	Matcher       matcher.IndexStats     `json:"matcher"`
	ElementHiding elemhide.SnapshotStats `json:"element_hiding"`
}

// Stats returns the current index sizes
func (e *Engine) Stats() Stats {
	return Stats{
		Subscriptions: e.store.Len(),
		Matcher:       e.matcher.Stats(),
		ElementHiding: e.hider.Stats(),
	}
}

// Ping checks the database connection
func (e *Engine) Ping(ctx context.Context) error {
	return e.db.Ping(ctx)
}
