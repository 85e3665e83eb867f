// Package scheduler periodically updates expired subscriptions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/observability"
	"github.com/bnema/adblock-engine/internal/synchronizer"
)

// Defaults
const (
	DefaultSchedule      = "@every 1h"
	DefaultMaxConcurrent = 4
	// RetryInterval is the minimum time between two attempts after a failure
	RetryInterval = time.Hour
)

// Subscriptions lists the current subscriptions
type Subscriptions interface {
	Subscriptions() []models.Subscription
}

// Synchronizer starts downloads
type Synchronizer interface {
	Execute(sub models.Subscription) *synchronizer.Task
}

// Scheduler runs update checks on a cron schedule
type Scheduler struct {
	mu sync.Mutex

	subs          Subscriptions
	sync          Synchronizer
	schedule      string
	maxConcurrent int
	enabled       func() bool
	now           func() time.Time
	logger        *slog.Logger

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler from the sync configuration
func New(subs Subscriptions, sy Synchronizer, cfg models.SyncConfig) *Scheduler {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Scheduler{
		subs:          subs,
		sync:          sy,
		schedule:      schedule,
		maxConcurrent: maxConcurrent,
		enabled:       func() bool { return true },
		now:           time.Now,
		logger:        slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

// WithEnabled sets the switch consulted before every scheduled check
func (s *Scheduler) WithEnabled(enabled func() bool) *Scheduler {
	s.enabled = enabled
	return s
}

// ValidateSchedule checks a cron expression ("@every 1h", "0 */6 * * *")
func ValidateSchedule(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// Start runs a first check immediately and then follows the schedule
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}
	if err := ValidateSchedule(s.schedule); err != nil {
		return err
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(s.schedule, s.tick); err != nil {
		s.cancel()
		s.cron = nil
		return fmt.Errorf("scheduling update checks: %w", err)
	}
	s.cron.Start()
	go s.tick()

	s.logger.Info("scheduler started",
		slog.String("schedule", s.schedule),
		slog.Int("max_concurrent", s.maxConcurrent))
	return nil
}

// Stop stops the schedule and cancels a running check
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	if !s.enabled() {
		s.logger.Debug("automatic updates disabled, skipping check")
		return
	}
	if _, err := s.CheckNow(ctx); err != nil {
		s.logger.Warn("update check interrupted", slog.Any("error", err))
	}
}

// Due reports whether a subscription needs a download at the given time
func Due(sub models.Subscription, now time.Time) bool {
	if sub.IsSpecial() || sub.Disabled {
		return false
	}
	if sub.DownloadStatus != "" && sub.DownloadStatus != models.StatusOK &&
		!sub.LastCheck.IsZero() && now.Sub(sub.LastCheck) < RetryInterval {
		return false
	}
	if sub.NeverDownloaded() || sub.Expires.IsZero() {
		return true
	}
	return !now.Before(sub.Expires)
}

// CheckNow downloads every due subscription, at most maxConcurrent at a
// time, and waits for the downloads. It returns the number of downloads.
func (s *Scheduler) CheckNow(ctx context.Context) (n int, err error) {
	done := observability.TimedOperationWithError(ctx, s.logger, "update_check", &err)
	defer done()

	now := s.now()
	var due []models.Subscription
	for _, sub := range s.subs.Subscriptions() {
		if Due(sub, now) {
			due = append(due, sub)
		}
	}
	if len(due) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for _, sub := range due {
		g.Go(func() error {
			task := s.sync.Execute(sub)
			select {
			case <-task.Done():
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	return len(due), g.Wait()
}
