package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bnema/adblock-engine/internal/models"
)

// Download is the outcome of a successful synchronization
type Download struct {
	Filters  []*models.Filter
	Title    string // empty keeps the current title
	Homepage string
	Version  string
	Expires  time.Time
	At       time.Time
}

// ApplyDownload replaces the filters and metadata of a subscription. Fails
// with models.ErrSubscriptionNotFound when the subscription was removed in
// the meantime.
func (s *Store) ApplyDownload(ctx context.Context, url string, d Download) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	sub, ok := cur.find(url)
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrSubscriptionNotFound, url)
	}

	sub = sub.Clone()
	sub.Filters = d.Filters
	if d.Title != "" {
		sub.Title = d.Title
	}
	if d.Homepage != "" {
		sub.Homepage = d.Homepage
	}
	sub.Version = d.Version
	sub.Expires = d.Expires
	sub.LastDownload = d.At
	sub.LastCheck = d.At
	sub.DownloadStatus = models.StatusOK
	sub.ErrorCount = 0

	if err := s.save(ctx, &sub); err != nil {
		return err
	}

	s.commit(cur.replace(sub), true)
	s.logger.Info("subscription updated",
		slog.String("url", url),
		slog.Int("filters", len(d.Filters)),
		slog.String("version", d.Version))
	return nil
}

// RecordFailure records a failed synchronization. Filters and the last
// download time stay unchanged.
func (s *Store) RecordFailure(ctx context.Context, url, status string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	sub, ok := cur.find(url)
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrSubscriptionNotFound, url)
	}

	sub = sub.Clone()
	sub.DownloadStatus = status
	sub.ErrorCount++
	sub.LastCheck = at

	if err := s.saveMetadata(ctx, &sub); err != nil {
		return err
	}

	s.commit(cur.replace(sub), false)
	s.logger.Warn("subscription update failed",
		slog.String("url", url),
		slog.String("status", status),
		slog.Int("error_count", sub.ErrorCount))
	return nil
}
