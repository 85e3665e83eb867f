// Package synchronizer downloads subscriptions in the background and merges
// the result into the store. At most one download runs per URL; concurrent
// requests for the same URL share the running task.
package synchronizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/parser"
	"github.com/bnema/adblock-engine/internal/store"
)

// Expiration bounds applied to the "! Expires" value of a list
const (
	MinExpiration     = time.Hour
	MaxExpiration     = 14 * 24 * time.Hour
	DefaultExpiration = 5 * 24 * time.Hour
	DefaultTimeout    = 2 * time.Minute
)

// ErrClosed is the task error for downloads requested after Close
var ErrClosed = errors.New("synchronizer closed")

// Fetcher downloads raw list content
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Store receives download results
type Store interface {
	ApplyDownload(ctx context.Context, url string, d store.Download) error
	RecordFailure(ctx context.Context, url, status string, at time.Time) error
}

// Options configures a Synchronizer
type Options struct {
	// DefaultExpiration is used when a list does not declare "! Expires"
	DefaultExpiration time.Duration
	// Timeout bounds a single download including retries
	Timeout time.Duration
	Logger  *slog.Logger

	now func() time.Time
}

// Synchronizer runs download tasks
type Synchronizer struct {
	mu        sync.Mutex
	inflight  map[string]*Task
	listeners []func(Result)
	closed    bool

	store   Store
	fetcher Fetcher
	opts    Options
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a synchronizer
func New(st Store, f Fetcher, opts Options) *Synchronizer {
	if opts.DefaultExpiration <= 0 {
		opts.DefaultExpiration = DefaultExpiration
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Synchronizer{
		inflight: make(map[string]*Task),
		store:    st,
		fetcher:  f,
		opts:     opts,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnResult registers a callback invoked after every finished task
func (s *Synchronizer) OnResult(fn func(Result)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Execute starts downloading the subscription unless a download for its URL
// is already running, in which case the running task is returned. It never
// blocks on the network.
func (s *Synchronizer) Execute(sub models.Subscription) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.inflight[sub.URL]; ok {
		return t
	}

	t := newTask(sub.URL)
	if s.closed {
		t.finish(Result{URL: sub.URL, Err: ErrClosed, At: s.opts.now()})
		return t
	}
	if sub.IsSpecial() {
		t.finish(Result{
			URL:    sub.URL,
			Status: models.StatusInvalidURL,
			Err:    fmt.Errorf("%w: special subscriptions are not downloadable", models.ErrUnsupportedURL),
			At:     s.opts.now(),
		})
		return t
	}

	t.state.Store(int32(StateFetching))
	s.inflight[sub.URL] = t
	s.wg.Add(1)
	go s.run(t, sub)

	s.logger.Debug("subscription download started", slog.String("url", sub.URL))
	return t
}

// IsExecuting reports whether a download for the URL is running
func (s *Synchronizer) IsExecuting(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[url]
	return ok
}

// Wait blocks until all running tasks are finished
func (s *Synchronizer) Wait() {
	s.wg.Wait()
}

// Close cancels running downloads and waits for them. Later calls to
// Execute return finished tasks failing with ErrClosed.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Synchronizer) run(t *Task, sub models.Subscription) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.Timeout)
	defer cancel()

	res := s.synchronize(ctx, sub)

	s.mu.Lock()
	delete(s.inflight, sub.URL)
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	t.finish(res)

	for _, fn := range listeners {
		fn(res)
	}
}

// synchronize downloads, parses and applies one list
func (s *Synchronizer) synchronize(ctx context.Context, sub models.Subscription) Result {
	res := Result{URL: sub.URL}

	data, err := s.fetcher.Fetch(ctx, sub.URL)
	if err != nil {
		return s.fail(ctx, res, fetchStatus(err), err)
	}

	list, err := parser.New().ParseList(bytes.NewReader(data))
	if err != nil {
		status := models.StatusInvalidData
		if errors.Is(err, models.ErrChecksumMismatch) {
			status = models.StatusChecksumMismatch
		}
		return s.fail(ctx, res, status, err)
	}

	res.At = s.opts.now()
	d := store.Download{
		Filters: list.Filters,
		Version: list.Version,
		Expires: res.At.Add(s.expiration(list.Expires)),
		At:      res.At,
	}
	// Titles configured on the subscription win over the list's own
	if sub.Title == "" {
		d.Title = list.Title
	}
	if sub.Homepage == "" {
		d.Homepage = list.Homepage
	}

	if err := s.store.ApplyDownload(ctx, sub.URL, d); err != nil {
		if errors.Is(err, models.ErrSubscriptionNotFound) {
			s.logger.Info("subscription removed during download, result discarded",
				slog.String("url", sub.URL))
		} else {
			s.logger.Error("failed to apply download",
				slog.String("url", sub.URL),
				slog.Any("error", err))
		}
		res.Err = err
		return res
	}

	res.Status = models.StatusOK
	res.Filters = len(list.Filters)
	res.Applied = true
	return res
}

func (s *Synchronizer) fail(ctx context.Context, res Result, status string, err error) Result {
	res.Status = status
	res.Err = err
	res.At = s.opts.now()

	s.logger.Warn("subscription download failed",
		slog.String("url", res.URL),
		slog.String("status", status),
		slog.Any("error", err))

	// The failure is recorded even when the download itself was cancelled
	recordCtx := context.WithoutCancel(ctx)
	if rerr := s.store.RecordFailure(recordCtx, res.URL, status, res.At); rerr != nil &&
		!errors.Is(rerr, models.ErrSubscriptionNotFound) {
		s.logger.Error("failed to record download failure",
			slog.String("url", res.URL),
			slog.Any("error", rerr))
	}
	return res
}

// expiration clamps the list's declared lifetime
func (s *Synchronizer) expiration(declared time.Duration) time.Duration {
	if declared <= 0 {
		declared = s.opts.DefaultExpiration
	}
	return min(max(declared, MinExpiration), MaxExpiration)
}

func fetchStatus(err error) string {
	if errors.Is(err, models.ErrUnsupportedURL) {
		return models.StatusInvalidURL
	}
	return models.StatusConnectionError
}
