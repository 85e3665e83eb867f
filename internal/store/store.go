// Package store holds the subscriptions and their filters. It is the single
// source of truth for the active filter set.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/repository"
)

// Listener is called with the new subscription list whenever the active
// filter set changes. Listeners run under the store's writer lock, before
// the mutation returns, and must not call back into mutating methods.
type Listener func(subs []models.Subscription)

// Store keeps copy-on-write snapshots of the subscription list. Reads load
// the current snapshot without locking; writes are serialized, persisted
// first and only then published.
type Store struct {
	mu        sync.Mutex
	state     atomic.Pointer[state]
	repo      repository.SubscriptionRepository
	listeners []Listener
	logger    *slog.Logger
}

// state is an immutable snapshot
type state struct {
	subs  []models.Subscription
	index map[string]int // url -> position in subs
}

func newState(subs []models.Subscription) *state {
	index := make(map[string]int, len(subs))
	for i := range subs {
		index[subs[i].URL] = i
	}
	return &state{subs: subs, index: index}
}

func (st *state) find(url string) (models.Subscription, bool) {
	i, ok := st.index[url]
	if !ok {
		return models.Subscription{}, false
	}
	return st.subs[i], true
}

func (st *state) replace(sub models.Subscription) *state {
	subs := append([]models.Subscription(nil), st.subs...)
	subs[st.index[sub.URL]] = sub
	return newState(subs)
}

func (st *state) append(sub models.Subscription) *state {
	subs := make([]models.Subscription, 0, len(st.subs)+1)
	subs = append(subs, st.subs...)
	return newState(append(subs, sub))
}

func (st *state) remove(url string) *state {
	i := st.index[url]
	subs := make([]models.Subscription, 0, len(st.subs)-1)
	subs = append(subs, st.subs[:i]...)
	return newState(append(subs, st.subs[i+1:]...))
}

// New creates an empty store. A nil repository keeps the state in memory only.
func New(repo repository.SubscriptionRepository, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{repo: repo, logger: logger}
	s.state.Store(newState(nil))
	return s
}

// Load replaces the in-memory state with the persisted subscriptions.
func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("loading subscriptions: %w", err)
	}

	subs := make([]models.Subscription, 0, len(stored))
	filters := 0
	for _, sub := range stored {
		subs = append(subs, *sub)
		filters += len(sub.Filters)
	}

	s.commit(newState(subs), true)
	s.logger.Info("subscriptions loaded",
		slog.Int("subscriptions", len(subs)),
		slog.Int("filters", filters))
	return nil
}

// Subscribe registers a listener and calls it with the current state.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, l)
	l(s.state.Load().subs)
}

// commit publishes a new state; must be called with mu held
func (s *Store) commit(next *state, activeChanged bool) {
	s.state.Store(next)
	if !activeChanged {
		return
	}
	for _, l := range s.listeners {
		l(next.subs)
	}
}

func (s *Store) save(ctx context.Context, sub *models.Subscription) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Save(ctx, sub); err != nil {
		return fmt.Errorf("saving subscription %s: %w", sub.URL, err)
	}
	return nil
}

func (s *Store) saveMetadata(ctx context.Context, sub *models.Subscription) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.SaveMetadata(ctx, sub); err != nil {
		return fmt.Errorf("saving subscription %s: %w", sub.URL, err)
	}
	return nil
}

// Subscription returns a copy of the subscription with the given URL.
func (s *Store) Subscription(url string) (models.Subscription, bool) {
	sub, ok := s.state.Load().find(url)
	if !ok {
		return sub, false
	}
	return sub.Clone(), true
}

// Subscriptions returns a copy of all subscriptions in list order.
func (s *Store) Subscriptions() []models.Subscription {
	st := s.state.Load()
	out := make([]models.Subscription, len(st.subs))
	for i := range st.subs {
		out[i] = st.subs[i].Clone()
	}
	return out
}

// Has reports whether a subscription with the URL is listed.
func (s *Store) Has(url string) bool {
	_, ok := s.state.Load().index[url]
	return ok
}

// Len returns the number of subscriptions.
func (s *Store) Len() int {
	return len(s.state.Load().subs)
}

// AddSubscription appends a subscription. Fails with
// models.ErrDuplicateSubscription when the URL is already listed.
func (s *Store) AddSubscription(ctx context.Context, sub models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	if _, ok := cur.index[sub.URL]; ok {
		return fmt.Errorf("%w: %s", models.ErrDuplicateSubscription, sub.URL)
	}

	sub = sub.Clone()
	sub.Kind = models.KindFromURL(sub.URL)
	if err := s.save(ctx, &sub); err != nil {
		return err
	}

	s.commit(cur.append(sub), true)
	s.logger.Info("subscription added", slog.String("url", sub.URL))
	return nil
}

// RemoveSubscription removes a subscription. Returns false when it was
// not listed.
func (s *Store) RemoveSubscription(ctx context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	if _, ok := cur.index[url]; !ok {
		return false, nil
	}

	if s.repo != nil {
		if err := s.repo.Delete(ctx, url); err != nil {
			return false, fmt.Errorf("deleting subscription %s: %w", url, err)
		}
	}

	s.commit(cur.remove(url), true)
	s.logger.Info("subscription removed", slog.String("url", url))
	return true, nil
}

// SetDisabled enables or disables a subscription. Returns whether the
// flag changed.
func (s *Store) SetDisabled(ctx context.Context, url string, disabled bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	sub, ok := cur.find(url)
	if !ok {
		return false, fmt.Errorf("%w: %s", models.ErrSubscriptionNotFound, url)
	}
	if sub.Disabled == disabled {
		return false, nil
	}

	sub = sub.Clone()
	sub.Disabled = disabled
	if err := s.saveMetadata(ctx, &sub); err != nil {
		return false, err
	}

	s.commit(cur.replace(sub), true)
	s.logger.Info("subscription toggled", slog.String("url", url), slog.Bool("disabled", disabled))
	return true, nil
}
