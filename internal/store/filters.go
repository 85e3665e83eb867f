package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bnema/adblock-engine/internal/models"
)

// groupForFilter returns the enabled special subscription that collects
// the filter's category, falling back to one without defaults
func (st *state) groupForFilter(f *models.Filter) (models.Subscription, bool) {
	var general *models.Subscription
	category := f.Category()
	for i := range st.subs {
		sub := &st.subs[i]
		if !sub.IsSpecial() || sub.Disabled {
			continue
		}
		if sub.IsDefaultFor(category) {
			return *sub, true
		}
		if general == nil && len(sub.Defaults) == 0 {
			general = sub
		}
	}
	if general != nil {
		return *general, true
	}
	return models.Subscription{}, false
}

func (st *state) isListed(text string) bool {
	for i := range st.subs {
		sub := &st.subs[i]
		if sub.IsSpecial() && !sub.Disabled && sub.Contains(text) {
			return true
		}
	}
	return false
}

// AddFilter adds a user filter to the special subscription of its category,
// creating that subscription when needed. Returns false when the filter is
// already listed.
func (s *Store) AddFilter(ctx context.Context, f *models.Filter) (bool, error) {
	if f == nil || f.Text == "" {
		return false, models.ErrInvalidFilterText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	if cur.isListed(f.Text) {
		return false, nil
	}

	group, ok := cur.groupForFilter(f)
	if !ok {
		group = models.NewSubscription(models.SpecialSubscriptionURL())
		group.Defaults = []string{f.Category()}
		group.Filters = []*models.Filter{f}
		if err := s.save(ctx, &group); err != nil {
			return false, err
		}
		s.commit(cur.append(group), true)
		s.logger.Debug("filter added", slog.String("filter", f.Text), slog.String("group", group.URL))
		return true, nil
	}

	group = group.Clone()
	group.Filters = append(group.Filters, f)
	if err := s.save(ctx, &group); err != nil {
		return false, err
	}

	s.commit(cur.replace(group), true)
	s.logger.Debug("filter added", slog.String("filter", f.Text), slog.String("group", group.URL))
	return true, nil
}

// RemoveFilter removes every occurrence of a filter from the special
// subscriptions. Returns false when no special subscription listed it.
func (s *Store) RemoveFilter(ctx context.Context, f *models.Filter) (bool, error) {
	if f == nil || f.Text == "" {
		return false, models.ErrInvalidFilterText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	var changed []models.Subscription
	for i := range cur.subs {
		sub := cur.subs[i]
		if !sub.IsSpecial() || !sub.Contains(f.Text) {
			continue
		}
		kept := make([]*models.Filter, 0, len(sub.Filters)-1)
		for _, existing := range sub.Filters {
			if existing.Text != f.Text {
				kept = append(kept, existing)
			}
		}
		sub = sub.Clone()
		sub.Filters = kept
		changed = append(changed, sub)
	}
	if len(changed) == 0 {
		return false, nil
	}

	next := cur
	for i := range changed {
		if err := s.save(ctx, &changed[i]); err != nil {
			return false, fmt.Errorf("removing filter: %w", err)
		}
		next = next.replace(changed[i])
	}

	s.commit(next, true)
	s.logger.Debug("filter removed", slog.String("filter", f.Text), slog.Int("groups", len(changed)))
	return true, nil
}

// IsListedFilter reports whether an enabled special subscription lists the
// filter text.
func (s *Store) IsListedFilter(text string) bool {
	return s.state.Load().isListed(text)
}

// ListedFilters returns the user filters of all special subscriptions.
// A filter listed in several of them is reported once, at its first position.
func (s *Store) ListedFilters() []*models.Filter {
	st := s.state.Load()
	seen := make(map[string]bool)
	var out []*models.Filter
	for i := range st.subs {
		if !st.subs[i].IsSpecial() {
			continue
		}
		for _, f := range st.subs[i].Filters {
			if seen[f.Text] {
				continue
			}
			seen[f.Text] = true
			out = append(out, f)
		}
	}
	return out
}
