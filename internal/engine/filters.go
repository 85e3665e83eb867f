package engine

import (
	"context"

	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/parser"
)

// GetFilterFromText parses a filter. Empty or invalid text fails with
// models.ErrInvalidFilterText.
func (e *Engine) GetFilterFromText(text string) (*models.Filter, error) {
	return parser.FromText(text)
}

// ListedFilters returns the filters of all user filter groups, each text once
func (e *Engine) ListedFilters() []*models.Filter {
	return e.store.ListedFilters()
}

// AddFilterToList adds a user filter. Returns false when it was already listed.
func (e *Engine) AddFilterToList(ctx context.Context, f *models.Filter) (bool, error) {
	return e.store.AddFilter(ctx, f)
}

// RemoveFilterFromList removes a user filter. Returns false when it was not
// listed.
func (e *Engine) RemoveFilterFromList(ctx context.Context, f *models.Filter) (bool, error) {
	return e.store.RemoveFilter(ctx, f)
}

// IsListedFilter reports whether the filter is in an enabled user filter group
func (e *Engine) IsListedFilter(f *models.Filter) bool {
	return e.store.IsListedFilter(f.Text)
}
