// Package elemhide indexes element hiding filters by domain.
package elemhide

import (
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/urlutil"
)

// Rule is an element hiding emulation rule active on a domain
type Rule struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
}

// ElementHider answers selector lookups from an immutable snapshot
type ElementHider struct {
	snapshot atomic.Pointer[snapshot]
	logger   *slog.Logger
}

// SnapshotStats describes the current snapshot
type SnapshotStats struct {
	Specific   int `json:"specific"`
	Generic    int `json:"generic"`
	Exceptions int `json:"exceptions"`
	Emulation  int `json:"emulation"`
}

type entry struct {
	filter   *models.Filter
	position int
}

// table maps include domains to filters; generic filters have none
type table struct {
	byDomain map[string][]entry
	generic  []entry
}

func (t *table) add(e entry) {
	if !e.filter.HasIncludeDomains() {
		t.generic = append(t.generic, e)
		return
	}
	for _, d := range e.filter.IncludeDomains() {
		t.byDomain[d] = append(t.byDomain[d], e)
	}
}

// candidates collects entries listed for the domain or one of its parents
func (t *table) candidates(domain string, includeGeneric bool) []entry {
	var out []entry
	for d := domain; d != ""; {
		out = append(out, t.byDomain[d]...)
		idx := strings.IndexByte(d, '.')
		if idx < 0 {
			break
		}
		d = d[idx+1:]
	}
	if includeGeneric {
		out = append(out, t.generic...)
	}

	slices.SortFunc(out, func(a, b entry) int { return a.position - b.position })
	return slices.CompactFunc(out, func(a, b entry) bool { return a.position == b.position })
}

type snapshot struct {
	hiding     table
	emulation  table
	exceptions map[string][]*models.Filter // selector -> exception filters
}

func newSnapshot(subs []models.Subscription) *snapshot {
	s := &snapshot{
		hiding:     table{byDomain: make(map[string][]entry)},
		emulation:  table{byDomain: make(map[string][]entry)},
		exceptions: make(map[string][]*models.Filter),
	}

	seen := make(map[string]bool)
	position := 0
	for i := range subs {
		if subs[i].Disabled {
			continue
		}
		for _, f := range subs[i].Filters {
			if !f.IsElemHideFilter() || seen[f.Text] {
				continue
			}
			seen[f.Text] = true
			position++

			switch f.Type {
			case models.FilterTypeElemHide:
				s.hiding.add(entry{filter: f, position: position})
			case models.FilterTypeElemHideEmulation:
				s.emulation.add(entry{filter: f, position: position})
			case models.FilterTypeElemHideException:
				s.exceptions[f.Selector] = append(s.exceptions[f.Selector], f)
			}
		}
	}
	return s
}

func (s *snapshot) excepted(f *models.Filter, domain string) bool {
	for _, ex := range s.exceptions[f.Selector] {
		if ex.ActiveOnDomain(domain) {
			return true
		}
	}
	return false
}

// New creates an empty element hider
func New() *ElementHider {
	h := &ElementHider{logger: slog.Default()}
	h.snapshot.Store(newSnapshot(nil))
	return h
}

// WithLogger sets the logger
func (h *ElementHider) WithLogger(logger *slog.Logger) *ElementHider {
	h.logger = logger
	return h
}

// Rebuild replaces the snapshot with the element hiding filters of all
// enabled subscriptions
func (h *ElementHider) Rebuild(subs []models.Subscription) {
	s := newSnapshot(subs)
	h.snapshot.Store(s)

	h.logger.Debug("element hiding index rebuilt",
		slog.Int("generic", len(s.hiding.generic)),
		slog.Int("domains", len(s.hiding.byDomain)),
		slog.Int("exceptions", len(s.exceptions)))
}

// SelectorsForDomain returns the selectors to hide on a domain. Generic
// selectors are included only when includeGeneric is set. Selectors with
// an exception active on the domain are left out.
func (h *ElementHider) SelectorsForDomain(domain string, includeGeneric bool) []string {
	s := h.snapshot.Load()
	domain = normalizeDomain(domain)

	var selectors []string
	seen := make(map[string]bool)
	for _, e := range s.hiding.candidates(domain, includeGeneric) {
		f := e.filter
		if seen[f.Selector] || !f.ActiveOnDomain(domain) || s.excepted(f, domain) {
			continue
		}
		seen[f.Selector] = true
		selectors = append(selectors, f.Selector)
	}
	return selectors
}

// RulesForDomain returns the emulation rules active on a domain
func (h *ElementHider) RulesForDomain(domain string) []Rule {
	s := h.snapshot.Load()
	domain = normalizeDomain(domain)

	var rules []Rule
	for _, e := range s.emulation.candidates(domain, false) {
		f := e.filter
		if !f.ActiveOnDomain(domain) || s.excepted(f, domain) {
			continue
		}
		rules = append(rules, Rule{Selector: f.Selector, Text: f.Text})
	}
	return rules
}

// Stats returns statistics about the current snapshot
func (h *ElementHider) Stats() SnapshotStats {
	s := h.snapshot.Load()
	specific := 0
	for _, entries := range s.hiding.byDomain {
		specific += len(entries)
	}
	exceptions := 0
	for _, list := range s.exceptions {
		exceptions += len(list)
	}
	emulation := len(s.emulation.generic)
	for _, entries := range s.emulation.byDomain {
		emulation += len(entries)
	}
	return SnapshotStats{
		Specific:   specific,
		Generic:    len(s.hiding.generic),
		Exceptions: exceptions,
		Emulation:  emulation,
	}
}

func normalizeDomain(domain string) string {
	return urlutil.ASCIIHostPattern(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), "."))
}
