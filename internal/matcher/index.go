package matcher

import (
	"regexp"
	"sync"

	"github.com/bnema/adblock-engine/internal/models"
	radix "github.com/hashicorp/go-immutable-radix"
	lru "github.com/hashicorp/golang-lru"
)

const resultCacheSize = 1000

// entry pairs a filter with its lazily compiled regexp. Entries are
// carried over between rebuilds so unchanged filters compile once.
type entry struct {
	filter  *models.Filter
	pattern string // filter pattern with a punycode host

	once sync.Once
	re   *regexp.Regexp
	err  error
}

func (e *entry) compiled() (*regexp.Regexp, error) {
	e.once.Do(func() {
		e.re, e.err = compilePattern(e.pattern, e.filter.Options.MatchCase)
	})
	return e.re, e.err
}

func (e *entry) matches(req *request) bool {
	f := e.filter
	if f.Options.ContentTypes&req.contentType == 0 {
		return false
	}
	if !f.MatchesThirdParty(req.thirdParty) {
		return false
	}
	if !f.MatchesSiteKey(req.siteKey) {
		return false
	}
	if !f.ActiveOnDomain(req.docHost) {
		return false
	}
	re, err := e.compiled()
	if err != nil {
		return false
	}
	return re.MatchString(req.url)
}

// side indexes the filters of one kind (allowlist or blocking)
type side struct {
	hosts    *radix.Tree         // reversed host -> []*entry
	keywords map[string][]*entry // keyword -> entries, "" for unindexable filters
	size     int
}

type sideBuilder struct {
	hosts    *radix.Txn
	keywords map[string][]*entry
	size     int
}

func newSideBuilder() *sideBuilder {
	return &sideBuilder{
		hosts:    radix.New().Txn(),
		keywords: make(map[string][]*entry),
	}
}

func (b *sideBuilder) add(e *entry) {
	b.size++

	if host, ok := hostOf(e.pattern); ok {
		key := []byte(reverseHost(host))
		var list []*entry
		if v, found := b.hosts.Get(key); found {
			list = v.([]*entry)
		}
		b.hosts.Insert(key, append(list, e))
		return
	}

	// Pick the least used keyword so buckets stay small
	keyword := ""
	best := -1
	for _, k := range keywordCandidates(e.pattern) {
		count := len(b.keywords[k])
		if best < 0 || count < best || (count == best && len(k) > len(keyword)) {
			keyword = k
			best = count
		}
	}
	b.keywords[keyword] = append(b.keywords[keyword], e)
}

func (b *sideBuilder) build() side {
	return side{
		hosts:    b.hosts.Commit(),
		keywords: b.keywords,
		size:     b.size,
	}
}

// find returns the first entry matching the request
func (s *side) find(req *request) *models.Filter {
	var hit *models.Filter

	if req.host != "" && s.hosts.Len() > 0 {
		s.hosts.Root().WalkPath([]byte(reverseHost(req.host)), func(_ []byte, v interface{}) bool {
			for _, e := range v.([]*entry) {
				if e.matches(req) {
					hit = e.filter
					return true
				}
			}
			return false
		})
		if hit != nil {
			return hit
		}
	}

	for _, k := range req.keywords {
		for _, e := range s.keywords[k] {
			if e.matches(req) {
				return e.filter
			}
		}
	}
	return nil
}

// index is an immutable snapshot of the active request filters
type index struct {
	allow side
	block side

	entries map[string]*entry // filter text -> entry
	cache   *lru.Cache
}

func newIndex(subs []models.Subscription, previous *index) *index {
	allow := newSideBuilder()
	block := newSideBuilder()
	entries := make(map[string]*entry)

	for i := range subs {
		if subs[i].Disabled {
			continue
		}
		for _, f := range subs[i].Filters {
			if !f.IsRequestFilter() {
				continue
			}
			if _, seen := entries[f.Text]; seen {
				continue
			}

			var e *entry
			if previous != nil {
				e = previous.entries[f.Text]
			}
			if e == nil {
				e = &entry{filter: f, pattern: asciiPattern(f.Pattern)}
			}
			entries[f.Text] = e

			if f.Type == models.FilterTypeAllowlist {
				allow.add(e)
			} else {
				block.add(e)
			}
		}
	}

	// lru.New only fails for a non-positive size
	cache, _ := lru.New(resultCacheSize)

	return &index{
		allow:   allow.build(),
		block:   block.build(),
		entries: entries,
		cache:   cache,
	}
}

// match runs a request against the index; an allowlist hit always wins
func (ix *index) match(req *request) *models.Filter {
	if f := ix.allow.find(req); f != nil {
		return f
	}
	return ix.block.find(req)
}
