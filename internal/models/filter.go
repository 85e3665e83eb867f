package models

import "strings"

// FilterType represents the kind of a parsed filter
type FilterType int

const (
	FilterTypeComment FilterType = iota
	FilterTypeBlocking
	FilterTypeAllowlist
	FilterTypeElemHide
	FilterTypeElemHideException
	FilterTypeElemHideEmulation
)

// String returns the name used in logs and API payloads
func (t FilterType) String() string {
	switch t {
	case FilterTypeComment:
		return "comment"
	case FilterTypeBlocking:
		return "blocking"
	case FilterTypeAllowlist:
		return "allowlist"
	case FilterTypeElemHide:
		return "elemhide"
	case FilterTypeElemHideException:
		return "elemhide-exception"
	case FilterTypeElemHideEmulation:
		return "elemhide-emulation"
	}
	return "unknown"
}

// Filter categories used to group user filters into special subscriptions
const (
	CategoryBlocking  = "blocking"
	CategoryAllowlist = "whitelist"
	CategoryElemHide  = "elemhide"
)

// Filter is a parsed filter rule. It is never modified after parsing and is
// identified by its normalized Text.
type Filter struct {
	Type     FilterType
	Text     string          // Normalized filter text
	Pattern  string          // URL pattern for request filters
	Selector string          // CSS selector for element hiding filters
	Domains  map[string]bool // domain -> include (true) or exclude (false)
	Options  FilterOptions   // Request filter options
}

// FilterOptions contains parsed request filter options
type FilterOptions struct {
	ThirdParty   *bool       // nil = any, true = 3p only, false = 1p only
	ContentTypes ContentType // Request types the filter applies to
	SiteKeys     []string    // sitekey= values
	MatchCase    bool        // case-sensitive matching
	Collapse     *bool       // collapse / ~collapse
}

// IsRequestFilter reports whether the filter takes part in request matching
func (f *Filter) IsRequestFilter() bool {
	return f.Type == FilterTypeBlocking || f.Type == FilterTypeAllowlist
}

// IsElemHideFilter reports whether the filter is any element hiding variant
func (f *Filter) IsElemHideFilter() bool {
	switch f.Type {
	case FilterTypeElemHide, FilterTypeElemHideException, FilterTypeElemHideEmulation:
		return true
	}
	return false
}

// Category returns the special subscription group this filter belongs to
func (f *Filter) Category() string {
	switch f.Type {
	case FilterTypeAllowlist:
		return CategoryAllowlist
	case FilterTypeElemHide, FilterTypeElemHideException, FilterTypeElemHideEmulation:
		return CategoryElemHide
	}
	return CategoryBlocking
}

// HasIncludeDomains reports whether the filter is restricted to specific domains
func (f *Filter) HasIncludeDomains() bool {
	for _, include := range f.Domains {
		if include {
			return true
		}
	}
	return false
}

// IncludeDomains returns the domains the filter is explicitly enabled on
func (f *Filter) IncludeDomains() []string {
	var domains []string
	for d, include := range f.Domains {
		if include {
			domains = append(domains, d)
		}
	}
	return domains
}

// ActiveOnDomain checks whether the filter applies on the given document
// domain. The most specific listed suffix of the domain decides; if none is
// listed the filter is active only when it has no include domains.
func (f *Filter) ActiveOnDomain(domain string) bool {
	if len(f.Domains) == 0 {
		return true
	}

	domain = strings.TrimSuffix(strings.ToLower(domain), ".")
	for domain != "" {
		if include, ok := f.Domains[domain]; ok {
			return include
		}
		idx := strings.IndexByte(domain, '.')
		if idx < 0 {
			break
		}
		domain = domain[idx+1:]
	}

	return !f.HasIncludeDomains()
}

// MatchesSiteKey checks the sitekey restriction of the filter
func (f *Filter) MatchesSiteKey(siteKey string) bool {
	if len(f.Options.SiteKeys) == 0 {
		return true
	}
	for _, k := range f.Options.SiteKeys {
		if k == siteKey {
			return true
		}
	}
	return false
}

// MatchesThirdParty checks the third-party restriction of the filter
func (f *Filter) MatchesThirdParty(thirdParty bool) bool {
	return f.Options.ThirdParty == nil || *f.Options.ThirdParty == thirdParty
}
