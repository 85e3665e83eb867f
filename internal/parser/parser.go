package parser

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/urlutil"
)

// Parser parses ABP filter lists
type Parser struct {
	stats Stats
}

// Stats tracks parsing statistics
type Stats struct {
	Total       int
	Blocking    int
	Allowlist   int
	ElemHide    int
	Emulation   int
	Comments    int
	Invalid     int
	SkipReasons map[string]int // Detailed breakdown of rejected filters
}

// SkipReason constants
const (
	SkipUnknownOption     = "unknown-option"
	SkipInvalidRegex      = "invalid-regex"
	SkipInvalidSelector   = "invalid-selector"
	SkipEmulationNoDomain = "emulation-without-domain"
	SkipEmpty             = "empty"
)

// ParseError describes why a filter text was rejected
type ParseError struct {
	Text   string
	Reason string
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s): %q", models.ErrInvalidFilterText, e.Reason, e.Detail, e.Text)
	}
	return fmt.Sprintf("%s: %s: %q", models.ErrInvalidFilterText, e.Reason, e.Text)
}

// Unwrap makes errors.Is(err, models.ErrInvalidFilterText) hold
func (e *ParseError) Unwrap() error {
	return models.ErrInvalidFilterText
}

// New creates a new parser
func New() *Parser {
	return &Parser{
		stats: Stats{
			SkipReasons: make(map[string]int),
		},
	}
}

// Stats returns parsing statistics
func (p *Parser) Stats() Stats {
	return p.stats
}

// Parse reads filter content and returns the parsed filters, comments
// included. Invalid lines are counted and skipped.
func (p *Parser) Parse(r io.Reader) ([]*models.Filter, error) {
	var filters []*models.Filter
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		filter, ok := p.add(scanner.Text())
		if ok {
			filters = append(filters, filter)
		}
	}

	return filters, scanner.Err()
}

// add parses one line and records it in the stats
func (p *Parser) add(line string) (*models.Filter, bool) {
	if Normalize(line) == "" {
		return nil, false
	}

	filter, err := FromText(line)
	p.stats.Total++
	if err != nil {
		p.stats.Invalid++
		reason := SkipEmpty
		if pe, ok := err.(*ParseError); ok {
			reason = pe.Reason
		}
		p.stats.SkipReasons[reason]++
		return nil, false
	}

	switch filter.Type {
	case models.FilterTypeComment:
		p.stats.Comments++
	case models.FilterTypeBlocking:
		p.stats.Blocking++
	case models.FilterTypeAllowlist:
		p.stats.Allowlist++
	case models.FilterTypeElemHide, models.FilterTypeElemHideException:
		p.stats.ElemHide++
	case models.FilterTypeElemHideEmulation:
		p.stats.Emulation++
	}

	return filter, true
}

// FromText normalizes and parses a single filter
func FromText(text string) (*models.Filter, error) {
	text = Normalize(text)
	if text == "" {
		return nil, &ParseError{Text: text, Reason: SkipEmpty}
	}
	return parseLine(text)
}

var (
	// Element hiding: domains#@#selector, domains##selector, domains#?#selector
	reElemHide = regexp.MustCompile(`^([^/*|@"!]*?)#([@?])?#(.+)$`)
	// Trailing $options of request filters
	reOptions = regexp.MustCompile(`\$(~?[\w-]+(?:=[^,]*)?(?:,~?[\w-]+(?:=[^,]*)?)*)$`)
)

// parseLine parses a single normalized filter line
func parseLine(line string) (*models.Filter, error) {
	// Element hiding filters
	if m := reElemHide.FindStringSubmatch(line); m != nil {
		return parseElemHide(line, m[1], m[2], m[3])
	}

	// Comments
	if strings.HasPrefix(line, "!") {
		return &models.Filter{Type: models.FilterTypeComment, Text: line}, nil
	}

	// Exception rules (allowlist)
	if strings.HasPrefix(line, "@@") {
		return parseRequest(line, line[2:], true)
	}

	// Request filters
	return parseRequest(line, line, false)
}

// containsProcedural checks for procedural cosmetic filter syntax
func containsProcedural(selector string) bool {
	procedural := []string{
		":-abp-has(", ":-abp-contains(", ":-abp-properties(",
		":has(", ":has-text(", ":xpath(", ":matches-css(",
		":upward(", ":min-text-length(",
	}
	for _, p := range procedural {
		if strings.Contains(selector, p) {
			return true
		}
	}
	return false
}

// parseElemHide parses an element hiding filter
func parseElemHide(line, domainPart, marker, selector string) (*models.Filter, error) {
	filterType := models.FilterTypeElemHide
	switch marker {
	case "@":
		filterType = models.FilterTypeElemHideException
	case "?":
		filterType = models.FilterTypeElemHideEmulation
	default:
		if containsProcedural(selector) {
			filterType = models.FilterTypeElemHideEmulation
		}
	}

	if strings.ContainsAny(selector, "{}") {
		return nil, &ParseError{Text: line, Reason: SkipInvalidSelector}
	}

	filter := &models.Filter{
		Type:     filterType,
		Text:     line,
		Selector: selector,
		Domains:  parseDomainList(domainPart, ","),
	}

	if filterType == models.FilterTypeElemHideEmulation && !filter.HasIncludeDomains() {
		return nil, &ParseError{Text: line, Reason: SkipEmulationNoDomain}
	}

	return filter, nil
}

// parseRequest parses a blocking or allowlist filter
func parseRequest(line, body string, isException bool) (*models.Filter, error) {
	filterType := models.FilterTypeBlocking
	if isException {
		filterType = models.FilterTypeAllowlist
	}

	pattern := body
	options := models.FilterOptions{ContentTypes: models.DefaultContentTypes}
	var domains map[string]bool

	// Split pattern and options
	if strings.Contains(body, "$") {
		if loc := reOptions.FindStringSubmatchIndex(body); loc != nil {
			pattern = body[:loc[0]]
			var err error
			domains, err = parseOptions(line, body[loc[2]:loc[3]], &options)
			if err != nil {
				return nil, err
			}
		}
	}

	// Regular expression literals must compile
	if len(pattern) > 2 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") {
		if _, err := regexp.Compile(pattern[1 : len(pattern)-1]); err != nil {
			return nil, &ParseError{Text: line, Reason: SkipInvalidRegex, Detail: err.Error()}
		}
	}

	return &models.Filter{
		Type:    filterType,
		Text:    line,
		Pattern: pattern,
		Domains: domains,
		Options: options,
	}, nil
}

// parseDomainList parses a domain list, "~" marking exclusions
func parseDomainList(s, sep string) map[string]bool {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	domains := make(map[string]bool, len(parts))
	for _, d := range parts {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || d == "~" {
			continue
		}
		if strings.HasPrefix(d, "~") {
			domains[urlutil.ASCIIHostPattern(d[1:])] = false
		} else {
			domains[urlutil.ASCIIHostPattern(d)] = true
		}
	}
	if len(domains) == 0 {
		return nil
	}
	return domains
}

// parseOptions parses request filter options. It returns the domain=
// restriction separately since it lives on the filter itself.
func parseOptions(line, s string, opts *models.FilterOptions) (map[string]bool, error) {
	var domains map[string]bool
	explicitTypes := false

	for _, part := range strings.Split(s, ",") {
		name, value, hasValue := strings.Cut(part, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		negated := strings.HasPrefix(name, "~")
		bare := strings.TrimPrefix(name, "~")

		// The first type option decides the starting mask: the default
		// set when it is negated, nothing otherwise.
		if t, ok := models.ParseContentType(bare); ok && !hasValue {
			if !explicitTypes {
				explicitTypes = true
				if !negated {
					opts.ContentTypes = 0
				}
			}
			if negated {
				opts.ContentTypes &^= t
			} else {
				opts.ContentTypes |= t
			}
			continue
		}

		switch {
		case name == "third-party" || name == "3p":
			t := true
			opts.ThirdParty = &t
		case name == "~third-party" || name == "~3p" || name == "first-party" || name == "1p":
			f := false
			opts.ThirdParty = &f
		case name == "match-case":
			opts.MatchCase = true
		case name == "collapse" || name == "~collapse":
			c := !negated
			opts.Collapse = &c
		case name == "domain" && hasValue:
			domains = parseDomainList(value, "|")
		case name == "sitekey" && hasValue:
			for _, k := range strings.Split(value, "|") {
				if k = strings.TrimSpace(k); k != "" {
					opts.SiteKeys = append(opts.SiteKeys, k)
				}
			}
		default:
			return nil, &ParseError{Text: line, Reason: SkipUnknownOption, Detail: name}
		}
	}

	return domains, nil
}
