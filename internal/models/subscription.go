package models

import (
	"strings"
	"time"
)

// SubscriptionKind tells downloadable lists apart from user filter groups
type SubscriptionKind int

const (
	// KindDownloadable subscriptions are fetched from their URL
	KindDownloadable SubscriptionKind = iota
	// KindSpecial subscriptions hold user-authored filters
	KindSpecial
)

// SpecialURLPrefix marks URLs of special subscriptions
const SpecialURLPrefix = "~"

// String returns the kind name
func (k SubscriptionKind) String() string {
	switch k {
	case KindDownloadable:
		return "downloadable"
	case KindSpecial:
		return "special"
	}
	return "unknown"
}

// KindFromURL derives the subscription kind from its URL
func KindFromURL(url string) SubscriptionKind {
	if strings.HasPrefix(url, SpecialURLPrefix) {
		return KindSpecial
	}
	return KindDownloadable
}

// Download status values recorded after each synchronization
const (
	StatusOK               = "synchronize_ok"
	StatusInvalidURL       = "synchronize_invalid_url"
	StatusConnectionError  = "synchronize_connection_error"
	StatusInvalidData      = "synchronize_invalid_data"
	StatusChecksumMismatch = "synchronize_checksum_mismatch"
)

// Subscription is an ordered collection of filters from one origin.
// Values handed out by the store are copies; the Filters slice is shared and
// must be treated as read-only.
type Subscription struct {
	URL  string
	Kind SubscriptionKind

	Title          string
	Homepage       string
	Author         string
	Prefixes       []string
	Specialization string

	// Defaults lists the filter categories a special subscription collects
	Defaults []string

	Disabled       bool
	LastDownload   time.Time // zero when never synchronized
	LastCheck      time.Time
	Expires        time.Time
	Version        string
	DownloadStatus string
	ErrorCount     int

	Filters []*Filter
}

// NewSubscription creates an empty subscription for the URL
func NewSubscription(url string) Subscription {
	return Subscription{
		URL:  url,
		Kind: KindFromURL(url),
	}
}

// IsSpecial reports whether the subscription holds user filters
func (s *Subscription) IsSpecial() bool {
	return s.Kind == KindSpecial || KindFromURL(s.URL) == KindSpecial
}

// NeverDownloaded reports whether the subscription was never synchronized
func (s *Subscription) NeverDownloaded() bool {
	return s.LastDownload.IsZero()
}

// IsDefaultFor reports whether a special subscription collects the category
func (s *Subscription) IsDefaultFor(category string) bool {
	for _, d := range s.Defaults {
		if d == category {
			return true
		}
	}
	return false
}

// Contains reports whether a filter with the given text is listed
func (s *Subscription) Contains(text string) bool {
	for _, f := range s.Filters {
		if f.Text == text {
			return true
		}
	}
	return false
}

// Clone returns a copy whose slices can be modified independently
func (s Subscription) Clone() Subscription {
	c := s
	if s.Prefixes != nil {
		c.Prefixes = append([]string(nil), s.Prefixes...)
	}
	if s.Defaults != nil {
		c.Defaults = append([]string(nil), s.Defaults...)
	}
	if s.Filters != nil {
		c.Filters = append([]*Filter(nil), s.Filters...)
	}
	return c
}
