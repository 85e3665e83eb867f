package api

import (
	"time"

	"github.com/bnema/adblock-engine/internal/models"
)

// FilterResponse is the JSON representation of a filter.
type FilterResponse struct {
	Text     string          `json:"text" doc:"Normalized filter text"`
	Type     string          `json:"type" doc:"Filter type"`
	Pattern  string          `json:"pattern,omitempty"`
	Selector string          `json:"selector,omitempty"`
	Domains  map[string]bool `json:"domains,omitempty" doc:"Domain to include (true) or exclude (false)"`
}

func newFilterResponse(f *models.Filter) FilterResponse {
	return FilterResponse{
		Text:     f.Text,
		Type:     f.Type.String(),
		Pattern:  f.Pattern,
		Selector: f.Selector,
		Domains:  f.Domains,
	}
}

// SubscriptionResponse is the JSON representation of a subscription.
type SubscriptionResponse struct {
	URL            string     `json:"url"`
	Kind           string     `json:"kind"`
	Title          string     `json:"title,omitempty"`
	Homepage       string     `json:"homepage,omitempty"`
	Author         string     `json:"author,omitempty"`
	Prefixes       []string   `json:"prefixes,omitempty"`
	Specialization string     `json:"specialization,omitempty"`
	Disabled       bool       `json:"disabled"`
	LastDownload   *time.Time `json:"last_download,omitempty"`
	LastCheck      *time.Time `json:"last_check,omitempty"`
	Expires        *time.Time `json:"expires,omitempty"`
	Version        string     `json:"version,omitempty"`
	DownloadStatus string     `json:"download_status,omitempty"`
	ErrorCount     int        `json:"error_count"`
	FilterCount    int        `json:"filter_count"`
	Updating       bool       `json:"updating"`
}

func newSubscriptionResponse(sub models.Subscription, updating bool) SubscriptionResponse {
	return SubscriptionResponse{
		URL:            sub.URL,
		Kind:           sub.Kind.String(),
		Title:          sub.Title,
		Homepage:       sub.Homepage,
		Author:         sub.Author,
		Prefixes:       sub.Prefixes,
		Specialization: sub.Specialization,
		Disabled:       sub.Disabled,
		LastDownload:   optionalTime(sub.LastDownload),
		LastCheck:      optionalTime(sub.LastCheck),
		Expires:        optionalTime(sub.Expires),
		Version:        sub.Version,
		DownloadStatus: sub.DownloadStatus,
		ErrorCount:     sub.ErrorCount,
		FilterCount:    len(sub.Filters),
		Updating:       updating,
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// NotificationResponse is a notification with texts resolved for the
// configured locale.
type NotificationResponse struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Title   string   `json:"title"`
	Message string   `json:"message"`
	Links   []string `json:"links,omitempty"`
}
