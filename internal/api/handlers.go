package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bnema/adblock-engine/internal/engine"
	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/version"
)

// Handler serves engine operations.
type Handler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewHandler creates a handler for the engine.
func NewHandler(e *engine.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: e, logger: logger}
}

// Register registers all routes with the API.
func (h *Handler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"System"},
	}, h.Health)

	huma.Register(api, huma.Operation{
		OperationID: "getStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Index statistics",
		Tags:        []string{"System"},
	}, h.Stats)

	huma.Register(api, huma.Operation{
		OperationID: "checkMatch",
		Method:      http.MethodGet,
		Path:        "/api/v1/match",
		Summary:     "Match a request",
		Description: "Returns the filter deciding the request, if any",
		Tags:        []string{"Matching"},
	}, h.Match)

	huma.Register(api, huma.Operation{
		OperationID: "getSelectors",
		Method:      http.MethodGet,
		Path:        "/api/v1/selectors",
		Summary:     "Element hiding selectors for a domain",
		Tags:        []string{"Matching"},
	}, h.Selectors)

	huma.Register(api, huma.Operation{
		OperationID: "getEmulationSelectors",
		Method:      http.MethodGet,
		Path:        "/api/v1/emulation",
		Summary:     "Element hiding emulation rules for a domain",
		Tags:        []string{"Matching"},
	}, h.Emulation)

	huma.Register(api, huma.Operation{
		OperationID: "listFilters",
		Method:      http.MethodGet,
		Path:        "/api/v1/filters",
		Summary:     "List user filters",
		Tags:        []string{"Filters"},
	}, h.ListFilters)

	huma.Register(api, huma.Operation{
		OperationID:   "addFilter",
		Method:        http.MethodPost,
		Path:          "/api/v1/filters",
		Summary:       "Add a user filter",
		Tags:          []string{"Filters"},
		DefaultStatus: http.StatusCreated,
	}, h.AddFilter)

	huma.Register(api, huma.Operation{
		OperationID: "removeFilter",
		Method:      http.MethodDelete,
		Path:        "/api/v1/filters",
		Summary:     "Remove a user filter",
		Tags:        []string{"Filters"},
	}, h.RemoveFilter)

	huma.Register(api, huma.Operation{
		OperationID: "listSubscriptions",
		Method:      http.MethodGet,
		Path:        "/api/v1/subscriptions",
		Summary:     "List subscriptions",
		Tags:        []string{"Subscriptions"},
	}, h.ListSubscriptions)

	huma.Register(api, huma.Operation{
		OperationID:   "addSubscription",
		Method:        http.MethodPost,
		Path:          "/api/v1/subscriptions",
		Summary:       "Add a subscription",
		Description:   "Adds a subscription and downloads it when it was never downloaded",
		Tags:          []string{"Subscriptions"},
		DefaultStatus: http.StatusCreated,
	}, h.AddSubscription)

	huma.Register(api, huma.Operation{
		OperationID: "removeSubscription",
		Method:      http.MethodDelete,
		Path:        "/api/v1/subscriptions",
		Summary:     "Remove a subscription",
		Tags:        []string{"Subscriptions"},
	}, h.RemoveSubscription)

	huma.Register(api, huma.Operation{
		OperationID:   "updateSubscription",
		Method:        http.MethodPost,
		Path:          "/api/v1/subscriptions/update",
		Summary:       "Start downloading a subscription",
		Tags:          []string{"Subscriptions"},
		DefaultStatus: http.StatusAccepted,
	}, h.UpdateSubscription)

	huma.Register(api, huma.Operation{
		OperationID: "recommendedSubscriptions",
		Method:      http.MethodGet,
		Path:        "/api/v1/subscriptions/recommended",
		Summary:     "Recommended subscriptions",
		Tags:        []string{"Subscriptions"},
	}, h.RecommendedSubscriptions)

	huma.Register(api, huma.Operation{
		OperationID: "getAA",
		Method:      http.MethodGet,
		Path:        "/api/v1/aa",
		Summary:     "Acceptable ads state",
		Tags:        []string{"Subscriptions"},
	}, h.GetAA)

	huma.Register(api, huma.Operation{
		OperationID: "setAA",
		Method:      http.MethodPut,
		Path:        "/api/v1/aa",
		Summary:     "Enable or disable acceptable ads",
		Tags:        []string{"Subscriptions"},
	}, h.SetAA)

	huma.Register(api, huma.Operation{
		OperationID: "nextNotification",
		Method:      http.MethodGet,
		Path:        "/api/v1/notifications/next",
		Summary:     "Next notification to show",
		Tags:        []string{"Notifications"},
	}, h.NextNotification)

	huma.Register(api, huma.Operation{
		OperationID:   "markNotificationShown",
		Method:        http.MethodPost,
		Path:          "/api/v1/notifications/{id}/shown",
		Summary:       "Mark a notification as shown",
		Tags:          []string{"Notifications"},
		DefaultStatus: http.StatusNoContent,
	}, h.MarkNotificationShown)

	huma.Register(api, huma.Operation{
		OperationID: "listPrefs",
		Method:      http.MethodGet,
		Path:        "/api/v1/prefs",
		Summary:     "List preferences",
		Tags:        []string{"Preferences"},
	}, h.ListPrefs)

	huma.Register(api, huma.Operation{
		OperationID: "getPref",
		Method:      http.MethodGet,
		Path:        "/api/v1/prefs/{key}",
		Summary:     "Get a preference",
		Tags:        []string{"Preferences"},
	}, h.GetPref)

	huma.Register(api, huma.Operation{
		OperationID: "setPref",
		Method:      http.MethodPut,
		Path:        "/api/v1/prefs/{key}",
		Summary:     "Set a preference",
		Description: "A null value restores the default",
		Tags:        []string{"Preferences"},
	}, h.SetPref)
}

// HealthOutput is the health check response.
type HealthOutput struct {
	Body struct {
		Status   string `json:"status" example:"healthy"`
		Version  string `json:"version"`
		Database string `json:"database"`
	}
}

// Health reports service and database status.
func (h *Handler) Health(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	out := &HealthOutput{}
	out.Body.Status = "healthy"
	out.Body.Version = version.Short()
	out.Body.Database = "ok"
	if err := h.engine.Ping(ctx); err != nil {
		out.Body.Status = "degraded"
		out.Body.Database = err.Error()
	}
	return out, nil
}

// StatsOutput wraps the engine statistics.
type StatsOutput struct {
	Body engine.Stats
}

// Stats returns index sizes.
func (h *Handler) Stats(_ context.Context, _ *struct{}) (*StatsOutput, error) {
	return &StatsOutput{Body: h.engine.Stats()}, nil
}

// MatchInput describes a request to match.
type MatchInput struct {
	URL      string `query:"url" required:"true" doc:"Request URL"`
	Type     string `query:"type" default:"other" doc:"Comma separated content types"`
	Document string `query:"document" doc:"URL of the document issuing the request"`
	SiteKey  string `query:"sitekey" doc:"Verified site key of the document"`
}

// MatchOutput is the match result. Filter is null when nothing matched.
type MatchOutput struct {
	Body struct {
		Matched bool            `json:"matched"`
		Blocked bool            `json:"blocked"`
		Filter  *FilterResponse `json:"filter"`
	}
}

// Match returns the deciding filter for a request.
func (h *Handler) Match(_ context.Context, input *MatchInput) (*MatchOutput, error) {
	contentType, ok := models.ParseContentTypeMask(input.Type)
	if !ok || contentType == 0 {
		return nil, huma.Error400BadRequest(fmt.Sprintf("unknown content type %q", input.Type))
	}

	out := &MatchOutput{}
	f := h.engine.CheckFilterMatch(input.URL, contentType, input.Document, input.SiteKey)
	if f != nil {
		resp := newFilterResponse(f)
		out.Body.Matched = true
		out.Body.Blocked = f.Type == models.FilterTypeBlocking
		out.Body.Filter = &resp
	}
	return out, nil
}

// DomainInput selects a domain.
type DomainInput struct {
	Domain string `query:"domain" doc:"Document host, empty for generic rules only"`
}

// SelectorsOutput lists element hiding selectors.
type SelectorsOutput struct {
	Body struct {
		Selectors []string `json:"selectors"`
	}
}

// Selectors returns the element hiding selectors for a domain.
func (h *Handler) Selectors(_ context.Context, input *DomainInput) (*SelectorsOutput, error) {
	out := &SelectorsOutput{}
	out.Body.Selectors = h.engine.ElementHidingSelectors(input.Domain)
	if out.Body.Selectors == nil {
		out.Body.Selectors = []string{}
	}
	return out, nil
}

// EmulationOutput lists element hiding emulation rules.
type EmulationOutput struct {
	Body struct {
		Rules []EmulationRule `json:"rules"`
	}
}

// EmulationRule is a procedural selector with the filter defining it.
type EmulationRule struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
}

// Emulation returns the emulation rules for a domain.
func (h *Handler) Emulation(_ context.Context, input *DomainInput) (*EmulationOutput, error) {
	rules := h.engine.ElementHidingEmulationSelectors(input.Domain)
	out := &EmulationOutput{}
	out.Body.Rules = make([]EmulationRule, 0, len(rules))
	for _, r := range rules {
		out.Body.Rules = append(out.Body.Rules, EmulationRule{Selector: r.Selector, Text: r.Text})
	}
	return out, nil
}

// FiltersOutput lists filters.
type FiltersOutput struct {
	Body struct {
		Filters []FilterResponse `json:"filters"`
	}
}

// ListFilters returns the user's filters.
func (h *Handler) ListFilters(_ context.Context, _ *struct{}) (*FiltersOutput, error) {
	filters := h.engine.ListedFilters()
	out := &FiltersOutput{}
	out.Body.Filters = make([]FilterResponse, 0, len(filters))
	for _, f := range filters {
		out.Body.Filters = append(out.Body.Filters, newFilterResponse(f))
	}
	return out, nil
}

// AddFilterInput is the request to add a filter.
type AddFilterInput struct {
	Body struct {
		Text string `json:"text" minLength:"1" doc:"Filter text"`
	}
}

// FilterChangeOutput reports a filter mutation.
type FilterChangeOutput struct {
	Body struct {
		Filter  FilterResponse `json:"filter"`
		Changed bool           `json:"changed" doc:"False when the request was a no-op"`
	}
}

// AddFilter adds a filter to the matching user group.
func (h *Handler) AddFilter(ctx context.Context, input *AddFilterInput) (*FilterChangeOutput, error) {
	f, err := h.engine.GetFilterFromText(input.Body.Text)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	added, err := h.engine.AddFilterToList(ctx, f)
	if err != nil {
		return nil, h.toHumaError(err)
	}

	out := &FilterChangeOutput{}
	out.Body.Filter = newFilterResponse(f)
	out.Body.Changed = added
	return out, nil
}

// RemoveFilterInput selects the filter to remove.
type RemoveFilterInput struct {
	Text string `query:"text" required:"true" doc:"Filter text"`
}

// RemoveFilter removes a filter from the user groups.
func (h *Handler) RemoveFilter(ctx context.Context, input *RemoveFilterInput) (*FilterChangeOutput, error) {
	f, err := h.engine.GetFilterFromText(input.Text)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	removed, err := h.engine.RemoveFilterFromList(ctx, f)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	if !removed {
		return nil, huma.Error404NotFound(fmt.Sprintf("filter %q is not listed", f.Text))
	}

	out := &FilterChangeOutput{}
	out.Body.Filter = newFilterResponse(f)
	out.Body.Changed = true
	return out, nil
}

// SubscriptionsOutput lists subscriptions.
type SubscriptionsOutput struct {
	Body struct {
		Subscriptions []SubscriptionResponse `json:"subscriptions"`
	}
}

func (h *Handler) subscriptionsOutput(subs []models.Subscription) *SubscriptionsOutput {
	out := &SubscriptionsOutput{}
	out.Body.Subscriptions = make([]SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out.Body.Subscriptions = append(out.Body.Subscriptions,
			newSubscriptionResponse(sub, h.engine.IsSubscriptionUpdating(sub.URL)))
	}
	return out
}

// ListSubscriptions returns the downloadable subscriptions.
func (h *Handler) ListSubscriptions(_ context.Context, _ *struct{}) (*SubscriptionsOutput, error) {
	return h.subscriptionsOutput(h.engine.ListedSubscriptions()), nil
}

// RecommendedSubscriptions returns the built-in catalog.
func (h *Handler) RecommendedSubscriptions(_ context.Context, _ *struct{}) (*SubscriptionsOutput, error) {
	return h.subscriptionsOutput(h.engine.RecommendedSubscriptions()), nil
}

// AddSubscriptionInput is the request to add a subscription.
type AddSubscriptionInput struct {
	Body struct {
		URL      string `json:"url" minLength:"1" format:"uri"`
		Title    string `json:"title,omitempty"`
		Homepage string `json:"homepage,omitempty"`
	}
}

// SubscriptionOutput wraps a single subscription.
type SubscriptionOutput struct {
	Body SubscriptionResponse
}

// AddSubscription lists a new subscription.
func (h *Handler) AddSubscription(ctx context.Context, input *AddSubscriptionInput) (*SubscriptionOutput, error) {
	sub := h.engine.GetSubscriptionFromURL(input.Body.URL)
	if input.Body.Title != "" {
		sub.Title = input.Body.Title
	}
	if input.Body.Homepage != "" {
		sub.Homepage = input.Body.Homepage
	}
	if err := h.engine.AddSubscriptionToList(ctx, sub); err != nil {
		return nil, h.toHumaError(err)
	}

	sub = h.engine.GetSubscriptionFromURL(sub.URL)
	return &SubscriptionOutput{Body: newSubscriptionResponse(sub, h.engine.IsSubscriptionUpdating(sub.URL))}, nil
}

// SubscriptionURLInput selects a subscription by URL.
type SubscriptionURLInput struct {
	URL string `query:"url" required:"true"`
}

// RemoveSubscriptionOutput reports a removal.
type RemoveSubscriptionOutput struct {
	Body struct {
		URL     string `json:"url"`
		Removed bool   `json:"removed"`
	}
}

// RemoveSubscription removes a subscription.
func (h *Handler) RemoveSubscription(ctx context.Context, input *SubscriptionURLInput) (*RemoveSubscriptionOutput, error) {
	removed, err := h.engine.RemoveSubscriptionFromList(ctx, input.URL)
	if err != nil {
		return nil, h.toHumaError(err)
	}
	if !removed {
		return nil, huma.Error404NotFound(fmt.Sprintf("subscription %s is not listed", input.URL))
	}

	out := &RemoveSubscriptionOutput{}
	out.Body.URL = input.URL
	out.Body.Removed = true
	return out, nil
}

// UpdateSubscriptionOutput reports a started download.
type UpdateSubscriptionOutput struct {
	Body struct {
		URL   string `json:"url"`
		State string `json:"state"`
	}
}

// UpdateSubscription starts downloading a subscription without waiting
// for the result.
func (h *Handler) UpdateSubscription(_ context.Context, input *SubscriptionURLInput) (*UpdateSubscriptionOutput, error) {
	task, err := h.engine.UpdateSubscription(input.URL)
	if err != nil {
		return nil, h.toHumaError(err)
	}

	out := &UpdateSubscriptionOutput{}
	out.Body.URL = task.URL()
	out.Body.State = task.State().String()
	return out, nil
}

// AAOutput reports whether acceptable ads are enabled.
type AAOutput struct {
	Body struct {
		Enabled bool `json:"enabled"`
	}
}

// GetAA returns the acceptable ads state.
func (h *Handler) GetAA(_ context.Context, _ *struct{}) (*AAOutput, error) {
	out := &AAOutput{}
	out.Body.Enabled = h.engine.IsAASubscriptionEnabled()
	return out, nil
}

// SetAAInput toggles acceptable ads.
type SetAAInput struct {
	Body struct {
		Enabled bool `json:"enabled"`
	}
}

// SetAA enables or disables acceptable ads.
func (h *Handler) SetAA(ctx context.Context, input *SetAAInput) (*AAOutput, error) {
	if err := h.engine.SetAASubscriptionEnabled(ctx, input.Body.Enabled); err != nil {
		return nil, h.toHumaError(err)
	}
	out := &AAOutput{}
	out.Body.Enabled = h.engine.IsAASubscriptionEnabled()
	return out, nil
}

// NextNotificationInput optionally scopes notifications to a page.
type NextNotificationInput struct {
	URL string `query:"url" doc:"Page the notification would be shown on"`
}

// NextNotificationOutput holds the next notification, null when there is
// none.
type NextNotificationOutput struct {
	Body struct {
		Notification *NotificationResponse `json:"notification"`
	}
}

// NextNotification returns the notification to show next.
func (h *Handler) NextNotification(_ context.Context, input *NextNotificationInput) (*NextNotificationOutput, error) {
	out := &NextNotificationOutput{}
	n := h.engine.ShowNextNotification(input.URL)
	if n == nil {
		return out, nil
	}

	texts := h.engine.NotificationTexts(*n)
	out.Body.Notification = &NotificationResponse{
		ID:      n.ID,
		Type:    string(n.Type),
		Title:   texts.Title,
		Message: texts.Message,
		Links:   n.Links,
	}
	return out, nil
}

// NotificationIDInput selects a notification.
type NotificationIDInput struct {
	ID string `path:"id"`
}

// MarkNotificationShown records that a notification was shown.
func (h *Handler) MarkNotificationShown(ctx context.Context, input *NotificationIDInput) (*struct{}, error) {
	if err := h.engine.MarkNotificationAsShown(ctx, input.ID); err != nil {
		return nil, h.toHumaError(err)
	}
	return nil, nil
}

// PrefsOutput lists all preferences.
type PrefsOutput struct {
	Body map[string]any
}

// ListPrefs returns every preference with its effective value.
func (h *Handler) ListPrefs(_ context.Context, _ *struct{}) (*PrefsOutput, error) {
	return &PrefsOutput{Body: h.engine.Prefs()}, nil
}

// PrefKeyInput selects a preference.
type PrefKeyInput struct {
	Key string `path:"key"`
}

// PrefOutput is a single preference.
type PrefOutput struct {
	Body struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}
}

// GetPref returns a preference value.
func (h *Handler) GetPref(_ context.Context, input *PrefKeyInput) (*PrefOutput, error) {
	value, ok := h.engine.Pref(input.Key)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("unknown preference %q", input.Key))
	}
	out := &PrefOutput{}
	out.Body.Key = input.Key
	out.Body.Value = value
	return out, nil
}

// SetPrefInput carries a new preference value.
type SetPrefInput struct {
	Key  string `path:"key"`
	Body struct {
		Value any `json:"value"`
	}
}

// SetPref overrides a preference.
func (h *Handler) SetPref(ctx context.Context, input *SetPrefInput) (*PrefOutput, error) {
	if err := h.engine.SetPref(ctx, input.Key, input.Body.Value); err != nil {
		return nil, h.toHumaError(err)
	}
	value, _ := h.engine.Pref(input.Key)
	out := &PrefOutput{}
	out.Body.Key = input.Key
	out.Body.Value = value
	return out, nil
}

// toHumaError maps engine errors to HTTP errors.
func (h *Handler) toHumaError(err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidFilterText):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, models.ErrUnsupportedURL), errors.Is(err, models.ErrPreferenceType):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, models.ErrDuplicateSubscription):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, models.ErrSubscriptionNotFound), errors.Is(err, models.ErrUnknownPreference):
		return huma.Error404NotFound(err.Error())
	}
	h.logger.Error("request failed", slog.String("error", err.Error()))
	return huma.Error500InternalServerError("internal error", err)
}
