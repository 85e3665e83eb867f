package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/adblock-engine/internal/engine"
	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/notification"
)

const (
	listURL = "https://lists.example.com/ads.txt"
	aaURL   = "https://lists.example.com/exceptionrules.txt"
)

type memoryFetcher map[string]string

func (m memoryFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	body, ok := m[url]
	if !ok {
		return nil, fmt.Errorf("connection refused: %s", url)
	}
	return []byte(body), nil
}

func setupAPI(t *testing.T) (humatest.TestAPI, *engine.Engine) {
	t.Helper()

	e, err := engine.New(context.Background(), engine.Options{
		Config: models.Config{
			Database:      models.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
			Subscriptions: models.SubscriptionConfig{ExceptionsURL: aaURL},
		},
		Fetcher: memoryFetcher{
			listURL: "[Adblock Plus 2.0]\n! Title: Test list\n||ads.example.com^\n##.banner\n",
			aaURL:   "[Adblock Plus 2.0]\n! Title: Exceptions\n@@||ads.example.com/acceptable/\n",
		},
		Notifications: notification.StaticSource{
			{
				ID:      "welcome",
				Type:    models.NotificationInformation,
				Title:   map[string]string{"en-US": "Welcome"},
				Message: map[string]string{"en-US": "Hello"},
			},
		},
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)

	_, api := humatest.New(t)
	NewHandler(e, nil).Register(api)
	return api, e
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	api, _ := setupAPI(t)

	resp := api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "ok", body.Database)
}

func TestFilters(t *testing.T) {
	api, _ := setupAPI(t)

	resp := api.Post("/api/v1/filters", map[string]any{"text": " ||tracker.example.net^ "})
	require.Equal(t, http.StatusCreated, resp.Code)

	var change struct {
		Filter  FilterResponse `json:"filter"`
		Changed bool           `json:"changed"`
	}
	decode(t, resp, &change)
	assert.True(t, change.Changed)
	assert.Equal(t, "||tracker.example.net^", change.Filter.Text)
	assert.Equal(t, "blocking", change.Filter.Type)

	resp = api.Post("/api/v1/filters", map[string]any{"text": "||tracker.example.net^"})
	require.Equal(t, http.StatusCreated, resp.Code)
	decode(t, resp, &change)
	assert.False(t, change.Changed)

	resp = api.Get("/api/v1/filters")
	require.Equal(t, http.StatusOK, resp.Code)
	var list struct {
		Filters []FilterResponse `json:"filters"`
	}
	decode(t, resp, &list)
	require.Len(t, list.Filters, 1)

	resp = api.Get("/api/v1/match?url=https://tracker.example.net/t.js&type=script&document=https://news.example.org/")
	require.Equal(t, http.StatusOK, resp.Code)
	var match struct {
		Matched bool            `json:"matched"`
		Blocked bool            `json:"blocked"`
		Filter  *FilterResponse `json:"filter"`
	}
	decode(t, resp, &match)
	assert.True(t, match.Blocked)
	require.NotNil(t, match.Filter)
	assert.Equal(t, "||tracker.example.net^", match.Filter.Text)

	resp = api.Delete("/api/v1/filters?text=" + "%7C%7Ctracker.example.net%5E")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = api.Delete("/api/v1/filters?text=" + "%7C%7Ctracker.example.net%5E")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestFiltersInvalid(t *testing.T) {
	api, _ := setupAPI(t)

	resp := api.Post("/api/v1/filters", map[string]any{"text": "||example.com^$bogus"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestMatchUnknownType(t *testing.T) {
	api, _ := setupAPI(t)

	resp := api.Get("/api/v1/match?url=https://a.example/x&type=nonsense")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSubscriptions(t *testing.T) {
	api, e := setupAPI(t)

	resp := api.Post("/api/v1/subscriptions", map[string]any{"url": listURL})
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = api.Post("/api/v1/subscriptions", map[string]any{"url": listURL})
	assert.Equal(t, http.StatusConflict, resp.Code)

	e.Wait()

	resp = api.Get("/api/v1/subscriptions")
	require.Equal(t, http.StatusOK, resp.Code)
	var list struct {
		Subscriptions []SubscriptionResponse `json:"subscriptions"`
	}
	decode(t, resp, &list)
	require.Len(t, list.Subscriptions, 1)
	assert.Equal(t, "Test list", list.Subscriptions[0].Title)
	assert.Equal(t, models.StatusOK, list.Subscriptions[0].DownloadStatus)
	assert.Equal(t, 3, list.Subscriptions[0].FilterCount, "comments are kept")

	resp = api.Get("/api/v1/selectors?domain=example.com")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), ".banner")

	resp = api.Post("/api/v1/subscriptions/update?url="+listURL)
	assert.Equal(t, http.StatusAccepted, resp.Code)
	e.Wait()

	resp = api.Delete("/api/v1/subscriptions?url=" + listURL)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = api.Delete("/api/v1/subscriptions?url=" + listURL)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = api.Post("/api/v1/subscriptions/update?url="+listURL)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestRecommendedSubscriptions(t *testing.T) {
	api, _ := setupAPI(t)

	resp := api.Get("/api/v1/subscriptions/recommended")
	require.Equal(t, http.StatusOK, resp.Code)

	var list struct {
		Subscriptions []SubscriptionResponse `json:"subscriptions"`
	}
	decode(t, resp, &list)
	assert.NotEmpty(t, list.Subscriptions)
	for _, sub := range list.Subscriptions {
		assert.NotEmpty(t, sub.URL)
		assert.Equal(t, "downloadable", sub.Kind)
	}
}

func TestAA(t *testing.T) {
	api, e := setupAPI(t)

	resp := api.Get("/api/v1/aa")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"enabled": false}`, stripSchema(resp.Body.String()))

	resp = api.Put("/api/v1/aa", map[string]any{"enabled": true})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"enabled": true}`, stripSchema(resp.Body.String()))
	e.Wait()
	assert.True(t, e.IsAASubscriptionEnabled())

	resp = api.Put("/api/v1/aa", map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, e.IsAASubscriptionEnabled())
}

func TestNotifications(t *testing.T) {
	api, _ := setupAPI(t)

	resp := api.Get("/api/v1/notifications/next")
	require.Equal(t, http.StatusOK, resp.Code)

	var next struct {
		Notification *NotificationResponse `json:"notification"`
	}
	decode(t, resp, &next)
	require.NotNil(t, next.Notification)
	assert.Equal(t, "welcome", next.Notification.ID)
	assert.Equal(t, "Welcome", next.Notification.Title)

	resp = api.Post("/api/v1/notifications/welcome/shown")
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = api.Get("/api/v1/notifications/next")
	require.Equal(t, http.StatusOK, resp.Code)
	next.Notification = nil
	decode(t, resp, &next)
	assert.Nil(t, next.Notification)
}

func TestPrefs(t *testing.T) {
	api, _ := setupAPI(t)

	resp := api.Get("/api/v1/prefs/subscriptions_autoupdate")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"value":true`)

	resp = api.Put("/api/v1/prefs/subscriptions_autoupdate", map[string]any{"value": false})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"value":false`)

	resp = api.Put("/api/v1/prefs/subscriptions_autoupdate", map[string]any{"value": "no"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = api.Get("/api/v1/prefs/no_such_pref")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = api.Put("/api/v1/prefs/no_such_pref", map[string]any{"value": 1})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = api.Get("/api/v1/prefs")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "subscriptions_exceptionsurl")
}

func TestStats(t *testing.T) {
	api, _ := setupAPI(t)

	resp := api.Get("/api/v1/stats")
	require.Equal(t, http.StatusOK, resp.Code)

	var stats struct {
		Subscriptions int `json:"subscriptions"`
		Matcher       struct {
			Blocking int `json:"blocking"`
		} `json:"matcher"`
		ElementHiding struct {
			Generic int `json:"generic"`
		} `json:"element_hiding"`
	}
	decode(t, resp, &stats)
	assert.Zero(t, stats.Matcher.Blocking)
	assert.Zero(t, stats.ElementHiding.Generic)
}

func TestRegisterOnServer(t *testing.T) {
	_, e := setupAPI(t)
	srv := NewServer(models.ServerConfig{}, nil, "test")

	require.NotPanics(t, func() { NewHandler(e, nil).Register(srv.API()) })

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(GetRequestID(r.Context())))
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		id := rec.Header().Get(RequestIDHeader)
		require.NotEmpty(t, id)
		assert.Equal(t, id, rec.Body.String())
		_, err := models.ParseULID(id)
		assert.NoError(t, err)
	})

	t.Run("propagated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "client-id")
		handler.ServeHTTP(rec, req)
		assert.Equal(t, "client-id", rec.Body.String())
	})
}

func TestServerShutdown(t *testing.T) {
	srv := NewServer(models.ServerConfig{Host: "127.0.0.1", Port: 0}, nil, "test")
	assert.Equal(t, "127.0.0.1:8080", srv.Addr())
	assert.NotNil(t, srv.API())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}

// stripSchema drops the "$schema" link huma adds to object responses
func stripSchema(body string) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return body
	}
	delete(m, "$schema")
	out, _ := json.Marshal(m)
	return strings.TrimSpace(string(out))
}
