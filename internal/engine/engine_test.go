package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/notification"
	"github.com/bnema/adblock-engine/internal/prefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	listURL = "https://lists.example.com/ads.txt"
	aaURL   = "https://lists.example.com/exceptionrules.txt"
)

// fakeFetcher serves lists from memory; gate, when set, holds every fetch
// until it is closed
type fakeFetcher struct {
	mu    sync.Mutex
	lists map[string]string
	calls map[string]int
	gate  chan struct{}
	total atomic.Int32
}

func newFakeFetcher(lists map[string]string) *fakeFetcher {
	return &fakeFetcher{lists: lists, calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.total.Add(1)
	f.mu.Lock()
	f.calls[url]++
	body, ok := f.lists[url]
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, fmt.Errorf("connection refused: %s", url)
	}
	return []byte(body), nil
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func newTestEngine(t *testing.T, f *fakeFetcher, mod ...func(*Options)) *Engine {
	t.Helper()
	opts := Options{
		Config: models.Config{
			Database:      models.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
			Subscriptions: models.SubscriptionConfig{ExceptionsURL: aaURL},
		},
		Fetcher:       f,
		Notifications: notification.StaticSource(nil),
	}
	for _, m := range mod {
		m(&opts)
	}
	e, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestFilterRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newFakeFetcher(nil))

	f, err := e.GetFilterFromText("  ||ads.example.com ^ ")
	require.NoError(t, err)
	assert.Equal(t, "||ads.example.com^", f.Text)

	assert.False(t, e.IsListedFilter(f))

	added, err := e.AddFilterToList(ctx, f)
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, e.IsListedFilter(f))

	added, err = e.AddFilterToList(ctx, f)
	require.NoError(t, err)
	assert.False(t, added, "second add reports already listed")

	require.Len(t, e.ListedFilters(), 1)
	assert.Empty(t, e.ListedSubscriptions(), "special subscriptions are not listed")

	removed, err := e.RemoveFilterFromList(ctx, f)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, e.IsListedFilter(f))

	removed, err = e.RemoveFilterFromList(ctx, f)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = e.GetFilterFromText("   ")
	assert.True(t, errors.Is(err, models.ErrInvalidFilterText))
}

func TestUserFiltersAffectMatching(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newFakeFetcher(nil))

	for _, text := range []string{"||ads.example.com^", "example.org##.banner", "example.org#?#div:-abp-has(.ad)"} {
		f, err := e.GetFilterFromText(text)
		require.NoError(t, err)
		_, err = e.AddFilterToList(ctx, f)
		require.NoError(t, err)
	}

	match := e.CheckFilterMatch("https://ads.example.com/x.js", models.ContentScript, "https://example.org/", "")
	require.NotNil(t, match)
	assert.Equal(t, "||ads.example.com^", match.Text)

	assert.Equal(t, []string{".banner"}, e.ElementHidingSelectors("www.example.org"))
	rules := e.ElementHidingEmulationSelectors("example.org")
	require.Len(t, rules, 1)
	assert.Equal(t, "div:-abp-has(.ad)", rules[0].Selector)
}

func TestAddSubscriptionDownloads(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher(map[string]string{
		listURL: "[Adblock Plus 2.0]\n! Title: Ads\n||ads.example.com^$third-party\n",
	})
	e := newTestEngine(t, f)

	require.NoError(t, e.AddSubscriptionToList(ctx, models.NewSubscription(listURL)))
	e.Wait()

	assert.True(t, e.IsListedSubscription(listURL))
	sub := e.GetSubscriptionFromURL(listURL)
	assert.Equal(t, "Ads", sub.Title)
	assert.False(t, sub.NeverDownloaded())
	assert.Equal(t, 1, f.count(listURL))

	t.Run("duplicate url", func(t *testing.T) {
		err := e.AddSubscriptionToList(ctx, models.NewSubscription(listURL))
		assert.True(t, errors.Is(err, models.ErrDuplicateSubscription))
		assert.Len(t, e.ListedSubscriptions(), 1)
	})

	t.Run("unlisted url", func(t *testing.T) {
		sub := e.GetSubscriptionFromURL("https://unknown.example/list.txt")
		assert.True(t, sub.NeverDownloaded())
		assert.False(t, e.IsListedSubscription(sub.URL))
		_, err := e.UpdateSubscription(sub.URL)
		assert.True(t, errors.Is(err, models.ErrSubscriptionNotFound))
	})

	t.Run("special url is never downloaded", func(t *testing.T) {
		url := models.SpecialSubscriptionURL()
		require.NoError(t, e.AddSubscriptionToList(ctx, models.Subscription{URL: url}))
		e.Wait()
		assert.True(t, e.IsListedSubscription(url))
		assert.Zero(t, f.count(url))
		assert.Len(t, e.ListedSubscriptions(), 1)
	})
}

func TestThirdPartyMatchStopsAfterRemoval(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher(map[string]string{
		listURL: "[Adblock Plus 2.0]\n||ads.example.com^$third-party\n",
	})
	e := newTestEngine(t, f)

	require.NoError(t, e.AddSubscriptionToList(ctx, models.NewSubscription(listURL)))
	e.Wait()

	url := "https://ads.example.com/banner.js"
	match := e.CheckFilterMatch(url, models.ContentScript, "https://news.example.org/", "")
	require.NotNil(t, match)
	assert.Equal(t, "||ads.example.com^$third-party", match.Text)

	assert.Nil(t, e.CheckFilterMatch(url, models.ContentScript, "https://www.example.com/", ""),
		"first-party request does not match a third-party filter")

	removed, err := e.RemoveSubscriptionFromList(ctx, listURL)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Nil(t, e.CheckFilterMatch(url, models.ContentScript, "https://news.example.org/", ""))

	removed, err = e.RemoveSubscriptionFromList(ctx, listURL)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestAllowlistWins(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher(map[string]string{
		listURL: "[Adblock Plus 2.0]\n||ads.example.com^\n@@||ads.example.com/allow.js\n",
	})
	e := newTestEngine(t, f)

	require.NoError(t, e.AddSubscriptionToList(ctx, models.NewSubscription(listURL)))
	e.Wait()

	match := e.CheckFilterMatch("https://ads.example.com/allow.js", models.ContentScript, "https://site.example.net/", "")
	require.NotNil(t, match)
	assert.Equal(t, models.FilterTypeAllowlist, match.Type)
	assert.Equal(t, "@@||ads.example.com/allow.js", match.Text)

	match = e.CheckFilterMatch("https://ads.example.com/other.js", models.ContentScript, "https://site.example.net/", "")
	require.NotNil(t, match)
	assert.Equal(t, models.FilterTypeBlocking, match.Type)
}

func TestConcurrentUpdatesFetchOnce(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher(map[string]string{listURL: "[Adblock Plus 2.0]\n||a.example^\n"})
	e := newTestEngine(t, f)

	// listed without the automatic first download
	require.NoError(t, e.store.AddSubscription(ctx, models.NewSubscription(listURL)))

	f.mu.Lock()
	f.gate = make(chan struct{})
	f.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.UpdateSubscription(listURL)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.True(t, e.IsSubscriptionUpdating(listURL))

	close(f.gate)
	e.Wait()

	assert.Equal(t, 1, f.count(listURL))
	assert.False(t, e.IsSubscriptionUpdating(listURL))
}

func TestAASubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("disable when absent is a no-op", func(t *testing.T) {
		f := newFakeFetcher(nil)
		e := newTestEngine(t, f)

		require.NoError(t, e.SetAASubscriptionEnabled(ctx, false))
		assert.False(t, e.IsAASubscriptionEnabled())
		assert.False(t, e.IsListedSubscription(aaURL))
		assert.Zero(t, f.total.Load())
	})

	t.Run("enable twice fetches once", func(t *testing.T) {
		f := newFakeFetcher(map[string]string{aaURL: "[Adblock Plus 2.0]\n@@||ads.example.com^$document\n"})
		e := newTestEngine(t, f)

		require.NoError(t, e.SetAASubscriptionEnabled(ctx, true))
		require.NoError(t, e.SetAASubscriptionEnabled(ctx, true))
		e.Wait()

		assert.True(t, e.IsAASubscriptionEnabled())
		assert.True(t, e.IsAASubscription(aaURL))
		assert.False(t, e.IsAASubscription(listURL))
		assert.Equal(t, 1, f.count(aaURL))

		sub := e.GetSubscriptionFromURL(aaURL)
		assert.False(t, sub.Disabled)
		assert.False(t, sub.NeverDownloaded())

		require.NoError(t, e.SetAASubscriptionEnabled(ctx, false))
		assert.False(t, e.IsAASubscriptionEnabled())
		assert.True(t, e.IsListedSubscription(aaURL), "disabling keeps the subscription")

		require.NoError(t, e.SetAASubscriptionEnabled(ctx, true))
		e.Wait()
		assert.True(t, e.IsAASubscriptionEnabled())
		assert.Equal(t, 1, f.count(aaURL), "already downloaded lists are not fetched again")
	})

	t.Run("follows the exceptions url preference", func(t *testing.T) {
		other := "https://aa.example.net/exceptions.txt"
		f := newFakeFetcher(map[string]string{other: "[Adblock Plus 2.0]\n"})
		e := newTestEngine(t, f)

		require.NoError(t, e.SetPref(ctx, prefs.KeyExceptionsURL, other))
		require.NoError(t, e.SetAASubscriptionEnabled(ctx, true))
		e.Wait()

		assert.True(t, e.IsAASubscription(other))
		assert.True(t, e.IsListedSubscription(other))
		assert.False(t, e.IsListedSubscription(aaURL))
	})
}

func TestRecommendedSubscriptionsKeepMetadata(t *testing.T) {
	ctx := context.Background()

	recommended := newTestEngine(t, newFakeFetcher(nil)).RecommendedSubscriptions()
	require.NotEmpty(t, recommended)
	rec := recommended[0]

	f := newFakeFetcher(map[string]string{
		rec.URL: "[Adblock Plus 2.0]\n! Title: Title from the list\n! Homepage: https://elsewhere.example/\n||a.example^\n",
	})
	e := newTestEngine(t, f)

	require.NoError(t, e.AddSubscriptionToList(ctx, rec))
	e.Wait()

	listed := e.GetSubscriptionFromURL(rec.URL)
	assert.Equal(t, rec.Title, listed.Title)
	assert.Equal(t, rec.Homepage, listed.Homepage)
	assert.Equal(t, rec.Author, listed.Author)
	assert.False(t, listed.NeverDownloaded())
}

func TestFirstRunSeedsConfiguredLists(t *testing.T) {
	f := newFakeFetcher(map[string]string{listURL: "[Adblock Plus 2.0]\n||a.example^\n"})
	e := newTestEngine(t, f, func(o *Options) {
		o.Config.Lists = []models.FilterList{
			{Name: "Configured", URL: listURL, Enabled: true},
			{Name: "Off", URL: "https://off.example/list.txt", Enabled: false},
		}
	})
	e.Wait()

	subs := e.ListedSubscriptions()
	require.Len(t, subs, 1)
	assert.Equal(t, "Configured", subs[0].Title)
	assert.Equal(t, 1, f.count(listURL))

	done, _ := e.Pref(prefs.KeyFirstRunDone)
	assert.Equal(t, true, done)
}

func TestPersistenceAcrossRestart(t *testing.T) {
	ctx := context.Background()
	dsn := t.TempDir() + "/engine.db"
	config := func(o *Options) {
		o.Config.Database = models.DatabaseConfig{Driver: "sqlite", DSN: dsn}
	}

	f := newFakeFetcher(map[string]string{listURL: "[Adblock Plus 2.0]\n||ads.example.com^\n"})
	first := newTestEngine(t, f, config)
	require.NoError(t, first.AddSubscriptionToList(ctx, models.NewSubscription(listURL)))
	first.Wait()
	filter, err := first.GetFilterFromText("example.org##.banner")
	require.NoError(t, err)
	_, err = first.AddFilterToList(ctx, filter)
	require.NoError(t, err)
	require.NoError(t, first.SetPref(ctx, prefs.KeyAutoUpdate, false))
	first.Close()

	second := newTestEngine(t, f, config)
	assert.True(t, second.IsListedSubscription(listURL))
	assert.True(t, second.IsListedFilter(filter))
	assert.NotNil(t, second.CheckFilterMatch("https://ads.example.com/", models.ContentImage, "https://example.org/", ""))
	assert.Equal(t, []string{".banner"}, second.ElementHidingSelectors("example.org"))
	autoUpdate, _ := second.Pref(prefs.KeyAutoUpdate)
	assert.Equal(t, false, autoUpdate)
	assert.Equal(t, 1, f.count(listURL), "a downloaded list is not fetched again on restart")
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	n := models.Notification{
		ID:      "welcome",
		Type:    models.NotificationInformation,
		Title:   map[string]string{"en-US": "Welcome", "de-DE": "Willkommen"},
		Message: map[string]string{"en-US": "Hello"},
	}
	e := newTestEngine(t, newFakeFetcher(nil), func(o *Options) {
		o.Notifications = notification.StaticSource{n}
	})

	var shown []string
	e.AddShowNotificationListener(func(n models.Notification) { shown = append(shown, n.ID) })

	next := e.ShowNextNotification("")
	require.NotNil(t, next)
	assert.Equal(t, "Welcome", e.NotificationTexts(*next).Title)

	require.NoError(t, e.SetPref(ctx, prefs.KeyLocale, "de-DE"))
	assert.Equal(t, "Willkommen", e.NotificationTexts(*next).Title)

	require.NoError(t, e.MarkNotificationAsShown(ctx, "welcome"))
	assert.Nil(t, e.ShowNextNotification(""))
	assert.Equal(t, []string{"welcome"}, shown)
}

func TestMiscOperations(t *testing.T) {
	e := newTestEngine(t, newFakeFetcher(nil))

	assert.Equal(t, "www.example.com", e.HostFromURL("https://WWW.Example.com:8080/path"))
	assert.Equal(t, "", e.HostFromURL("about:blank"))

	assert.Equal(t, -1, e.CompareVersions("1.0pre1", "1.0"))
	assert.Equal(t, 0, e.CompareVersions("1.0", "1.0.0"))
	assert.Equal(t, 1, e.CompareVersions("2.1", "2.0b3"))

	assert.False(t, e.VerifySignature("bogus", "bogus", "/", "example.com", "UA"))

	_, ok := e.Pref("no_such_pref")
	assert.False(t, ok)
	err := e.SetPref(context.Background(), "no_such_pref", 1)
	assert.True(t, errors.Is(err, models.ErrUnknownPreference))

	assert.NoError(t, e.Ping(context.Background()))
}
