package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/store"
	"github.com/bnema/adblock-engine/internal/synchronizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	mu      sync.Mutex
	urls    []string
	active  atomic.Int32
	maxSeen atomic.Int32
	delay   time.Duration
}

func (f *countingFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	return []byte("[Adblock Plus 2.0]\n||ads.example.com^\n"), nil
}

func TestDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sub := func(mod func(*models.Subscription)) models.Subscription {
		s := models.NewSubscription("https://lists.example.com/list.txt")
		mod(&s)
		return s
	}

	tests := []struct {
		name     string
		sub      models.Subscription
		expected bool
	}{
		{"never downloaded", sub(func(*models.Subscription) {}), true},
		{"expired", sub(func(s *models.Subscription) {
			s.LastDownload = now.Add(-48 * time.Hour)
			s.Expires = now.Add(-time.Minute)
		}), true},
		{"fresh", sub(func(s *models.Subscription) {
			s.LastDownload = now.Add(-time.Hour)
			s.Expires = now.Add(time.Hour)
		}), false},
		{"disabled", sub(func(s *models.Subscription) { s.Disabled = true }), false},
		{"special", models.NewSubscription(models.SpecialSubscriptionURL()), false},
		{"recent failure", sub(func(s *models.Subscription) {
			s.DownloadStatus = models.StatusConnectionError
			s.LastCheck = now.Add(-10 * time.Minute)
		}), false},
		{"old failure", sub(func(s *models.Subscription) {
			s.DownloadStatus = models.StatusConnectionError
			s.LastCheck = now.Add(-2 * time.Hour)
		}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Due(tt.sub, now))
		})
	}
}

func TestCheckNow(t *testing.T) {
	ctx := context.Background()
	st := store.New(nil, nil)
	urls := []string{
		"https://a.example/list.txt",
		"https://b.example/list.txt",
		"https://c.example/list.txt",
		"https://d.example/list.txt",
		"https://e.example/list.txt",
	}
	for _, u := range urls {
		require.NoError(t, st.AddSubscription(ctx, models.NewSubscription(u)))
	}
	disabled := models.NewSubscription("https://disabled.example/list.txt")
	disabled.Disabled = true
	require.NoError(t, st.AddSubscription(ctx, disabled))

	f := &countingFetcher{delay: 20 * time.Millisecond}
	sy := synchronizer.New(st, f, synchronizer.Options{})
	s := New(st, sy, models.SyncConfig{MaxConcurrent: 2})

	n, err := s.CheckNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(urls), n)
	assert.ElementsMatch(t, urls, f.urls)
	assert.LessOrEqual(t, f.maxSeen.Load(), int32(2))

	// everything is fresh now
	n, err = s.CheckNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStartRunsImmediately(t *testing.T) {
	ctx := context.Background()
	st := store.New(nil, nil)
	require.NoError(t, st.AddSubscription(ctx, models.NewSubscription("https://a.example/list.txt")))

	f := &countingFetcher{}
	sy := synchronizer.New(st, f, synchronizer.Options{})
	s := New(st, sy, models.SyncConfig{Schedule: "@every 1h"})

	require.NoError(t, s.Start(ctx))
	defer s.Stop()
	assert.Error(t, s.Start(ctx), "second start must fail")

	assert.Eventually(t, func() bool {
		sub, _ := st.Subscription("https://a.example/list.txt")
		return !sub.NeverDownloaded()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDisabledSkipsChecks(t *testing.T) {
	ctx := context.Background()
	st := store.New(nil, nil)
	require.NoError(t, st.AddSubscription(ctx, models.NewSubscription("https://a.example/list.txt")))

	f := &countingFetcher{}
	sy := synchronizer.New(st, f, synchronizer.Options{})
	s := New(st, sy, models.SyncConfig{}).WithEnabled(func() bool { return false })

	require.NoError(t, s.Start(ctx))
	time.Sleep(50 * time.Millisecond)
	s.Stop()
	sy.Wait()

	assert.Empty(t, f.urls)
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("@every 30m"))
	assert.NoError(t, ValidateSchedule("0 */6 * * *"))
	assert.NoError(t, ValidateSchedule("@daily"))
	assert.Error(t, ValidateSchedule("every hour"))

	s := New(nil, nil, models.SyncConfig{Schedule: "bogus"})
	assert.Error(t, s.Start(context.Background()))
}
