package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/urlutil"
	"github.com/bnema/adblock-engine/internal/version"
)

// Default limits
const (
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 3
	DefaultMaxSize = 50 * 1024 * 1024
)

// ErrTooLarge is returned when a list exceeds the configured size limit
var ErrTooLarge = errors.New("filter list too large")

// StatusError is returned for non-200 HTTP responses
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Status)
}

// Fetcher downloads filter lists over HTTP(S) or from file:// URLs
type Fetcher struct {
	client    *http.Client
	retries   int
	maxSize   int64
	userAgent string
	backoff   time.Duration
	logger    *slog.Logger
}

// New creates a new fetcher from config
func New(cfg models.HTTPConfig) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	retries := cfg.Retries
	if retries == 0 {
		retries = DefaultRetries
	}

	maxSize := cfg.MaxSize
	if maxSize == 0 {
		maxSize = DefaultMaxSize
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		retries:   retries,
		maxSize:   maxSize,
		userAgent: userAgent,
		backoff:   time.Second,
		logger:    slog.Default(),
	}
}

// WithLogger sets the logger
func (f *Fetcher) WithLogger(logger *slog.Logger) *Fetcher {
	f.logger = logger
	return f
}

// Fetch downloads content from a URL with retries. Only transport errors and
// server errors are retried.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := urlutil.ValidateDownloadURL(url); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnsupportedURL, err)
	}

	if urlutil.IsFileURL(url) {
		return f.fetchFile(url)
	}

	var lastErr error
	for i := 0; i < f.retries; i++ {
		if i > 0 {
			// Linear backoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * f.backoff):
			}
		}

		data, err := f.doFetch(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !retryable(err) {
			return nil, err
		}
		f.logger.Debug("fetch attempt failed",
			slog.String("url", url),
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
	}

	return nil, fmt.Errorf("failed after %d retries: %w", f.retries, lastErr)
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return !errors.Is(err, ErrTooLarge) && !errors.Is(err, context.Canceled)
}

func (f *Fetcher) doFetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := f.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}
	return decode(resp.Header.Get("Content-Encoding"), body, f.maxSize)
}

func (f *Fetcher) fetchFile(url string) ([]byte, error) {
	path, err := urlutil.FilePathFromURL(url)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return f.readLimited(file)
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

// decode undoes the content encoding of a response body
func decode(encoding string, body []byte, maxSize int64) ([]byte, error) {
	var reader io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("invalid gzip body: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(bytes.NewReader(body))
	default:
		return nil, fmt.Errorf("unsupported content encoding: %s", encoding)
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("decoding %s body: %w", encoding, err)
	}
	if int64(len(data)) > maxSize {
		return nil, ErrTooLarge
	}
	return data, nil
}
