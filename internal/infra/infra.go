// Package infra provides shared infrastructure components used across
// the application: memoization, rate limiting, and HTTP utilities.
package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// --- Keyed TTL memo ---

// DefaultTTL is how long a memoized upstream result stays valid.
const DefaultTTL = time.Hour

// CacheEntry holds a memoized value with its expiry.
type CacheEntry struct {
	Value     any
	ExpiresAt time.Time
}

// Memo is a thread-safe mapping from (source, args) keys to values with a fixed TTL.
// Expiry is checked on every lookup; there is no background eviction.
type Memo struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group
}

// MemoOption configures a Memo.
type MemoOption func(*Memo)

// WithClock overrides the time source. Used by tests to move past the TTL.
func WithClock(now func() time.Time) MemoOption {
	return func(m *Memo) { m.now = now }
}

// NewMemo creates a memo whose entries live for ttl. A non-positive ttl uses DefaultTTL.
func NewMemo(ttl time.Duration, opts ...MemoOption) *Memo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Memo{
		entries: make(map[string]CacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Key builds a memo key from a source id and its arguments.
func Key(source string, args ...string) string {
	return source + "|" + strings.Join(args, "|")
}

// TTL returns the configured lifetime of an entry.
func (m *Memo) TTL() time.Duration { return m.ttl }

// Get retrieves a live value. Returns nil, false if not found or expired.
func (m *Memo) Get(key string) (any, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || !m.now().Before(entry.ExpiresAt) {
		return nil, false
	}
	return entry.Value, true
}

// Set stores a value that expires one TTL from now.
func (m *Memo) Set(key string, value any) {
	m.mu.Lock()
	m.entries[key] = CacheEntry{
		Value:     value,
		ExpiresAt: m.now().Add(m.ttl),
	}
	m.mu.Unlock()
}

// Invalidate removes a key.
func (m *Memo) Invalidate(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (m *Memo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Cleanup removes expired entries. Can be called periodically.
func (m *Memo) Cleanup() {
	m.mu.Lock()
	now := m.now()
	for k, v := range m.entries {
		if !now.Before(v.ExpiresAt) {
			delete(m.entries, k)
		}
	}
	m.mu.Unlock()
}

// Do returns the live value for key, or calls fn once and stores its result.
// Concurrent callers of the same key share a single fn call, which runs
// detached from any caller's cancellation. A caller whose ctx ends gets
// ctx.Err() while the others keep waiting. Errors are returned to every
// waiting caller and never stored.
func (m *Memo) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	if v, ok := m.Get(key); ok {
		return v, nil
	}
	// The shared call outlives any single caller; each caller only stops
	// waiting when its own context ends.
	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (any, error) {
		if v, ok := m.Get(key); ok {
			return v, nil
		}
		v, err := fn(shared)
		if err != nil {
			return nil, err
		}
		m.Set(key, v)
		return v, nil
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Memoize is the typed form of Memo.Do.
func Memoize[T any](ctx context.Context, m *Memo, key string, fn func(context.Context) (T, error)) (T, error) {
	v, err := m.Do(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("memo %s: unexpected value type %T", key, v)
	}
	return t, nil
}

// --- Rate limiter ---

// RateLimiter throttles outbound requests with a token bucket.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows rps requests per second with the given burst.
// A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a token is available or context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	return rl.limiter.Wait(ctx)
}

// --- HTTP helpers ---

// DefaultUserAgent is the user agent string used for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// HTTPError wraps a non-2xx response.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// NewHTTPClient returns a client with the given timeout. Zero means 30 seconds.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// DoGet performs a GET request and returns the full body.
// Status codes >= 400 are returned as *HTTPError.
func DoGet(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json, text/html, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
