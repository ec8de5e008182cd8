package calendarfeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"realty/internal/app/policies"
)

const (
	defaultTimeout  = 10 * time.Second
	maxFeedBytes    = 5 << 20
	tripAfter       = 3
	openStateWindow = time.Minute
)

var ErrUnexpectedStatus = errors.New("calendarfeed: unexpected status")

// Fetcher downloads feeds with a per-request timeout. Each host gets its own
// circuit breaker so one broken platform does not slow down the others.
type Fetcher struct {
	Client  *http.Client
	Timeout time.Duration
	Logger  *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewFetcher(timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{Client: &http.Client{}, Timeout: timeout, Logger: logger}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("calendarfeed: invalid url %q", rawURL)
	}
	body, err := f.breaker(u.Host).Execute(func() (interface{}, error) {
		return f.get(ctx, rawURL)
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
}

func (f *Fetcher) breaker(host string) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.breakers == nil {
		f.breakers = make(map[string]*gobreaker.CircuitBreaker)
	}
	if cb, ok := f.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "feed:" + host,
		Timeout: openStateWindow,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.log().Warn("feed circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	f.breakers[host] = cb
	return cb
}

func (f *Fetcher) log() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

var _ policies.FeedFetcher = (*Fetcher)(nil)
