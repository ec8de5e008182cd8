package policies

import (
	"context"
	"errors"
	"time"
)

var ErrLockHeld = errors.New("locks: already held")

// FeedFetcher downloads a remote iCal feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FeedEvent is one VEVENT normalized to inclusive UTC days.
type FeedEvent struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
}

type ExportEvent struct {
	UID     string
	Summary string
	// Start and End are inclusive days.
	Start time.Time
	End   time.Time
	Stamp time.Time
}

type CalendarCodec interface {
	Parse(data []byte) []FeedEvent
	Encode(name string, evs []ExportEvent) ([]byte, error)
}

// Locker grants short lived named locks; release is idempotent.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// CalendarPublisher stores an exported calendar at a stable public location.
type CalendarPublisher interface {
	Publish(ctx context.Context, key string, body []byte) (url string, err error)
}
