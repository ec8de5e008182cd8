package memory

import (
	"context"
	"sync"
	"time"

	"realty/internal/app/policies"
)

// Locker is a process local lock table used when Redis is not configured.
type Locker struct {
	mu    sync.Mutex
	held  map[string]lease
	clock func() time.Time
}

type lease struct {
	token   uint64
	expires time.Time
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]lease), clock: time.Now}
}

func (l *Locker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return nil, policies.ErrLockHeld
	}
	token := uint64(now.UnixNano())
	l.held[key] = lease{token: token, expires: now.Add(ttl)}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if cur, ok := l.held[key]; ok && cur.token == token {
				delete(l.held, key)
			}
		})
	}, nil
}

var _ policies.Locker = (*Locker)(nil)
