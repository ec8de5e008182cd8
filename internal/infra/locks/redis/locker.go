package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"realty/internal/app/policies"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another worker is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	Client redis.UniversalClient
	Prefix string
	Logger *slog.Logger
}

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.Client == nil {
		return nil, errors.New("locks: redis client missing")
	}
	full := l.Prefix + key
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, policies.ErrLockHeld
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.Client, []string{full}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				l.log().Warn("lock release failed", "key", full, "error", err)
			}
		})
	}, nil
}

func (l *Locker) log() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

var _ policies.Locker = (*Locker)(nil)
