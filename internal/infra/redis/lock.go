// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-storefront-bot/internal/domain"
	"telegram-storefront-bot/internal/usecase"
)

// BroadcastLockKey guards broadcasts and recalls across bot instances.
const BroadcastLockKey = "storefront:broadcast:lock"

var ErrLockHeld = errors.New("lock held")

type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type RedisLocker struct {
	cli RedisClient
}

func NewLocker(c RedisClient) *RedisLocker {
	return &RedisLocker{cli: c}
}

// TryLock makes a single attempt; a held lock yields ErrLockHeld.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, key, token, ttl)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := l.cli.DelIfEqual(ctx, key, token)
	return err
}

type distributedGuard struct {
	local  usecase.JobGuard
	locker Locker
	ttl    time.Duration
	log    zerolog.Logger
}

// NewBroadcastGuard layers a Redis lock over the in-process guard so only one
// instance sharing the store broadcasts at a time. When Redis itself fails the
// guard degrades to the local one.
func NewBroadcastGuard(locker Locker, ttl time.Duration, logger *zerolog.Logger) usecase.JobGuard {
	g := &distributedGuard{local: usecase.NewLocalGuard(), locker: locker, ttl: ttl, log: zerolog.Nop()}
	if logger != nil {
		g.log = logger.With().Str("component", "broadcast_guard").Logger()
	}
	return g
}

func (g *distributedGuard) Acquire(ctx context.Context) (func(), error) {
	releaseLocal, err := g.local.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	token, err := g.locker.TryLock(ctx, BroadcastLockKey, g.ttl)
	switch {
	case errors.Is(err, ErrLockHeld):
		releaseLocal()
		return nil, domain.ErrBroadcastInProgress
	case err != nil:
		g.log.Warn().Err(err).Msg("redis lock unavailable, using local guard only")
		return releaseLocal, nil
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			// The job context may already be cancelled; unlocking must still run.
			uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := g.locker.Unlock(uctx, BroadcastLockKey, token); err != nil {
				g.log.Warn().Err(err).Msg("redis unlock failed; lock expires with its ttl")
			}
			releaseLocal()
		})
	}, nil
}
