package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/domain/ports/repository"
	"telegram-storefront-bot/internal/infra/metrics"
)

var _ repository.RecipientRepository = (*recipientCache)(nil)

type recipientCache struct {
	inner repository.RecipientRepository
	cache RedisClient
	ttl   time.Duration
	log   zerolog.Logger
}

// NewRecipientCache caches point lookups by Telegram id. Listing and counting
// always hit the store so broadcasts never work from a stale snapshot.
func NewRecipientCache(inner repository.RecipientRepository, cache RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.RecipientRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	d := &recipientCache{inner: inner, cache: cache, ttl: ttl, log: zerolog.Nop()}
	if logger != nil {
		d.log = logger.With().Str("component", "recipient_cache").Logger()
	}
	return d
}

func recipientKey(tgID int64) string { return fmt.Sprintf("recipient:tgid:%d", tgID) }

func (d *recipientCache) Save(ctx context.Context, tx repository.Tx, r *model.Recipient) error {
	if err := d.cache.Del(ctx, recipientKey(r.TelegramID)); err != nil {
		metrics.IncRecipientCacheError("del")
	}
	return d.inner.Save(ctx, tx, r)
}

func (d *recipientCache) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.Recipient, error) {
	key := recipientKey(tgID)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var r model.Recipient
		if json.Unmarshal([]byte(val), &r) == nil {
			metrics.IncRecipientCacheLookup("find", "hit")
			return &r, nil
		}
		metrics.IncRecipientCacheError("decode")
	} else if !errors.Is(err, Nil) {
		metrics.IncRecipientCacheError("get")
		d.log.Debug().Err(err).Int64("tg_id", tgID).Msg("cache get failed")
	}

	metrics.IncRecipientCacheLookup("find", "miss")
	r, err := d.inner.FindByTelegramID(ctx, tx, tgID)
	if err != nil {
		return nil, err
	}
	// Reads inside a transaction may see uncommitted rows.
	if tx == nil {
		if b, err := json.Marshal(r); err == nil {
			if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
				metrics.IncRecipientCacheError("set")
			}
		}
	}
	return r, nil
}

func (d *recipientCache) ListByFirstSeen(ctx context.Context, tx repository.Tx) ([]*model.Recipient, error) {
	metrics.IncRecipientCacheLookup("list", "bypass")
	return d.inner.ListByFirstSeen(ctx, tx)
}

func (d *recipientCache) Count(ctx context.Context, tx repository.Tx) (int, error) {
	return d.inner.Count(ctx, tx)
}

func (d *recipientCache) CountActiveSince(ctx context.Context, tx repository.Tx, since time.Time) (int, error) {
	return d.inner.CountActiveSince(ctx, tx, since)
}
