package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/domain/ports/adapter"
)

var _ adapter.Messenger = (*NoopMessenger)(nil)

// NoopMessenger logs deliveries instead of calling Telegram. Chats listed in
// Failures answer every call with the given error kind, which lets dry runs
// exercise the blocked/rate-limited/failed paths.
type NoopMessenger struct {
	mu       sync.Mutex
	nextID   int
	delay    time.Duration
	log      zerolog.Logger
	Failures map[int64]adapter.ErrorKind
	// RetryAfter is reported for KindRateLimited failures.
	RetryAfter time.Duration
}

func NewNoopMessenger(delay time.Duration, logger *zerolog.Logger) *NoopMessenger {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "noop_messenger").Logger()
	}
	return &NoopMessenger{delay: delay, log: l, Failures: map[int64]adapter.ErrorKind{}}
}

// simulate waits the configured delay and returns the scripted failure for chatID, if any.
func (b *NoopMessenger) simulate(ctx context.Context, chatID int64) error {
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return adapter.Transient(ctx.Err())
		}
	}
	b.mu.Lock()
	kind, ok := b.Failures[chatID]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	cause := fmt.Errorf("simulated %s for chat %d", kind, chatID)
	switch kind {
	case adapter.KindBlocked:
		return adapter.Blocked(cause)
	case adapter.KindRateLimited:
		return adapter.RateLimited(cause, b.RetryAfter)
	case adapter.KindRejected:
		return adapter.Rejected(cause)
	default:
		return adapter.Transient(cause)
	}
}

func (b *NoopMessenger) newID() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	return b.nextID
}

func (b *NoopMessenger) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	if err := b.simulate(ctx, chatID); err != nil {
		return 0, err
	}
	id := b.newID()
	b.log.Debug().Int64("chat_id", chatID).Int("message_id", id).Str("text", text).Msg("send")
	return id, nil
}

func (b *NoopMessenger) CopyMessage(ctx context.Context, src model.MessageRef, toChatID int64) (int, error) {
	if err := b.simulate(ctx, toChatID); err != nil {
		return 0, err
	}
	id := b.newID()
	b.log.Debug().Int64("chat_id", toChatID).Int("message_id", id).Int64("from_chat", src.ChatID).Int("from_message", src.MessageID).Msg("copy")
	return id, nil
}

func (b *NoopMessenger) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := b.simulate(ctx, chatID); err != nil {
		return err
	}
	b.log.Debug().Int64("chat_id", chatID).Int("message_id", messageID).Msg("delete")
	return nil
}

func (b *NoopMessenger) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := b.simulate(ctx, chatID); err != nil {
		return err
	}
	b.log.Debug().Int64("chat_id", chatID).Int("message_id", messageID).Str("text", text).Msg("edit")
	return nil
}
