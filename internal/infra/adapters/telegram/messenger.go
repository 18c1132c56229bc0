package telegram

import (
	"context"
	"errors"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/domain/ports/adapter"
)

// botAPI is the part of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	CopyMessage(config tgbotapi.CopyMessageConfig) (tgbotapi.MessageID, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

var _ botAPI = (*tgbotapi.BotAPI)(nil)

var _ adapter.Messenger = (*Messenger)(nil)

// Messenger implements adapter.Messenger on the Bot API. All outbound calls
// share one token bucket so broadcasts stay under Telegram's global limit.
type Messenger struct {
	bot     botAPI
	limiter *rate.Limiter
}

// NewMessenger paces calls to perSecond; zero or less disables pacing.
func NewMessenger(bot *tgbotapi.BotAPI, perSecond int) *Messenger {
	return newMessenger(bot, perSecond)
}

func newMessenger(bot botAPI, perSecond int) *Messenger {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Messenger{bot: bot, limiter: rate.NewLimiter(limit, max(perSecond, 1))}
}

func (m *Messenger) wait(ctx context.Context) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return adapter.Transient(err)
	}
	return nil
}

func (m *Messenger) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	if err := m.wait(ctx); err != nil {
		return 0, err
	}
	msg, err := m.bot.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, classify(err)
	}
	return msg.MessageID, nil
}

func (m *Messenger) CopyMessage(ctx context.Context, src model.MessageRef, toChatID int64) (int, error) {
	if err := m.wait(ctx); err != nil {
		return 0, err
	}
	id, err := m.bot.CopyMessage(tgbotapi.NewCopyMessage(toChatID, src.ChatID, src.MessageID))
	if err != nil {
		return 0, classify(err)
	}
	return id.MessageID, nil
}

func (m *Messenger) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	_, err := m.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return classify(err)
}

func (m *Messenger) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	_, err := m.bot.Request(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return classify(err)
}

// classify maps Bot API failures onto delivery error kinds. Anything that is
// not an API error (network, decoding) is transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return adapter.Transient(err)
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests || apiErr.RetryAfter > 0:
		return adapter.RateLimited(err, time.Duration(apiErr.RetryAfter)*time.Second)
	case apiErr.Code == http.StatusForbidden:
		return adapter.Blocked(err)
	case apiErr.Code == http.StatusBadRequest:
		return adapter.Rejected(err)
	default:
		return adapter.Transient(err)
	}
}
