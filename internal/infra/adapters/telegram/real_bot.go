package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-storefront-bot/internal/application"
	"telegram-storefront-bot/internal/config"
	"telegram-storefront-bot/internal/domain/ports/adapter"
	"telegram-storefront-bot/internal/infra/logging"
	"telegram-storefront-bot/internal/infra/metrics"
	red "telegram-storefront-bot/internal/infra/redis"
	"telegram-storefront-bot/internal/infra/texts"
)

// CommandLimiter throttles a user's commands and button presses. *redis.RateLimiter implements it.
type CommandLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

const (
	commandLimit  = 20
	callbackLimit = 30
)

// RealTelegramBotAdapter polls updates and serves the storefront and the
// admin commands.
type RealTelegramBotAdapter struct {
	bot         botAPI
	cfg         *config.BotConfig
	facade      *application.BotFacade
	texts       *texts.Catalog
	rateLimiter CommandLimiter
	download    downloadFunc
	log         zerolog.Logger

	updateWorkers int
	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(
	bot *tgbotapi.BotAPI,
	cfg *config.BotConfig,
	facade *application.BotFacade,
	catalog *texts.Catalog,
	rateLimiter CommandLimiter,
	logger *zerolog.Logger,
) (*RealTelegramBotAdapter, error) {
	if bot == nil {
		return nil, errors.New("bot api is nil")
	}
	return newBotAdapter(bot, cfg, facade, catalog, rateLimiter, logger)
}

func newBotAdapter(
	bot botAPI,
	cfg *config.BotConfig,
	facade *application.BotFacade,
	catalog *texts.Catalog,
	rateLimiter CommandLimiter,
	logger *zerolog.Logger,
) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	if catalog == nil {
		return nil, errors.New("text catalog is nil")
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "telegram").Logger()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	return &RealTelegramBotAdapter{
		bot:           bot,
		cfg:           cfg,
		facade:        facade,
		texts:         catalog,
		rateLimiter:   rateLimiter,
		download:      httpDownload,
		log:           l,
		updateWorkers: workers,
	}, nil
}

// StartPolling fans updates out to the update workers until ctx is cancelled.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case update, ok := <-updateChan:
					if !ok {
						return
					}
					if err := r.handleUpdate(ctx, update); err != nil {
						r.log.Warn().Err(err).Int("worker", workerID).Int("update_id", update.UpdateID).Msg("update failed")
					}
				case <-ctx.Done():
					return
				}
			}
		}(i + 1)
	}

	go func() {
		defer close(updateChan)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case updateChan <- update:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	r.log.Info().Int("workers", r.updateWorkers).Msg("polling started")
	<-ctx.Done()
	r.bot.StopReceivingUpdates()
	wg.Wait()
	return nil
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}

	message := update.Message
	if message == nil || message.From == nil || message.Chat == nil {
		return nil
	}
	ctx = logging.WithTgID(ctx, message.From.ID)
	r.touch(ctx, message.From)

	if !message.IsCommand() {
		return nil
	}
	command := strings.ToLower(message.Command())
	if !r.allow(ctx, message.Chat.ID, red.UserCommandKey(message.From.ID, command), commandLimit) {
		return nil
	}

	handler, ok := r.commandRoutes()[command]
	if !ok {
		metrics.IncTelegramCommand("unknown")
		return nil
	}
	metrics.IncTelegramCommand("/" + command)
	return handler(ctx, message)
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}

	// Stop the client spinner whatever happens below.
	defer func() { _, _ = r.bot.Request(tgbotapi.NewCallback(query.ID, "")) }()

	if query.Message == nil || query.Message.Chat == nil {
		return nil
	}
	ctx = logging.WithTgID(ctx, query.From.ID)
	r.touch(ctx, query.From)

	data := strings.TrimSpace(query.Data)
	if !r.allow(ctx, query.Message.Chat.ID, red.UserCommandKey(query.From.ID, "cb:"+data), callbackLimit) {
		return nil
	}

	fn, ok := r.cbRoutes()[data]
	if !ok {
		r.log.Debug().Str("data", data).Msg("unknown callback")
		return nil
	}
	return fn(ctx, query.Message.Chat.ID, query.Message.MessageID)
}

// touch registers the user or refreshes their last-seen time.
func (r *RealTelegramBotAdapter) touch(ctx context.Context, u *tgbotapi.User) {
	if _, err := r.facade.HandleStart(ctx, u.ID, u.UserName, u.FirstName, u.LastName); err != nil {
		r.log.Error().Err(err).Int64("tg_id", u.ID).Msg("failed to record recipient")
	}
}

func (r *RealTelegramBotAdapter) allow(ctx context.Context, chatID int64, key string, limit int) bool {
	if r.rateLimiter == nil {
		return true
	}
	allowed, err := r.rateLimiter.Allow(ctx, key, limit, time.Minute)
	if err != nil {
		r.log.Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !allowed {
		metrics.IncRateLimitTriggered()
		_ = r.sendText(chatID, r.texts.T("rate_limited"))
	}
	return allowed
}

func (r *RealTelegramBotAdapter) isAdmin(tgID int64) bool {
	return r.cfg.IsAdmin(tgID)
}

// ---- outbound helpers ----

func (r *RealTelegramBotAdapter) sendText(chatID int64, text string) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (r *RealTelegramBotAdapter) sendWithKeyboard(chatID int64, text string, rows [][]adapter.InlineButton) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = buildKeyboard(rows)
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealTelegramBotAdapter) editWithKeyboard(chatID int64, messageID int, text string, rows [][]adapter.InlineButton) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, buildKeyboard(rows))
	_, err := r.bot.Request(edit)
	if isNotModified(err) {
		return nil
	}
	return err
}

// buildKeyboard converts port buttons to an inline keyboard. URL buttons open
// a link; the rest send their Data (or label) back as callback data.
func buildKeyboard(rows [][]adapter.InlineButton) tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		kr := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, kr)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...)
}

// isNotModified reports Telegram's refusal to edit a message into identical content.
func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && strings.Contains(apiErr.Message, "message is not modified")
}
