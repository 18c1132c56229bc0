package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-storefront-bot/internal/application"
	"telegram-storefront-bot/internal/domain"
	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/infra/importer"
	"telegram-storefront-bot/internal/infra/metrics"
	"telegram-storefront-bot/internal/infra/texts"
	"telegram-storefront-bot/internal/usecase"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes maps bot commands to their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start": r.handleStartCommand,
		"help":  r.handleHelpCommand,

		"broadcast":  r.adminOnly(r.handleBroadcastCommand),
		"recall":     r.adminOnly(r.handleRecallCommand),
		"deletelast": r.adminOnly(r.handleRecallCommand),
		"stats":      r.adminOnly(r.handleStatsCommand),
		"export":     r.adminOnly(r.handleExportCommand),
		"exportdb":   r.adminOnly(r.handleExportDBCommand),
		"import":     r.adminOnly(r.handleImportCommand),
	}
}

func (r *RealTelegramBotAdapter) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if !r.isAdmin(message.From.ID) {
			metrics.IncAdminCommand("/"+message.Command(), "unauthorized")
			r.log.Warn().Int64("tg_id", message.From.ID).Str("command", message.Command()).Msg("unauthorized admin command")
			return r.sendText(message.Chat.ID, r.texts.T("unauthorized"))
		}
		metrics.IncAdminCommand("/"+message.Command(), "authorized")
		return next(ctx, message)
	}
}

// handleStartCommand shows the storefront: the photo, then the welcome text
// with the home keyboard. The user was already recorded by handleUpdate.
func (r *RealTelegramBotAdapter) handleStartCommand(_ context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	if url := r.texts.PhotoURL(); url != "" {
		if _, err := r.bot.Send(tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))); err != nil {
			r.log.Warn().Err(err).Int64("chat_id", chatID).Msg("storefront photo not sent")
		}
	}
	return r.sendWithKeyboard(chatID, r.texts.T(texts.Welcome), r.homeKeyboard())
}

func (r *RealTelegramBotAdapter) handleHelpCommand(_ context.Context, message *tgbotapi.Message) error {
	text := r.texts.T("help_user")
	if r.isAdmin(message.From.ID) {
		text += "\n\n" + r.texts.T("help_admin")
	}
	return r.sendText(message.Chat.ID, text)
}

// handleBroadcastCommand sends the command text to everyone, or copies the
// replied-to message when there is one.
func (r *RealTelegramBotAdapter) handleBroadcastCommand(_ context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	var payload model.Payload
	if reply := message.ReplyToMessage; reply != nil {
		payload = model.CopyPayload(chatID, reply.MessageID)
	} else {
		payload = model.TextPayload(strings.TrimSpace(message.CommandArguments()))
	}
	if !payload.Valid() {
		return r.sendText(chatID, r.texts.T("broadcast_usage"))
	}
	return r.enqueue(chatID, application.BroadcastRequest{AdminChatID: chatID, Payload: payload})
}

func (r *RealTelegramBotAdapter) handleRecallCommand(_ context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	if uc := r.facade.BroadcastUC; uc != nil {
		if n := uc.Recallable(); n > 0 {
			_ = r.sendText(chatID, r.texts.T("recall_started", n))
		}
	}
	return r.enqueue(chatID, application.RecallRequest{AdminChatID: chatID})
}

func (r *RealTelegramBotAdapter) handleStatsCommand(ctx context.Context, message *tgbotapi.Message) error {
	res, err := r.facade.Dispatch(ctx, application.StatsRequest{})
	if err != nil {
		return r.sendText(message.Chat.ID, r.texts.T("error_generic"))
	}
	st := res.Stats
	return r.sendText(message.Chat.ID, r.texts.T("stats", st.Recipients, st.ActiveWeek, st.Recallable))
}

func (r *RealTelegramBotAdapter) handleExportCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendExport(ctx, message.Chat.ID, model.FormatCSV)
}

func (r *RealTelegramBotAdapter) handleExportDBCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendExport(ctx, message.Chat.ID, model.FormatSQLite)
}

func (r *RealTelegramBotAdapter) sendExport(ctx context.Context, chatID int64, format model.ImportFormat) error {
	var buf bytes.Buffer
	res, err := r.facade.Dispatch(ctx, application.ExportRequest{Format: format, W: &buf})
	switch {
	case errors.Is(err, domain.ErrSnapshotDisabled):
		return r.sendText(chatID, r.texts.T("exportdb_unavailable"))
	case err != nil:
		return r.sendText(chatID, r.texts.T("error_generic"))
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  usecase.ExportFileName(format, time.Now()),
		Bytes: buf.Bytes(),
	})
	if format == model.FormatCSV {
		doc.Caption = r.texts.T("export_caption", res.Exported)
	}
	_, err = r.bot.Send(doc)
	return err
}

// maxImportBytes is the Bot API download ceiling.
const maxImportBytes = 20 << 20

// handleImportCommand downloads the replied-to document and merges it on the
// job pool.
func (r *RealTelegramBotAdapter) handleImportCommand(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	reply := message.ReplyToMessage
	if reply == nil || reply.Document == nil {
		return r.sendText(chatID, r.texts.T("import_usage"))
	}
	doc := reply.Document

	path, err := r.fetchDocument(ctx, doc)
	if err != nil {
		r.log.Error().Err(err).Str("file", doc.FileName).Msg("import download failed")
		return r.sendText(chatID, r.texts.T("error_generic"))
	}
	src, err := importer.Open(ctx, path, "")
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, domain.ErrUnsupportedFormat) {
			return r.sendText(chatID, r.texts.T("import_unsupported"))
		}
		r.log.Error().Err(err).Str("file", doc.FileName).Msg("import open failed")
		return r.sendText(chatID, r.texts.T("error_generic"))
	}

	cleanup := func() {
		_ = src.Close()
		_ = os.Remove(path)
	}
	err = r.facade.Enqueue(application.ImportRequest{Source: src}, func(res application.AdminResult, err error) {
		cleanup()
		switch {
		case errors.Is(err, domain.ErrUnsupportedFormat):
			_ = r.sendText(chatID, r.texts.T("import_unsupported"))
		case err != nil:
			_ = r.sendText(chatID, r.texts.T("error_generic"))
		default:
			rep := res.Import
			_ = r.sendText(chatID, r.texts.T("import_done", rep.Read, rep.Inserted, rep.Updated, rep.Skipped))
		}
	})
	if err != nil {
		cleanup()
		return r.sendText(chatID, r.texts.T("busy"))
	}
	return nil
}

// fetchDocument stores the document in a temp file that keeps its extension.
func (r *RealTelegramBotAdapter) fetchDocument(ctx context.Context, doc *tgbotapi.Document) (string, error) {
	if doc.FileSize > maxImportBytes {
		return "", fmt.Errorf("document too large: %d bytes", doc.FileSize)
	}
	url, err := r.bot.GetFileDirectURL(doc.FileID)
	if err != nil {
		return "", fmt.Errorf("resolve file: %w", err)
	}
	f, err := os.CreateTemp("", "import-*"+strings.ToLower(filepath.Ext(doc.FileName)))
	if err != nil {
		return "", err
	}
	err = r.download(ctx, url, f, maxImportBytes)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// enqueue queues an admin job and reports refusals back to the chat.
func (r *RealTelegramBotAdapter) enqueue(chatID int64, req application.AdminRequest) error {
	err := r.facade.Enqueue(req, func(_ application.AdminResult, err error) {
		if err == nil {
			return
		}
		_ = r.sendText(chatID, r.refusalText(err))
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrBroadcastInProgress):
		return r.sendText(chatID, r.refusalText(err))
	default:
		return r.sendText(chatID, r.texts.T("busy"))
	}
}

func (r *RealTelegramBotAdapter) refusalText(err error) string {
	switch {
	case errors.Is(err, domain.ErrBroadcastInProgress):
		return r.texts.T("broadcast_busy")
	case errors.Is(err, domain.ErrNoRecipients):
		return r.texts.T("no_recipients")
	case errors.Is(err, domain.ErrNothingToRecall):
		return r.texts.T("nothing_to_recall")
	default:
		return r.texts.T("error_generic")
	}
}
