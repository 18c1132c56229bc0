package telegram

import (
	"context"

	"telegram-storefront-bot/internal/domain/ports/adapter"
	"telegram-storefront-bot/internal/infra/texts"
)

// Callback data carried by the storefront buttons.
const (
	cbMenu     = "MENU"
	cbContacts = "CONTACTS"
	cbHome     = "HOME"
)

// cbHandler edits the message that carried the pressed button.
type cbHandler func(ctx context.Context, chatID int64, messageID int) error

func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		cbMenu:     r.menuCBRoute,
		cbContacts: r.contactsCBRoute,
		cbHome:     r.homeCBRoute,
	}
}

func (r *RealTelegramBotAdapter) menuCBRoute(_ context.Context, chatID int64, messageID int) error {
	return r.editWithKeyboard(chatID, messageID, r.texts.T(texts.Menu), r.backKeyboard())
}

func (r *RealTelegramBotAdapter) contactsCBRoute(_ context.Context, chatID int64, messageID int) error {
	return r.editWithKeyboard(chatID, messageID, r.texts.T(texts.Contacts), r.backKeyboard())
}

func (r *RealTelegramBotAdapter) homeCBRoute(_ context.Context, chatID int64, messageID int) error {
	return r.editWithKeyboard(chatID, messageID, r.texts.T(texts.Welcome), r.homeKeyboard())
}

// homeKeyboard: MENU and CONTACTS side by side, the showcase link below when configured.
func (r *RealTelegramBotAdapter) homeKeyboard() [][]adapter.InlineButton {
	rows := [][]adapter.InlineButton{{
		{Text: r.texts.T("button_menu"), Data: cbMenu},
		{Text: r.texts.T("button_contacts"), Data: cbContacts},
	}}
	if url := r.texts.ShowcaseURL(); url != "" {
		rows = append(rows, []adapter.InlineButton{{Text: r.texts.T("button_showcase"), URL: url}})
	}
	return rows
}

func (r *RealTelegramBotAdapter) backKeyboard() [][]adapter.InlineButton {
	return [][]adapter.InlineButton{{{Text: r.texts.T("button_back"), Data: cbHome}}}
}
