// File: internal/domain/ports/adapter/telegram.go
package adapter

import (
	"context"

	"telegram-storefront-bot/internal/domain/model"
)

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// Messenger is the transport the broadcast engine drives. Every method
// returns *DeliveryError on failure so callers can match on its Kind.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) (messageID int, err error)
	CopyMessage(ctx context.Context, src model.MessageRef, toChatID int64) (messageID int, err error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
}
