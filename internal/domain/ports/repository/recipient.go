package repository

import (
	"context"
	"io"
	"time"

	"telegram-storefront-bot/internal/domain/model"
)

// -----------------------------
// Recipients
// -----------------------------

type RecipientRepository interface {
	// Save upserts by TelegramID. An existing row keeps its first_seen.
	Save(ctx context.Context, tx Tx, r *model.Recipient) error
	FindByTelegramID(ctx context.Context, tx Tx, tgID int64) (*model.Recipient, error)
	// ListByFirstSeen returns every recipient, oldest first (ties by id).
	ListByFirstSeen(ctx context.Context, tx Tx) ([]*model.Recipient, error)
	Count(ctx context.Context, tx Tx) (int, error)
	CountActiveSince(ctx context.Context, tx Tx, since time.Time) (int, error)
}

// Snapshotter is implemented by stores that can dump a consistent copy of the
// whole database (SQLite VACUUM INTO).
type Snapshotter interface {
	Snapshot(ctx context.Context, w io.Writer) error
}
