package usecase

import (
	"context"
	"errors"
	"time"

	"telegram-storefront-bot/internal/domain"
	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/domain/ports/repository"
	"telegram-storefront-bot/internal/infra/logging"
	"telegram-storefront-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase exposes recipient operations used by the bot and admin flows.
type UserUseCase interface {
	// RegisterOrFetch stores a new recipient or refreshes an existing one.
	// created reports whether the recipient was unknown before.
	RegisterOrFetch(ctx context.Context, tgID int64, username, firstName, lastName string) (r *model.Recipient, created bool, err error)
	GetByTelegramID(ctx context.Context, tgID int64) (*model.Recipient, error)
	List(ctx context.Context) ([]*model.Recipient, error)
	Count(ctx context.Context) (int, error)
	CountActiveSince(ctx context.Context, since time.Time) (int, error)
}

type userUC struct {
	recipients repository.RecipientRepository
	tm         repository.TransactionManager
	log        *zerolog.Logger
}

func NewUserUseCase(recipients repository.RecipientRepository, tm repository.TransactionManager, logger *zerolog.Logger) *userUC {
	return &userUC{
		recipients: recipients,
		tm:         tm,
		log:        logger,
	}
}

func (u *userUC) RegisterOrFetch(ctx context.Context, tgID int64, username, firstName, lastName string) (*model.Recipient, bool, error) {
	defer logging.TraceDuration(u.log, "UserUC.RegisterOrFetch")()

	var (
		out     *model.Recipient
		created bool
	)
	err := u.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, err := u.recipients.FindByTelegramID(ctx, tx, tgID)
		switch {
		case err == nil:
			r.Touch(username, firstName, lastName)
			if err := u.recipients.Save(ctx, tx, r); err != nil {
				return err
			}
			out = r
			return nil
		case errors.Is(err, domain.ErrNotFound):
		default:
			return err
		}

		nr, err := model.NewRecipient(tgID, username, firstName, lastName)
		if err != nil {
			return err
		}
		if err := u.recipients.Save(ctx, tx, nr); err != nil {
			return err
		}
		out, created = nr, true
		return nil
	})
	if err != nil {
		u.log.Error().Err(err).Int64("tg_id", tgID).Msg("register recipient")
		return nil, false, err
	}
	if created {
		metrics.IncUsersRegistered()
		u.log.Info().Int64("tg_id", tgID).Msg("new recipient")
	}
	return out, created, nil
}

func (u *userUC) GetByTelegramID(ctx context.Context, tgID int64) (*model.Recipient, error) {
	defer logging.TraceDuration(u.log, "UserUC.GetByTelegramID")()
	return u.recipients.FindByTelegramID(ctx, repository.NoTX, tgID)
}

func (u *userUC) List(ctx context.Context) ([]*model.Recipient, error) {
	defer logging.TraceDuration(u.log, "UserUC.List")()
	return u.recipients.ListByFirstSeen(ctx, repository.NoTX)
}

func (u *userUC) Count(ctx context.Context) (int, error) {
	defer logging.TraceDuration(u.log, "UserUC.Count")()
	return u.recipients.Count(ctx, repository.NoTX)
}

func (u *userUC) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	defer logging.TraceDuration(u.log, "UserUC.CountActiveSince")()
	return u.recipients.CountActiveSince(ctx, repository.NoTX, since)
}
