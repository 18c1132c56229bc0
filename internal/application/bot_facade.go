package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-storefront-bot/internal/domain"
	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/domain/ports/adapter"
	"telegram-storefront-bot/internal/infra/logging"
	"telegram-storefront-bot/internal/infra/metrics"
	"telegram-storefront-bot/internal/infra/worker"
	"telegram-storefront-bot/internal/usecase"
)

// Submitter queues a job off the caller's goroutine. *worker.Pool implements it.
type Submitter interface {
	Submit(task worker.Task) error
}

// BotFacade composes the use cases into the flows the Telegram bot and the
// admin API expose.
type BotFacade struct {
	UserUC      usecase.UserUseCase
	BroadcastUC usecase.BroadcastUseCase
	StatsUC     usecase.StatsUseCase
	ExportUC    usecase.ExportUseCase
	ImportUC    usecase.ImportUseCase

	messenger adapter.Messenger
	jobs      Submitter
	log       *zerolog.Logger
}

// NewBotFacade wires the facade. Any use case can be nil for flows that do
// not need it; requests that do get an error.
func NewBotFacade(
	userUC usecase.UserUseCase,
	broadcastUC usecase.BroadcastUseCase,
	statsUC usecase.StatsUseCase,
	exportUC usecase.ExportUseCase,
	importUC usecase.ImportUseCase,
	messenger adapter.Messenger,
	jobs Submitter,
	logger *zerolog.Logger,
) *BotFacade {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BotFacade{
		UserUC:      userUC,
		BroadcastUC: broadcastUC,
		StatsUC:     statsUC,
		ExportUC:    exportUC,
		ImportUC:    importUC,
		messenger:   messenger,
		jobs:        jobs,
		log:         logger,
	}
}

var errUnavailable = errors.New("use case not available")

// reserveTimeout bounds the guard lookup done on the caller's goroutine.
const reserveTimeout = 5 * time.Second

// HandleStart registers the user behind an interaction or refreshes a known one.
func (b *BotFacade) HandleStart(ctx context.Context, tgID int64, username, firstName, lastName string) (*model.Recipient, error) {
	if b.UserUC == nil {
		return nil, errUnavailable
	}
	r, _, err := b.UserUC.RegisterOrFetch(ctx, tgID, username, firstName, lastName)
	if err != nil {
		return nil, fmt.Errorf("register/fetch recipient: %w", err)
	}
	return r, nil
}

// Dispatch runs one admin request to completion.
func (b *BotFacade) Dispatch(ctx context.Context, req AdminRequest) (AdminResult, error) {
	if req == nil {
		return AdminResult{}, domain.ErrInvalidArgument
	}
	log := logging.With(ctx, b.log).With().Str("request", req.Name()).Logger()
	start := time.Now()

	res, err := b.dispatch(ctx, req)
	switch {
	case err == nil:
		log.Info().Dur("took", time.Since(start)).Msg("admin request done")
	case isPrecondition(err):
		log.Info().Err(err).Msg("admin request refused")
	default:
		log.Error().Err(err).Msg("admin request failed")
	}
	return res, err
}

func (b *BotFacade) dispatch(ctx context.Context, req AdminRequest) (AdminResult, error) {
	switch r := req.(type) {
	case BroadcastRequest:
		if b.BroadcastUC == nil {
			return AdminResult{}, errUnavailable
		}
		rep, err := b.BroadcastUC.Broadcast(ctx, r.AdminChatID, r.Payload)
		return AdminResult{Delivery: rep}, err

	case RecallRequest:
		if b.BroadcastUC == nil {
			return AdminResult{}, errUnavailable
		}
		rep, err := b.BroadcastUC.Recall(ctx)
		if err != nil {
			return AdminResult{}, err
		}
		if r.AdminChatID != 0 && b.messenger != nil {
			if _, serr := b.messenger.SendText(ctx, r.AdminChatID, usecase.RecallText(rep)); serr != nil {
				b.log.Warn().Err(serr).Int64("chat_id", r.AdminChatID).Msg("recall summary not delivered")
			}
		}
		return AdminResult{Recall: rep}, nil

	case StatsRequest:
		if b.StatsUC == nil {
			return AdminResult{}, errUnavailable
		}
		st, err := b.StatsUC.Overview(ctx)
		return AdminResult{Stats: st}, err

	case ExportRequest:
		if b.ExportUC == nil {
			return AdminResult{}, errUnavailable
		}
		if r.W == nil {
			return AdminResult{}, domain.ErrInvalidArgument
		}
		switch r.Format {
		case model.FormatCSV, "":
			n, err := b.ExportUC.ExportCSV(ctx, r.W)
			return AdminResult{Exported: n}, err
		case model.FormatSQLite:
			return AdminResult{}, b.ExportUC.ExportSnapshot(ctx, r.W)
		default:
			return AdminResult{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, r.Format)
		}

	case ImportRequest:
		if b.ImportUC == nil {
			return AdminResult{}, errUnavailable
		}
		if r.Source == nil {
			return AdminResult{}, domain.ErrInvalidArgument
		}
		rep, err := b.ImportUC.Import(ctx, r.Source)
		return AdminResult{Import: rep}, err

	default:
		return AdminResult{}, fmt.Errorf("%w: unknown admin request %T", domain.ErrInvalidArgument, req)
	}
}

// Enqueue runs req on the job pool, detached from the caller's context. done,
// if set, is called with the outcome from the pool goroutine. Broadcast and
// recall take the single-job guard before queueing, so a busy engine returns
// domain.ErrBroadcastInProgress here instead of after the queue drains.
func (b *BotFacade) Enqueue(req AdminRequest, done func(AdminResult, error)) error {
	if b.jobs == nil {
		return errUnavailable
	}
	resv, err := b.reserve(req)
	if err != nil {
		metrics.IncBroadcastJob(req.Name(), "rejected")
		return err
	}
	err = b.jobs.Submit(func(ctx context.Context) error {
		if resv != nil {
			defer resv.Release()
			ctx = resv.Bind(ctx)
		}
		res, err := b.Dispatch(ctx, req)
		if done != nil {
			done(res, err)
		}
		if isPrecondition(err) {
			return nil
		}
		return err
	})
	if err != nil {
		resv.Release()
		metrics.IncBroadcastJob(req.Name(), "rejected")
	}
	return err
}

func (b *BotFacade) reserve(req AdminRequest) (*usecase.Reservation, error) {
	switch req.(type) {
	case BroadcastRequest, RecallRequest:
	default:
		return nil, nil
	}
	r, ok := b.BroadcastUC.(usecase.Reserver)
	if !ok {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), reserveTimeout)
	defer cancel()
	return r.Reserve(ctx)
}

func isPrecondition(err error) bool {
	return errors.Is(err, domain.ErrNoRecipients) ||
		errors.Is(err, domain.ErrNothingToRecall) ||
		errors.Is(err, domain.ErrBroadcastInProgress)
}
