package usecase

import (
	"context"
	"time"

	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	Overview(ctx context.Context) (model.Stats, error)
}

// RecallCounter is satisfied by BroadcastUseCase.
type RecallCounter interface {
	Recallable() int
}

type statsUC struct {
	recipients repository.RecipientRepository
	recall     RecallCounter
	now        func() time.Time

	log *zerolog.Logger
}

func NewStatsUseCase(recipients repository.RecipientRepository, recall RecallCounter, logger *zerolog.Logger) *statsUC {
	return &statsUC{recipients: recipients, recall: recall, now: time.Now, log: logger}
}

func (s *statsUC) Overview(ctx context.Context) (model.Stats, error) {
	total, err := s.recipients.Count(ctx, repository.NoTX)
	if err != nil {
		return model.Stats{}, err
	}
	active, err := s.recipients.CountActiveSince(ctx, repository.NoTX, s.now().Add(-7*24*time.Hour))
	if err != nil {
		return model.Stats{}, err
	}
	st := model.Stats{Recipients: total, ActiveWeek: active}
	if s.recall != nil {
		st.Recallable = s.recall.Recallable()
	}
	return st, nil
}
