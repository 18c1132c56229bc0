package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-storefront-bot/internal/infra/metrics"
	"telegram-storefront-bot/internal/usecase"
)

// RecipientStatsWorker periodically refreshes the recipient gauges and the
// database pool stats.
type RecipientStatsWorker struct {
	interval  time.Duration
	statsUC   usecase.StatsUseCase
	poolStats func()
	log       *zerolog.Logger
}

// NewRecipientStatsWorker builds the worker. poolStats may be nil.
func NewRecipientStatsWorker(interval time.Duration, statsUC usecase.StatsUseCase, poolStats func(), logger *zerolog.Logger) *RecipientStatsWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "RecipientStatsWorker").Logger()
	return &RecipientStatsWorker{
		interval:  interval,
		statsUC:   statsUC,
		poolStats: poolStats,
		log:       &l,
	}
}

// Run refreshes once right away, then on every tick until ctx ends.
func (w *RecipientStatsWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting recipient stats worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping recipient stats worker")
			return ctx.Err()
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *RecipientStatsWorker) refresh(ctx context.Context) {
	if w.poolStats != nil {
		w.poolStats()
	}
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	st, err := w.statsUC.Overview(runCtx)
	if err != nil {
		w.log.Error().Err(err).Msg("stats worker error")
		return
	}
	metrics.SetRecipients(st.Recipients, st.ActiveWeek)
	metrics.SetRecallable(st.Recallable)
	w.log.Debug().Int("recipients", st.Recipients).Int("active_week", st.ActiveWeek).Msg("recipient gauges refreshed")
}
