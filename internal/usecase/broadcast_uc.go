package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"telegram-storefront-bot/internal/domain"
	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/domain/ports/adapter"
	"telegram-storefront-bot/internal/domain/ports/repository"
	"telegram-storefront-bot/internal/infra/logging"
	"telegram-storefront-bot/internal/infra/metrics"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Compile-time check
var (
	_ BroadcastUseCase = (*broadcastUC)(nil)
	_ Reserver         = (*broadcastUC)(nil)
)

// BroadcastUseCase fans a payload out to every stored recipient and can
// delete everything the last fan-out produced.
type BroadcastUseCase interface {
	// Broadcast delivers payload to the recipient snapshot taken at job start.
	// adminChatID receives the start/finish status message (0 disables it).
	Broadcast(ctx context.Context, adminChatID int64, payload model.Payload) (model.DeliveryReport, error)
	// Recall deletes every message recorded by the last Broadcast.
	Recall(ctx context.Context) (model.RecallReport, error)
	// Recallable is the number of messages a Recall would try to delete.
	Recallable() int
}

// JobGuard admits a single broadcast or recall at a time.
type JobGuard interface {
	// Acquire returns domain.ErrBroadcastInProgress when the guard is held.
	Acquire(ctx context.Context) (release func(), err error)
}

type localGuard struct {
	busy atomic.Bool
}

// NewLocalGuard returns an in-process JobGuard.
func NewLocalGuard() JobGuard { return &localGuard{} }

func (g *localGuard) Acquire(context.Context) (func(), error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, domain.ErrBroadcastInProgress
	}
	var once sync.Once
	return func() { once.Do(func() { g.busy.Store(false) }) }, nil
}

// Reserver is implemented by engines whose guard can be taken before the job
// is queued, so a busy engine refuses at submit time.
type Reserver interface {
	Reserve(ctx context.Context) (*Reservation, error)
}

// Reservation holds the single-job guard for a job that has not started yet.
// Bind it to the job's context; Broadcast and Recall then run under it
// instead of acquiring the guard again.
type Reservation struct {
	owner   *broadcastUC
	once    sync.Once
	release func()
}

type reservationKey struct{}

// Bind returns ctx carrying the reservation.
func (r *Reservation) Bind(ctx context.Context) context.Context {
	return context.WithValue(ctx, reservationKey{}, r)
}

// Release frees the guard. Calling it more than once is a no-op.
func (r *Reservation) Release() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		if r.release != nil {
			r.release()
		}
	})
}

// SleepFunc waits d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type BroadcastOptions struct {
	// SendDelay is the pause between two recipients (and two deletes).
	SendDelay time.Duration
	// PreviewLen caps the payload preview in the admin status message.
	PreviewLen int
	// Sleep replaces the real timer; nil means time-based waiting.
	Sleep SleepFunc
}

func (o BroadcastOptions) withDefaults() BroadcastOptions {
	if o.SendDelay < 0 {
		o.SendDelay = 0
	}
	if o.PreviewLen <= 0 {
		o.PreviewLen = 60
	}
	if o.Sleep == nil {
		o.Sleep = sleepCtx
	}
	return o
}

// recallSet holds the messages produced by the most recent broadcast, in the
// order they were sent. One generation only. Removed entries stay in the slice
// as tombstones until the set is empty again, so removal is O(1).
type recallSet struct {
	mu      sync.Mutex
	entries []model.RecallEntry
	live    []bool
	index   map[int64]int
}

func newRecallSet() *recallSet {
	return &recallSet{index: make(map[int64]int)}
}

func (s *recallSet) reset() {
	s.mu.Lock()
	s.clear()
	s.mu.Unlock()
}

func (s *recallSet) clear() {
	s.entries = nil
	s.live = nil
	s.index = make(map[int64]int)
}

func (s *recallSet) add(e model.RecallEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[e.ChatID]; ok {
		s.entries[i] = e
		return
	}
	s.index[e.ChatID] = len(s.entries)
	s.entries = append(s.entries, e)
	s.live = append(s.live, true)
}

func (s *recallSet) remove(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[chatID]
	if !ok {
		return
	}
	s.live[i] = false
	delete(s.index, chatID)
	if len(s.index) == 0 {
		s.clear()
	}
}

func (s *recallSet) snapshot() []model.RecallEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.RecallEntry, 0, len(s.index))
	for i, e := range s.entries {
		if s.live[i] {
			out = append(out, e)
		}
	}
	return out
}

func (s *recallSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeBlocked
	outcomeFailed
)

func (o outcome) String() string {
	switch o {
	case outcomeSent:
		return "sent"
	case outcomeBlocked:
		return "blocked"
	default:
		return "failed"
	}
}

type broadcastUC struct {
	recipients repository.RecipientRepository
	messenger  adapter.Messenger
	guard      JobGuard
	recall     *recallSet
	opts       BroadcastOptions
	log        *zerolog.Logger
}

func NewBroadcastUseCase(
	recipients repository.RecipientRepository,
	messenger adapter.Messenger,
	guard JobGuard,
	opts BroadcastOptions,
	logger *zerolog.Logger,
) BroadcastUseCase {
	if guard == nil {
		guard = NewLocalGuard()
	}
	return &broadcastUC{
		recipients: recipients,
		messenger:  messenger,
		guard:      guard,
		recall:     newRecallSet(),
		opts:       opts.withDefaults(),
		log:        logger,
	}
}

func (uc *broadcastUC) Recallable() int { return uc.recall.len() }

// Reserve takes the single-job guard now. The caller must Release it if the
// job never runs.
func (uc *broadcastUC) Reserve(ctx context.Context) (*Reservation, error) {
	release, err := uc.guard.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Reservation{owner: uc, release: release}, nil
}

// acquire reuses a reservation bound to ctx or takes the guard.
func (uc *broadcastUC) acquire(ctx context.Context) (func(), error) {
	if r, ok := ctx.Value(reservationKey{}).(*Reservation); ok && r.owner == uc {
		return r.Release, nil
	}
	return uc.guard.Acquire(ctx)
}

func (uc *broadcastUC) Broadcast(ctx context.Context, adminChatID int64, payload model.Payload) (model.DeliveryReport, error) {
	defer logging.TraceDuration(uc.log, "BroadcastUC.Broadcast")()

	if !payload.Valid() {
		return model.DeliveryReport{}, domain.ErrInvalidArgument
	}

	release, err := uc.acquire(ctx)
	if err != nil {
		metrics.IncBroadcastJob("broadcast", "rejected")
		return model.DeliveryReport{}, err
	}
	defer release()

	snapshot, err := uc.recipients.ListByFirstSeen(ctx, repository.NoTX)
	if err != nil {
		metrics.IncBroadcastJob("broadcast", "error")
		return model.DeliveryReport{}, fmt.Errorf("load recipients: %w", err)
	}
	if len(snapshot) == 0 {
		metrics.IncBroadcastJob("broadcast", "empty")
		return model.DeliveryReport{}, domain.ErrNoRecipients
	}

	jobID := ulid.Make().String()
	ctx = logging.WithJobID(ctx, jobID)
	log := logging.With(ctx, uc.log).With().
		Str("payload", payload.Kind.String()).
		Int("total", len(snapshot)).
		Logger()

	started := time.Now()
	report := model.DeliveryReport{JobID: jobID, Total: len(snapshot)}

	// The previous generation is gone from here on, even if every send fails.
	uc.recall.reset()
	metrics.SetRecallable(0)

	statusID := 0
	if adminChatID != 0 {
		id, err := uc.messenger.SendText(ctx, adminChatID, startedText(len(snapshot), payload.Preview(uc.opts.PreviewLen)))
		if err != nil {
			log.Warn().Err(err).Msg("could not send broadcast status message")
		} else {
			statusID = id
		}
	}
	log.Info().Msg("broadcast started")

	for i, r := range snapshot {
		if i > 0 {
			_ = uc.opts.Sleep(ctx, uc.opts.SendDelay)
		}

		msgID, res := uc.deliver(ctx, r.TelegramID, payload)
		switch res {
		case outcomeSent:
			report.Sent++
			uc.recall.add(model.RecallEntry{ChatID: r.TelegramID, MessageID: msgID})
		case outcomeBlocked:
			report.Blocked++
		case outcomeFailed:
			report.Failed++
		}
		metrics.IncBroadcastDelivery(res.String())
	}

	metrics.SetRecallable(uc.recall.len())
	metrics.ObserveBroadcastDuration("broadcast", time.Since(started))
	metrics.IncBroadcastJob("broadcast", "done")
	log.Info().
		Int("sent", report.Sent).
		Int("blocked", report.Blocked).
		Int("failed", report.Failed).
		Dur("elapsed", time.Since(started)).
		Msg("broadcast finished")

	if adminChatID != 0 {
		uc.reportStatus(ctx, &log, adminChatID, statusID, finishedText(report))
	}
	return report, nil
}

// deliver sends payload to one recipient. A rate-limit answer suspends the
// loop and retries exactly once; a failed retry counts as failed whatever its
// kind.
func (uc *broadcastUC) deliver(ctx context.Context, chatID int64, p model.Payload) (int, outcome) {
	send := func() (int, error) {
		if p.Kind == model.PayloadCopy {
			return uc.messenger.CopyMessage(ctx, p.Source, chatID)
		}
		return uc.messenger.SendText(ctx, chatID, p.Text)
	}

	id, err := send()
	if err == nil {
		return id, outcomeSent
	}

	kind, after := adapter.KindOf(err)
	switch kind {
	case adapter.KindBlocked:
		uc.log.Debug().Int64("tg_id", chatID).Msg("recipient blocked the bot")
		return 0, outcomeBlocked
	case adapter.KindRateLimited:
		uc.suspend(ctx, "broadcast", after)
		if id, err = send(); err == nil {
			return id, outcomeSent
		}
		uc.log.Warn().Err(err).Int64("tg_id", chatID).Msg("retry after rate limit failed")
		return 0, outcomeFailed
	case adapter.KindRejected, adapter.KindTransient:
		uc.log.Warn().Err(err).Int64("tg_id", chatID).Str("kind", kind.String()).Msg("broadcast delivery failed")
		return 0, outcomeFailed
	}
	return 0, outcomeFailed
}

// suspend waits the transport's retry-after plus one second.
func (uc *broadcastUC) suspend(ctx context.Context, op string, after time.Duration) {
	metrics.IncBroadcastSuspend(op)
	wait := after + time.Second
	uc.log.Info().Str("op", op).Dur("wait", wait).Msg("rate limited, suspending")
	_ = uc.opts.Sleep(ctx, wait)
}

func (uc *broadcastUC) reportStatus(ctx context.Context, log *zerolog.Logger, chatID int64, statusID int, text string) {
	if statusID != 0 {
		err := uc.messenger.EditText(ctx, chatID, statusID, text)
		if err == nil {
			return
		}
		log.Warn().Err(err).Msg("could not edit broadcast status message")
	}
	if _, err := uc.messenger.SendText(ctx, chatID, text); err != nil {
		log.Error().Err(err).Msg("could not send broadcast summary")
	}
}

func (uc *broadcastUC) Recall(ctx context.Context) (model.RecallReport, error) {
	defer logging.TraceDuration(uc.log, "BroadcastUC.Recall")()

	release, err := uc.acquire(ctx)
	if err != nil {
		metrics.IncBroadcastJob("recall", "rejected")
		return model.RecallReport{}, err
	}
	defer release()

	entries := uc.recall.snapshot()
	if len(entries) == 0 {
		metrics.IncBroadcastJob("recall", "empty")
		return model.RecallReport{}, domain.ErrNothingToRecall
	}

	started := time.Now()
	uc.log.Info().Int("total", len(entries)).Msg("recall started")

	var report model.RecallReport
	for i, e := range entries {
		if i > 0 {
			_ = uc.opts.Sleep(ctx, uc.opts.SendDelay)
		}
		if uc.delete(ctx, e) {
			report.OK++
			metrics.IncRecallDelete("ok")
		} else {
			report.Err++
			metrics.IncRecallDelete("err")
		}
		uc.recall.remove(e.ChatID)
	}

	metrics.SetRecallable(uc.recall.len())
	metrics.ObserveBroadcastDuration("recall", time.Since(started))
	metrics.IncBroadcastJob("recall", "done")
	uc.log.Info().Int("ok", report.OK).Int("err", report.Err).Dur("elapsed", time.Since(started)).Msg("recall finished")
	return report, nil
}

func (uc *broadcastUC) delete(ctx context.Context, e model.RecallEntry) bool {
	err := uc.messenger.DeleteMessage(ctx, e.ChatID, e.MessageID)
	if err == nil {
		return true
	}
	kind, after := adapter.KindOf(err)
	switch kind {
	case adapter.KindRateLimited:
		uc.suspend(ctx, "recall", after)
		if err = uc.messenger.DeleteMessage(ctx, e.ChatID, e.MessageID); err == nil {
			return true
		}
	case adapter.KindBlocked, adapter.KindRejected, adapter.KindTransient:
	}
	uc.log.Debug().Err(err).Int64("tg_id", e.ChatID).Int("message_id", e.MessageID).Msg("recall delete failed")
	return false
}

func startedText(total int, preview string) string {
	return fmt.Sprintf("📣 Broadcast started to %d users\n\n%s", total, preview)
}

func finishedText(r model.DeliveryReport) string {
	return fmt.Sprintf("✅ Broadcast finished\n\nSent: %d\nBlocked: %d\nFailed: %d\nTotal: %d",
		r.Sent, r.Blocked, r.Failed, r.Total)
}

// RecallText renders a recall summary for the admin.
func RecallText(r model.RecallReport) string {
	return fmt.Sprintf("🗑 Last broadcast recalled\n\nDeleted: %d\nErrors: %d", r.OK, r.Err)
}
