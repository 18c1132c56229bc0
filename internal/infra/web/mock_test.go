//go:build !integration

package web

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-storefront-bot/internal/domain"
	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/infra/worker"
	"telegram-storefront-bot/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

type mockUserUC struct{ list []*model.Recipient }

func (m *mockUserUC) RegisterOrFetch(context.Context, int64, string, string, string) (*model.Recipient, bool, error) {
	return nil, false, nil
}
func (m *mockUserUC) GetByTelegramID(context.Context, int64) (*model.Recipient, error) {
	return nil, domain.ErrNotFound
}
func (m *mockUserUC) List(context.Context) ([]*model.Recipient, error) { return m.list, nil }
func (m *mockUserUC) Count(context.Context) (int, error)               { return len(m.list), nil }
func (m *mockUserUC) CountActiveSince(context.Context, time.Time) (int, error) {
	return len(m.list), nil
}

type mockBroadcastUC struct {
	busy       bool
	mu         sync.Mutex
	payloads   []model.Payload
	admins     []int64
	recalls    int
	recallable int
}

func (m *mockBroadcastUC) Broadcast(_ context.Context, adminChatID int64, p model.Payload) (model.DeliveryReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, p)
	m.admins = append(m.admins, adminChatID)
	return model.DeliveryReport{}, nil
}

func (m *mockBroadcastUC) Recall(context.Context) (model.RecallReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recalls++
	return model.RecallReport{OK: m.recallable}, nil
}

func (m *mockBroadcastUC) Recallable() int { return m.recallable }

// Reserve reports the engine as busy when busy is set.
func (m *mockBroadcastUC) Reserve(context.Context) (*usecase.Reservation, error) {
	if m.busy {
		return nil, domain.ErrBroadcastInProgress
	}
	return &usecase.Reservation{}, nil
}

type mockStatsUC struct{}

func (mockStatsUC) Overview(context.Context) (model.Stats, error) {
	return model.Stats{Recipients: 4, ActiveWeek: 3, Recallable: 2}, nil
}

type mockExportUC struct{}

func (mockExportUC) ExportCSV(_ context.Context, w io.Writer) (int, error) {
	_, err := io.WriteString(w, "user_id,username\n7,anna\n")
	return 1, err
}

func (mockExportUC) ExportSnapshot(context.Context, io.Writer) error {
	return domain.ErrSnapshotDisabled
}

// syncJobs runs tasks inline, or refuses them when full is set.
type syncJobs struct{ full bool }

func (j syncJobs) Submit(task worker.Task) error {
	if j.full {
		return worker.ErrQueueFull
	}
	_ = task(context.Background())
	return nil
}
