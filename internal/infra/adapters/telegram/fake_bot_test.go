package telegram

import (
	"context"
	"io"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-storefront-bot/internal/domain"
	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/domain/ports/adapter"
	"telegram-storefront-bot/internal/infra/worker"
	"telegram-storefront-bot/internal/usecase"
)

// fakeBot records every outbound call.
type fakeBot struct {
	mu        sync.Mutex
	sent      []tgbotapi.Chattable
	requested []tgbotapi.Chattable
	copies    []tgbotapi.CopyMessageConfig
	nextID    int

	sendErr    error
	requestErr error
	copyErr    error
	fileURL    string
}

var _ botAPI = (*fakeBot)(nil)

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, c)
	if f.requestErr != nil {
		return nil, f.requestErr
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) CopyMessage(c tgbotapi.CopyMessageConfig) (tgbotapi.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copies = append(f.copies, c)
	if f.copyErr != nil {
		return tgbotapi.MessageID{}, f.copyErr
	}
	f.nextID++
	return tgbotapi.MessageID{MessageID: f.nextID}, nil
}

func (f *fakeBot) GetFileDirectURL(fileID string) (string, error) {
	return f.fileURL + fileID, nil
}

func (f *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeBot) StopReceivingUpdates() {}

// texts returns the text of every plain message sent to chatID.
func (f *fakeBot) texts(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok && m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeBot) lastSent() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

// ---- use case mocks ----

type userUCMock struct {
	mu   sync.Mutex
	seen map[int64]*model.Recipient
}

func newUserUCMock() *userUCMock { return &userUCMock{seen: map[int64]*model.Recipient{}} }

func (m *userUCMock) RegisterOrFetch(_ context.Context, tgID int64, username, firstName, lastName string) (*model.Recipient, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.seen[tgID]
	if !ok {
		r = &model.Recipient{TelegramID: tgID}
		m.seen[tgID] = r
	}
	r.Touch(username, firstName, lastName)
	return r, !ok, nil
}

func (m *userUCMock) GetByTelegramID(_ context.Context, tgID int64) (*model.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.seen[tgID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (m *userUCMock) List(context.Context) ([]*model.Recipient, error) { return nil, nil }
func (m *userUCMock) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen), nil
}
func (m *userUCMock) CountActiveSince(context.Context, time.Time) (int, error) { return 0, nil }

type broadcastUCMock struct {
	mu         sync.Mutex
	payloads   []model.Payload
	recalls    int
	err        error
	recallErr  error
	reserveErr error
}

func (m *broadcastUCMock) Broadcast(_ context.Context, _ int64, p model.Payload) (model.DeliveryReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, p)
	return model.DeliveryReport{Total: 1, Sent: 1}, m.err
}

func (m *broadcastUCMock) Recall(context.Context) (model.RecallReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recalls++
	if m.recallErr != nil {
		return model.RecallReport{}, m.recallErr
	}
	return model.RecallReport{OK: 1}, nil
}

func (m *broadcastUCMock) Recallable() int { return 0 }

func (m *broadcastUCMock) Reserve(context.Context) (*usecase.Reservation, error) {
	if m.reserveErr != nil {
		return nil, m.reserveErr
	}
	return &usecase.Reservation{}, nil
}

type statsUCMock struct{}

func (statsUCMock) Overview(context.Context) (model.Stats, error) {
	return model.Stats{Recipients: 3, ActiveWeek: 2, Recallable: 1}, nil
}

type exportUCMock struct{}

func (exportUCMock) ExportCSV(_ context.Context, w io.Writer) (int, error) {
	_, err := io.WriteString(w, "user_id\n1\n2\n")
	return 2, err
}

func (exportUCMock) ExportSnapshot(context.Context, io.Writer) error {
	return domain.ErrSnapshotDisabled
}

type importUCMock struct {
	mu   sync.Mutex
	rows [][]string
}

func (m *importUCMock) Import(_ context.Context, src adapter.RecordReader) (model.ImportReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rep model.ImportReport
	for {
		row, err := src.Next()
		if err == io.EOF {
			return rep, nil
		}
		if err != nil {
			return rep, err
		}
		m.rows = append(m.rows, row)
		rep.Read++
		rep.Inserted++
	}
}

// inlineJobs runs tasks synchronously. Task errors stay with the task, as on
// the real pool.
type inlineJobs struct{}

func (inlineJobs) Submit(task worker.Task) error {
	_ = task(context.Background())
	return nil
}

type denyAll struct{ hits int }

func (d *denyAll) Allow(context.Context, string, int, time.Duration) (bool, error) {
	d.hits++
	return false, nil
}
