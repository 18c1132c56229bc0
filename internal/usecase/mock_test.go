//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-storefront-bot/internal/domain"
	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/domain/ports/adapter"
	"telegram-storefront-bot/internal/domain/ports/repository"
)

// =============================
// Adapters
// =============================

// ---- Mock Messenger ----

type MessengerCall struct {
	Op        string // "send" | "copy" | "delete" | "edit"
	ChatID    int64
	MessageID int
	Text      string
}

// MockMessenger answers every call with success and a fresh message id
// unless a scripted error is queued for the chat.
type MockMessenger struct {
	mu     sync.Mutex
	nextID int
	Calls  []MessengerCall

	// Script holds errors returned, in order, by successive calls for a chat.
	// A nil entry means success.
	Script map[int64][]error
}

var _ adapter.Messenger = (*MockMessenger)(nil)

func NewMockMessenger() *MockMessenger {
	return &MockMessenger{nextID: 1000, Script: make(map[int64][]error)}
}

func (m *MockMessenger) Fail(chatID int64, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Script[chatID] = append(m.Script[chatID], errs...)
}

func (m *MockMessenger) next(call MessengerCall) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if q := m.Script[call.ChatID]; len(q) > 0 {
		err, m.Script[call.ChatID] = q[0], q[1:]
	}
	if err == nil && (call.Op == "send" || call.Op == "copy") {
		m.nextID++
		call.MessageID = m.nextID
	}
	m.Calls = append(m.Calls, call)
	if err != nil {
		return 0, err
	}
	return call.MessageID, nil
}

func (m *MockMessenger) SendText(_ context.Context, chatID int64, text string) (int, error) {
	return m.next(MessengerCall{Op: "send", ChatID: chatID, Text: text})
}

func (m *MockMessenger) CopyMessage(_ context.Context, src model.MessageRef, toChatID int64) (int, error) {
	return m.next(MessengerCall{Op: "copy", ChatID: toChatID, Text: "copy-of"})
}

func (m *MockMessenger) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	_, err := m.next(MessengerCall{Op: "delete", ChatID: chatID, MessageID: messageID})
	return err
}

func (m *MockMessenger) EditText(_ context.Context, chatID int64, messageID int, text string) error {
	_, err := m.next(MessengerCall{Op: "edit", ChatID: chatID, MessageID: messageID, Text: text})
	return err
}

// CallsTo returns the calls addressed to chatID.
func (m *MockMessenger) CallsTo(chatID int64) []MessengerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MessengerCall
	for _, c := range m.Calls {
		if c.ChatID == chatID {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockMessenger) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// =============================
// Repositories
// =============================

// ---- Mock RecipientRepository ----

type MockRecipientRepo struct {
	mu   sync.Mutex
	byID map[int64]*model.Recipient

	ListFunc func(ctx context.Context, tx repository.Tx) ([]*model.Recipient, error)
	SaveFunc func(ctx context.Context, tx repository.Tx, r *model.Recipient) error
}

var _ repository.RecipientRepository = (*MockRecipientRepo)(nil)

func NewMockRecipientRepo() *MockRecipientRepo {
	return &MockRecipientRepo{byID: make(map[int64]*model.Recipient)}
}

// Seed stores recipients whose first-seen times follow the given id order.
func (m *MockRecipientRepo) Seed(ids ...int64) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		ts := base.Add(time.Duration(i) * time.Minute)
		m.byID[id] = &model.Recipient{TelegramID: id, FirstSeen: ts, LastSeen: ts}
	}
}

func (m *MockRecipientRepo) Save(ctx context.Context, tx repository.Tx, r *model.Recipient) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	if old, ok := m.byID[r.TelegramID]; ok {
		cp.FirstSeen = old.FirstSeen
	}
	m.byID[r.TelegramID] = &cp
	return nil
}

func (m *MockRecipientRepo) FindByTelegramID(_ context.Context, _ repository.Tx, tgID int64) (*model.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[tgID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MockRecipientRepo) ListByFirstSeen(ctx context.Context, tx repository.Tx) ([]*model.Recipient, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Recipient, 0, len(m.byID))
	for _, r := range m.byID {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstSeen.Equal(out[j].FirstSeen) {
			return out[i].TelegramID < out[j].TelegramID
		}
		return out[i].FirstSeen.Before(out[j].FirstSeen)
	})
	return out, nil
}

func (m *MockRecipientRepo) Count(_ context.Context, _ repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID), nil
}

func (m *MockRecipientRepo) CountActiveSince(_ context.Context, _ repository.Tx, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.byID {
		if !r.LastSeen.Before(since) {
			n++
		}
	}
	return n, nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error
	Calls      int
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately without a real transaction unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Misc
// =============================

// sleepRecorder replaces real waiting in the engine.
type sleepRecorder struct {
	mu     sync.Mutex
	waits  []time.Duration
	before func(d time.Duration)
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	hook := s.before
	s.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

func (s *sleepRecorder) Longest() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max time.Duration
	for _, d := range s.waits {
		if d > max {
			max = d
		}
	}
	return max
}

// sliceReader is an in-memory adapter.RecordReader.
type sliceReader struct {
	cols   []string
	rows   [][]string
	err    error // returned after the rows are exhausted, instead of io.EOF
	pos    int
	closed bool
}

var _ adapter.RecordReader = (*sliceReader)(nil)

func (r *sliceReader) Columns() []string { return r.cols }

func (r *sliceReader) Next() ([]string, error) {
	if r.pos >= len(r.rows) {
		if r.err != nil {
			return nil, r.err
		}
		return nil, io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	return row, nil
}

func (r *sliceReader) Close() error { r.closed = true; return nil }

var errBoom = errors.New("boom")

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
