//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-storefront-bot/internal/domain"
	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/domain/ports/repository"
	"telegram-storefront-bot/internal/usecase"
)

func TestImportUseCase_Import(t *testing.T) {
	ctx := context.Background()

	t.Run("should insert unknown ids and skip invalid rows", func(t *testing.T) {
		repo := NewMockRecipientRepo()
		tm := NewMockTxManager()
		uc := usecase.NewImportUseCase(repo, tm, newTestLogger())

		src := &sliceReader{
			cols: []string{"user_id", "first_seen"},
			rows: [][]string{
				{"100", "2023-03-04T05:06:07.123456+00:00"},
				{"101", ""},
				{"abc", "2023-01-01"},
				{"-5", ""},
			},
		}
		rep, err := uc.Import(ctx, src)
		if err != nil {
			t.Fatalf("Import: %v", err)
		}
		want := model.ImportReport{Read: 4, Inserted: 2, Skipped: 2}
		if rep != want {
			t.Fatalf("report = %+v, want %+v", rep, want)
		}
		if tm.Calls != 1 {
			t.Errorf("expected a single transaction, got %d", tm.Calls)
		}
		r, err := repo.FindByTelegramID(ctx, repository.NoTX, 100)
		if err != nil {
			t.Fatalf("recipient 100 missing: %v", err)
		}
		if want := time.Date(2023, 3, 4, 5, 6, 7, 123456000, time.UTC); !r.FirstSeen.Equal(want) {
			t.Errorf("first seen = %v, want %v", r.FirstSeen, want)
		}
		if !r.LastSeen.Equal(r.FirstSeen) {
			t.Errorf("last seen = %v, want first seen", r.LastSeen)
		}
		r, _ = repo.FindByTelegramID(ctx, repository.NoTX, 101)
		if r.FirstSeen.IsZero() {
			t.Error("missing first seen should default to import time")
		}
	})

	t.Run("should reconcile column aliases case-insensitively", func(t *testing.T) {
		repo := NewMockRecipientRepo()
		uc := usecase.NewImportUseCase(repo, NewMockTxManager(), newTestLogger())

		src := &sliceReader{
			cols: []string{"\ufeffTelegram_ID", "Handle", "Name", "Surname", "Joined", "Last_Active"},
			rows: [][]string{{"7", "@giulia", "Giulia", "Verdi", "1700000000", "2024-02-02 10:00:00"}},
		}
		if _, err := uc.Import(ctx, src); err != nil {
			t.Fatalf("Import: %v", err)
		}
		r, err := repo.FindByTelegramID(ctx, repository.NoTX, 7)
		if err != nil {
			t.Fatalf("recipient missing: %v", err)
		}
		if r.Username != "giulia" || r.FirstName != "Giulia" || r.LastName != "Verdi" {
			t.Errorf("attributes = %+v", r)
		}
		if !r.FirstSeen.Equal(time.Unix(1700000000, 0).UTC()) {
			t.Errorf("first seen = %v", r.FirstSeen)
		}
		if !r.LastSeen.Equal(time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)) {
			t.Errorf("last seen = %v", r.LastSeen)
		}
	})

	t.Run("should never move first seen of a known recipient", func(t *testing.T) {
		repo := NewMockRecipientRepo()
		first := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
		last := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
		_ = repo.Save(ctx, repository.NoTX, &model.Recipient{TelegramID: 1, Username: "kept", FirstSeen: first, LastSeen: last})
		_ = repo.Save(ctx, repository.NoTX, &model.Recipient{TelegramID: 2, Username: "same", FirstSeen: first, LastSeen: last})
		uc := usecase.NewImportUseCase(repo, NewMockTxManager(), newTestLogger())

		src := &sliceReader{
			cols: []string{"id", "username", "first_name", "created_at", "updated_at"},
			rows: [][]string{
				{"1", "other", "Paolo", "2020-01-01", "2024-01-01"},
				{"2", "", "", "2020-01-01", "2021-01-01"},
			},
		}
		rep, err := uc.Import(ctx, src)
		if err != nil {
			t.Fatalf("Import: %v", err)
		}
		if rep.Updated != 1 || rep.Skipped != 1 || rep.Inserted != 0 {
			t.Fatalf("report = %+v", rep)
		}
		r, _ := repo.FindByTelegramID(ctx, repository.NoTX, 1)
		if !r.FirstSeen.Equal(first) {
			t.Errorf("first seen moved to %v", r.FirstSeen)
		}
		if r.Username != "kept" || r.FirstName != "Paolo" {
			t.Errorf("merge result = %+v", r)
		}
		if !r.LastSeen.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("last seen = %v", r.LastSeen)
		}
		r, _ = repo.FindByTelegramID(ctx, repository.NoTX, 2)
		if !r.LastSeen.Equal(last) {
			t.Errorf("last seen moved backwards to %v", r.LastSeen)
		}
	})

	t.Run("should reject a source without an id column", func(t *testing.T) {
		uc := usecase.NewImportUseCase(NewMockRecipientRepo(), NewMockTxManager(), newTestLogger())
		_, err := uc.Import(ctx, &sliceReader{cols: []string{"username", "first_seen"}})
		if !errors.Is(err, domain.ErrUnsupportedFormat) {
			t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
		}
	})

	t.Run("should write nothing when the source fails mid-way", func(t *testing.T) {
		repo := NewMockRecipientRepo()
		tm := NewMockTxManager()
		uc := usecase.NewImportUseCase(repo, tm, newTestLogger())

		_, err := uc.Import(ctx, &sliceReader{cols: []string{"user_id"}, rows: [][]string{{"1"}}, err: errBoom})
		if !errors.Is(err, errBoom) {
			t.Fatalf("err = %v, want errBoom", err)
		}
		if tm.Calls != 0 {
			t.Errorf("transaction opened despite read failure")
		}
	})

	t.Run("should surface a failed transaction", func(t *testing.T) {
		tm := NewMockTxManager()
		tm.WithTxFunc = func(context.Context, func(context.Context, repository.Tx) error) error { return errBoom }
		uc := usecase.NewImportUseCase(NewMockRecipientRepo(), tm, newTestLogger())

		_, err := uc.Import(ctx, &sliceReader{cols: []string{"user_id"}, rows: [][]string{{"1"}}})
		if !errors.Is(err, errBoom) {
			t.Fatalf("err = %v, want errBoom", err)
		}
	})
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-01-02T03:04:05Z", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), true},
		{"2024-01-02T05:04:05+02:00", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), true},
		{"2024-01-02 03:04:05", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), true},
		{"2024-01-02T03:04:05.5", time.Date(2024, 1, 2, 3, 4, 5, 500000000, time.UTC), true},
		{"2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"1704164645", time.Unix(1704164645, 0).UTC(), true},
		{"", time.Time{}, false},
		{"yesterday", time.Time{}, false},
	}
	for _, c := range cases {
		got, ok := usecase.ParseTimestamp(c.in)
		if ok != c.ok || !got.Equal(c.want) {
			t.Errorf("ParseTimestamp(%q) = %v, %v; want %v, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}
