package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"telegram-storefront-bot/internal/domain"
	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/domain/ports/repository"
)

var (
	_ repository.RecipientRepository = (*RecipientRepo)(nil)
	_ repository.Snapshotter         = (*Store)(nil)
)

type RecipientRepo struct {
	db *sql.DB
}

func NewRecipientRepo(db *sql.DB) *RecipientRepo {
	return &RecipientRepo{db: db}
}

const recipientColumns = `user_id, username, first_name, last_name, first_seen, last_seen`

func (r *RecipientRepo) Save(ctx context.Context, tx repository.Tx, rec *model.Recipient) error {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO users (`+recipientColumns+`) VALUES (?,?,?,?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   username=excluded.username, first_name=excluded.first_name,
		   last_name=excluded.last_name, last_seen=excluded.last_seen`,
		rec.TelegramID, rec.Username, rec.FirstName, rec.LastName,
		formatTime(rec.FirstSeen), formatTime(rec.LastSeen),
	)
	if err != nil {
		return fmt.Errorf("save recipient %d: %w", rec.TelegramID, err)
	}
	return nil
}

func (r *RecipientRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.Recipient, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return nil, err
	}
	row := ex.QueryRowContext(ctx, `SELECT `+recipientColumns+` FROM users WHERE user_id = ?`, tgID)
	rec, err := scanRecipient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *RecipientRepo) ListByFirstSeen(ctx context.Context, tx repository.Tx) ([]*model.Recipient, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx, `SELECT `+recipientColumns+` FROM users ORDER BY first_seen ASC, user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var out []*model.Recipient
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RecipientRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recipients: %w", err)
	}
	return n, nil
}

func (r *RecipientRepo) CountActiveSince(ctx context.Context, tx repository.Tx, since time.Time) (int, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE last_seen >= ?`, formatTime(since)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecipient(s scanner) (*model.Recipient, error) {
	var (
		rec         model.Recipient
		first, last sql.NullString
	)
	if err := s.Scan(&rec.TelegramID, &rec.Username, &rec.FirstName, &rec.LastName, &first, &last); err != nil {
		return nil, err
	}
	rec.FirstSeen, _ = parseTime(first.String)
	rec.LastSeen, _ = parseTime(last.String)
	if rec.LastSeen.IsZero() {
		rec.LastSeen = rec.FirstSeen
	}
	return &rec, nil
}
