package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-storefront-bot/internal/domain"
	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/domain/ports/repository"
)

var _ repository.RecipientRepository = (*PostgresRecipientRepo)(nil)

type PostgresRecipientRepo struct {
	pool *pgxpool.Pool
}

func NewRecipientRepo(pool *pgxpool.Pool) *PostgresRecipientRepo {
	return &PostgresRecipientRepo{pool: pool}
}

const recipientColumns = `telegram_id, username, first_name, last_name, first_seen, last_seen`

func (r *PostgresRecipientRepo) Save(ctx context.Context, tx repository.Tx, rec *model.Recipient) error {
	const q = `
INSERT INTO recipients (` + recipientColumns + `)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (telegram_id) DO UPDATE SET
  username=$2, first_name=$3, last_name=$4, last_seen=$6;
`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, rec.TelegramID, rec.Username, rec.FirstName, rec.LastName, rec.FirstSeen.UTC(), rec.LastSeen.UTC())
	if err != nil {
		return fmt.Errorf("save recipient %d: %w", rec.TelegramID, err)
	}
	return nil
}

func (r *PostgresRecipientRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.Recipient, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	row := ex.QueryRow(ctx, `SELECT `+recipientColumns+` FROM recipients WHERE telegram_id=$1;`, tgID)
	rec, err := scanRecipient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (r *PostgresRecipientRepo) ListByFirstSeen(ctx context.Context, tx repository.Tx) ([]*model.Recipient, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT `+recipientColumns+` FROM recipients ORDER BY first_seen ASC, telegram_id ASC;`)
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

func (r *PostgresRecipientRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, `SELECT COUNT(*) FROM recipients;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recipients: %w", err)
	}
	return n, nil
}

func (r *PostgresRecipientRepo) CountActiveSince(ctx context.Context, tx repository.Tx, since time.Time) (int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, `SELECT COUNT(*) FROM recipients WHERE last_seen >= $1;`, since.UTC()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active: %w", err)
	}
	return n, nil
}

func scanRecipient(row pgx.Row) (*model.Recipient, error) {
	var rec model.Recipient
	if err := row.Scan(&rec.TelegramID, &rec.Username, &rec.FirstName, &rec.LastName, &rec.FirstSeen, &rec.LastSeen); err != nil {
		return nil, err
	}
	rec.FirstSeen = rec.FirstSeen.UTC()
	rec.LastSeen = rec.LastSeen.UTC()
	return &rec, nil
}
