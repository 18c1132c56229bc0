package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"telegram-storefront-bot/internal/domain"
	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/domain/ports/adapter"
	"telegram-storefront-bot/internal/domain/ports/repository"
	"telegram-storefront-bot/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ ImportUseCase = (*importUC)(nil)

type ImportUseCase interface {
	// Import merges every row of src into the recipient store in one
	// transaction. Known recipients keep their first-seen time.
	Import(ctx context.Context, src adapter.RecordReader) (model.ImportReport, error)
}

type field int

const (
	fieldID field = iota
	fieldUsername
	fieldFirstName
	fieldLastName
	fieldFirstSeen
	fieldLastSeen
	fieldCount
)

// columnAliases maps accepted source column names to recipient fields.
var columnAliases = map[field][]string{
	fieldID:        {"user_id", "id", "telegram_id", "tg_id", "chat_id", "userid"},
	fieldUsername:  {"username", "user_name", "handle"},
	fieldFirstName: {"first_name", "firstname", "given_name", "name"},
	fieldLastName:  {"last_name", "lastname", "family_name", "surname"},
	fieldFirstSeen: {"first_seen", "created_at", "registered_at", "joined_at", "joined", "date"},
	fieldLastSeen:  {"last_seen", "last_active_at", "last_active", "updated_at", "seen_at"},
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type importRow struct {
	rec       model.Recipient
	firstSeen bool // FirstSeen came from the source
}

type importUC struct {
	recipients repository.RecipientRepository
	tm         repository.TransactionManager
	now        func() time.Time
	log        *zerolog.Logger
}

func NewImportUseCase(recipients repository.RecipientRepository, tm repository.TransactionManager, logger *zerolog.Logger) *importUC {
	return &importUC{recipients: recipients, tm: tm, now: time.Now, log: logger}
}

func (u *importUC) Import(ctx context.Context, src adapter.RecordReader) (model.ImportReport, error) {
	defer logging.TraceDuration(u.log, "ImportUC.Import")()

	idx, err := resolveColumns(src.Columns())
	if err != nil {
		return model.ImportReport{}, err
	}

	var (
		report model.ImportReport
		rows   []importRow
	)
	for {
		values, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.ImportReport{}, fmt.Errorf("read source: %w", err)
		}
		report.Read++
		row, ok := parseRow(values, idx)
		if !ok {
			report.Skipped++
			continue
		}
		rows = append(rows, row)
	}

	now := u.now().UTC()
	err = u.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		for _, row := range rows {
			existing, err := u.recipients.FindByTelegramID(ctx, tx, row.rec.TelegramID)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				r := row.rec
				if !row.firstSeen {
					r.FirstSeen = now
				}
				if r.LastSeen.IsZero() || r.LastSeen.Before(r.FirstSeen) {
					r.LastSeen = r.FirstSeen
				}
				if err := u.recipients.Save(ctx, tx, &r); err != nil {
					return err
				}
				report.Inserted++
			case err != nil:
				return err
			default:
				if !mergeInto(existing, row.rec) {
					report.Skipped++
					continue
				}
				if err := u.recipients.Save(ctx, tx, existing); err != nil {
					return err
				}
				report.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return model.ImportReport{}, fmt.Errorf("merge recipients: %w", err)
	}

	u.log.Info().
		Int("read", report.Read).
		Int("inserted", report.Inserted).
		Int("updated", report.Updated).
		Int("skipped", report.Skipped).
		Msg("import finished")
	return report, nil
}

// mergeInto fills empty display attributes of dst and moves LastSeen
// forward. FirstSeen never changes. It reports whether dst changed.
func mergeInto(dst *model.Recipient, src model.Recipient) bool {
	changed := false
	fill := func(cur *string, v string) {
		if *cur == "" && v != "" {
			*cur = v
			changed = true
		}
	}
	fill(&dst.Username, src.Username)
	fill(&dst.FirstName, src.FirstName)
	fill(&dst.LastName, src.LastName)
	if src.LastSeen.After(dst.LastSeen) {
		dst.LastSeen = src.LastSeen
		changed = true
	}
	return changed
}

// resolveColumns maps source columns to recipient fields by alias,
// case-insensitively. A source without an id column is unsupported.
func resolveColumns(cols []string) ([fieldCount]int, error) {
	var idx [fieldCount]int
	for i := range idx {
		idx[i] = -1
	}
	for f := field(0); f < fieldCount; f++ {
		for _, alias := range columnAliases[f] {
			if i := indexOf(cols, alias); i >= 0 {
				idx[f] = i
				break
			}
		}
	}
	if idx[fieldID] < 0 {
		return idx, fmt.Errorf("%w: no id column among %v", domain.ErrUnsupportedFormat, cols)
	}
	return idx, nil
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		c = strings.TrimPrefix(c, "\ufeff")
		if strings.EqualFold(strings.TrimSpace(c), name) {
			return i
		}
	}
	return -1
}

func parseRow(values []string, idx [fieldCount]int) (importRow, bool) {
	get := func(f field) string {
		i := idx[f]
		if i < 0 || i >= len(values) {
			return ""
		}
		return strings.TrimSpace(values[i])
	}

	id, err := strconv.ParseInt(get(fieldID), 10, 64)
	if err != nil || id <= 0 {
		return importRow{}, false
	}
	row := importRow{rec: model.Recipient{
		TelegramID: id,
		Username:   strings.TrimPrefix(get(fieldUsername), "@"),
		FirstName:  get(fieldFirstName),
		LastName:   get(fieldLastName),
	}}
	if t, ok := ParseTimestamp(get(fieldFirstSeen)); ok {
		row.rec.FirstSeen = t
		row.firstSeen = true
	}
	if t, ok := ParseTimestamp(get(fieldLastSeen)); ok {
		row.rec.LastSeen = t
	}
	return row, true
}

// ParseTimestamp accepts RFC3339, ISO dates with or without a zone, plain
// dates and unix seconds. Zone-less values are UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil && !strings.Contains(s, "-") {
		if secs <= 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(secs), 0).UTC(), true
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
