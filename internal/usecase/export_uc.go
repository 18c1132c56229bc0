package usecase

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"telegram-storefront-bot/internal/domain"
	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/domain/ports/repository"
	"telegram-storefront-bot/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ ExportUseCase = (*exportUC)(nil)

// CSVHeader is the column order of recipient exports.
var CSVHeader = []string{"user_id", "username", "first_name", "last_name", "first_seen", "last_seen"}

type ExportUseCase interface {
	// ExportCSV writes every recipient, oldest first, and returns the row count.
	ExportCSV(ctx context.Context, w io.Writer) (int, error)
	// ExportSnapshot writes a copy of the whole store when the backend supports it.
	ExportSnapshot(ctx context.Context, w io.Writer) error
}

type exportUC struct {
	recipients repository.RecipientRepository
	snap       repository.Snapshotter
	log        *zerolog.Logger
}

// NewExportUseCase builds the export flows. snap may be nil.
func NewExportUseCase(recipients repository.RecipientRepository, snap repository.Snapshotter, logger *zerolog.Logger) *exportUC {
	return &exportUC{recipients: recipients, snap: snap, log: logger}
}

func (e *exportUC) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	defer logging.TraceDuration(e.log, "ExportUC.ExportCSV")()

	all, err := e.recipients.ListByFirstSeen(ctx, repository.NoTX)
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return 0, err
	}
	for _, r := range all {
		rec := []string{
			strconv.FormatInt(r.TelegramID, 10),
			r.Username,
			r.FirstName,
			r.LastName,
			formatTime(r.FirstSeen),
			formatTime(r.LastSeen),
		}
		if err := cw.Write(rec); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}
	return len(all), nil
}

func (e *exportUC) ExportSnapshot(ctx context.Context, w io.Writer) error {
	defer logging.TraceDuration(e.log, "ExportUC.ExportSnapshot")()
	if e.snap == nil {
		return domain.ErrSnapshotDisabled
	}
	return e.snap.Snapshot(ctx, w)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ExportFileName is the attachment name for an export taken at t.
func ExportFileName(format model.ImportFormat, t time.Time) string {
	ext := "csv"
	if format == model.FormatSQLite {
		ext = "db"
	}
	return fmt.Sprintf("recipients-%s.%s", t.UTC().Format("20060102-150405"), ext)
}
