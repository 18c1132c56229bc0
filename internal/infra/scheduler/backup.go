package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/usecase"
)

const backupPrefix = "recipients-"

// BackupScheduler writes a CSV export of the recipients on a cron schedule and
// keeps only the newest files.
type BackupScheduler struct {
	spec   string
	dir    string
	keep   int
	export usecase.ExportUseCase
	log    *zerolog.Logger

	mu     sync.Mutex
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewBackupScheduler validates spec and prepares the scheduler; nothing runs
// until Start.
func NewBackupScheduler(spec, dir string, keep int, export usecase.ExportUseCase, logger *zerolog.Logger) (*BackupScheduler, error) {
	if dir == "" {
		return nil, fmt.Errorf("backup dir is empty")
	}
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("backup cron %q: %w", spec, err)
	}
	if keep <= 0 {
		keep = 7
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "BackupScheduler").Logger()
	return &BackupScheduler{spec: spec, dir: dir, keep: keep, export: export, log: &l, now: time.Now}, nil
}

// Start schedules the backup job. Calling Start twice has no effect.
func (s *BackupScheduler) Start(parentCtx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	s.ctx, s.cancel = context.WithCancel(parentCtx)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.spec, func() {
		if _, err := s.RunOnce(s.ctx); err != nil {
			s.log.Error().Err(err).Msg("backup failed")
		}
	}); err != nil {
		s.cancel()
		return err
	}
	c.Start()
	s.c = c
	s.log.Info().Str("cron", s.spec).Str("dir", s.dir).Int("keep", s.keep).Msg("backup scheduler started")
	return nil
}

// Stop cancels a running backup and waits for it to return. It is idempotent.
func (s *BackupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return
	}
	s.cancel()
	<-s.c.Stop().Done()
	s.c = nil
	s.log.Info().Msg("backup scheduler stopped")
}

// RunOnce writes one backup and prunes old ones. It returns the file written.
func (s *BackupScheduler) RunOnce(ctx context.Context) (string, error) {
	name := usecase.ExportFileName(model.FormatCSV, s.now())
	final := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".backup-*")
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	n, err := s.export.ExportCSV(ctx, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("publish backup: %w", err)
	}
	s.log.Info().Str("file", final).Int("rows", n).Msg("backup written")

	if err := s.prune(); err != nil {
		s.log.Warn().Err(err).Msg("backup prune failed")
	}
	return final, nil
}

// prune removes all but the newest keep backups. Names sort by timestamp.
func (s *BackupScheduler) prune() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasPrefix(e.Name(), backupPrefix) && strings.HasSuffix(e.Name(), ".csv") {
			names = append(names, e.Name())
		}
	}
	if len(names) <= s.keep {
		return nil
	}
	sort.Strings(names)
	for _, name := range names[:len(names)-s.keep] {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			return err
		}
		s.log.Debug().Str("file", name).Msg("old backup removed")
	}
	return nil
}
