package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 250 * time.Millisecond

// Watch re-parses the config file whenever it changes and hands the new
// config to onChange. Invalid files are logged and skipped. It watches the
// parent directory so editors that replace the file are seen too. Watch blocks
// until ctx is done.
func Watch(ctx context.Context, path string, logger *zerolog.Logger, onChange func(*Config)) error {
	if path == "" {
		return fmt.Errorf("config watch: empty path")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "config_watch").Str("path", path).Logger()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer w.Close()

	dir, file := filepath.Dir(path), filepath.Base(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("config watch %s: %w", dir, err)
	}

	// debounce to avoid partial writes
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		cfg, err := Parse(path)
		if err != nil {
			l.Warn().Err(err).Msg("config reload rejected")
			return
		}
		l.Info().Msg("config reloaded")
		onChange(cfg)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	l.Info().Msg("watching config")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			l.Debug().Str("op", ev.Op.String()).Msg("config change detected; scheduling reload")
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, reload)
			timerMu.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.Warn().Err(err).Msg("config watcher error")
		}
	}
}
