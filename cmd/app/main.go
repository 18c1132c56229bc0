// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-storefront-bot/internal/application"
	"telegram-storefront-bot/internal/config"
	tele "telegram-storefront-bot/internal/infra/adapters/telegram"
	"telegram-storefront-bot/internal/infra/db"
	"telegram-storefront-bot/internal/infra/logging"
	"telegram-storefront-bot/internal/infra/metrics"
	red "telegram-storefront-bot/internal/infra/redis"
	"telegram-storefront-bot/internal/infra/sched"
	"telegram-storefront-bot/internal/infra/scheduler"
	"telegram-storefront-bot/internal/infra/texts"
	"telegram-storefront-bot/internal/infra/web"
	"telegram-storefront-bot/internal/infra/worker"
	"telegram-storefront-bot/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, insecure cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("storefront bot stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Str("commit", commit).Bool("dev", cfg.Runtime.Dev).Msg("starting storefront bot")

	// ---- Store ----
	backend, err := db.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer backend.Close()
	logger.Info().Str("driver", backend.Driver).Msg("store ready")

	recipients := backend.Recipients
	var (
		guard        usecase.JobGuard
		cmdLimiter   tele.CommandLimiter
		loginLimiter web.LoginLimiter
	)

	// ---- Redis (optional) ----
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, running without cache and shared lock")
		} else {
			defer redisClient.Close()
			recipients = red.NewRecipientCache(recipients, redisClient, cfg.Redis.TTL, logger)
			limiter := red.NewRateLimiter(redisClient)
			cmdLimiter, loginLimiter = limiter, limiter
			guard = red.NewBroadcastGuard(red.NewLocker(redisClient), cfg.Broadcast.LockTTL, logger)
		}
	}

	// ---- Telegram ----
	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	logger.Info().Str("bot", bot.Self.UserName).Msg("authorized on telegram")
	messenger := tele.NewMessenger(bot, cfg.Broadcast.RatePerSec)

	// ---- Use cases ----
	userUC := usecase.NewUserUseCase(recipients, backend.Tx, logger)
	broadcastUC := usecase.NewBroadcastUseCase(recipients, messenger, guard, usecase.BroadcastOptions{
		SendDelay:  cfg.Broadcast.SendDelay,
		PreviewLen: cfg.Broadcast.PreviewLen,
	}, logger)
	statsUC := usecase.NewStatsUseCase(recipients, broadcastUC, logger)
	exportUC := usecase.NewExportUseCase(recipients, backend.Snapshots, logger)
	importUC := usecase.NewImportUseCase(recipients, backend.Tx, logger)

	// ---- Jobs ----
	jobs := worker.NewPool(2, logger)
	jobs.Start(ctx)
	defer jobs.Stop()

	facade := application.NewBotFacade(userUC, broadcastUC, statsUC, exportUC, importUC, messenger, jobs, logger)

	catalog, err := texts.Load(cfg.Storefront)
	if err != nil {
		return err
	}
	if len(cfg.Bot.AdminIDs) == 0 {
		logger.Warn().Msg("bot.admin_ids is empty: every user can run admin commands")
	}
	botAdapter, err := tele.NewRealTelegramBotAdapter(bot, &cfg.Bot, facade, catalog, cmdLimiter, logger)
	if err != nil {
		return fmt.Errorf("telegram adapter: %w", err)
	}
	if strings.ToLower(cfg.Bot.Mode) != "polling" {
		logger.Warn().Str("mode", cfg.Bot.Mode).Msg("bot.mode not implemented; falling back to polling")
	}

	// ---- Admin API ----
	var api *web.Server
	if cfg.Admin.Port > 0 {
		api = web.NewServer(facade, &cfg.Bot, cfg.Admin, !cfg.Runtime.Dev, loginLimiter, logger)
		go func() {
			if err := api.ListenAndServe(fmt.Sprintf(":%d", cfg.Admin.Port)); err != nil {
				logger.Error().Err(err).Msg("admin api stopped")
			}
		}()
	}

	// ---- Background workers ----
	statsWorker := sched.NewRecipientStatsWorker(cfg.Scheduler.StatsInterval, statsUC, backend.PoolStats, logger)
	go func() { _ = statsWorker.Run(ctx) }()

	if cfg.Scheduler.BackupDir != "" {
		backups, err := scheduler.NewBackupScheduler(cfg.Scheduler.BackupCron, cfg.Scheduler.BackupDir, cfg.Scheduler.BackupKeep, exportUC, logger)
		if err != nil {
			return err
		}
		if err := backups.Start(ctx); err != nil {
			return err
		}
		defer backups.Stop()
	}

	// Storefront copy is hot-reloaded; everything else needs a restart.
	if _, err := os.Stat(cfg.Runtime.Path); err == nil {
		go func() {
			err := config.Watch(ctx, cfg.Runtime.Path, logger, func(next *config.Config) {
				catalog.Apply(next.Storefront)
			})
			if err != nil {
				logger.Warn().Err(err).Msg("config watch disabled")
			}
		}()
	}

	polling := make(chan error, 1)
	go func() { polling <- botAdapter.StartPolling(ctx) }()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Debug().Err(err).Msg("sd_notify failed")
	} else if ok {
		logger.Debug().Msg("notified systemd")
	}

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	botAdapter.StopPolling()
	if err := <-polling; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Msg("telegram polling stopped")
	}
	if api != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := api.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("admin api shutdown")
		}
	}
	logger.Info().Msg("bye")
	return nil
}
