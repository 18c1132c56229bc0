// Command dryrun exercises a broadcast and a recall against a throwaway
// store and a simulated Telegram, printing what the admin would see.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"telegram-storefront-bot/internal/application"
	"telegram-storefront-bot/internal/config"
	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/domain/ports/adapter"
	"telegram-storefront-bot/internal/domain/ports/repository"
	tele "telegram-storefront-bot/internal/infra/adapters/telegram"
	"telegram-storefront-bot/internal/infra/db"
	"telegram-storefront-bot/internal/infra/logging"
	"telegram-storefront-bot/internal/usecase"
)

const adminChat = int64(1)

func main() {
	n := flag.Int("n", 25, "number of simulated recipients")
	blockEvery := flag.Int("block-every", 7, "every k-th recipient has blocked the bot (0 disables)")
	floodAt := flag.Int64("flood", 0, "recipient id that answers with a flood wait")
	delay := flag.Duration("delay", 5*time.Millisecond, "pause between two sends")
	text := flag.String("text", "🔥 Nuovi arrivi in vetrina!", "broadcast text")
	flag.Parse()

	logger := logging.New(config.LogConfig{Level: "debug", Format: "console"}, true)
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "storefront-dryrun-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	backend, err := db.Open(ctx, config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "users.db")}, logger)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer backend.Close()

	messenger := tele.NewNoopMessenger(time.Millisecond, logger)
	messenger.RetryAfter = time.Second
	for i := 1; i <= *n; i++ {
		id := int64(100 + i)
		r, _ := model.NewRecipient(id, fmt.Sprintf("user%d", i), "", "")
		if err := backend.Recipients.Save(ctx, repository.NoTX, r); err != nil {
			log.Fatalf("seed: %v", err)
		}
		if *blockEvery > 0 && i%*blockEvery == 0 {
			messenger.Failures[id] = adapter.KindBlocked
		}
	}
	if *floodAt != 0 {
		messenger.Failures[*floodAt] = adapter.KindRateLimited
	}

	broadcastUC := usecase.NewBroadcastUseCase(backend.Recipients, messenger, nil, usecase.BroadcastOptions{SendDelay: *delay}, logger)
	facade := application.NewBotFacade(nil, broadcastUC, nil, nil, nil, messenger, nil, logger)

	res, err := facade.Dispatch(ctx, application.BroadcastRequest{AdminChatID: adminChat, Payload: model.TextPayload(*text)})
	if err != nil {
		log.Fatalf("broadcast: %v", err)
	}
	d := res.Delivery
	fmt.Printf("broadcast %s: total=%d sent=%d blocked=%d failed=%d\n", d.JobID, d.Total, d.Sent, d.Blocked, d.Failed)

	res, err = facade.Dispatch(ctx, application.RecallRequest{AdminChatID: adminChat})
	if err != nil {
		log.Fatalf("recall: %v", err)
	}
	fmt.Printf("recall: ok=%d err=%d\n", res.Recall.OK, res.Recall.Err)
}
