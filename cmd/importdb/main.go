// Command importdb merges a users.db or CSV export into the recipient store
// without starting the bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"telegram-storefront-bot/internal/config"
	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/infra/db"
	"telegram-storefront-bot/internal/infra/importer"
	"telegram-storefront-bot/internal/infra/logging"
	"telegram-storefront-bot/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "", "optional YAML config; its database section is used")
	dbPath := flag.String("db", "users.db", "target sqlite file when -config and -pg are not set")
	pgURL := flag.String("pg", "", "target postgres url")
	format := flag.String("format", "", "source format: csv or sqlite (detected when empty)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: importdb [flags] <source file>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	src := flag.Arg(0)

	dbCfg := config.DatabaseConfig{Driver: "sqlite", Path: *dbPath, MaxConns: 4, BusyTimeout: 5 * time.Second}
	logCfg := config.LogConfig{Level: "info", Format: "console"}
	switch {
	case *cfgPath != "":
		cfg, err := config.LoadConfig(*cfgPath, false)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		dbCfg, logCfg = cfg.Database, cfg.Log
	case *pgURL != "":
		dbCfg = config.DatabaseConfig{Driver: "postgres", URL: *pgURL, MaxConns: 4}
	}
	logger := logging.New(logCfg, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	backend, err := db.Open(ctx, dbCfg, logger)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer backend.Close()

	reader, err := importer.Open(ctx, src, model.ImportFormat(*format))
	if err != nil {
		log.Fatalf("open %s: %v", src, err)
	}
	defer reader.Close()

	importUC := usecase.NewImportUseCase(backend.Recipients, backend.Tx, logger)
	rep, err := importUC.Import(ctx, reader)
	if err != nil {
		log.Fatalf("import: %v", err)
	}
	fmt.Printf("read=%d inserted=%d updated=%d skipped=%d\n", rep.Read, rep.Inserted, rep.Updated, rep.Skipped)
}
