package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/hetulpatel/dlrarb/internal/logging"
	"github.com/hetulpatel/dlrarb/internal/storage/sqlite"
)

const usage = `usage: sqlite_admin <create|drop|clear|migrate|recent>

Environment:
  SQLITE_PATH     journal path (default data/dlrarb.db)
  RECENT_SOURCE   filter for "recent" (rofex, ambito, mock)
  RECENT_LIMIT    rows for "recent" (default 20)`

func main() {
	_ = godotenv.Load()
	logging.InitFromEnv()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	store, err := sqlite.Open(os.Getenv("SQLITE_PATH"))
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	switch os.Args[1] {
	case "create":
		if err := store.CreateTables(ctx); err != nil {
			log.Fatalf("create tables: %v", err)
		}
		log.Printf("SQLite tables ensured at %s", store.Path())
	case "drop":
		if err := store.DropTables(ctx); err != nil {
			log.Fatalf("drop tables: %v", err)
		}
		log.Printf("SQLite tables dropped at %s", store.Path())
	case "clear":
		if err := store.ClearTables(ctx); err != nil {
			log.Fatalf("clear tables: %v", err)
		}
		log.Printf("SQLite tables cleared at %s", store.Path())
	case "migrate":
		if err := store.Migrate(ctx); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Printf("SQLite schema migrated at %s", store.Path())
	case "recent":
		limit, _ := strconv.Atoi(os.Getenv("RECENT_LIMIT"))
		entries, err := store.RecentBest(ctx, os.Getenv("RECENT_SOURCE"), limit)
		if err != nil {
			log.Fatalf("recent: %v", err)
		}
		for _, e := range entries {
			fmt.Printf("%s  %-7s %-12s %4dd  %-22s %8.0f bps  funding=%.2f%%\n",
				e.ObservedAt.Format("2006-01-02 15:04:05"), e.Source, e.Ticker, e.Days, e.Strategy, e.MaxSpreadBps, e.FundingRate*100)
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}
