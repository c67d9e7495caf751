package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hetulpatel/dlrarb/internal/cache"
	"github.com/hetulpatel/dlrarb/internal/kafka"
	"github.com/hetulpatel/dlrarb/internal/logging"
	sqlstore "github.com/hetulpatel/dlrarb/internal/storage/sqlite"
	"github.com/hetulpatel/dlrarb/internal/tick"
	"github.com/hetulpatel/dlrarb/internal/workers"
)

var (
	consumeGroup   string
	consumeWorkers int
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Journal published ticks from Kafka into SQLite",
	Long: `Consume tick results published by "serve" or "tick" and journal the best row
whenever it changes. Needs KAFKA_BROKERS and SQLITE_PATH; REDIS_ADDR enables
change detection shared with the publisher.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		brokers := kafka.ParseBrokers(cfg.Kafka.Brokers)
		if len(brokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if cfg.SQLite.Path == "" {
			return errors.New("SQLITE_PATH is required")
		}
		topic := cfg.Kafka.Topic
		if topic == "" {
			topic = kafka.DefaultTicksTopic
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := sqlstore.Open(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.CreateTables(ctx); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}

		var bestCache tick.BestCache
		if cfg.Redis.Addr != "" {
			// Separate prefix so the consumer does not read the publisher's dedup state.
			oc, err := cache.NewRedisOpportunityCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL, cfg.Redis.Prefix+"_journal")
			if err != nil {
				return err
			}
			defer oc.Close()
			bestCache = oc
		}

		waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
		err = kafka.WaitForBroker(waitCtx, brokers)
		cancel()
		if err != nil {
			return fmt.Errorf("wait for broker: %w", err)
		}

		proc := workers.NewProcessor(bestCache, store)
		logging.Infof("[arb_monitor] consuming %s with group %s (%d workers) into %s", topic, consumeGroup, consumeWorkers, store.Path())
		workers.Run(ctx, func() workers.MessageReader {
			return kafka.NewReader(brokers, topic, consumeGroup)
		}, consumeWorkers, proc.Handle)
		return nil
	},
}

func init() {
	consumeCmd.Flags().StringVar(&consumeGroup, "group", "dlrarb-journal", "kafka consumer group")
	consumeCmd.Flags().IntVar(&consumeWorkers, "workers", 1, "concurrent consumers")
}
