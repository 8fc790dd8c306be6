package main

import (
	"context"
	"fmt"

	"github.com/spareflow/spareflow/internal/config"
	"github.com/spareflow/spareflow/internal/events"
	"github.com/spareflow/spareflow/internal/ledger"
	"github.com/spareflow/spareflow/internal/queue"
	"github.com/spareflow/spareflow/internal/resolver"
	"github.com/spareflow/spareflow/internal/storage"
)

// initStorage opens the configured database and brings the schema current.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initQueue wires the mapping queue with the built-in resolver and a logging
// event sink.
func initQueue(store *storage.SQLiteStorage) *queue.Queue {
	return queue.NewWithConfig(store, resolver.New(store), queue.Config{
		Sink: events.NewLogSink(nil),
	})
}

// initLedger wires the round-up engine with the configured sweep threshold.
func initLedger(store *storage.SQLiteStorage, cfg *config.Config) *ledger.Engine {
	return ledger.NewWithConfig(store, ledger.Config{
		Sink:           events.NewLogSink(nil),
		SweepThreshold: cfg.SweepThreshold,
	})
}
