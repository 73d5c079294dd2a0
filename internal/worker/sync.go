package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gamehub-engine/internal/config"
	"github.com/gamehub-engine/internal/domain"
	"github.com/gamehub-engine/internal/postgres"
	"github.com/gamehub-engine/internal/redis"
)

// SyncWorker handles periodic synchronization of all-time totals between
// Redis and PostgreSQL. Redis holds the hot leaderboards; PostgreSQL is
// the durable copy used to rebuild them after a restart.
type SyncWorker struct {
	redis    *redis.Store
	postgres *postgres.Repository
	config   *config.WorkerConfig
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(
	store *redis.Store,
	repo *postgres.Repository,
	cfg *config.WorkerConfig,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		redis:    store,
		postgres: repo,
		config:   cfg,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background sync process
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sync worker stopped")
	return nil
}

// run is the main worker loop
func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.syncAll(ctx)
		}
	}
}

// syncAll syncs every game type's totals from Redis to PostgreSQL
func (w *SyncWorker) syncAll(ctx context.Context) {
	w.logger.Info("starting sync cycle")
	startTime := time.Now()

	syncedCount := 0
	errorCount := 0

	for _, gt := range domain.GameTypes {
		if err := w.SyncToDatabase(ctx, gt); err != nil {
			w.logger.Error("failed to sync game type",
				"game_type", gt,
				"error", err,
			)
			errorCount++
		} else {
			syncedCount++
		}
	}

	duration := time.Since(startTime)
	w.logger.Info("sync cycle completed",
		"duration", duration,
		"synced", syncedCount,
		"errors", errorCount,
	)
}

// SyncToDatabase syncs one game type's totals from Redis to PostgreSQL
func (w *SyncWorker) SyncToDatabase(ctx context.Context, gameType domain.GameType) error {
	totals, err := w.redis.AllTotals(ctx, gameType)
	if err != nil {
		return err
	}

	if len(totals) == 0 {
		return nil
	}

	// Process in batches to avoid overwhelming the database
	batchSize := w.config.BatchSize
	if batchSize == 0 {
		batchSize = 1000
	}

	batch := make(map[string]int64, batchSize)
	count := 0

	for playerID, total := range totals {
		batch[playerID] = total
		count++

		if count >= batchSize {
			if err := w.postgres.BatchUpsertTotals(ctx, gameType, batch); err != nil {
				return err
			}
			batch = make(map[string]int64, batchSize)
			count = 0
		}
	}

	if len(batch) > 0 {
		if err := w.postgres.BatchUpsertTotals(ctx, gameType, batch); err != nil {
			return err
		}
	}

	w.logger.Debug("synced totals to database",
		"game_type", gameType,
		"player_count", len(totals),
	)

	return nil
}

// SyncFromDatabase rebuilds one game type's Redis leaderboard from the
// durable totals, used on startup recovery.
func (w *SyncWorker) SyncFromDatabase(ctx context.Context, gameType domain.GameType) error {
	totals, err := w.postgres.AllTotals(ctx, gameType)
	if err != nil {
		return err
	}

	if len(totals) == 0 {
		return nil
	}

	if err := w.redis.BatchSetTotals(ctx, gameType, totals); err != nil {
		return err
	}

	w.logger.Debug("synced totals from database",
		"game_type", gameType,
		"player_count", len(totals),
	)

	return nil
}

// SyncAllFromDatabase rebuilds every game type's Redis leaderboard
func (w *SyncWorker) SyncAllFromDatabase(ctx context.Context) error {
	w.logger.Info("syncing all leaderboards from database")

	for _, gt := range domain.GameTypes {
		if err := w.SyncFromDatabase(ctx, gt); err != nil {
			w.logger.Error("failed to sync game type from database",
				"game_type", gt,
				"error", err,
			)
			// Continue with other game types
		}
	}

	w.logger.Info("completed syncing all leaderboards from database")
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single sync cycle (useful for manual triggers)
func (w *SyncWorker) RunOnce(ctx context.Context) {
	w.syncAll(ctx)
}
